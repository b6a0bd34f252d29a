package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/laborsched/internal/api"
	"example.com/laborsched/internal/auth"
	"example.com/laborsched/internal/config"
	"example.com/laborsched/internal/domain"
	"example.com/laborsched/internal/events"
	"example.com/laborsched/internal/outbox"
	persistence "example.com/laborsched/internal/persistence/postgres"
	httptransport "example.com/laborsched/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, events.TopicActivities)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	var locker domain.Locker = domain.NewKeyedMutex()
	if cfg.LockBackend == config.LockBackendPostgres {
		locker = persistence.NewAdvisoryLocker(pool)
	}

	service := domain.NewService(repo,
		domain.WithLocker(locker),
		domain.WithOpenShiftPolicy(domain.NewOpenShiftPolicy(cfg.OpenShiftAssumedMinutes)),
		domain.WithWindow(cfg.Workday),
	)

	mux := http.NewServeMux()
	api.NewHandler(service, nil).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	accessLog := log.New(log.Writer(), "[http] ", log.LstdFlags)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(accessLog, httptransport.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("laborsched api listening on %s (locks=%s, workday=%d-%d)", cfg.HTTPAddress, cfg.LockBackend, cfg.Workday.Start, cfg.Workday.End)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
