package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/laborsched/internal/events"
)

func TestWireFormatRoundTrip(t *testing.T) {
	payload := []byte(`{"activity_id":"a1"}`)

	frame := EncodeWireFormat(42, payload)
	require.Equal(t, byte(0), frame[0])

	id, body, err := DecodeWireFormat(frame)
	require.NoError(t, err)
	require.Equal(t, 42, id)
	require.Equal(t, payload, body)
}

func TestDecodeWireFormatRejectsShortFrames(t *testing.T) {
	_, _, err := DecodeWireFormat([]byte{0, 0, 1})
	require.ErrorIs(t, err, ErrInvalidFrame)

	_, _, err = DecodeWireFormat([]byte{1, 0, 0, 0, 1, '{'})
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)
	d.now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }

	messages := []Message{
		testMessage(1, "activity.created", "activity_events"),
		testMessage(2, "activity.closed", "activity_events"),
		testMessage(3, "activity.deleted", "activity_audit"),
	}

	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "activity_audit", producer.writes[1].topic)

	record := producer.writes[0].messages[1]
	require.Equal(t, []byte("t1:res-1"), record.Key)
	require.Equal(t, map[string]string{
		HeaderEventType:     "activity.closed",
		HeaderTenantID:      "t1",
		HeaderSchemaSubject: "activity_events-scheduled",
	}, headerMap(record.Headers))

	id, body, err := DecodeWireFormat(record.Value)
	require.NoError(t, err)
	require.Equal(t, 7, id)
	require.JSONEq(t, string(messages[1].Payload), string(body))
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 3}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	batch := []Message{
		testMessage(1, "activity.created", "activity_events"),
		testMessage(2, "activity.updated", "activity_events"),
	}
	require.NoError(t, d.deliver(context.Background(), batch))
	require.NoError(t, d.deliver(context.Background(), batch))

	require.Len(t, registry.calls, 1)
}

func TestDeliverFailsOnUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 3}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	err := d.deliver(context.Background(), []Message{testMessage(1, "activity.unknown", "activity_events")})
	require.ErrorContains(t, err, "no schema metadata for event_type=activity.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesWriteErrors(t *testing.T) {
	producer := &stubProducer{err: errors.New("broker down")}
	d := NewDispatcher(nil, producer, &stubRegistry{id: 1}, time.Second, 10)

	err := d.deliver(context.Background(), []Message{testMessage(1, "activity.created", "activity_events")})
	require.ErrorContains(t, err, "broker down")
}

func TestBackoffDelay(t *testing.T) {
	base := time.Minute
	require.Equal(t, time.Minute, backoffDelay(base, 1))
	require.Equal(t, 2*time.Minute, backoffDelay(base, 2))
	require.Equal(t, 16*time.Minute, backoffDelay(base, 5))
	require.Equal(t, time.Hour, backoffDelay(base, 7))
	require.Equal(t, time.Hour, backoffDelay(base, 64))
	require.Equal(t, time.Minute, backoffDelay(base, 0))
}

func TestSchemaRegistryReturnsLatestWhenPresent(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/activity_events-scheduled/versions/latest":
			_ = json.NewEncoder(w).Encode(map[string]int{"id": 11})
		default:
			registered = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(context.Background(), "activity_events-scheduled", activityScheduledSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
	require.False(t, registered)
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Path != "/subjects/activity_events-deleted/versions" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 12})
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_events-deleted", activityDeletedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
	require.Equal(t, "JSON", body["schemaType"])
	require.Equal(t, activityDeletedSchema, body["schema"])
}

func TestSchemaRegistryDoesNotRegisterOnRegistryFailure(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("registry warming up"))
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_events-scheduled", activityScheduledSchema)
	require.ErrorContains(t, err, "status 503: registry warming up")
	require.NotErrorIs(t, err, ErrSubjectNotFound)
	require.Zero(t, posts)
}

func TestKafkaProducerHashesRecordsOnKey(t *testing.T) {
	producer := NewKafkaProducer([]string{"localhost:9092"}, events.TopicActivities)
	defer producer.Close()

	writer := producer.writers[events.TopicActivities]
	require.NotNil(t, writer)
	require.IsType(t, &kafka.Hash{}, writer.Balancer)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
}

func TestKafkaProducerRejectsUnconfiguredTopic(t *testing.T) {
	producer := NewKafkaProducer([]string{"localhost:9092"}, events.TopicActivities)
	defer producer.Close()

	err := producer.WriteMessages(context.Background(), "activity_audit", kafka.Message{Value: []byte("x")})
	require.ErrorIs(t, err, ErrUnknownTopic)
}

func testMessage(id int64, eventType, topic string) Message {
	subject := "activity_events-scheduled"
	if eventType == "activity.deleted" {
		subject = "activity_events-deleted"
	}
	return Message{
		EventID:       id,
		TenantID:      "t1",
		AggregateType: "activity",
		AggregateID:   "a1",
		EventType:     eventType,
		Topic:         topic,
		SchemaSubject: subject,
		PartitionKey:  "t1:res-1",
		Payload:       json.RawMessage(`{"activity_id":"a1","tenant_id":"t1"}`),
	}
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
