package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/laborsched/internal/outbox"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity_id":"abc"}`)
	reader := &stubReader{messages: []kafka.Message{framedMessage(10, 42, "activity.created", "tenant-1", payload)}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.created", handler.last.EventType)
	require.Equal(t, "tenant-1", handler.last.TenantID)
	require.Equal(t, "activity_events-scheduled", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{framedMessage(20, 99, "activity.closed", "tenant-2", []byte(`{}`))}}
	handler := &stubHandler{err: errors.New("boom")}

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_events", "activity.closed"))

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_events", "activity.closed")), 0.0001)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	short := kafka.Message{Topic: "activity_events", Value: []byte{0, 1}}
	noHeader := framedMessage(3, 1, "", "", []byte(`{}`))
	noHeader.Headers = nil
	reader := &stubReader{messages: []kafka.Message{short, noHeader}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events"))

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.InDelta(t, before+2, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events")), 0.0001)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{framedMessage(1, 1, "activity.created", "t", []byte(`{}`))},
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler,
		WithLogger(log.New(io.Discard, "", 0)),
		WithRetryDelay(time.Millisecond),
	).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestFanoutRunsEveryHandler(t *testing.T) {
	first := &stubHandler{err: errors.New("first failed")}
	second := &stubHandler{}

	err := Fanout{first, second}.Handle(context.Background(), Message{EventType: "activity.created"})
	require.ErrorContains(t, err, "first failed")
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)

	require.NoError(t, Fanout{second}.Handle(context.Background(), Message{}))
}

func TestWorkflowHandlerPostsEnvelope(t *testing.T) {
	type received struct {
		auth string
		body workflowEnvelope
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env workflowEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got <- received{auth: r.Header.Get("Authorization"), body: env}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := NewWorkflowHandler(srv.URL+"/", "secret", time.Second)
	ts := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)
	err := h.Handle(context.Background(), Message{
		EventType: "activity.closed",
		TenantID:  "tenant-1",
		Timestamp: ts,
		Payload:   json.RawMessage(`{"activity_id":"a1","end_time":"18:00"}`),
	})
	require.NoError(t, err)

	r := <-got
	require.Equal(t, "Bearer secret", r.auth)
	require.Equal(t, "activity.closed", r.body.EventType)
	require.Equal(t, "tenant-1", r.body.TenantID)
	require.True(t, ts.Equal(r.body.OccurredAt))
	require.JSONEq(t, `{"activity_id":"a1","end_time":"18:00"}`, string(r.body.Data))
}

func TestWorkflowHandlerFiltersEventTypes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	h := NewWorkflowHandler(srv.URL, "", time.Second, "activity.closed")
	require.NoError(t, h.Handle(context.Background(), Message{EventType: "activity.created", Payload: json.RawMessage(`{}`)}))
	require.Zero(t, calls)
}

func TestWorkflowHandlerReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWorkflowHandler(srv.URL, "", time.Second).Handle(context.Background(), Message{Payload: json.RawMessage(`{}`)})

	var webhookErr *WebhookError
	require.ErrorAs(t, err, &webhookErr)
	require.Equal(t, http.StatusBadGateway, webhookErr.Status)
}

func framedMessage(offset int64, schemaID int, eventType, tenantID string, payload []byte) kafka.Message {
	return kafka.Message{
		Topic:     "activity_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     outbox.EncodeWireFormat(schemaID, payload),
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(eventType)},
			{Key: outbox.HeaderTenantID, Value: []byte(tenantID)},
			{Key: outbox.HeaderSchemaSubject, Value: []byte("activity_events-scheduled")},
		},
	}
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
