package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WorkflowHandler forwards activity events to an external workflow engine
// webhook such as an n8n trigger.
type WorkflowHandler struct {
	client     *http.Client
	url        string
	token      string
	eventTypes map[string]struct{}
}

// NewWorkflowHandler constructs a WorkflowHandler. When eventTypes is empty
// every event is forwarded.
func NewWorkflowHandler(endpoint, token string, timeout time.Duration, eventTypes ...string) *WorkflowHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &WorkflowHandler{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		token:  token,
	}
	if len(eventTypes) > 0 {
		h.eventTypes = make(map[string]struct{}, len(eventTypes))
		for _, et := range eventTypes {
			h.eventTypes[et] = struct{}{}
		}
	}
	return h
}

type workflowEnvelope struct {
	EventType  string          `json:"event_type"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Handle POSTs the event as JSON. Non-2xx answers are returned as *WebhookError
// so the record is not committed.
func (h *WorkflowHandler) Handle(ctx context.Context, msg Message) error {
	if h.eventTypes != nil {
		if _, ok := h.eventTypes[msg.EventType]; !ok {
			return nil
		}
	}

	body, err := json.Marshal(workflowEnvelope{
		EventType:  msg.EventType,
		TenantID:   msg.TenantID,
		OccurredAt: msg.Timestamp,
		Data:       msg.Payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("workflow webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &WebhookError{Status: resp.StatusCode}
	}
	return nil
}

// WebhookError represents a non-successful webhook response.
type WebhookError struct {
	Status int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("workflow webhook failed with status %d %s", e.Status, http.StatusText(e.Status))
}
