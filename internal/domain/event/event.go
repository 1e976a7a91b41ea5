package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeySummary      = "summary"
	KeyThreadID     = "thread_id"
	KeyContractorID = "contractor_id"
	KeyVersion      = "version"
	KeyTotal        = "total"
	KeyCommandCount = "command_count"
	KeyLowConf      = "low_confidence"
	KeyOutcome      = "outcome"
	KeyStatus       = "status"
)

// Event is something that happened to a quote or its review session
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	QuoteID       string                 `json:"quote_id"`
	SessionID     string                 `json:"session_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event with a fresh ID; the ID doubles as the correlation ID
func NewEvent(eventType Type, quoteID, sessionID string, payload map[string]interface{}) *Event {
	evt := NewEventWithCorrelation(eventType, quoteID, sessionID, payload, "")
	evt.CorrelationID = evt.ID
	return evt
}

// NewEventWithCorrelation creates an event linked to a correlation chain,
// typically the session ID so all events of one review can be grouped
func NewEventWithCorrelation(eventType Type, quoteID, sessionID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		QuoteID:       quoteID,
		SessionID:     sessionID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set; the receiver is not modified
func (e *Event) WithPayload(key string, value interface{}) *Event {
	cp := *e
	cp.Payload = make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		cp.Payload[k] = v
	}
	cp.Payload[key] = value
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if str, ok := e.Payload[key].(string); ok {
		return str
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int {
	switch v := e.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0.0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}
