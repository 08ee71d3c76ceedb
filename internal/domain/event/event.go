package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys used by the workflow events
const (
	KeyFromState  = "from_state"
	KeyToState    = "to_state"
	KeyState      = "state"
	KeyCaller     = "caller"
	KeyTemplateID = "template_id"
	KeyName       = "name"
)

// Event represents a domain event emitted after a committed call
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	WorkflowID    int64                  `json:"workflow_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, workflowID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, workflowID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, workflowID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		WorkflowID:    workflowID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set (the receiver is not modified)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
