package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Domain event names.
const (
	EventApplicationApproved = "application.approved"
	EventApplicationRejected = "application.rejected"
	EventRequestApproved     = "practice_request.approved"
	EventRequestRejected     = "practice_request.rejected"
	EventEvaluatorAssigned   = "practice.evaluator_assigned"
	EventPracticeClosed      = "practice.closed"
)

type (
	Event struct {
		ID         string      `json:"id"`
		Name       string      `json:"name"`
		OccurredAt time.Time   `json:"occurred_at"`
		Payload    interface{} `json:"payload"`
	}

	// EventPublisher is any service that can broadcast domain events.
	// Events are published after the originating transaction commits.
	EventPublisher interface {
		Publish(ctx context.Context, evt Event) error
	}
)

func NewEvent(name string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: Now(),
		Payload:    payload,
	}
}
