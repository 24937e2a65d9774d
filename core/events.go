package core

import (
	"context"
	"time"
)

// Lifecycle event types
const (
	EventTaskCreated        = "task.created"
	EventTaskDeleted        = "task.deleted"
	EventTaskSubmitted      = "task.submitted"
	EventAssignmentGraded   = "assignment.graded"
	EventAssignmentExtended = "assignment.extended"
	EventAssignmentRemoved  = "assignment.unassigned"
	EventAssignmentsOverdue = "assignments.overdue"
	EventInvitationAccepted = "invitation.accepted"
)

type (
	Event struct {
		Type       string                 `json:"type"`
		ActorID    string                 `json:"actor_id,omitempty"`
		Payload    map[string]interface{} `json:"payload"`
		OccurredAt time.Time              `json:"occurred_at"`
	}

	// EventPublisher publishes lifecycle events to whoever listens (a broker, the log..).
	EventPublisher interface {
		Publish(ctx context.Context, evt Event) error
	}
)

func NewEvent(typ, actorID string, payload map[string]interface{}) Event {
	return Event{
		Type:       typ,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
