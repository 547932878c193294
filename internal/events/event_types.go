package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketFormDataChanged EventType = "ticket_form_data_changed"
	EventTicketRevoked         EventType = "ticket_revoked"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventMessageSent           EventType = "message_sent"
)

// LifecycleEvents lists the events exported outside the process.
var LifecycleEvents = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketPriorityChanged,
	EventTicketFormDataChanged,
	EventTicketRevoked,
	EventTicketAssigned,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorOf converts a domain actor.
func ActorOf(a domain.Actor) Actor {
	return Actor{UserID: a.ID, Role: a.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TemplateID  string                `json:"template_id"`
	SubmittedBy string                `json:"submitted_by"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TicketFieldChangedPayload carries one audited field change.
type TicketFieldChangedPayload struct {
	Action   domain.AuditAction `json:"action"`
	Previous *string            `json:"previous_value"`
	New      *string            `json:"new_value"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	HelpdeskID         string  `json:"helpdesk_id"`
	PreviousHelpdeskID *string `json:"previous_helpdesk_id,omitempty"`
	SubmittedBy        string  `json:"submitted_by"`
}

// MessageSentPayload carries a persisted chat message to live subscribers.
type MessageSentPayload struct {
	Message domain.Message `json:"message"`
}
