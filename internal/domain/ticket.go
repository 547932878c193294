package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusRevoked    TicketStatus = "revoked"
)

// ParseTicketStatus validates a status coming from outside the process.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch st := TicketStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusRevoked:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// IsTerminal reports whether no further mutation is accepted.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusRevoked
}

// TicketPriority enumerates triage urgency. Pending means not yet triaged.
type TicketPriority string

const (
	TicketPriorityPending TicketPriority = "pending"
	TicketPriorityLow     TicketPriority = "low"
	TicketPriorityMedium  TicketPriority = "medium"
	TicketPriorityHigh    TicketPriority = "high"
	TicketPriorityUrgent  TicketPriority = "urgent"
)

// ParseTicketPriority validates a priority coming from outside the process.
func ParseTicketPriority(s string) (TicketPriority, error) {
	switch p := TicketPriority(strings.ToLower(strings.TrimSpace(s))); p {
	case TicketPriorityPending, TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// FormData holds the submitted answers keyed by template field name.
type FormData map[string]any

// Encode serializes form data for storage. Keys are emitted in sorted order,
// so two equal maps always produce the same text.
func (d FormData) Encode() (string, error) {
	if d == nil {
		d = FormData{}
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return "", fmt.Errorf("encode form data: %w", err)
	}
	return string(b), nil
}

// DecodeFormData parses stored form data text.
func DecodeFormData(raw string) (FormData, error) {
	if strings.TrimSpace(raw) == "" {
		return FormData{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return FormData(out), nil
}

// Ticket is a form submission tracked through status and priority.
type Ticket struct {
	ID             string
	FormTemplateID string
	SubmittedBy    string
	FormData       FormData
	Status         TicketStatus
	Priority       TicketPriority
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TicketDetail is a ticket with everything a lifecycle decision needs.
type TicketDetail struct {
	Ticket     Ticket
	Template   *FormTemplate
	Submitter  *UserRef
	Assignment *TicketAssignment
	Helpdesk   *UserRef
}

// IsAssignedTo reports whether userID is the ticket's current helpdesk agent.
func (d *TicketDetail) IsAssignedTo(userID string) bool {
	return d.Assignment != nil && d.Assignment.HelpdeskID == userID
}

// TicketAssignment links a ticket to its single responsible helpdesk agent.
type TicketAssignment struct {
	ID         string
	TicketID   string
	HelpdeskID string
	AssignedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
