package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// AuditAction tags what changed in an audit entry.
type AuditAction string

const (
	AuditStatusChange   AuditAction = "status_change"
	AuditPriorityChange AuditAction = "priority_change"
	AuditFormDataChange AuditAction = "form_data_change"
	AuditRevoked        AuditAction = "revoked"
	AuditAssigned       AuditAction = "assigned"
	// AuditCanary tags the row the repair self-check writes and deletes.
	AuditCanary AuditAction = "canary"
)

// AuditLogEntry is an immutable record of a single field change on a ticket.
type AuditLogEntry struct {
	ID            string
	TicketID      string
	UserID        *string
	Action        AuditAction
	PreviousValue *string
	NewValue      *string
	Details       string
	CreatedAt     time.Time
}

// AuditTrailItem is an entry joined with its actor at read time. Actor is nil
// when the user no longer exists.
type AuditTrailItem struct {
	Entry AuditLogEntry
	Actor *UserRef
}

var (
	legacyPreviousKeys = []string{"previous_value", "previousValue", "from"}
	legacyNewKeys      = []string{"new_value", "newValue", "to"}
)

// LegacyValues extracts before/after values that older rows kept inside a
// JSON details blob. Either result is nil when absent.
func LegacyValues(details string) (previous, next *string) {
	trimmed := strings.TrimSpace(details)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, nil
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(trimmed), &blob); err != nil {
		return nil, nil
	}
	return firstValue(blob, legacyPreviousKeys), firstValue(blob, legacyNewKeys)
}

func firstValue(blob map[string]any, keys []string) *string {
	for _, key := range keys {
		raw, ok := blob[key]
		if !ok || raw == nil {
			continue
		}
		s := stringify(raw)
		return &s
	}
	return nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Resolved returns the entry with missing columns filled from legacy details.
// Dedicated columns always win.
func (e AuditLogEntry) Resolved() AuditLogEntry {
	if e.PreviousValue != nil && e.NewValue != nil {
		return e
	}
	prev, next := LegacyValues(e.Details)
	if e.PreviousValue == nil {
		e.PreviousValue = prev
	}
	if e.NewValue == nil {
		e.NewValue = next
	}
	return e
}

// NeedsBackfill reports whether a legacy blob can fill a missing column.
func (e AuditLogEntry) NeedsBackfill() bool {
	if e.PreviousValue != nil && e.NewValue != nil {
		return false
	}
	prev, next := LegacyValues(e.Details)
	return (e.PreviousValue == nil && prev != nil) || (e.NewValue == nil && next != nil)
}

// TicketState is the replayable part of a ticket.
type TicketState struct {
	Status   TicketStatus   `json:"status"`
	Priority TicketPriority `json:"priority"`
	FormData string         `json:"form_data"`
}

// Replay applies entries in ascending created_at order onto start.
func Replay(start TicketState, entries []AuditLogEntry) TicketState {
	state := start
	for _, entry := range entries {
		e := entry.Resolved()
		if e.NewValue == nil {
			continue
		}
		switch e.Action {
		case AuditStatusChange, AuditRevoked:
			state.Status = TicketStatus(*e.NewValue)
		case AuditPriorityChange:
			state.Priority = TicketPriority(*e.NewValue)
		case AuditFormDataChange:
			state.FormData = *e.NewValue
		}
	}
	return state
}

// InitialState derives the state before the first recorded change. Each
// field takes the previous value of its earliest entry, or stays at current
// when no entry touched it. entries must be in ascending created_at order.
func InitialState(current TicketState, entries []AuditLogEntry) TicketState {
	state := current
	var status, priority, formData bool
	for _, entry := range entries {
		e := entry.Resolved()
		if e.PreviousValue == nil {
			continue
		}
		switch e.Action {
		case AuditStatusChange, AuditRevoked:
			if !status {
				state.Status, status = TicketStatus(*e.PreviousValue), true
			}
		case AuditPriorityChange:
			if !priority {
				state.Priority, priority = TicketPriority(*e.PreviousValue), true
			}
		case AuditFormDataChange:
			if !formData {
				state.FormData, formData = *e.PreviousValue, true
			}
		}
	}
	return state
}
