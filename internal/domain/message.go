package domain

import "time"

// Attachment describes an uploaded file; storage itself lives elsewhere.
type Attachment struct {
	URL  string
	Type string
	Name string
}

// Message is one chat line between two users, optionally tied to a ticket.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	TicketID   *string
	Attachment *Attachment
	Read       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasAttachment reports whether a file travels with the message.
func (m *Message) HasAttachment() bool {
	return m.Attachment != nil && m.Attachment.URL != ""
}

// CorrelationCandidate is a ticket with both conversation parties known.
type CorrelationCandidate struct {
	TicketID    string
	SubmitterID string
	HelpdeskID  string
	CreatedAt   time.Time
}
