package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AttachmentPayload references an already uploaded file.
type AttachmentPayload struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	ReceiverID string             `json:"receiver_id"`
	Content    string             `json:"content"`
	TicketID   *string            `json:"ticket_id"`
	Attachment *AttachmentPayload `json:"attachment"`
}

// ToInput converts the request.
func (r SendMessageRequest) ToInput() service.SendMessageInput {
	input := service.SendMessageInput{ReceiverID: r.ReceiverID, Content: r.Content, TicketID: r.TicketID}
	if r.Attachment != nil {
		input.Attachment = &domain.Attachment{URL: r.Attachment.URL, Type: r.Attachment.Type, Name: r.Attachment.Name}
	}
	return input
}

// MessageResponse is one chat line.
type MessageResponse struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"sender_id"`
	ReceiverID string             `json:"receiver_id"`
	Content    string             `json:"content"`
	TicketID   *string            `json:"ticket_id"`
	Attachment *AttachmentPayload `json:"attachment,omitempty"`
	Read       bool               `json:"read"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewMessageResponse converts a domain message.
func NewMessageResponse(m *domain.Message) MessageResponse {
	out := MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		TicketID:   m.TicketID,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
	if m.HasAttachment() {
		out.Attachment = &AttachmentPayload{URL: m.Attachment.URL, Type: m.Attachment.Type, Name: m.Attachment.Name}
	}
	return out
}

// NewMessageList converts a slice.
func NewMessageList(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}
