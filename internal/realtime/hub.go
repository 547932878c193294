package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Frame types sent to and received from clients.
const (
	FrameMessage    = "message"
	FrameTyping     = "typing"
	FrameStopTyping = "stop-typing"
	FrameAssignment = "ticket-assigned"
)

// Frame is the envelope of every websocket payload.
type Frame struct {
	Type string `json:"type"`
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// MessagePayload is the wire form of a chat message.
type MessagePayload struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"sender_id"`
	ReceiverID string             `json:"receiver_id"`
	Content    string             `json:"content"`
	TicketID   *string            `json:"ticket_id"`
	Attachment *AttachmentPayload `json:"attachment,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// AttachmentPayload is the wire form of an attachment reference.
type AttachmentPayload struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// PresenceStore mirrors who is connected somewhere other processes can read.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Hub maps each user to at most one live client. A newer connection for the
// same user replaces the older one; the older one stays open but no longer
// receives anything.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client
	owners   map[*Client]string
	presence PresenceStore
	logger   *zap.Logger
}

// NewHub builds an empty hub. presence may be nil.
func NewHub(presence PresenceStore, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		owners:   make(map[*Client]string),
		presence: presence,
		logger:   logger,
	}
}

// Register makes c the live client of its user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if prev, ok := h.clients[c.UserID]; ok && prev != c {
		delete(h.owners, prev)
	}
	h.clients[c.UserID] = c
	h.owners[c] = c.UserID
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client registered", zap.String("user_id", c.UserID), zap.Int("clients", total))
	h.markPresence(c.UserID, true)
}

// Unregister removes c by reverse lookup. It is a no-op for a client that
// was already replaced by a newer connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	userID, ok := h.owners[c]
	if ok {
		delete(h.owners, c)
		if h.clients[userID] == c {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()
	c.close()

	if ok {
		h.logger.Debug("client unregistered", zap.String("user_id", userID))
		h.markPresence(userID, false)
	}
}

// Touch refreshes the presence entry of a connected user.
func (h *Hub) Touch(userID string) {
	if h.Online(userID) {
		h.markPresence(userID, true)
	}
}

// Online reports whether userID has a live client in this process.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[userID]
	return ok
}

// SendMessage pushes a stored chat message to its receiver if connected.
func (h *Hub) SendMessage(targetUserID string, message domain.Message) bool {
	return h.deliver(targetUserID, Frame{
		Type: FrameMessage,
		From: message.SenderID,
		Data: messagePayload(message),
	})
}

// Typing tells target that sender is typing.
func (h *Hub) Typing(targetUserID, senderID string) bool {
	return h.deliver(targetUserID, Frame{Type: FrameTyping, From: senderID})
}

// StopTyping tells target that sender stopped typing.
func (h *Hub) StopTyping(targetUserID, senderID string) bool {
	return h.deliver(targetUserID, Frame{Type: FrameStopTyping, From: senderID})
}

// NotifyAssignment tells a helpdesk agent a ticket was assigned to them.
func (h *Hub) NotifyAssignment(targetUserID string, event events.Event) bool {
	return h.deliver(targetUserID, Frame{
		Type: FrameAssignment,
		From: event.Actor.UserID,
		Data: map[string]any{"ticket_id": event.TicketID, "assigned_at": event.Timestamp},
	})
}

// deliver never blocks: offline targets and full buffers drop the frame.
func (h *Hub) deliver(targetUserID string, frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("marshal frame", zap.String("type", frame.Type), zap.Error(err))
		return false
	}

	h.mu.Lock()
	c, ok := h.clients[targetUserID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if !c.enqueue(data) {
		h.logger.Debug("client buffer full; frame dropped",
			zap.String("user_id", targetUserID),
			zap.String("type", frame.Type))
		return false
	}
	return true
}

func (h *Hub) markPresence(userID string, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	if online {
		err = h.presence.SetOnline(ctx, userID)
	} else {
		err = h.presence.SetOffline(ctx, userID)
	}
	if err != nil {
		h.logger.Warn("presence update failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
}

func messagePayload(m domain.Message) MessagePayload {
	out := MessagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		TicketID:   m.TicketID,
		CreatedAt:  m.CreatedAt,
	}
	if m.HasAttachment() {
		out.Attachment = &AttachmentPayload{URL: m.Attachment.URL, Type: m.Attachment.Type, Name: m.Attachment.Name}
	}
	return out
}
