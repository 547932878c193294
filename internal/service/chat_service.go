package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ChatService stores direct messages and links them to tickets.
type ChatService struct {
	store      *repository.Store
	tx         repository.TxRunner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Store      *repository.Store
	Tx         repository.TxRunner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// SendMessageInput is one outgoing chat line.
type SendMessageInput struct {
	ReceiverID string
	Content    string
	TicketID   *string
	Attachment *domain.Attachment
}

// AmbiguousPair is a submitter/helpdesk pair shared by several tickets.
// Messages between them were attributed to the oldest ticket.
type AmbiguousPair struct {
	SubmitterID string   `json:"submitter_id"`
	HelpdeskID  string   `json:"helpdesk_id"`
	TicketIDs   []string `json:"ticket_ids"`
}

// CorrelationReport summarizes one batch correlation run.
type CorrelationReport struct {
	TicketsScanned int             `json:"tickets_scanned"`
	MessagesTagged int64           `json:"messages_tagged"`
	AmbiguousPairs []AmbiguousPair `json:"ambiguous_pairs"`
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:      deps.Store,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SendMessage persists the message and then hands it to live delivery.
// A ticket id, when given, must belong to the conversation: the two parties
// must be the ticket's submitter and its assigned agent. Admins may post on
// any ticket.
func (s *ChatService) SendMessage(ctx context.Context, actor domain.Actor, input SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	hasAttachment := input.Attachment != nil && input.Attachment.URL != ""
	if input.ReceiverID == "" {
		return nil, apperrors.NewValidationError("receiver_id is required", map[string]any{"field": "receiver_id"})
	}
	if input.ReceiverID == actor.ID {
		return nil, apperrors.NewValidationError("cannot send a message to yourself", map[string]any{"field": "receiver_id"})
	}
	if content == "" && !hasAttachment {
		return nil, apperrors.NewValidationError("message needs content or an attachment", map[string]any{"field": "content"})
	}
	if _, err := s.store.Users.GetByID(ctx, input.ReceiverID); err != nil {
		return nil, notFoundOr(err, "user", "user_id", input.ReceiverID, "load receiver")
	}

	if input.TicketID != nil && *input.TicketID != "" {
		detail, err := s.store.Tickets.GetDetail(ctx, *input.TicketID, false)
		if err != nil {
			return nil, notFoundOr(err, "ticket", "ticket_id", *input.TicketID, "load ticket")
		}
		if !actor.IsAdmin() && !conversationMatches(detail, actor.ID, input.ReceiverID) {
			return nil, apperrors.NewForbiddenField("ticket_id", "ticket does not belong to this conversation")
		}
	} else {
		input.TicketID = nil
	}

	stamp := s.now().UTC()
	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   actor.ID,
		ReceiverID: input.ReceiverID,
		Content:    content,
		TicketID:   input.TicketID,
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
	}
	if hasAttachment {
		att := *input.Attachment
		msg.Attachment = &att
	}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewStorageError("store message", err)
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventMessageSent,
		TicketID: deref(msg.TicketID),
		Actor:    events.ActorOf(actor),
		Payload:  events.MessageSentPayload{Message: *msg},
	})
	return msg, nil
}

// Conversation returns the messages between actor and other, oldest first.
func (s *ChatService) Conversation(ctx context.Context, actor domain.Actor, otherID string, limit, offset int) ([]domain.Message, error) {
	if _, err := s.store.Users.GetByID(ctx, otherID); err != nil {
		return nil, notFoundOr(err, "user", "user_id", otherID, "load user")
	}
	msgs, err := s.store.Messages.ListConversation(ctx, actor.ID, otherID, limit, offset)
	if err != nil {
		return nil, apperrors.NewStorageError("list messages", err)
	}
	return nonNilMessages(msgs), nil
}

// TicketMessages returns the messages linked to a ticket. Visibility follows
// ticket reads; helpdesk agents must also be the assignee.
func (s *ChatService) TicketMessages(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Message, error) {
	detail, err := s.store.Tickets.GetDetail(ctx, ticketID, false)
	if err != nil {
		return nil, notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
	}
	switch {
	case actor.IsAdmin():
	case actor.IsHelpdesk() && detail.IsAssignedTo(actor.ID):
	case detail.Ticket.SubmittedBy == actor.ID:
	default:
		return nil, apperrors.NewForbidden("you are not part of this ticket's conversation")
	}
	msgs, err := s.store.Messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError("list ticket messages", err)
	}
	return nonNilMessages(msgs), nil
}

// MarkRead flags everything otherID sent to actor as read.
func (s *ChatService) MarkRead(ctx context.Context, actor domain.Actor, otherID string) (int64, error) {
	n, err := s.store.Messages.MarkRead(ctx, actor.ID, otherID)
	if err != nil {
		return 0, apperrors.NewStorageError("mark messages read", err)
	}
	return n, nil
}

// BackfillTicketIDs links unassociated messages to tickets by matching the
// unordered (sender, receiver) pair against each ticket's submitter and
// assigned agent. Tickets are processed oldest first, so when one pair
// shares several tickets the oldest one claims the messages; such pairs are
// reported rather than resolved.
func (s *ChatService) BackfillTicketIDs(ctx context.Context) (*CorrelationReport, error) {
	report := &CorrelationReport{AmbiguousPairs: []AmbiguousPair{}}
	err := s.tx.RunInTx(ctx, func(store *repository.Store) error {
		candidates, err := store.Tickets.ListCorrelationCandidates(ctx)
		if err != nil {
			return err
		}
		pending, err := store.Messages.ListUncorrelated(ctx)
		if err != nil {
			return err
		}

		byPair := make(map[conversationKey][]string)
		for _, msg := range pending {
			key := pairKey(msg.SenderID, msg.ReceiverID)
			byPair[key] = append(byPair[key], msg.ID)
		}

		ticketsByPair := make(map[conversationKey][]string)
		firstSeen := make(map[conversationKey]domain.CorrelationCandidate)
		var order []conversationKey
		for _, c := range candidates {
			if c.SubmitterID == "" || c.HelpdeskID == "" {
				continue
			}
			report.TicketsScanned++
			key := pairKey(c.SubmitterID, c.HelpdeskID)
			if _, seen := firstSeen[key]; !seen {
				firstSeen[key] = c
				order = append(order, key)
			}
			ticketsByPair[key] = append(ticketsByPair[key], c.TicketID)

			ids := byPair[key]
			if len(ids) == 0 {
				continue
			}
			n, err := store.Messages.AssignTicket(ctx, ids, c.TicketID)
			if err != nil {
				return err
			}
			report.MessagesTagged += n
			delete(byPair, key)
		}

		for _, key := range order {
			tickets := ticketsByPair[key]
			if len(tickets) < 2 {
				continue
			}
			report.AmbiguousPairs = append(report.AmbiguousPairs, AmbiguousPair{
				SubmitterID: firstSeen[key].SubmitterID,
				HelpdeskID:  firstSeen[key].HelpdeskID,
				TicketIDs:   tickets,
			})
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageError("correlate messages", err)
	}

	for _, pair := range report.AmbiguousPairs {
		s.logger.Warn("ambiguous conversation; messages attributed to the oldest ticket",
			zap.String("submitter_id", pair.SubmitterID),
			zap.String("helpdesk_id", pair.HelpdeskID),
			zap.Strings("ticket_ids", pair.TicketIDs))
	}
	s.logger.Info("message correlation finished",
		zap.Int("tickets_scanned", report.TicketsScanned),
		zap.Int64("messages_tagged", report.MessagesTagged),
		zap.Int("ambiguous_pairs", len(report.AmbiguousPairs)))
	return report, nil
}

type conversationKey struct{ a, b string }

func pairKey(x, y string) conversationKey {
	if x > y {
		x, y = y, x
	}
	return conversationKey{a: x, b: y}
}

func conversationMatches(detail *domain.TicketDetail, sender, receiver string) bool {
	if detail.Assignment == nil {
		return false
	}
	return pairKey(sender, receiver) == pairKey(detail.Ticket.SubmittedBy, detail.Assignment.HelpdeskID)
}

func nonNilMessages(msgs []domain.Message) []domain.Message {
	if msgs == nil {
		return []domain.Message{}
	}
	return msgs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
