package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tx         repository.TxRunner
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Tx         repository.TxRunner
	Audit      *AuditService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:         deps.Tx,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// AssignTicket makes helpdeskID the single agent responsible for the ticket.
// Reassigning replaces the previous agent; assigning the current agent again
// is a no-op.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID, helpdeskID string) (*domain.TicketDetail, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can assign tickets")
	}
	if helpdeskID == "" {
		return nil, apperrors.NewValidationError("helpdesk_id is required", map[string]any{"field": "helpdesk_id"})
	}

	var (
		result   *domain.TicketDetail
		previous *string
		changed  bool
	)
	err := s.tx.RunInTx(ctx, func(store *repository.Store) error {
		detail, err := store.Tickets.GetDetail(ctx, ticketID, true)
		if err != nil {
			return notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
		}
		if detail.Ticket.Status.IsTerminal() {
			return apperrors.NewTicketRevoked(ticketID)
		}

		agent, err := store.Users.GetByID(ctx, helpdeskID)
		if err != nil {
			return notFoundOr(err, "user", "user_id", helpdeskID, "load helpdesk agent")
		}
		if agent.Role != domain.RoleHelpdesk {
			return apperrors.NewValidationError("tickets can only be assigned to helpdesk agents",
				map[string]any{"helpdesk_id": helpdeskID, "role": agent.Role})
		}

		if detail.Assignment != nil {
			if detail.Assignment.HelpdeskID == helpdeskID {
				result = detail
				return nil
			}
			previous = strPtr(detail.Assignment.HelpdeskID)
		}

		stamp := s.now().UTC()
		assignment := &domain.TicketAssignment{
			ID:         uuid.NewString(),
			TicketID:   ticketID,
			HelpdeskID: helpdeskID,
			AssignedBy: actor.ID,
			CreatedAt:  stamp,
			UpdatedAt:  stamp,
		}
		if err := store.Assignments.Upsert(ctx, assignment); err != nil {
			return apperrors.NewStorageError("assign ticket", err)
		}

		details := fmt.Sprintf("Assigned to %s by %s", agent.Name, describeActor(actor))
		if previous != nil {
			details = fmt.Sprintf("Reassigned from %s to %s by %s", *previous, agent.Name, describeActor(actor))
		}
		entry := &domain.AuditLogEntry{
			TicketID:      ticketID,
			UserID:        strPtr(actor.ID),
			Action:        domain.AuditAssigned,
			PreviousValue: previous,
			NewValue:      strPtr(helpdeskID),
			Details:       details,
			CreatedAt:     stamp,
		}
		if err := s.audit.Record(ctx, store.Audit, entry); err != nil {
			return err
		}
		changed = true

		result, err = store.Tickets.GetDetail(ctx, ticketID, false)
		return notFoundOr(err, "ticket", "ticket_id", ticketID, "reload ticket")
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return result, nil
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticketID),
		zap.String("helpdesk_id", helpdeskID),
		zap.String("assigned_by", actor.ID))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		Actor:    events.ActorOf(actor),
		Payload: events.TicketAssignedPayload{
			HelpdeskID:         helpdeskID,
			PreviousHelpdeskID: previous,
			SubmittedBy:        result.Ticket.SubmittedBy,
		},
	})
	return result, nil
}
