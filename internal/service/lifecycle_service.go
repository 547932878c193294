package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketPatch lists the mutable ticket fields. Nil means "not requested".
type TicketPatch struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	FormData domain.FormData
}

// IsEmpty reports whether no field was requested.
func (p TicketPatch) IsEmpty() bool {
	return p.Status == nil && p.Priority == nil && p.FormData == nil
}

// LifecycleService applies status, priority, form data and revocation
// changes, writing one audit entry per effective change in the same
// transaction as the update.
type LifecycleService struct {
	tx         repository.TxRunner
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Tx         repository.TxRunner
	Audit      *AuditService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		tx:         deps.Tx,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

type fieldChange struct {
	action   domain.AuditAction
	previous string
	next     string
	details  string
}

var changeEvents = map[domain.AuditAction]events.EventType{
	domain.AuditStatusChange:   events.EventTicketStatusChanged,
	domain.AuditPriorityChange: events.EventTicketPriorityChanged,
	domain.AuditFormDataChange: events.EventTicketFormDataChanged,
	domain.AuditRevoked:        events.EventTicketRevoked,
}

// UpdateTicket applies patch on behalf of actor. Every requested field is
// permission-checked before anything is written; a failure on any field
// rejects the whole request. Fields whose value does not change are not
// written or audited.
func (s *LifecycleService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, patch TicketPatch) (*domain.TicketDetail, error) {
	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("nothing to update", map[string]any{
			"fields": []string{"status", "priority", "form_data"},
		})
	}
	if patch.Status != nil && *patch.Status == domain.TicketStatusRevoked {
		return nil, apperrors.NewValidationError("use the revoke operation to revoke a ticket", map[string]any{"field": "status"})
	}

	var (
		result  *domain.TicketDetail
		changes []fieldChange
	)
	err := s.tx.RunInTx(ctx, func(store *repository.Store) error {
		detail, err := store.Tickets.GetDetail(ctx, ticketID, true)
		if err != nil {
			return notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
		}
		if detail.Ticket.Status.IsTerminal() {
			return apperrors.NewTicketRevoked(ticketID)
		}
		if err := checkPatchPermissions(actor, detail, patch); err != nil {
			return err
		}

		ticket := detail.Ticket
		changes, err = diffPatch(actor, detail, patch, &ticket)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			result = detail
			return nil
		}

		stamp := s.now().UTC()
		ticket.UpdatedAt = stamp
		if err := store.Tickets.Update(ctx, &ticket); err != nil {
			return notFoundOr(err, "ticket", "ticket_id", ticketID, "update ticket")
		}
		if err := s.recordChanges(ctx, store, actor, ticketID, stamp, changes); err != nil {
			return err
		}

		result, err = store.Tickets.GetDetail(ctx, ticketID, false)
		return notFoundOr(err, "ticket", "ticket_id", ticketID, "reload ticket")
	})
	if err != nil {
		s.logUpdateFailure(ticketID, actor, err)
		return nil, err
	}

	s.publishChanges(ctx, actor, ticketID, changes)
	return result, nil
}

// RevokeTicket lets the submitter cancel their own ticket. Revocation is
// terminal; closed tickets cannot be revoked.
func (s *LifecycleService) RevokeTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketDetail, error) {
	var (
		result *domain.TicketDetail
		change fieldChange
	)
	err := s.tx.RunInTx(ctx, func(store *repository.Store) error {
		detail, err := store.Tickets.GetDetail(ctx, ticketID, true)
		if err != nil {
			return notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
		}
		ticket := detail.Ticket
		if ticket.SubmittedBy != actor.ID {
			return apperrors.NewForbidden("only the ticket submitter can revoke it")
		}
		switch ticket.Status {
		case domain.TicketStatusRevoked:
			return apperrors.NewTicketRevoked(ticketID)
		case domain.TicketStatusClosed:
			return apperrors.NewConflict("closed tickets cannot be revoked", map[string]any{"ticket_id": ticketID})
		}

		change = fieldChange{
			action:   domain.AuditRevoked,
			previous: string(ticket.Status),
			next:     string(domain.TicketStatusRevoked),
			details: fmt.Sprintf("Ticket revoked by submitter %s; status changed from %q to %q",
				describeActor(actor), ticket.Status, domain.TicketStatusRevoked),
		}
		stamp := s.now().UTC()
		ticket.Status = domain.TicketStatusRevoked
		ticket.UpdatedAt = stamp
		if err := store.Tickets.Update(ctx, &ticket); err != nil {
			return notFoundOr(err, "ticket", "ticket_id", ticketID, "revoke ticket")
		}
		if err := s.recordChanges(ctx, store, actor, ticketID, stamp, []fieldChange{change}); err != nil {
			return err
		}
		result, err = store.Tickets.GetDetail(ctx, ticketID, false)
		return notFoundOr(err, "ticket", "ticket_id", ticketID, "reload ticket")
	})
	if err != nil {
		s.logUpdateFailure(ticketID, actor, err)
		return nil, err
	}

	s.publishChanges(ctx, actor, ticketID, []fieldChange{change})
	return result, nil
}

// checkPatchPermissions verifies priority, status and form_data in that
// order and names the first field the actor may not change.
func checkPatchPermissions(actor domain.Actor, detail *domain.TicketDetail, patch TicketPatch) error {
	if patch.Priority != nil && !actor.IsAdmin() {
		return apperrors.NewForbiddenField("priority", "Only admins can update priority")
	}
	if patch.Status != nil && !actor.IsAdmin() {
		if !actor.IsHelpdesk() || !detail.IsAssignedTo(actor.ID) {
			return apperrors.NewForbiddenField("status", "Only admins or the assigned helpdesk agent can update status")
		}
	}
	if patch.FormData != nil && !actor.IsAdmin() && detail.Ticket.SubmittedBy != actor.ID {
		return apperrors.NewForbiddenField("form_data", "Only admins or the ticket submitter can update form data")
	}
	return nil
}

// diffPatch applies patch to ticket and returns one change per field whose
// value actually differs. Form data is compared by its serialized text.
func diffPatch(actor domain.Actor, detail *domain.TicketDetail, patch TicketPatch, ticket *domain.Ticket) ([]fieldChange, error) {
	var changes []fieldChange
	who := describeActor(actor)

	if patch.Status != nil && *patch.Status != ticket.Status {
		changes = append(changes, fieldChange{
			action:   domain.AuditStatusChange,
			previous: string(ticket.Status),
			next:     string(*patch.Status),
			details:  fmt.Sprintf("Status changed from %q to %q by %s", ticket.Status, *patch.Status, who),
		})
		ticket.Status = *patch.Status
	}
	if patch.Priority != nil && *patch.Priority != ticket.Priority {
		changes = append(changes, fieldChange{
			action:   domain.AuditPriorityChange,
			previous: string(ticket.Priority),
			next:     string(*patch.Priority),
			details:  fmt.Sprintf("Priority changed from %q to %q by %s", ticket.Priority, *patch.Priority, who),
		})
		ticket.Priority = *patch.Priority
	}
	if patch.FormData != nil {
		data := patch.FormData
		if detail.Template != nil {
			normalized, issues := detail.Template.NormalizeFormData(patch.FormData)
			if len(issues) > 0 {
				return nil, apperrors.NewValidationError("form data does not match the template", map[string]any{"fields": issues})
			}
			data = normalized
		}
		before, err := ticket.FormData.Encode()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		after, err := data.Encode()
		if err != nil {
			return nil, apperrors.NewValidationError("form data cannot be serialized", nil)
		}
		if before != after {
			changes = append(changes, fieldChange{
				action:   domain.AuditFormDataChange,
				previous: before,
				next:     after,
				details:  fmt.Sprintf("Form data updated by %s", who),
			})
			ticket.FormData = data
		}
	}
	return changes, nil
}

// recordChanges writes every change with the same timestamp.
func (s *LifecycleService) recordChanges(ctx context.Context, store *repository.Store, actor domain.Actor, ticketID string, stamp time.Time, changes []fieldChange) error {
	for _, change := range changes {
		entry := &domain.AuditLogEntry{
			TicketID:      ticketID,
			UserID:        strPtr(actor.ID),
			Action:        change.action,
			PreviousValue: strPtr(change.previous),
			NewValue:      strPtr(change.next),
			Details:       change.details,
			CreatedAt:     stamp,
		}
		if err := s.audit.Record(ctx, store.Audit, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *LifecycleService) publishChanges(ctx context.Context, actor domain.Actor, ticketID string, changes []fieldChange) {
	for _, change := range changes {
		s.logger.Info("ticket changed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(change.action)),
			zap.String("user_id", actor.ID))
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:     changeEvents[change.action],
			TicketID: ticketID,
			Actor:    events.ActorOf(actor),
			Payload: events.TicketFieldChangedPayload{
				Action:   change.action,
				Previous: strPtr(change.previous),
				New:      strPtr(change.next),
			},
		})
	}
}

func (s *LifecycleService) logUpdateFailure(ticketID string, actor domain.Actor, err error) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= 500 {
		s.logger.Error("ticket change failed",
			zap.String("ticket_id", ticketID),
			zap.String("user_id", actor.ID),
			zap.String("code", de.Code),
			zap.Error(err))
		return
	}
	s.logger.Debug("ticket change rejected",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", actor.ID),
		zap.String("code", de.Code))
}
