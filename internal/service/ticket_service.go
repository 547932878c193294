package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/ticketid"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService handles intake and reads of tickets.
type TicketService struct {
	store       *repository.Store
	ids         *ticketid.Generator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxAttempts int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store         *repository.Store
	IDs           *ticketid.Generator
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	IDMaxAttempts int
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	TemplateID string
	FormData   domain.FormData
	Priority   domain.TicketPriority
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := deps.IDMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &TicketService{
		store:       deps.Store,
		ids:         deps.IDs,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		maxAttempts: attempts,
	}
}

// CreateTicket validates form data against the template, mints an id and
// stores the ticket. Id collisions from concurrent intake are retried.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*domain.TicketDetail, error) {
	if input.TemplateID == "" {
		return nil, apperrors.NewValidationError("template_id is required", map[string]any{"field": "template_id"})
	}
	tpl, err := s.store.Templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("unknown template", map[string]any{"template_id": input.TemplateID})
		}
		return nil, apperrors.NewStorageError("load template", err)
	}

	data, issues := tpl.NormalizeFormData(input.FormData)
	if len(issues) > 0 {
		return nil, apperrors.NewValidationError("form data does not match the template", map[string]any{"fields": issues})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityPending
	}
	ticket := &domain.Ticket{
		FormTemplateID: tpl.ID,
		SubmittedBy:    actor.ID,
		FormData:       data,
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
	}

	var lastErr error
	created := false
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ticket.ID = s.ids.Generate(ctx, tpl.Name, actor.Name)
		err := s.store.Tickets.Create(ctx, ticket)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.NewStorageError("create ticket", err)
		}
		lastErr = err
		s.logger.Warn("ticket id collision; retrying",
			zap.String("ticket_id", ticket.ID),
			zap.Int("attempt", attempt))
	}
	if !created {
		return nil, apperrors.NewTicketIDExhausted(s.maxAttempts, lastErr)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("template_id", tpl.ID),
		zap.String("submitted_by", actor.ID))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorOf(actor),
		Payload: events.TicketCreatedPayload{
			TemplateID:  tpl.ID,
			SubmittedBy: actor.ID,
			Priority:    ticket.Priority,
		},
	})

	detail, err := s.store.Tickets.GetDetail(ctx, ticket.ID, false)
	if err != nil {
		return nil, notFoundOr(err, "ticket", "ticket_id", ticket.ID, "load ticket")
	}
	return detail, nil
}

// GetTicket returns the hydrated ticket. Plain users only see their own.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketDetail, error) {
	detail, err := s.store.Tickets.GetDetail(ctx, ticketID, false)
	if err != nil {
		return nil, notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
	}
	if !canView(actor, detail) {
		return nil, apperrors.NewForbidden("you can only view your own tickets")
	}
	return detail, nil
}

// ListTickets scopes the listing by role: users see what they submitted,
// helpdesk agents what is assigned to them, admins everything.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleHelpdesk:
		repoFilter.HelpdeskID = strPtr(actor.ID)
	default:
		repoFilter.SubmittedBy = strPtr(actor.ID)
	}
	tickets, err := s.store.Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStorageError("list tickets", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func canView(actor domain.Actor, detail *domain.TicketDetail) bool {
	if actor.IsStaff() {
		return true
	}
	return detail.Ticket.SubmittedBy == actor.ID
}
