package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler serves ticket intake, lifecycle, audit and assignment.
type TicketsHandler struct {
	tickets     *service.TicketService
	lifecycle   *service.LifecycleService
	audit       *service.AuditService
	assignments *service.AssignmentService
	chat        *service.ChatService
}

// TicketsHandlerDeps bundles the services behind the ticket routes.
type TicketsHandlerDeps struct {
	Tickets     *service.TicketService
	Lifecycle   *service.LifecycleService
	Audit       *service.AuditService
	Assignments *service.AssignmentService
	Chat        *service.ChatService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(deps TicketsHandlerDeps) *TicketsHandler {
	return &TicketsHandler{
		tickets:     deps.Tickets,
		lifecycle:   deps.Lifecycle,
		audit:       deps.Audit,
		assignments: deps.Assignments,
		chat:        deps.Chat,
	}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input, issues := req.ToInput()
	if len(issues) > 0 {
		return apperrors.NewValidationError("invalid ticket", map[string]any{"fields": issues})
	}
	detail, err := h.tickets.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, dto.NewTicketDetail(detail))
}

// ListTickets GET /tickets?status=open,in_progress&priority=urgent&limit=&offset=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	var issues []domain.FieldIssue
	for _, raw := range splitQuery(c.Query("status")) {
		s, err := domain.ParseTicketStatus(raw)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Field: "status", Reason: err.Error()})
			continue
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		p, err := domain.ParseTicketPriority(raw)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Field: "priority", Reason: err.Error()})
			continue
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	if len(issues) > 0 {
		return apperrors.NewValidationError("invalid filter", map[string]any{"fields": issues})
	}

	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return data(c, http.StatusOK, items)
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	detail, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTicketDetail(detail))
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	patch, issues := req.ToPatch()
	if len(issues) > 0 {
		return apperrors.NewValidationError("invalid update", map[string]any{"fields": issues})
	}
	detail, err := h.lifecycle.UpdateTicket(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTicketDetail(detail))
}

// RevokeTicket POST /tickets/:id/revoke.
func (h *TicketsHandler) RevokeTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	detail, err := h.lifecycle.RevokeTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTicketDetail(detail))
}

// AuditTrail GET /tickets/:id/audit[?replay=true]. The trail is returned
// unwrapped as {"auditTrail": [...]}.
func (h *TicketsHandler) AuditTrail(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID := c.Params("id")
	items, err := h.audit.Query(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	resp := dto.NewAuditTrailResponse(items)
	if c.QueryBool("replay", false) {
		replay, err := h.audit.Replay(c.UserContext(), actor, ticketID)
		if err != nil {
			return err
		}
		resp.Replay = replay
	}
	return c.JSON(resp)
}

// AssignTicket PUT /tickets/:id/assignment.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.assignments.AssignTicket(c.UserContext(), actor, c.Params("id"), req.HelpdeskID)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTicketDetail(detail))
}

// Messages GET /tickets/:id/messages.
func (h *TicketsHandler) Messages(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.TicketMessages(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewMessageList(msgs))
}
