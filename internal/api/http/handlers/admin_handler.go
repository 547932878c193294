package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AdminHandler exposes operator maintenance actions.
type AdminHandler struct {
	audit *service.AuditService
	chat  *service.ChatService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(audit *service.AuditService, chat *service.ChatService) *AdminHandler {
	return &AdminHandler{audit: audit, chat: chat}
}

// RepairAudit POST /admin/audit/repair.
func (h *AdminHandler) RepairAudit(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	report, err := h.audit.Repair(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, report)
}

// CorrelateMessages POST /admin/messages/correlate. Route is admin-guarded.
func (h *AdminHandler) CorrelateMessages(c *fiber.Ctx) error {
	report, err := h.chat.BackfillTicketIDs(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, report)
}
