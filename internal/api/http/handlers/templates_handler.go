package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// TemplatesHandler manages form templates.
type TemplatesHandler struct {
	service *service.TemplateService
}

// NewTemplatesHandler constructs handler.
func NewTemplatesHandler(templates *service.TemplateService) *TemplatesHandler {
	return &TemplatesHandler{service: templates}
}

// Create POST /templates.
func (h *TemplatesHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tpl, err := h.service.CreateTemplate(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, dto.NewTemplateResponse(tpl))
}

// Update PUT /templates/:id.
func (h *TemplatesHandler) Update(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tpl, err := h.service.UpdateTemplate(c.UserContext(), actor, c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTemplateResponse(tpl))
}

// Get GET /templates/:id.
func (h *TemplatesHandler) Get(c *fiber.Ctx) error {
	tpl, err := h.service.GetTemplate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewTemplateResponse(tpl))
}

// List GET /templates.
func (h *TemplatesHandler) List(c *fiber.Ctx) error {
	list, err := h.service.ListTemplates(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TemplateResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewTemplateResponse(&list[i]))
	}
	return data(c, http.StatusOK, items)
}
