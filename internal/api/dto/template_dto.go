package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// TemplateRequest payload for create and update.
type TemplateRequest struct {
	Name   string         `json:"name"`
	Fields []domain.Field `json:"fields"`
}

// ToInput converts the request.
func (r TemplateRequest) ToInput() service.TemplateInput {
	return service.TemplateInput{Name: r.Name, Fields: r.Fields}
}

// TemplateResponse describes a form template.
type TemplateResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Fields    []domain.Field `json:"fields"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewTemplateResponse converts a domain template.
func NewTemplateResponse(t *domain.FormTemplate) TemplateResponse {
	fields := t.Fields
	if fields == nil {
		fields = []domain.Field{}
	}
	return TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Fields:    fields,
		CreatedBy: t.CreatedBy,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
