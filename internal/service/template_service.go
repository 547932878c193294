package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TemplateService manages the forms tickets are submitted through.
type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

// TemplateInput describes a template create or update.
type TemplateInput struct {
	Name   string
	Fields []domain.Field
}

// NewTemplateService constructs the service.
func NewTemplateService(templates repository.TemplateRepository, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{templates: templates, logger: logger}
}

// CreateTemplate stores a new template. Admin only.
func (s *TemplateService) CreateTemplate(ctx context.Context, actor domain.Actor, input TemplateInput) (*domain.FormTemplate, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can manage templates")
	}
	tpl := &domain.FormTemplate{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Fields:    prepareFields(input.Fields),
		CreatedBy: actor.ID,
	}
	if issues := tpl.ValidateDefinition(); len(issues) > 0 {
		return nil, apperrors.NewValidationError("invalid template", map[string]any{"fields": issues})
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, apperrors.NewStorageError("create template", err)
	}
	s.logger.Info("template created", zap.String("template_id", tpl.ID), zap.String("name", tpl.Name))
	return tpl, nil
}

// UpdateTemplate replaces name and fields. Existing tickets are not
// revalidated against the new definition.
func (s *TemplateService) UpdateTemplate(ctx context.Context, actor domain.Actor, id string, input TemplateInput) (*domain.FormTemplate, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can manage templates")
	}
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "template", "template_id", id, "load template")
	}
	tpl.Name = strings.TrimSpace(input.Name)
	tpl.Fields = prepareFields(input.Fields)
	if issues := tpl.ValidateDefinition(); len(issues) > 0 {
		return nil, apperrors.NewValidationError("invalid template", map[string]any{"fields": issues})
	}
	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, notFoundOr(err, "template", "template_id", id, "update template")
	}
	s.logger.Info("template updated", zap.String("template_id", tpl.ID))
	return tpl, nil
}

// GetTemplate returns one template.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.FormTemplate, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "template", "template_id", id, "load template")
	}
	return tpl, nil
}

// ListTemplates returns every template.
func (s *TemplateService) ListTemplates(ctx context.Context) ([]domain.FormTemplate, error) {
	list, err := s.templates.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("list templates", err)
	}
	if list == nil {
		list = []domain.FormTemplate{}
	}
	return list, nil
}

func prepareFields(fields []domain.Field) []domain.Field {
	out := make([]domain.Field, len(fields))
	for i, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Type = domain.FieldType(strings.ToLower(strings.TrimSpace(string(f.Type))))
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		out[i] = f
	}
	return out
}
