package service

import (
	"net/http"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestTemplateLifecycle(t *testing.T) {
	f := newFixture(t)
	input := TemplateInput{
		Name: "  Access request ",
		Fields: []domain.Field{
			{Name: " system ", Type: "SELECT", Options: "vpn,git", Required: true},
			{Name: "reason", Type: domain.FieldTextarea},
		},
	}

	_, err := f.templates.CreateTemplate(f.ctx, f.agent, input)
	requireDomainError(t, err, http.StatusForbidden, apperrors.CodeForbidden)

	tpl, err := f.templates.CreateTemplate(f.ctx, f.admin, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tpl.Name != "Access request" || tpl.Fields[0].Name != "system" || tpl.Fields[0].Type != domain.FieldSelect {
		t.Fatalf("template not normalized: %+v", tpl)
	}
	if tpl.Fields[0].ID == "" || tpl.Fields[1].ID == "" {
		t.Fatalf("field ids must be assigned")
	}

	input.Fields = append(input.Fields, domain.Field{Name: "until", Type: domain.FieldDate})
	updated, err := f.templates.UpdateTemplate(f.ctx, f.admin, tpl.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Fields) != 3 {
		t.Fatalf("expected three fields, got %d", len(updated.Fields))
	}

	got, err := f.templates.GetTemplate(f.ctx, tpl.ID)
	if err != nil || len(got.Fields) != 3 {
		t.Fatalf("get: %v %+v", err, got)
	}
	list, err := f.templates.ListTemplates(f.ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two templates, got %d (%v)", len(list), err)
	}
}

func TestTemplateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.templates.CreateTemplate(f.ctx, f.admin, TemplateInput{Name: "Broken", Fields: []domain.Field{{Name: "x", Type: "slider"}}})
	requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)

	_, err = f.templates.UpdateTemplate(f.ctx, f.admin, "missing", TemplateInput{Name: "x", Fields: []domain.Field{{Name: "x", Type: domain.FieldText}}})
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)

	_, err = f.templates.GetTemplate(f.ctx, "missing")
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}
