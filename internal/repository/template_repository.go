package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TemplateRepository stores form templates.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *domain.FormTemplate) error
	Update(ctx context.Context, tpl *domain.FormTemplate) error
	GetByID(ctx context.Context, id string) (*domain.FormTemplate, error)
	List(ctx context.Context) ([]domain.FormTemplate, error)
}

type templateRepository struct {
	db DBTX
}

// NewTemplateRepository builds a Postgres-backed TemplateRepository.
func NewTemplateRepository(db DBTX) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, name, fields, created_by, created_at, updated_at`

func (r *templateRepository) Create(ctx context.Context, tpl *domain.FormTemplate) error {
	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return fmt.Errorf("encode template fields: %w", err)
	}
	const query = `
        INSERT INTO form_templates (id, name, fields, created_by)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, query, tpl.ID, tpl.Name, fields, nullable(tpl.CreatedBy)).
		Scan(&tpl.CreatedAt, &tpl.UpdatedAt)
	return mapWriteErr(err)
}

func (r *templateRepository) Update(ctx context.Context, tpl *domain.FormTemplate) error {
	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return fmt.Errorf("encode template fields: %w", err)
	}
	const query = `
        UPDATE form_templates SET name=$1, fields=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query, tpl.Name, fields, tpl.ID).Scan(&tpl.UpdatedAt)
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*domain.FormTemplate, error) {
	return scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM form_templates WHERE id=$1`, id))
}

func (r *templateRepository) List(ctx context.Context) ([]domain.FormTemplate, error) {
	rows, err := r.db.Query(ctx, `SELECT `+templateColumns+` FROM form_templates ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FormTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tpl)
	}
	return result, rows.Err()
}

func scanTemplate(row pgx.Row) (*domain.FormTemplate, error) {
	var (
		tpl       domain.FormTemplate
		fields    []byte
		createdBy *string
	)
	if err := row.Scan(&tpl.ID, &tpl.Name, &fields, &createdBy, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeFields(fields, &tpl); err != nil {
		return nil, err
	}
	if createdBy != nil {
		tpl.CreatedBy = *createdBy
	}
	return &tpl, nil
}

func decodeFields(raw []byte, tpl *domain.FormTemplate) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &tpl.Fields); err != nil {
		return fmt.Errorf("decode fields of template %s: %w", tpl.ID, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
