package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AuditRepository stores the append-only ticket audit trail. Only the repair
// path uses SetValues and Delete.
type AuditRepository interface {
	Insert(ctx context.Context, entry *domain.AuditLogEntry) error
	// ListByTicket returns entries newest first, joined with their actor.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditTrailItem, error)
	Get(ctx context.Context, id string) (*domain.AuditLogEntry, error)
	EnsureSchema(ctx context.Context) error
	// ListIncomplete returns rows missing previous_value or new_value.
	ListIncomplete(ctx context.Context) ([]domain.AuditLogEntry, error)
	// SetValues fills only the columns that are still NULL.
	SetValues(ctx context.Context, id string, previous, next *string) error
	Delete(ctx context.Context, id string) error
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

const auditColumns = `a.id, a.ticket_id, a.user_id, a.action, a.previous_value, a.new_value, a.details, a.created_at`

func (r *auditRepository) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	const query = `
        INSERT INTO audit_logs (id, ticket_id, user_id, action, previous_value, new_value, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.PreviousValue,
		entry.NewValue,
		entry.Details,
		entry.CreatedAt,
	)
	return mapWriteErr(err)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditTrailItem, error) {
	query := `
        SELECT ` + auditColumns + `, u.id, u.name, u.email
        FROM audit_logs a
        LEFT JOIN users u ON u.id = a.user_id
        WHERE a.ticket_id=$1
        ORDER BY a.created_at DESC, a.id DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditTrailItem
	for rows.Next() {
		var (
			item                 domain.AuditTrailItem
			actorID, name, email *string
		)
		e := &item.Entry
		if err := rows.Scan(
			&e.ID, &e.TicketID, &e.UserID, &e.Action, &e.PreviousValue, &e.NewValue, &e.Details, &e.CreatedAt,
			&actorID, &name, &email,
		); err != nil {
			return nil, err
		}
		if actorID != nil {
			item.Actor = &domain.UserRef{ID: *actorID, Name: deref(name), Email: deref(email)}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *auditRepository) Get(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	var e domain.AuditLogEntry
	if err := r.db.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs a WHERE a.id=$1`, id).Scan(
		&e.ID, &e.TicketID, &e.UserID, &e.Action, &e.PreviousValue, &e.NewValue, &e.Details, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

var auditSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_logs (
        id         TEXT PRIMARY KEY,
        ticket_id  TEXT NOT NULL,
        user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
        action     TEXT NOT NULL,
        details    TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`ALTER TABLE audit_logs ADD COLUMN IF NOT EXISTS previous_value TEXT`,
	`ALTER TABLE audit_logs ADD COLUMN IF NOT EXISTS new_value TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_ticket_created ON audit_logs(ticket_id, created_at)`,
}

func (r *auditRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range auditSchema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

func (r *auditRepository) ListIncomplete(ctx context.Context) ([]domain.AuditLogEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs a
        WHERE (a.previous_value IS NULL OR a.new_value IS NULL)
        ORDER BY a.created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(
			&e.ID, &e.TicketID, &e.UserID, &e.Action, &e.PreviousValue, &e.NewValue, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditRepository) SetValues(ctx context.Context, id string, previous, next *string) error {
	const query = `
        UPDATE audit_logs
        SET previous_value = COALESCE(previous_value, $1),
            new_value      = COALESCE(new_value, $2)
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, previous, next, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *auditRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM audit_logs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
