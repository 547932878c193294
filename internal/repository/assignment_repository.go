package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AssignmentRepository keeps the single assignment row per ticket.
type AssignmentRepository interface {
	// Upsert replaces any existing assignment for the ticket.
	Upsert(ctx context.Context, assignment *domain.TicketAssignment) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.TicketAssignment, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository builds a Postgres-backed AssignmentRepository.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Upsert(ctx context.Context, a *domain.TicketAssignment) error {
	const query = `
        INSERT INTO ticket_assignments (id, ticket_id, helpdesk_id, assigned_by)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (ticket_id) DO UPDATE
            SET helpdesk_id = EXCLUDED.helpdesk_id,
                assigned_by = EXCLUDED.assigned_by,
                updated_at  = NOW()
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, a.ID, a.TicketID, a.HelpdeskID, a.AssignedBy).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *assignmentRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.TicketAssignment, error) {
	const query = `
        SELECT id, ticket_id, helpdesk_id, assigned_by, created_at, updated_at
        FROM ticket_assignments WHERE ticket_id=$1`
	var a domain.TicketAssignment
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&a.ID, &a.TicketID, &a.HelpdeskID, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
