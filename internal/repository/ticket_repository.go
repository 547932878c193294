package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	SubmittedBy *string
	HelpdeskID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Limit       int
	Offset      int
}

// TicketRepository encapsulates form submission persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetDetail loads the ticket with template, submitter and assignment in
	// one read. forUpdate locks the ticket row until the transaction ends.
	GetDetail(ctx context.Context, id string, forUpdate bool) (*domain.TicketDetail, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	// ListCorrelationCandidates returns assigned tickets oldest first.
	ListCorrelationCandidates(ctx context.Context) ([]domain.CorrelationCandidate, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `fs.id, fs.form_template_id, fs.submitted_by, fs.form_data, fs.status, fs.priority, fs.created_at, fs.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	formData, err := ticket.FormData.Encode()
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO form_submissions (id, form_template_id, submitted_by, form_data, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.FormTemplateID,
		ticket.SubmittedBy,
		formData,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	return mapWriteErr(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	formData, err := ticket.FormData.Encode()
	if err != nil {
		return err
	}
	const query = `
        UPDATE form_submissions SET form_data=$1, status=$2, priority=$3, updated_at=$4
        WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query,
		formData,
		ticket.Status,
		ticket.Priority,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM form_submissions fs WHERE fs.id=$1`
	var (
		ticket   domain.Ticket
		formData string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.FormTemplateID,
		&ticket.SubmittedBy,
		&formData,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	data, err := domain.DecodeFormData(formData)
	if err != nil {
		return nil, err
	}
	ticket.FormData = data
	return &ticket, nil
}

func (r *ticketRepository) GetDetail(ctx context.Context, id string, forUpdate bool) (*domain.TicketDetail, error) {
	query := `
        SELECT ` + ticketColumns + `,
               ft.id, ft.name, ft.fields, ft.created_by, ft.created_at, ft.updated_at,
               u.id, u.name, u.email,
               ta.id, ta.helpdesk_id, ta.assigned_by, ta.created_at, ta.updated_at,
               h.id, h.name, h.email
        FROM form_submissions fs
        JOIN form_templates ft ON ft.id = fs.form_template_id
        JOIN users u ON u.id = fs.submitted_by
        LEFT JOIN ticket_assignments ta ON ta.ticket_id = fs.id
        LEFT JOIN users h ON h.id = ta.helpdesk_id
        WHERE fs.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF fs`
	}

	var (
		detail        domain.TicketDetail
		tpl           domain.FormTemplate
		submitter     domain.UserRef
		formData      string
		fields        []byte
		tplCreatedBy  *string
		asgID         *string
		asgHelpdesk   *string
		asgBy         *string
		asgCreatedAt  *time.Time
		asgUpdatedAt  *time.Time
		helpdeskID    *string
		helpdeskName  *string
		helpdeskEmail *string
	)
	t := &detail.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.FormTemplateID, &t.SubmittedBy, &formData, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt,
		&tpl.ID, &tpl.Name, &fields, &tplCreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt,
		&submitter.ID, &submitter.Name, &submitter.Email,
		&asgID, &asgHelpdesk, &asgBy, &asgCreatedAt, &asgUpdatedAt,
		&helpdeskID, &helpdeskName, &helpdeskEmail,
	); err != nil {
		return nil, err
	}

	data, err := domain.DecodeFormData(formData)
	if err != nil {
		return nil, err
	}
	t.FormData = data
	if err := decodeFields(fields, &tpl); err != nil {
		return nil, err
	}
	if tplCreatedBy != nil {
		tpl.CreatedBy = *tplCreatedBy
	}
	detail.Template = &tpl
	detail.Submitter = &submitter

	if asgID != nil {
		detail.Assignment = &domain.TicketAssignment{
			ID:         *asgID,
			TicketID:   t.ID,
			HelpdeskID: deref(asgHelpdesk),
			AssignedBy: deref(asgBy),
		}
		if asgCreatedAt != nil {
			detail.Assignment.CreatedAt = *asgCreatedAt
		}
		if asgUpdatedAt != nil {
			detail.Assignment.UpdatedAt = *asgUpdatedAt
		}
	}
	if helpdeskID != nil {
		detail.Helpdesk = &domain.UserRef{ID: *helpdeskID, Name: deref(helpdeskName), Email: deref(helpdeskEmail)}
	}
	return &detail, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM form_submissions fs`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SubmittedBy != nil {
		args = append(args, *filter.SubmittedBy)
		clauses = append(clauses, fmt.Sprintf("fs.submitted_by=$%d", len(args)))
	}
	if filter.HelpdeskID != nil {
		args = append(args, *filter.HelpdeskID)
		base += ` JOIN ticket_assignments ta ON ta.ticket_id = fs.id`
		clauses = append(clauses, fmt.Sprintf("ta.helpdesk_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("fs.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("fs.priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY fs.created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM form_submissions WHERE id LIKE $1`, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) ListCorrelationCandidates(ctx context.Context) ([]domain.CorrelationCandidate, error) {
	const query = `
        SELECT fs.id, fs.submitted_by, ta.helpdesk_id, fs.created_at
        FROM form_submissions fs
        JOIN ticket_assignments ta ON ta.ticket_id = fs.id
        ORDER BY fs.created_at ASC, fs.id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CorrelationCandidate
	for rows.Next() {
		var c domain.CorrelationCandidate
		if err := rows.Scan(&c.TicketID, &c.SubmitterID, &c.HelpdeskID, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket   domain.Ticket
			formData string
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.FormTemplateID,
			&ticket.SubmittedBy,
			&formData,
			&ticket.Status,
			&ticket.Priority,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		data, err := domain.DecodeFormData(formData)
		if err != nil {
			return nil, err
		}
		ticket.FormData = data
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
