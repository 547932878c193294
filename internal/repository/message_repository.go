package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MessageRepository manages chat messages between two users.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListConversation returns messages exchanged between a and b, oldest first.
	ListConversation(ctx context.Context, a, b string, limit, offset int) ([]domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
	ListUncorrelated(ctx context.Context) ([]domain.Message, error)
	// AssignTicket sets ticket_id on the given messages that still have none.
	AssignTicket(ctx context.Context, messageIDs []string, ticketID string) (int64, error)
	// MarkRead flags every message from sender to receiver as read.
	MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
}

type messageRepository struct {
	db DBTX
}

// NewMessageRepository builds repository.
func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, sender_id, receiver_id, content, ticket_id, has_attachment,
        attachment_url, attachment_type, attachment_name, read, created_at, updated_at`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	var url, typ, name *string
	if msg.HasAttachment() {
		url, typ, name = &msg.Attachment.URL, &msg.Attachment.Type, &msg.Attachment.Name
	}
	const query = `
        INSERT INTO messages (id, sender_id, receiver_id, content, ticket_id, has_attachment,
            attachment_url, attachment_type, attachment_name, read)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.TicketID,
		msg.HasAttachment(),
		url,
		typ,
		name,
		msg.Read,
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	return mapWriteErr(err)
}

func (r *messageRepository) ListConversation(ctx context.Context, a, b string, limit, offset int) ([]domain.Message, error) {
	limit, offset = pageBounds(limit, offset)
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC
        LIMIT $3 OFFSET $4`
	return r.list(ctx, query, a, b, limit, offset)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, ticketID)
}

func (r *messageRepository) ListUncorrelated(ctx context.Context) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ticket_id IS NULL ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *messageRepository) AssignTicket(ctx context.Context, messageIDs []string, ticketID string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	const query = `
        UPDATE messages SET ticket_id=$1, updated_at=NOW()
        WHERE id = ANY($2) AND ticket_id IS NULL`
	cmd, err := r.db.Exec(ctx, query, ticketID, messageIDs)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	const query = `
        UPDATE messages SET read=TRUE, updated_at=NOW()
        WHERE receiver_id=$1 AND sender_id=$2 AND read=FALSE`
	cmd, err := r.db.Exec(ctx, query, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) list(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var result []domain.Message
	for rows.Next() {
		var (
			msg           domain.Message
			hasAttachment bool
			url, typ, nm  *string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.TicketID,
			&hasAttachment,
			&url,
			&typ,
			&nm,
			&msg.Read,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if hasAttachment {
			msg.Attachment = &domain.Attachment{URL: deref(url), Type: deref(typ), Name: deref(nm)}
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
