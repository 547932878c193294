package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateKey is returned when an insert violates a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

const uniqueViolation = "23505"

// DBTX is implemented by both *pgxpool.Pool and pgx.Tx, so every repository
// works the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the repositories that share one connection or transaction.
type Store struct {
	Users       UserRepository
	Templates   TemplateRepository
	Tickets     TicketRepository
	Assignments AssignmentRepository
	Audit       AuditRepository
	Messages    MessageRepository
}

// NewStore wires every Postgres repository onto db.
func NewStore(db DBTX) *Store {
	return &Store{
		Users:       NewUserRepository(db),
		Templates:   NewTemplateRepository(db),
		Tickets:     NewTicketRepository(db),
		Assignments: NewAssignmentRepository(db),
		Audit:       NewAuditRepository(db),
		Messages:    NewMessageRepository(db),
	}
}

// TxRunner runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(*Store) error) error
}

// PgTxRunner opens transactions on a pgx pool.
type PgTxRunner struct {
	pool *pgxpool.Pool
}

// NewPgTxRunner builds a TxRunner for pool.
func NewPgTxRunner(pool *pgxpool.Pool) *PgTxRunner {
	return &PgTxRunner{pool: pool}
}

func (r *PgTxRunner) RunInTx(ctx context.Context, fn func(*Store) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}

// mapWriteErr turns unique violations into ErrDuplicateKey.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
