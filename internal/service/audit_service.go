package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// CanaryTicketID marks the throwaway row written by the repair self-check.
const CanaryTicketID = "__audit_canary__"

// AuditService records, reads and repairs the ticket audit trail.
type AuditService struct {
	store  *repository.Store
	tx     repository.TxRunner
	logger *zap.Logger
	now    func() time.Time
}

// AuditDependencies bundles collaborators for the audit service.
type AuditDependencies struct {
	Store  *repository.Store
	Tx     repository.TxRunner
	Logger *zap.Logger
}

// RepairReport summarizes one self-repair run.
type RepairReport struct {
	SchemaEnsured  bool      `json:"schema_ensured"`
	RowsScanned    int       `json:"rows_scanned"`
	RowsBackfilled int       `json:"rows_backfilled"`
	CanaryVerified bool      `json:"canary_verified"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ReplayResult compares a replayed audit trail with the stored ticket.
type ReplayResult struct {
	Initial    domain.TicketState `json:"initial"`
	Replayed   domain.TicketState `json:"replayed"`
	Current    domain.TicketState `json:"current"`
	Consistent bool               `json:"consistent"`
}

// NewAuditService constructs the service.
func NewAuditService(deps AuditDependencies) *AuditService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: deps.Store, tx: deps.Tx, logger: logger, now: time.Now}
}

// Record appends one entry through repo, which is normally bound to the
// caller's transaction. It is not best-effort: the error is returned.
func (s *AuditService) Record(ctx context.Context, repo repository.AuditRepository, entry *domain.AuditLogEntry) error {
	if entry.TicketID == "" || entry.Action == "" {
		return fmt.Errorf("audit entry needs ticket id and action")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := repo.Insert(ctx, entry); err != nil {
		return apperrors.NewAuditWriteFailed(entry.TicketID, err)
	}
	return nil
}

// Query returns the ticket's trail newest first with legacy values merged in.
func (s *AuditService) Query(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.AuditTrailItem, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only admins and helpdesk agents can read the audit trail")
	}
	if _, err := s.store.Tickets.GetByID(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
	}
	items, err := s.store.Audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError("read audit trail", err)
	}
	out := make([]domain.AuditTrailItem, len(items))
	for i, item := range items {
		item.Entry = item.Entry.Resolved()
		out[i] = item
	}
	return out, nil
}

// Replay rebuilds the ticket state from its trail and compares it with what
// is stored.
func (s *AuditService) Replay(ctx context.Context, actor domain.Actor, ticketID string) (*ReplayResult, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only admins and helpdesk agents can read the audit trail")
	}
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", "ticket_id", ticketID, "load ticket")
	}
	items, err := s.store.Audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError("read audit trail", err)
	}
	entries := make([]domain.AuditLogEntry, len(items))
	for i, item := range items {
		// newest first on the wire; replay wants oldest first
		entries[len(items)-1-i] = item.Entry.Resolved()
	}

	formData, err := ticket.FormData.Encode()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	current := domain.TicketState{Status: ticket.Status, Priority: ticket.Priority, FormData: formData}
	initial := domain.InitialState(current, entries)
	replayed := domain.Replay(initial, entries)
	return &ReplayResult{
		Initial:    initial,
		Replayed:   replayed,
		Current:    current,
		Consistent: replayed == current,
	}, nil
}

// Repair is the admin-triggered self-repair.
func (s *AuditService) Repair(ctx context.Context, actor domain.Actor) (*RepairReport, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can repair the audit trail")
	}
	s.logger.Info("audit repair requested", zap.String("user_id", actor.ID))
	return s.SelfRepair(ctx)
}

// SelfRepair ensures the audit table and its value columns exist, backfills
// the columns from legacy details blobs, then proves the table accepts a
// write, read and delete with a canary row. Safe to run repeatedly.
func (s *AuditService) SelfRepair(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{}

	if err := s.store.Audit.EnsureSchema(ctx); err != nil {
		return nil, apperrors.NewStorageError("ensure audit schema", err)
	}
	report.SchemaEnsured = true

	err := s.tx.RunInTx(ctx, func(store *repository.Store) error {
		rows, err := store.Audit.ListIncomplete(ctx)
		if err != nil {
			return err
		}
		report.RowsScanned = len(rows)
		for _, row := range rows {
			if row.TicketID == CanaryTicketID || !row.NeedsBackfill() {
				continue
			}
			prev, next := domain.LegacyValues(row.Details)
			if err := store.Audit.SetValues(ctx, row.ID, prev, next); err != nil {
				return fmt.Errorf("backfill audit row %s: %w", row.ID, err)
			}
			report.RowsBackfilled++
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageError("backfill audit values", err)
	}

	if err := s.verifyCanary(ctx); err != nil {
		s.logger.Error("audit canary failed", zap.Error(err))
		return nil, apperrors.NewStorageError("verify audit table", err)
	}
	report.CanaryVerified = true
	report.CompletedAt = s.now().UTC()

	s.logger.Info("audit repair finished",
		zap.Int("rows_scanned", report.RowsScanned),
		zap.Int("rows_backfilled", report.RowsBackfilled))
	return report, nil
}

func (s *AuditService) verifyCanary(ctx context.Context) error {
	canary := &domain.AuditLogEntry{
		ID:            uuid.NewString(),
		TicketID:      CanaryTicketID,
		Action:        domain.AuditCanary,
		PreviousValue: strPtr("before"),
		NewValue:      strPtr("after"),
		Details:       "audit self-check",
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Audit.Insert(ctx, canary); err != nil {
		return fmt.Errorf("write canary: %w", err)
	}
	got, err := s.store.Audit.Get(ctx, canary.ID)
	if err != nil {
		return fmt.Errorf("read canary: %w", err)
	}
	if got.PreviousValue == nil || *got.PreviousValue != "before" || got.NewValue == nil || *got.NewValue != "after" {
		_ = s.store.Audit.Delete(ctx, canary.ID)
		return errors.New("canary read back with different values")
	}
	if err := s.store.Audit.Delete(ctx, canary.ID); err != nil {
		return fmt.Errorf("delete canary: %w", err)
	}
	if _, err := s.store.Audit.Get(ctx, canary.ID); !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("canary still present after delete: %v", err)
	}
	return nil
}
