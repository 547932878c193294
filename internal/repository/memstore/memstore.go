// Package memstore is an in-memory implementation of the repository
// interfaces used by service and handler tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// DB holds every table. Transactions snapshot the tables and restore them
// when the callback fails.
type DB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users       map[string]domain.User
	templates   map[string]domain.FormTemplate
	tickets     map[string]storedTicket
	assignments map[string]domain.TicketAssignment // keyed by ticket id
	audit       map[string]domain.AuditLogEntry
	messages    map[string]domain.Message

	// AuditInsertErr, when set, fails every audit insert.
	AuditInsertErr error
	// TicketInsertHook runs before a ticket insert; a non-nil error aborts it.
	TicketInsertHook func(id string) error
	// SequenceErr, when set, fails ListIDsWithPrefix.
	SequenceErr error
}

type storedTicket struct {
	ticket   domain.Ticket
	formData string
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:       map[string]domain.User{},
		templates:   map[string]domain.FormTemplate{},
		tickets:     map[string]storedTicket{},
		assignments: map[string]domain.TicketAssignment{},
		audit:       map[string]domain.AuditLogEntry{},
		messages:    map[string]domain.Message{},
	}
}

// Store returns repositories bound to db.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Users:       userRepo{db},
		Templates:   templateRepo{db},
		Tickets:     ticketRepo{db},
		Assignments: assignmentRepo{db},
		Audit:       auditRepo{db},
		Messages:    messageRepo{db},
	}
}

// RunInTx serializes transactions and rolls back on error.
func (db *DB) RunInTx(_ context.Context, fn func(*repository.Store) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(db.Store()); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users       map[string]domain.User
	templates   map[string]domain.FormTemplate
	tickets     map[string]storedTicket
	assignments map[string]domain.TicketAssignment
	audit       map[string]domain.AuditLogEntry
	messages    map[string]domain.Message
}

func (db *DB) snapshot() snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return snapshot{
		users:       cloneMap(db.users),
		templates:   cloneMap(db.templates),
		tickets:     cloneMap(db.tickets),
		assignments: cloneMap(db.assignments),
		audit:       cloneMap(db.audit),
		messages:    cloneMap(db.messages),
	}
}

func (db *DB) restore(s snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users, db.templates, db.tickets = s.users, s.templates, s.tickets
	db.assignments, db.audit, db.messages = s.assignments, s.audit, s.messages
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AuditCount returns how many audit rows exist for ticketID.
func (db *DB) AuditCount(ticketID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, e := range db.audit {
		if e.TicketID == ticketID {
			n++
		}
	}
	return n
}

// PutAudit stores a raw audit row, bypassing validation. Used to seed legacy data.
func (db *DB) PutAudit(e domain.AuditLogEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.audit[e.ID] = e
}

// DeleteUser removes a user row so read-time joins see a missing actor.
func (db *DB) DeleteUser(id string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.users, id)
}

var errDuplicate = repository.ErrDuplicateKey

func strPtr(s string) *string { return &s }

type userRepo struct{ db *DB }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.ID]; ok {
		return errDuplicate
	}
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return errDuplicate
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.db.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type templateRepo struct{ db *DB }

func (r templateRepo) Create(_ context.Context, t *domain.FormTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.templates[t.ID]; ok {
		return errDuplicate
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.db.templates[t.ID] = cloneTemplate(*t)
	return nil
}

func (r templateRepo) Update(_ context.Context, t *domain.FormTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.templates[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Name = t.Name
	existing.Fields = append([]domain.Field(nil), t.Fields...)
	existing.UpdatedAt = time.Now().UTC()
	t.UpdatedAt = existing.UpdatedAt
	r.db.templates[t.ID] = existing
	return nil
}

func (r templateRepo) GetByID(_ context.Context, id string) (*domain.FormTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.templates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t = cloneTemplate(t)
	return &t, nil
}

func (r templateRepo) List(_ context.Context) ([]domain.FormTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.FormTemplate, 0, len(r.db.templates))
	for _, t := range r.db.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneTemplate(t domain.FormTemplate) domain.FormTemplate {
	t.Fields = append([]domain.Field(nil), t.Fields...)
	return t
}

type ticketRepo struct{ db *DB }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	if hook := r.db.TicketInsertHook; hook != nil {
		if err := hook(t.ID); err != nil {
			return err
		}
	}
	encoded, err := t.FormData.Encode()
	if err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[t.ID]; ok {
		return errDuplicate
	}
	if _, ok := r.db.templates[t.FormTemplateID]; !ok {
		return errors.New("foreign key violation: form_template_id")
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.db.tickets[t.ID] = storedTicket{ticket: *t, formData: encoded}
	return nil
}

func (r ticketRepo) Update(_ context.Context, t *domain.Ticket) error {
	encoded, err := t.FormData.Encode()
	if err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.ticket.Status = t.Status
	existing.ticket.Priority = t.Priority
	existing.ticket.UpdatedAt = t.UpdatedAt
	existing.formData = encoded
	r.db.tickets[t.ID] = existing
	return nil
}

func (r ticketRepo) load(st storedTicket) (domain.Ticket, error) {
	t := st.ticket
	data, err := domain.DecodeFormData(st.formData)
	if err != nil {
		return domain.Ticket{}, err
	}
	t.FormData = data
	return t, nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	st, ok := r.db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t, err := r.load(st)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r ticketRepo) GetDetail(_ context.Context, id string, _ bool) (*domain.TicketDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	st, ok := r.db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t, err := r.load(st)
	if err != nil {
		return nil, err
	}
	detail := &domain.TicketDetail{Ticket: t}
	if tpl, ok := r.db.templates[t.FormTemplateID]; ok {
		tpl = cloneTemplate(tpl)
		detail.Template = &tpl
	}
	if u, ok := r.db.users[t.SubmittedBy]; ok {
		detail.Submitter = &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if a, ok := r.db.assignments[t.ID]; ok {
		detail.Assignment = &a
		if h, ok := r.db.users[a.HelpdeskID]; ok {
			detail.Helpdesk = &domain.UserRef{ID: h.ID, Name: h.Name, Email: h.Email}
		}
	}
	return detail, nil
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Ticket
	for _, st := range r.db.tickets {
		t := st.ticket
		if f.SubmittedBy != nil && t.SubmittedBy != *f.SubmittedBy {
			continue
		}
		if f.HelpdeskID != nil {
			a, ok := r.db.assignments[t.ID]
			if !ok || a.HelpdeskID != *f.HelpdeskID {
				continue
			}
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
			continue
		}
		if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
			continue
		}
		loaded, err := r.load(st)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), nil
}

func (r ticketRepo) ListIDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	if r.db.SequenceErr != nil {
		return nil, r.db.SequenceErr
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []string
	for id := range r.db.tickets {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r ticketRepo) ListCorrelationCandidates(_ context.Context) ([]domain.CorrelationCandidate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.CorrelationCandidate
	for ticketID, a := range r.db.assignments {
		st, ok := r.db.tickets[ticketID]
		if !ok {
			continue
		}
		out = append(out, domain.CorrelationCandidate{
			TicketID:    ticketID,
			SubmitterID: st.ticket.SubmittedBy,
			HelpdeskID:  a.HelpdeskID,
			CreatedAt:   st.ticket.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TicketID < out[j].TicketID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SetTicketCreatedAt rewrites a ticket's creation time to control ordering in tests.
func (db *DB) SetTicketCreatedAt(id string, at time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if st, ok := db.tickets[id]; ok {
		st.ticket.CreatedAt = at
		db.tickets[id] = st
	}
}

type assignmentRepo struct{ db *DB }

func (r assignmentRepo) Upsert(_ context.Context, a *domain.TicketAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[a.TicketID]; !ok {
		return errors.New("foreign key violation: ticket_id")
	}
	now := time.Now().UTC()
	if existing, ok := r.db.assignments[a.TicketID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	stored := *a
	stored.TicketID = strings.Clone(a.TicketID)
	stored.HelpdeskID = strings.Clone(a.HelpdeskID)
	stored.AssignedBy = strings.Clone(a.AssignedBy)
	r.db.assignments[stored.TicketID] = stored
	return nil
}

func (r assignmentRepo) GetByTicket(_ context.Context, ticketID string) (*domain.TicketAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

type auditRepo struct{ db *DB }

func (r auditRepo) Insert(_ context.Context, e *domain.AuditLogEntry) error {
	if r.db.AuditInsertErr != nil {
		return r.db.AuditInsertErr
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.audit[e.ID]; ok {
		return errDuplicate
	}
	stored := *e
	stored.TicketID = strings.Clone(e.TicketID)
	r.db.audit[e.ID] = stored
	return nil
}

func (r auditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditTrailItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.AuditTrailItem
	for _, e := range r.db.audit {
		if e.TicketID != ticketID {
			continue
		}
		item := domain.AuditTrailItem{Entry: e}
		if e.UserID != nil {
			if u, ok := r.db.users[*e.UserID]; ok {
				item.Actor = &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Entry, out[j].Entry
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (r auditRepo) Get(_ context.Context, id string) (*domain.AuditLogEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.audit[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (r auditRepo) EnsureSchema(context.Context) error { return nil }

func (r auditRepo) ListIncomplete(_ context.Context) ([]domain.AuditLogEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range r.db.audit {
		if e.PreviousValue == nil || e.NewValue == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r auditRepo) SetValues(_ context.Context, id string, previous, next *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.audit[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if e.PreviousValue == nil && previous != nil {
		e.PreviousValue = strPtr(*previous)
	}
	if e.NewValue == nil && next != nil {
		e.NewValue = strPtr(*next)
	}
	r.db.audit[id] = e
	return nil
}

func (r auditRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.audit[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.audit, id)
	return nil
}

type messageRepo struct{ db *DB }

func (r messageRepo) Create(_ context.Context, m *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.messages[m.ID]; ok {
		return errDuplicate
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = m.CreatedAt
	r.db.messages[m.ID] = *m
	return nil
}

func (r messageRepo) ListConversation(_ context.Context, a, b string, limit, offset int) ([]domain.Message, error) {
	return r.filter(limit, offset, func(m domain.Message) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	}), nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	return r.filter(0, 0, func(m domain.Message) bool {
		return m.TicketID != nil && *m.TicketID == ticketID
	}), nil
}

func (r messageRepo) ListUncorrelated(_ context.Context) ([]domain.Message, error) {
	return r.filter(0, 0, func(m domain.Message) bool { return m.TicketID == nil }), nil
}

func (r messageRepo) filter(limit, offset int, keep func(domain.Message) bool) []domain.Message {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Message
	for _, m := range r.db.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit == 0 && offset == 0 {
		return out
	}
	return page(out, limit, offset)
}

func (r messageRepo) AssignTicket(_ context.Context, ids []string, ticketID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.db.messages[id]
		if !ok || m.TicketID != nil {
			continue
		}
		m.TicketID = strPtr(ticketID)
		r.db.messages[id] = m
		n++
	}
	return n, nil
}

func (r messageRepo) MarkRead(_ context.Context, receiverID, senderID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, m := range r.db.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
			m.Read = true
			r.db.messages[id] = m
			n++
		}
	}
	return n, nil
}

// Message returns a stored message by id.
func (db *DB) Message(id string) (domain.Message, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[id]
	return m, ok
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
