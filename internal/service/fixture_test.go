package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-service/internal/ticketid"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *memstore.DB
	store  *repository.Store
	events *eventRecorder

	tickets     *TicketService
	lifecycle   *LifecycleService
	audit       *AuditService
	assignments *AssignmentService
	chat        *ChatService
	templates   *TemplateService
	auth        *AuthService

	admin      domain.Actor
	agent      domain.Actor
	otherAgent domain.Actor
	submitter  domain.Actor
	stranger   domain.Actor
	tpl        *domain.FormTemplate
}

func newFixture(t *testing.T, opts ...ticketid.Option) *fixture {
	t.Helper()
	db := memstore.New()
	store := db.Store()
	dispatcher := events.NewInMemoryDispatcher(nil)
	rec := &eventRecorder{}
	for _, et := range append(append([]events.EventType{}, events.LifecycleEvents...), events.EventMessageSent) {
		dispatcher.Subscribe(et, rec.handle)
	}

	audit := NewAuditService(AuditDependencies{Store: store, Tx: db})
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		db:     db,
		store:  store,
		events: rec,
		audit:  audit,
		tickets: NewTicketService(TicketDependencies{
			Store:         store,
			IDs:           ticketid.NewGenerator(store.Tickets, nil, opts...),
			Dispatcher:    dispatcher,
			IDMaxAttempts: 3,
		}),
		lifecycle:   NewLifecycleService(LifecycleDependencies{Tx: db, Audit: audit, Dispatcher: dispatcher}),
		assignments: NewAssignmentService(AssignmentDependencies{Tx: db, Audit: audit, Dispatcher: dispatcher}),
		chat:        NewChatService(ChatDependencies{Store: store, Tx: db, Dispatcher: dispatcher}),
		templates:   NewTemplateService(store.Templates, nil),
		auth: NewAuthService(config.Config{Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            4,
		}}, AuthDependencies{UserRepo: store.Users}),
	}

	f.admin = f.addUser("u-admin", "Alice", domain.RoleAdmin)
	f.agent = f.addUser("u-agent", "Hank", domain.RoleHelpdesk)
	f.otherAgent = f.addUser("u-agent-2", "Hilda", domain.RoleHelpdesk)
	f.submitter = f.addUser("u-sub", "Aditya", domain.RoleUser)
	f.stranger = f.addUser("u-other", "Bob", domain.RoleUser)

	f.tpl = &domain.FormTemplate{
		ID:   "tpl-lan",
		Name: "lan-issue",
		Fields: []domain.Field{
			{ID: "f1", Name: "title", Type: domain.FieldText, Required: true},
			{ID: "f2", Name: "floor", Type: domain.FieldNumber},
			{ID: "f3", Name: "ports", Type: domain.FieldSelect, Options: "1,2,3"},
			{ID: "f4", Name: "urgent", Type: domain.FieldCheckbox},
		},
		CreatedBy: f.admin.ID,
	}
	if err := store.Templates.Create(f.ctx, f.tpl); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return f
}

func (f *fixture) addUser(id, name string, role domain.Role) domain.Actor {
	f.t.Helper()
	u := &domain.User{ID: id, Name: name, Email: id + "@example.com", Role: role}
	if err := f.store.Users.Create(f.ctx, u); err != nil {
		f.t.Fatalf("seed user %s: %v", id, err)
	}
	return u.Actor()
}

func (f *fixture) createTicket(actor domain.Actor) *domain.TicketDetail {
	f.t.Helper()
	detail, err := f.tickets.CreateTicket(f.ctx, actor, CreateTicketInput{
		TemplateID: f.tpl.ID,
		FormData:   domain.FormData{"title": "Switch down", "floor": 2},
	})
	if err != nil {
		f.t.Fatalf("create ticket: %v", err)
	}
	return detail
}

func (f *fixture) assign(ticketID string, agent domain.Actor) {
	f.t.Helper()
	if _, err := f.assignments.AssignTicket(f.ctx, f.admin, ticketID, agent.ID); err != nil {
		f.t.Fatalf("assign: %v", err)
	}
}

func (f *fixture) trail(ticketID string) []domain.AuditTrailItem {
	f.t.Helper()
	items, err := f.audit.Query(f.ctx, f.admin, ticketID)
	if err != nil {
		f.t.Fatalf("query audit: %v", err)
	}
	return items
}

func requireDomainError(t *testing.T, err error, status int, code string) *apperrors.DomainError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s (%d), got nil", code, status)
	}
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected a domain error, got %T: %v", err, err)
	}
	if de.HTTPStatus != status || de.Code != code {
		t.Fatalf("expected %s (%d), got %s (%d): %v", code, status, de.Code, de.HTTPStatus, err)
	}
	return de
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus       { return &s }
func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func fixedNow() time.Time {
	return time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)
}

// tickingClock advances one second per call so audit ordering is deterministic.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	at := fixedNow()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at = at.Add(time.Second)
		return at
	}
}
