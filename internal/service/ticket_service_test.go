package service

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/ticketid"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestCreateTicketMintsStructuredID(t *testing.T) {
	f := newFixture(t, ticketid.WithClock(fixedNow))
	detail := f.createTicket(f.submitter)

	if !regexp.MustCompile(`^LAN-050324-\d{3}-ADI-[A-Z]{2}\d{2}$`).MatchString(detail.Ticket.ID) {
		t.Fatalf("unexpected id %s", detail.Ticket.ID)
	}
	if detail.Ticket.Status != domain.TicketStatusOpen || detail.Ticket.Priority != domain.TicketPriorityPending {
		t.Fatalf("unexpected initial state %s/%s", detail.Ticket.Status, detail.Ticket.Priority)
	}
	if detail.Submitter == nil || detail.Submitter.Name != "Aditya" {
		t.Fatalf("submitter not hydrated: %+v", detail.Submitter)
	}
	if got := f.events.ofType(events.EventTicketCreated); len(got) != 1 || got[0].TicketID != detail.Ticket.ID {
		t.Fatalf("expected a created event, got %+v", got)
	}

	second := f.createTicket(f.submitter)
	if second.Ticket.ID[:14] != "LAN-050324-002" {
		t.Fatalf("expected the next sequence, got %s", second.Ticket.ID)
	}
}

func TestCreateTicketRetriesIDCollisions(t *testing.T) {
	f := newFixture(t)
	var attempts []string
	f.db.TicketInsertHook = func(id string) error {
		attempts = append(attempts, id)
		if len(attempts) < 3 {
			return repository.ErrDuplicateKey
		}
		return nil
	}

	detail := f.createTicket(f.submitter)
	if len(attempts) != 3 {
		t.Fatalf("expected three attempts, got %d", len(attempts))
	}
	if detail.Ticket.ID != attempts[2] {
		t.Fatalf("stored id %s is not the last attempt %s", detail.Ticket.ID, attempts[2])
	}
}

func TestCreateTicketGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.db.TicketInsertHook = func(string) error { return repository.ErrDuplicateKey }

	_, err := f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{
		TemplateID: f.tpl.ID,
		FormData:   domain.FormData{"title": "x"},
	})
	de := requireDomainError(t, err, http.StatusInternalServerError, apperrors.CodeTicketIDExhaust)
	if de.Details["attempts"] != 3 {
		t.Fatalf("unexpected details %+v", de.Details)
	}
}

func TestConcurrentCreatesNeverCollide(t *testing.T) {
	f := newFixture(t)
	const n = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = map[string]bool{}
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			detail, err := f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{
				TemplateID: f.tpl.ID,
				FormData:   domain.FormData{"title": fmt.Sprintf("ticket %d", i)},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[detail.Ticket.ID] = true
		}(i)
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(ids) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(ids))
	}
	for id := range ids {
		if !ticketid.IsValid(id) {
			t.Fatalf("invalid id %s", id)
		}
	}
}

func TestFormDataRoundTrip(t *testing.T) {
	f := newFixture(t)
	created, err := f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{
		TemplateID: f.tpl.ID,
		FormData: domain.FormData{
			"urgent": "true",
			"title":  "Printer jam",
			"floor":  "7",
			"ports":  "2",
			"note":   "extra",
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.tickets.GetTicket(f.ctx, f.submitter, created.Ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := domain.FormData{"urgent": true, "title": "Printer jam", "floor": float64(7), "ports": "2", "note": "extra"}
	if len(got.Ticket.FormData) != len(want) {
		t.Fatalf("unexpected form data %#v", got.Ticket.FormData)
	}
	for k, v := range want {
		if got.Ticket.FormData[k] != v {
			t.Fatalf("%s: got %#v (%T), want %#v", k, got.Ticket.FormData[k], got.Ticket.FormData[k], v)
		}
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{TemplateID: f.tpl.ID, FormData: domain.FormData{"floor": 1}})
	de := requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)
	issues, _ := de.Details["fields"].([]domain.FieldIssue)
	if len(issues) != 1 || issues[0].Field != "title" {
		t.Fatalf("expected title issue, got %+v", de.Details)
	}

	_, err = f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{TemplateID: "missing", FormData: domain.FormData{"title": "x"}})
	requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{FormData: domain.FormData{"title": "x"}})
	requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)

	for _, floor := range []string{"NaN", "Inf", "+Inf"} {
		_, err = f.tickets.CreateTicket(f.ctx, f.submitter, CreateTicketInput{
			TemplateID: f.tpl.ID,
			FormData:   domain.FormData{"title": "x", "floor": floor},
		})
		de := requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)
		if issues, _ := de.Details["fields"].([]domain.FieldIssue); len(issues) != 1 || issues[0].Field != "floor" {
			t.Fatalf("floor=%s: expected floor issue, got %+v", floor, de.Details)
		}
	}
}

func TestGetTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(f.submitter)

	_, err := f.tickets.GetTicket(f.ctx, f.stranger, ticket.Ticket.ID)
	requireDomainError(t, err, http.StatusForbidden, apperrors.CodeForbidden)

	for _, actor := range []domain.Actor{f.submitter, f.agent, f.admin} {
		if _, err := f.tickets.GetTicket(f.ctx, actor, ticket.Ticket.ID); err != nil {
			t.Fatalf("%s should see the ticket: %v", actor.ID, err)
		}
	}

	_, err = f.tickets.GetTicket(f.ctx, f.admin, "missing")
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestListTicketsScopesByRole(t *testing.T) {
	f := newFixture(t)
	mine := f.createTicket(f.submitter)
	theirs := f.createTicket(f.stranger)
	f.assign(theirs.Ticket.ID, f.agent)
	if _, err := f.lifecycle.UpdateTicket(f.ctx, f.admin, mine.Ticket.ID, TicketPatch{Status: statusPtr(domain.TicketStatusResolved)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	cases := []struct {
		name   string
		actor  domain.Actor
		filter TicketListFilter
		want   []string
	}{
		{"submitter", f.submitter, TicketListFilter{}, []string{mine.Ticket.ID}},
		{"assigned agent", f.agent, TicketListFilter{}, []string{theirs.Ticket.ID}},
		{"unassigned agent", f.otherAgent, TicketListFilter{}, nil},
		{"admin", f.admin, TicketListFilter{}, []string{mine.Ticket.ID, theirs.Ticket.ID}},
		{"admin by status", f.admin, TicketListFilter{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}}, []string{mine.Ticket.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.tickets.ListTickets(f.ctx, tc.actor, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got == nil {
				t.Fatalf("list must not return nil")
			}
			ids := map[string]bool{}
			for _, ticket := range got {
				ids[ticket.ID] = true
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("got %v, want %v", ids, tc.want)
			}
			for _, id := range tc.want {
				if !ids[id] {
					t.Fatalf("missing %s in %v", id, ids)
				}
			}
		})
	}
}

func TestSequenceLookupFailureStillCreates(t *testing.T) {
	f := newFixture(t, ticketid.WithClock(fixedNow))
	f.db.SequenceErr = fmt.Errorf("scan failed")
	detail := f.createTicket(f.submitter)
	if detail.Ticket.ID[:14] != "LAN-050324-001" {
		t.Fatalf("expected fallback sequence 001, got %s", detail.Ticket.ID)
	}
}
