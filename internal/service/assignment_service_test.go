package service

import (
	"net/http"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestAssignTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(f.submitter)
	id := ticket.Ticket.ID

	detail, err := f.assignments.AssignTicket(f.ctx, f.admin, id, f.agent.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !detail.IsAssignedTo(f.agent.ID) || detail.Helpdesk == nil || detail.Helpdesk.Name != "Hank" {
		t.Fatalf("assignment not hydrated: %+v", detail)
	}
	trail := f.trail(id)
	if len(trail) != 1 || trail[0].Entry.Action != domain.AuditAssigned || trail[0].Entry.PreviousValue != nil {
		t.Fatalf("unexpected trail %+v", trail)
	}

	// same agent again is a no-op
	if _, err := f.assignments.AssignTicket(f.ctx, f.admin, id, f.agent.ID); err != nil {
		t.Fatalf("reassign same: %v", err)
	}
	if n := f.db.AuditCount(id); n != 1 {
		t.Fatalf("no-op assignment wrote audit, count %d", n)
	}

	if _, err := f.assignments.AssignTicket(f.ctx, f.admin, id, f.otherAgent.ID); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	latest := f.trail(id)[0].Entry
	if latest.PreviousValue == nil || *latest.PreviousValue != f.agent.ID || *latest.NewValue != f.otherAgent.ID {
		t.Fatalf("unexpected reassignment entry %+v", latest)
	}

	assigned := f.events.ofType(events.EventTicketAssigned)
	if len(assigned) != 2 {
		t.Fatalf("expected two assignment events, got %d", len(assigned))
	}
	payload := assigned[1].Payload.(events.TicketAssignedPayload)
	if payload.HelpdeskID != f.otherAgent.ID || payload.PreviousHelpdeskID == nil || *payload.PreviousHelpdeskID != f.agent.ID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAssignTicketValidation(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(f.submitter)
	id := ticket.Ticket.ID

	_, err := f.assignments.AssignTicket(f.ctx, f.agent, id, f.agent.ID)
	requireDomainError(t, err, http.StatusForbidden, apperrors.CodeForbidden)

	_, err = f.assignments.AssignTicket(f.ctx, f.admin, id, "")
	requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)

	_, err = f.assignments.AssignTicket(f.ctx, f.admin, id, f.stranger.ID)
	requireDomainError(t, err, http.StatusBadRequest, apperrors.CodeValidation)

	_, err = f.assignments.AssignTicket(f.ctx, f.admin, id, "u-missing")
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)

	_, err = f.assignments.AssignTicket(f.ctx, f.admin, "missing", f.agent.ID)
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)

	if n := f.db.AuditCount(id); n != 0 {
		t.Fatalf("rejected assignments wrote audit entries: %d", n)
	}
}
