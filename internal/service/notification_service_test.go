package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type recordingExporter struct {
	mu       sync.Mutex
	exported []events.Event
	err      error
}

func (r *recordingExporter) Export(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exported = append(r.exported, e)
	return r.err
}

type recordingPusher struct {
	mu       sync.Mutex
	messages map[string]int
	assigned map[string]int
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{messages: map[string]int{}, assigned: map[string]int{}}
}

func (p *recordingPusher) SendMessage(target string, _ domain.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[target]++
	return true
}

func (p *recordingPusher) NotifyAssignment(target string, _ events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned[target]++
	return true
}

func TestNotificationFanOut(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher(nil)
	exporter := &recordingExporter{}
	pusher := newRecordingPusher()
	NewNotificationService(dispatcher, exporter, pusher, nil).RegisterHandlers()

	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventTicketCreated, TicketID: "T1"})
	_ = dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "T1",
		Payload:  events.TicketAssignedPayload{HelpdeskID: "agent"},
	})
	_ = dispatcher.Publish(ctx, events.Event{
		Type:    events.EventMessageSent,
		Payload: events.MessageSentPayload{Message: domain.Message{ID: "m1", SenderID: "u", ReceiverID: "agent"}},
	})

	if len(exporter.exported) != 2 {
		t.Fatalf("expected lifecycle events only to be exported, got %d", len(exporter.exported))
	}
	if pusher.assigned["agent"] != 1 || pusher.messages["agent"] != 1 {
		t.Fatalf("unexpected live pushes %+v %+v", pusher.assigned, pusher.messages)
	}
}

func TestExportFailureDoesNotFailTheOperation(t *testing.T) {
	f := newFixture(t)
	dispatcher := events.NewInMemoryDispatcher(nil)
	exporter := &recordingExporter{err: errors.New("broker down")}
	NewNotificationService(dispatcher, exporter, nil, nil).RegisterHandlers()
	f.lifecycle.dispatcher = dispatcher

	ticket := f.createTicket(f.submitter)
	if _, err := f.lifecycle.UpdateTicket(f.ctx, f.admin, ticket.Ticket.ID, TicketPatch{Priority: priorityPtr(domain.TicketPriorityHigh)}); err != nil {
		t.Fatalf("update must succeed when export fails: %v", err)
	}
	if len(exporter.exported) != 1 {
		t.Fatalf("expected one export attempt, got %d", len(exporter.exported))
	}
}
