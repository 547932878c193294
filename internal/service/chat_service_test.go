package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func (f *fixture) seedMessage(from, to domain.Actor, at time.Time) string {
	f.t.Helper()
	msg := &domain.Message{ID: uuid.NewString(), SenderID: from.ID, ReceiverID: to.ID, Content: "hello", CreatedAt: at}
	if err := f.store.Messages.Create(f.ctx, msg); err != nil {
		f.t.Fatalf("seed message: %v", err)
	}
	return msg.ID
}

func TestSendMessageChecksTicketConversation(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(f.submitter)
	f.assign(ticket.Ticket.ID, f.agent)
	id := ticket.Ticket.ID

	msg, err := f.chat.SendMessage(f.ctx, f.agent, SendMessageInput{ReceiverID: f.submitter.ID, Content: " on my way ", TicketID: &id})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "on my way" || msg.TicketID == nil || *msg.TicketID != id {
		t.Fatalf("unexpected message %+v", msg)
	}
	sent := f.events.ofType(events.EventMessageSent)
	if len(sent) != 1 || sent[0].TicketID != id {
		t.Fatalf("expected a message event, got %+v", sent)
	}

	_, err = f.chat.SendMessage(f.ctx, f.otherAgent, SendMessageInput{ReceiverID: f.submitter.ID, Content: "hi", TicketID: &id})
	de := requireDomainError(t, err, http.StatusForbidden, apperrors.CodeForbidden)
	if de.Details["field"] != "ticket_id" {
		t.Fatalf("expected ticket_id to be named, got %+v", de.Details)
	}

	if _, err := f.chat.SendMessage(f.ctx, f.admin, SendMessageInput{ReceiverID: f.submitter.ID, Content: "admin note", TicketID: &id}); err != nil {
		t.Fatalf("admin may post on any ticket: %v", err)
	}

	missing := "missing"
	_, err = f.chat.SendMessage(f.ctx, f.agent, SendMessageInput{ReceiverID: f.submitter.ID, Content: "x", TicketID: &missing})
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		input  SendMessageInput
		status int
		code   string
	}{
		{"no receiver", SendMessageInput{Content: "x"}, http.StatusBadRequest, apperrors.CodeValidation},
		{"to self", SendMessageInput{ReceiverID: f.submitter.ID, Content: "x"}, http.StatusBadRequest, apperrors.CodeValidation},
		{"blank", SendMessageInput{ReceiverID: f.agent.ID, Content: "  "}, http.StatusBadRequest, apperrors.CodeValidation},
		{"unknown receiver", SendMessageInput{ReceiverID: "u-missing", Content: "x"}, http.StatusNotFound, apperrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.chat.SendMessage(f.ctx, f.submitter, tc.input)
			requireDomainError(t, err, tc.status, tc.code)
		})
	}

	msg, err := f.chat.SendMessage(f.ctx, f.submitter, SendMessageInput{
		ReceiverID: f.agent.ID,
		Attachment: &domain.Attachment{URL: "https://files.example.com/a.png", Type: "image/png", Name: "a.png"},
	})
	if err != nil {
		t.Fatalf("attachment-only message: %v", err)
	}
	if !msg.HasAttachment() || msg.TicketID != nil {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestConversationAndMarkRead(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC()
	f.seedMessage(f.submitter, f.agent, base)
	f.seedMessage(f.agent, f.submitter, base.Add(time.Second))
	f.seedMessage(f.submitter, f.agent, base.Add(2*time.Second))
	f.seedMessage(f.stranger, f.agent, base.Add(3*time.Second))

	msgs, err := f.chat.Conversation(f.ctx, f.agent, f.submitter.ID, 0, 0)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(msgs) != 3 || msgs[0].SenderID != f.submitter.ID || msgs[1].SenderID != f.agent.ID {
		t.Fatalf("unexpected conversation %+v", msgs)
	}

	n, err := f.chat.MarkRead(f.ctx, f.agent, f.submitter.ID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d (%v)", n, err)
	}
	if n, _ := f.chat.MarkRead(f.ctx, f.agent, f.submitter.ID); n != 0 {
		t.Fatalf("second mark should be a no-op, got %d", n)
	}

	_, err = f.chat.Conversation(f.ctx, f.agent, "u-missing", 0, 0)
	requireDomainError(t, err, http.StatusNotFound, apperrors.CodeNotFound)
}

func TestTicketMessagesVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(f.submitter)
	f.assign(ticket.Ticket.ID, f.agent)
	id := ticket.Ticket.ID
	if _, err := f.chat.SendMessage(f.ctx, f.submitter, SendMessageInput{ReceiverID: f.agent.ID, Content: "any news?", TicketID: &id}); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, actor := range []domain.Actor{f.admin, f.agent, f.submitter} {
		msgs, err := f.chat.TicketMessages(f.ctx, actor, id)
		if err != nil || len(msgs) != 1 {
			t.Fatalf("%s: expected one message, got %d (%v)", actor.ID, len(msgs), err)
		}
	}
	for _, actor := range []domain.Actor{f.otherAgent, f.stranger} {
		_, err := f.chat.TicketMessages(f.ctx, actor, id)
		requireDomainError(t, err, http.StatusForbidden, apperrors.CodeForbidden)
	}
}

func TestBackfillTicketIDs(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	older := f.createTicket(f.submitter)
	newer := f.createTicket(f.submitter)
	other := f.createTicket(f.stranger)
	f.db.SetTicketCreatedAt(older.Ticket.ID, base)
	f.db.SetTicketCreatedAt(newer.Ticket.ID, base.Add(time.Hour))
	f.db.SetTicketCreatedAt(other.Ticket.ID, base.Add(2*time.Hour))
	f.assign(older.Ticket.ID, f.agent)
	f.assign(newer.Ticket.ID, f.agent)
	f.assign(other.Ticket.ID, f.agent)
	unassigned := f.createTicket(f.submitter)

	pair1 := []string{
		f.seedMessage(f.submitter, f.agent, base.Add(time.Minute)),
		f.seedMessage(f.agent, f.submitter, base.Add(2*time.Minute)),
	}
	pair2 := f.seedMessage(f.agent, f.stranger, base.Add(3*time.Minute))
	unrelated := f.seedMessage(f.submitter, f.stranger, base.Add(4*time.Minute))

	report, err := f.chat.BackfillTicketIDs(f.ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if report.TicketsScanned != 3 || report.MessagesTagged != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, id := range pair1 {
		msg, _ := f.db.Message(id)
		if msg.TicketID == nil || *msg.TicketID != older.Ticket.ID {
			t.Fatalf("message %s should belong to the oldest ticket, got %v", id, msg.TicketID)
		}
	}
	if msg, _ := f.db.Message(pair2); msg.TicketID == nil || *msg.TicketID != other.Ticket.ID {
		t.Fatalf("reversed direction should still match, got %v", msg.TicketID)
	}
	if msg, _ := f.db.Message(unrelated); msg.TicketID != nil {
		t.Fatalf("unrelated message was tagged with %s", *msg.TicketID)
	}

	if len(report.AmbiguousPairs) != 1 {
		t.Fatalf("expected one ambiguous pair, got %+v", report.AmbiguousPairs)
	}
	pair := report.AmbiguousPairs[0]
	if pair.SubmitterID != f.submitter.ID || pair.HelpdeskID != f.agent.ID {
		t.Fatalf("unexpected pair %+v", pair)
	}
	if len(pair.TicketIDs) != 2 || pair.TicketIDs[0] != older.Ticket.ID || pair.TicketIDs[1] != newer.Ticket.ID {
		t.Fatalf("unexpected ticket ids %v", pair.TicketIDs)
	}
	for _, id := range pair.TicketIDs {
		if id == unassigned.Ticket.ID {
			t.Fatalf("unassigned tickets cannot be candidates")
		}
	}

	again, err := f.chat.BackfillTicketIDs(f.ctx)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if again.MessagesTagged != 0 {
		t.Fatalf("second run tagged %d messages", again.MessagesTagged)
	}
}
