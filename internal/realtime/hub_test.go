package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[string]bool{}}
}

func (p *fakePresence) SetOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) SetOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *fakePresence) isOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func readFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	default:
		t.Fatalf("expected a queued frame for %s", c.UserID)
		return Frame{}
	}
}

func TestSendMessageReachesOnlyTarget(t *testing.T) {
	hub := NewHub(nil, nil)
	alice := NewClient("alice", nil, 4)
	bob := NewClient("bob", nil, 4)
	hub.Register(alice)
	hub.Register(bob)

	ticketID := "LAN-050324-001-ADI-QK42"
	ok := hub.SendMessage("bob", domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi", TicketID: &ticketID})
	if !ok {
		t.Fatalf("expected delivery to bob")
	}
	f := readFrame(t, bob)
	if f.Type != FrameMessage || f.From != "alice" {
		t.Fatalf("unexpected frame %+v", f)
	}
	data, _ := f.Data.(map[string]any)
	if data["content"] != "hi" || data["ticket_id"] != ticketID {
		t.Fatalf("unexpected payload %+v", f.Data)
	}
	if len(alice.send) != 0 {
		t.Fatalf("sender should not receive its own message")
	}
}

func TestOfflineTargetIsDropped(t *testing.T) {
	hub := NewHub(nil, nil)
	if hub.SendMessage("nobody", domain.Message{ID: "m1"}) {
		t.Fatalf("delivery to an offline user should report false")
	}
	if hub.Typing("nobody", "alice") {
		t.Fatalf("typing to an offline user should report false")
	}
}

func TestLastConnectionWins(t *testing.T) {
	presence := newFakePresence()
	hub := NewHub(presence, nil)
	first := NewClient("alice", nil, 4)
	second := NewClient("alice", nil, 4)
	hub.Register(first)
	hub.Register(second)

	hub.Typing("alice", "bob")
	if len(first.send) != 0 {
		t.Fatalf("replaced connection must not receive frames")
	}
	if f := readFrame(t, second); f.Type != FrameTyping || f.From != "bob" {
		t.Fatalf("unexpected frame %+v", f)
	}

	// the stale connection closing must not evict the live one
	hub.Unregister(first)
	if !hub.Online("alice") || !presence.isOnline("alice") {
		t.Fatalf("alice should still be online")
	}

	hub.Unregister(second)
	if hub.Online("alice") {
		t.Fatalf("alice should be offline")
	}
	if presence.isOnline("alice") {
		t.Fatalf("presence should be cleared")
	}
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(nil, nil)
	c := NewClient("bob", nil, 1)
	hub.Register(c)
	if !hub.Typing("bob", "alice") {
		t.Fatalf("first frame should fit")
	}
	if hub.StopTyping("bob", "alice") {
		t.Fatalf("second frame should be dropped on a full buffer")
	}
	if f := readFrame(t, c); f.Type != FrameTyping {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestSendAfterUnregister(t *testing.T) {
	hub := NewHub(nil, nil)
	c := NewClient("bob", nil, 2)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)
	if hub.Typing("bob", "alice") {
		t.Fatalf("unregistered client must not receive frames")
	}
	if c.enqueue([]byte("x")) {
		t.Fatalf("closed client must refuse frames")
	}
}

func TestNotifyAssignment(t *testing.T) {
	hub := NewHub(nil, nil)
	agent := NewClient("agent", nil, 2)
	hub.Register(agent)
	event := events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "NET-010124-001-BOB-AB12",
		Actor:    events.Actor{UserID: "admin", Role: domain.RoleAdmin},
	}
	if !hub.NotifyAssignment("agent", event) {
		t.Fatalf("expected delivery")
	}
	f := readFrame(t, agent)
	data, _ := f.Data.(map[string]any)
	if f.Type != FrameAssignment || f.From != "admin" || data["ticket_id"] != event.TicketID {
		t.Fatalf("unexpected frame %+v", f)
	}
}
