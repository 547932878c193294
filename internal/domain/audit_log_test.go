package domain

import "testing"

func sp(s string) *string { return &s }

func TestLegacyValues(t *testing.T) {
	cases := []struct {
		name    string
		details string
		prev    *string
		next    *string
	}{
		{"snake case", `{"previous_value":"open","new_value":"closed"}`, sp("open"), sp("closed")},
		{"camel case", `{"previousValue":"low","newValue":"high"}`, sp("low"), sp("high")},
		{"from to", `{"from":"a","to":"b"}`, sp("a"), sp("b")},
		{"non string values", `{"from":{"k":1},"to":2}`, sp(`{"k":1}`), sp("2")},
		{"only new", `{"new_value":"urgent"}`, nil, sp("urgent")},
		{"plain text", `Status changed from "open" to "closed"`, nil, nil},
		{"broken json", `{"from":`, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev, next := LegacyValues(tc.details)
			if !sameStr(prev, tc.prev) || !sameStr(next, tc.next) {
				t.Fatalf("got (%v, %v)", show(prev), show(next))
			}
		})
	}
}

func TestResolvedPrefersColumns(t *testing.T) {
	e := AuditLogEntry{
		PreviousValue: sp("column"),
		Details:       `{"previous_value":"blob","new_value":"blob-new"}`,
	}
	r := e.Resolved()
	if *r.PreviousValue != "column" || *r.NewValue != "blob-new" {
		t.Fatalf("unexpected resolution %v %v", show(r.PreviousValue), show(r.NewValue))
	}
	if !e.NeedsBackfill() {
		t.Fatalf("missing new value with a blob should need backfill")
	}
	if (AuditLogEntry{PreviousValue: sp("a"), NewValue: sp("b")}).NeedsBackfill() {
		t.Fatalf("complete entry should not need backfill")
	}
	if (AuditLogEntry{Details: "free text"}).NeedsBackfill() {
		t.Fatalf("entry without a blob cannot be backfilled")
	}
}

func TestReplayAndInitialState(t *testing.T) {
	current := TicketState{Status: TicketStatusResolved, Priority: TicketPriorityUrgent, FormData: `{"title":"b"}`}
	entries := []AuditLogEntry{
		{Action: AuditPriorityChange, PreviousValue: sp("pending"), NewValue: sp("high")},
		{Action: AuditStatusChange, PreviousValue: sp("open"), NewValue: sp("in_progress")},
		{Action: AuditAssigned, PreviousValue: nil, NewValue: sp("agent-1")},
		{Action: AuditPriorityChange, Details: `{"from":"high","to":"urgent"}`},
		{Action: AuditStatusChange, PreviousValue: sp("in_progress"), NewValue: sp("resolved")},
	}

	initial := InitialState(current, entries)
	want := TicketState{Status: TicketStatusOpen, Priority: TicketPriorityPending, FormData: `{"title":"b"}`}
	if initial != want {
		t.Fatalf("initial state %+v, want %+v", initial, want)
	}
	if got := Replay(initial, entries); got != current {
		t.Fatalf("replay %+v, want %+v", got, current)
	}
}

func sameStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func show(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
