package ticketid

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	ids        []string
	err        error
	lastPrefix string
}

func (f *fakeSource) ListIDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	f.lastPrefix = prefix
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range f.ids {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
}

func TestGenerateScenario(t *testing.T) {
	gen := NewGenerator(&fakeSource{}, nil, WithClock(fixedClock))

	id := gen.Generate(context.Background(), "lan-issue", "Aditya")

	want := regexp.MustCompile(`^LAN-050324-\d{3}-ADI-[A-Z]{2}\d{2}$`)
	if !want.MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
	if !strings.HasPrefix(id, "LAN-050324-001-") {
		t.Fatalf("expected first sequence number, got %q", id)
	}
}

func TestGenerateAlwaysValid(t *testing.T) {
	gen := NewGenerator(&fakeSource{}, nil)
	inputs := [][2]string{
		{"lan-issue", "Aditya"},
		{"", ""},
		{"42", "李雷"},
		{"a", "Bo"},
		{"hardware request", "o'neil"},
	}
	for _, in := range inputs {
		id := gen.Generate(context.Background(), in[0], in[1])
		if !IsValid(id) {
			t.Fatalf("Generate(%q, %q) = %q does not match the id format", in[0], in[1], id)
		}
	}
}

func TestGenerateUsesNextSequence(t *testing.T) {
	src := &fakeSource{ids: []string{
		"LAN-050324-001-ADI-AB12",
		"LAN-050324-007-BOB-CD34",
		"LAN-050324-003-CAR-EF56",
		"LAN-040324-050-ADI-GH78",
		"HWR-050324-090-ADI-IJ90",
	}}
	gen := NewGenerator(src, nil, WithClock(fixedClock))

	id := gen.Generate(context.Background(), "LAN", "Aditya")

	if src.lastPrefix != "LAN-050324-" {
		t.Fatalf("unexpected scan prefix %q", src.lastPrefix)
	}
	if !strings.HasPrefix(id, "LAN-050324-008-ADI-") {
		t.Fatalf("expected sequence 008, got %q", id)
	}
}

func TestGenerateClampsSequence(t *testing.T) {
	src := &fakeSource{ids: []string{"LAN-050324-999-ADI-AB12"}}
	gen := NewGenerator(src, nil, WithClock(fixedClock))

	id := gen.Generate(context.Background(), "LAN", "Aditya")
	if !strings.HasPrefix(id, "LAN-050324-999-") || !IsValid(id) {
		t.Fatalf("expected clamped valid id, got %q", id)
	}
}

func TestGenerateFallsBackOnStorageError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	gen := NewGenerator(src, nil, WithClock(fixedClock))

	id := gen.Generate(context.Background(), "LAN", "Aditya")
	if !strings.HasPrefix(id, "LAN-050324-001-ADI-") {
		t.Fatalf("expected fallback to sequence 001, got %q", id)
	}
}

func TestGenerateDeterministicSuffix(t *testing.T) {
	seq := []int{16, 10, 4, 2}
	var mu sync.Mutex
	gen := NewGenerator(&fakeSource{}, nil, WithClock(fixedClock), WithRand(func(int) int {
		mu.Lock()
		defer mu.Unlock()
		v := seq[0]
		seq = seq[1:]
		return v
	}))

	id := gen.Generate(context.Background(), "LAN", "Aditya")
	if id != "LAN-050324-001-ADI-QK42" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestIsValid(t *testing.T) {
	cases := map[string]bool{
		"LAN-050324-001-ADI-QK42": true,
		"abc-123":                 false,
		"":                        false,
		"lan-050324-001-ADI-QK42": false,
		"LAN-05032-001-ADI-QK42":  false,
		"LAN-050324-001-ADI-Q142": false,
		"LAN-050324-001-ADI-QK42 ": false,
	}
	for id, want := range cases {
		if got := IsValid(id); got != want {
			t.Errorf("IsValid(%q) = %v, want %v", id, got, want)
		}
	}
}
