package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	cause := errors.New("connection reset")
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error", NewForbiddenField("priority", "no"), CodeForbidden, http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewTicketRevoked("T1")), CodeTicketRevoked, http.StatusConflict},
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"unknown", cause, CodeInternal, http.StatusInternalServerError},
		{"audit", NewAuditWriteFailed("T1", cause), CodeAuditWriteFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if de.Code != tc.code || de.HTTPStatus != tc.status {
				t.Fatalf("got %s/%d", de.Code, de.HTTPStatus)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestStorageErrorKeepsCause(t *testing.T) {
	cause := errors.New("relation does not exist")
	err := NewStorageError("load ticket", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be unwrappable")
	}
	if ToDomainError(err).Message != "storage failure during load ticket" {
		t.Fatalf("unexpected message %q", ToDomainError(err).Message)
	}
}
