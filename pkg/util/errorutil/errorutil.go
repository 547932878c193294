package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes rendered to API clients.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeTicketRevoked    = "TICKET_REVOKED"
	CodeTicketIDExhaust  = "TICKET_ID_EXHAUSTED"
	CodeAuditWriteFailed = "AUDIT_WRITE_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewForbiddenField reports which mutable field the actor may not touch.
func NewForbiddenField(field, message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, map[string]any{"field": field})
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewTicketRevoked signals a mutation attempt against a terminal ticket.
func NewTicketRevoked(ticketID string) error {
	return NewDomainError(CodeTicketRevoked, "ticket has been revoked and can no longer change",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewTicketIDExhausted reports that every generated id collided on insert.
func NewTicketIDExhausted(attempts int, err error) error {
	return &DomainError{
		Code:       CodeTicketIDExhaust,
		Message:    "could not allocate a unique ticket id",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"attempts": attempts},
		Err:        err,
	}
}

// NewAuditWriteFailed reports a ticket mutation whose audit entry could not be stored.
func NewAuditWriteFailed(ticketID string, err error) error {
	return &DomainError{
		Code:       CodeAuditWriteFailed,
		Message:    "audit write failed; ticket change was not applied",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"ticket_id": ticketID},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewStorageError hides the database failure behind a safe summary.
func NewStorageError(operation string, err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    fmt.Sprintf("storage failure during %s", operation),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
