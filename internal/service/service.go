package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// publishEvent fills id and timestamp and hands the event to the dispatcher.
// Handler failures never fail the operation that produced the event.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

// notFoundOr maps pgx.ErrNoRows to a NotFound naming the entity and wraps
// anything else as a storage failure.
func notFoundOr(err error, resource, key, id, operation string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{key: id})
	}
	return apperrors.NewStorageError(operation, err)
}

func describeActor(a domain.Actor) string {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return fmt.Sprintf("%s (%s)", name, a.Role)
}

func strPtr(s string) *string {
	return &s
}
