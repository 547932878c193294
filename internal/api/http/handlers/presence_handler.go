package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// PresenceReader reads the shared presence cache.
type PresenceReader interface {
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

// LocalPresence answers for users connected to this process.
type LocalPresence interface {
	Online(userID string) bool
}

// PresenceHandler reports whether a user has a live connection.
type PresenceHandler struct {
	shared PresenceReader
	local  LocalPresence
}

// NewPresenceHandler constructs handler. shared may be nil when Redis is off.
func NewPresenceHandler(shared PresenceReader, local LocalPresence) *PresenceHandler {
	return &PresenceHandler{shared: shared, local: local}
}

// Get GET /presence/:userId.
func (h *PresenceHandler) Get(c *fiber.Ctx) error {
	userID := c.Params("userId")
	resp := fiber.Map{"user_id": userID, "online": false}
	if h.local != nil && h.local.Online(userID) {
		resp["online"] = true
	}
	if h.shared != nil {
		seen, ok, err := h.shared.LastSeen(c.UserContext(), userID)
		if err != nil {
			return apperrors.NewStorageError("read presence", err)
		}
		if ok {
			resp["online"] = true
			if !seen.IsZero() {
				resp["last_seen"] = seen
			}
		}
	}
	return data(c, http.StatusOK, resp)
}
