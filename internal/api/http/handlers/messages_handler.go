package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// MessagesHandler serves direct chat between users and agents.
type MessagesHandler struct {
	chat *service.ChatService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(chat *service.ChatService) *MessagesHandler {
	return &MessagesHandler{chat: chat}
}

// Send POST /messages.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.chat.SendMessage(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, dto.NewMessageResponse(msg))
}

// Conversation GET /messages/:userId.
func (h *MessagesHandler) Conversation(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.Conversation(c.UserContext(), actor, c.Params("userId"), c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewMessageList(msgs))
}

// MarkRead POST /messages/:userId/read.
func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	n, err := h.chat.MarkRead(c.UserContext(), actor, c.Params("userId"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, fiber.Map{"marked": n})
}
