package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/api/dto"
	"github.com/spec-kit/helpdesk-bot/internal/dispatch"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// InteractionsHandler receives platform control callbacks and re-enters the
// ticket lifecycle through the dispatch table.
type InteractionsHandler struct {
	table *dispatch.Table
}

// NewInteractionsHandler constructs handler.
func NewInteractionsHandler(table *dispatch.Table) *InteractionsHandler {
	return &InteractionsHandler{table: table}
}

// Handle POST /interactions.
func (h *InteractionsHandler) Handle(c *fiber.Ctx) error {
	var req dto.InteractionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}

	switch req.Action {
	case "create":
		ticket, err := h.table.Create(c.UserContext(), req.TicketType, req.ActorID)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
	case "accept":
		if req.ContainerID == "" {
			return apperrors.NewValidationError("container_id required", nil)
		}
		changed, err := h.table.Accept(c.UserContext(), req.ContainerID, req.ActorID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": transition(changed, "already accepted")})
	case "close":
		if req.ContainerID == "" {
			return apperrors.NewValidationError("container_id required", nil)
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "closed via ticket controls"
		}
		changed, err := h.table.Close(c.UserContext(), req.ContainerID, req.ActorID, reason)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": transition(changed, "already closed")})
	default:
		return apperrors.NewValidationError("unknown action", map[string]any{"action": req.Action})
	}
}
