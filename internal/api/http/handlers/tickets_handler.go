package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/api/dto"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle on the operator surface.
type TicketsHandler struct {
	tickets *service.TicketService
	exports *service.ExportService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, exports *service.ExportService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, exports: exports}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Type == "" || req.CreatorID == "" {
		return apperrors.NewValidationError("type and creator_id required", nil)
	}
	ticket, err := h.tickets.Create(c.UserContext(), req.Type, req.CreatorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, members, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	entries := make([]dto.MembershipEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, dto.MembershipEntry{
			MemberID: m.MemberID,
			AddedBy:  m.AddedBy,
			AddedAt:  m.AddedAt,
		})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":  ticketSummary(ticket),
		"members": entries,
	}})
}

// Accept POST /tickets/:id/accept.
func (h *TicketsHandler) Accept(c *fiber.Ctx) error {
	var req dto.AcceptTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	changed, err := h.tickets.Accept(c.UserContext(), c.Params("id"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transition(changed, "already accepted")})
}

// AddMember POST /tickets/:id/members.
func (h *TicketsHandler) AddMember(c *fiber.Ctx) error {
	var req dto.AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.MemberID == "" || req.ActorID == "" {
		return apperrors.NewValidationError("member_id and actor_id required", nil)
	}
	changed, err := h.tickets.AddMember(c.UserContext(), c.Params("id"), req.MemberID, req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transition(changed, "already a member")})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "closed by staff"
	}
	changed, err := h.tickets.Close(c.UserContext(), c.Params("id"), req.ActorID, reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transition(changed, "already closed")})
}

// Export POST /tickets/:id/export.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	force := c.QueryBool("force")
	dir, skipped, err := h.exports.ExportTicket(c.UserContext(), c.Params("id"), force)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"skipped": skipped,
		"dir":     dir,
	}})
}

// ExportClosed POST /exports/run.
func (h *TicketsHandler) ExportClosed(c *fiber.Ctx) error {
	report, err := h.exports.ExportClosed(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ContainerID: t.ContainerID,
		Number:      t.Number,
		Type:        t.Type,
		State:       t.State(),
		CreatorID:   t.CreatorID,
		AcceptedBy:  t.AcceptedBy,
		ClosedBy:    t.ClosedBy,
		CloseReason: t.CloseReason,
		Exported:    t.Exported,
		CreatedAt:   t.CreatedAt,
		AcceptedAt:  t.AcceptedAt,
		ClosedAt:    t.ClosedAt,
	}
}

func transition(changed bool, note string) dto.TransitionResponse {
	resp := dto.TransitionResponse{Changed: changed}
	if !changed {
		resp.Note = note
	}
	return resp
}
