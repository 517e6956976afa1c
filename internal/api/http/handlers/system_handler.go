package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/api/dto"
	"github.com/spec-kit/helpdesk-bot/internal/auth"
	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// SystemHandler exposes setup, statistics and reconciliation.
type SystemHandler struct {
	system   *service.SystemService
	recovery *service.RecoveryService
	tickets  *service.TicketService
	operator config.OperatorConfig
	tokens   *auth.TokenManager
}

// NewSystemHandler constructs handler.
func NewSystemHandler(system *service.SystemService, recovery *service.RecoveryService, tickets *service.TicketService, operator config.OperatorConfig, tokens *auth.TokenManager) *SystemHandler {
	return &SystemHandler{
		system:   system,
		recovery: recovery,
		tickets:  tickets,
		operator: operator,
		tokens:   tokens,
	}
}

// Login POST /auth/login.
func (h *SystemHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	token, err := auth.Login(h.operator, h.tokens, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"token": token}})
}

// Init POST /system/init. Idempotent: no-ops when already configured.
func (h *SystemHandler) Init(c *fiber.Ctx) error {
	cfg, changed, err := h.system.EnsureInitialized(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"changed":               changed,
		"creation_container_id": cfg.CreationContainerID,
		"info_container_id":     cfg.InfoContainerID,
		"main_message_id":       cfg.MainMessageID,
	}})
}

// Stats GET /system/stats.
func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Open:              stats.Open,
		Accepted:          stats.Accepted,
		Closed:            stats.Closed,
		ByType:            stats.ByType,
		MeanAcceptSeconds: stats.MeanAcceptLatency.Seconds(),
	}})
}

// Reconcile POST /system/reconcile.
func (h *SystemHandler) Reconcile(c *fiber.Ctx) error {
	report, err := h.recovery.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReconcileResponse{
		ConfigRepaired:  report.ConfigRepaired,
		GroupsDropped:   report.GroupsDropped,
		TicketsChecked:  report.TicketsChecked,
		TicketsReclosed: report.TicketsReclosed,
		NumbersRepaired: report.NumbersRepaired,
	}})
}
