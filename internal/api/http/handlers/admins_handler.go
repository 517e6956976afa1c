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

// AdminsHandler manages the global and per-type admin sets.
type AdminsHandler struct {
	admins *service.AdminService
}

// NewAdminsHandler constructs handler.
func NewAdminsHandler(admins *service.AdminService) *AdminsHandler {
	return &AdminsHandler{admins: admins}
}

// List GET /admins?scope=.
func (h *AdminsHandler) List(c *fiber.Ctx) error {
	scope := c.Query("scope", domain.AdminScopeGlobal)
	if err := validateScope(scope); err != nil {
		return err
	}
	entries, err := h.admins.List(c.UserContext(), scope)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Add POST /admins.
func (h *AdminsHandler) Add(c *fiber.Ctx) error {
	var req dto.AdminEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateScope(req.Scope); err != nil {
		return err
	}
	kind := domain.IdentifierKind(req.Kind)
	if kind != domain.IdentifierKindRole && kind != domain.IdentifierKindIndividual {
		return apperrors.NewValidationError("kind must be role or individual", nil)
	}
	if req.Identifier == "" {
		return apperrors.NewValidationError("identifier required", nil)
	}

	var added bool
	var err error
	if req.Scope == domain.AdminScopeGlobal {
		added, err = h.admins.AddToGlobal(c.UserContext(), req.Identifier, kind)
	} else {
		ticketType := strings.TrimPrefix(req.Scope, "type:")
		added, err = h.admins.AddToType(c.UserContext(), ticketType, req.Identifier, kind)
	}
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": fiber.Map{"added": added}})
}

// Remove DELETE /admins.
func (h *AdminsHandler) Remove(c *fiber.Ctx) error {
	scope := c.Query("scope", domain.AdminScopeGlobal)
	identifier := c.Query("identifier")
	if err := validateScope(scope); err != nil {
		return err
	}
	if identifier == "" {
		return apperrors.NewValidationError("identifier required", nil)
	}
	removed, err := h.admins.Remove(c.UserContext(), scope, identifier)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NewNotFound("admin entry", fiber.Map{"identifier": identifier})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": true}})
}

func validateScope(scope string) error {
	if scope == domain.AdminScopeGlobal || strings.HasPrefix(scope, "type:") {
		return nil
	}
	return apperrors.NewValidationError("scope must be global or type:<name>", nil)
}
