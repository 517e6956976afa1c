package dispatch

import (
	"context"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// CreateHandler opens a ticket for a creator.
type CreateHandler func(ctx context.Context, creatorID string) (*domain.Ticket, error)

// Table maps ticket-type names to their creation handlers. It is built once
// from configuration at startup, so interaction callbacks dispatch through a
// lookup instead of string matching scattered across call sites.
type Table struct {
	creators map[string]CreateHandler
	tickets  *service.TicketService
	admins   *service.AdminService
}

// NewTable builds the dispatch table for the configured ticket types.
func NewTable(types config.TicketsConfig, tickets *service.TicketService, admins *service.AdminService) *Table {
	creators := make(map[string]CreateHandler, len(types.Types))
	for _, ticketType := range types.Types {
		name := ticketType.Name
		creators[name] = func(ctx context.Context, creatorID string) (*domain.Ticket, error) {
			return tickets.Create(ctx, name, creatorID)
		}
	}
	return &Table{creators: creators, tickets: tickets, admins: admins}
}

// Create dispatches a creation callback for the named ticket type.
func (t *Table) Create(ctx context.Context, typeName, creatorID string) (*domain.Ticket, error) {
	handler, ok := t.creators[typeName]
	if !ok {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": typeName})
	}
	return handler(ctx, creatorID)
}

// Accept dispatches an accept-control callback. Accept and close are staff
// controls; any ticket member can click them, so the callback actor must
// resolve as an admin for the ticket's type before the transition runs.
func (t *Table) Accept(ctx context.Context, containerID, actorID string) (bool, error) {
	if err := t.requireAdmin(ctx, containerID, actorID); err != nil {
		return false, err
	}
	return t.tickets.Accept(ctx, containerID, actorID)
}

// Close dispatches a close-control callback, gated like Accept.
func (t *Table) Close(ctx context.Context, containerID, actorID, reason string) (bool, error) {
	if err := t.requireAdmin(ctx, containerID, actorID); err != nil {
		return false, err
	}
	return t.tickets.Close(ctx, containerID, actorID, reason)
}

func (t *Table) requireAdmin(ctx context.Context, containerID, actorID string) error {
	ticket, _, err := t.tickets.Get(ctx, containerID)
	if err != nil {
		return err
	}
	ok, err := t.admins.IsAdmin(ctx, actorID, ticket.Type)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewForbidden("staff privilege required")
	}
	return nil
}
