package dispatch_test

import (
	"context"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/dispatch"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/testsupport"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

func TestTableCreatesByTypeName(t *testing.T) {
	env := testsupport.NewEnv(t)
	types := config.TicketsConfig{Types: []config.TicketType{
		{Name: "support", ContainerKind: "thread"},
		{Name: "report", ContainerKind: "channel"},
	}}
	table := dispatch.NewTable(types, env.TicketService, env.AdminService)
	ctx := context.Background()

	ticket, err := table.Create(ctx, "report", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Type != "report" {
		t.Fatalf("type = %s, want report", ticket.Type)
	}

	// The handler closes over its own type name, not the last loop value.
	other, err := table.Create(ctx, "support", "u2")
	if err != nil {
		t.Fatalf("create support: %v", err)
	}
	if other.Type != "support" {
		t.Fatalf("type = %s, want support", other.Type)
	}
}

func TestTableRejectsUnknownType(t *testing.T) {
	env := testsupport.NewEnv(t)
	table := dispatch.NewTable(config.TicketsConfig{
		Types: []config.TicketType{{Name: "support", ContainerKind: "thread"}},
	}, env.TicketService, env.AdminService)

	_, err := table.Create(context.Background(), "billing", "u1")
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestTableTransitions(t *testing.T) {
	env := testsupport.NewEnv(t)
	table := dispatch.NewTable(config.TicketsConfig{
		Types: []config.TicketType{{Name: "support", ContainerKind: "thread"}},
	}, env.TicketService, env.AdminService)
	ctx := context.Background()
	if _, err := env.AdminService.AddToGlobal(ctx, "admin", domain.IdentifierKindIndividual); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	ticket, err := table.Create(ctx, "support", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if changed, err := table.Accept(ctx, ticket.ContainerID, "admin"); err != nil || !changed {
		t.Fatalf("accept: changed=%v err=%v", changed, err)
	}
	if changed, err := table.Close(ctx, ticket.ContainerID, "admin", "done"); err != nil || !changed {
		t.Fatalf("close: changed=%v err=%v", changed, err)
	}
}

func TestTableRejectsNonAdminTransitions(t *testing.T) {
	env := testsupport.NewEnv(t)
	table := dispatch.NewTable(config.TicketsConfig{
		Types: []config.TicketType{{Name: "support", ContainerKind: "thread"}},
	}, env.TicketService, env.AdminService)
	ctx := context.Background()

	ticket, err := table.Create(ctx, "support", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The creator can click the controls but holds no staff standing.
	if _, err := table.Accept(ctx, ticket.ContainerID, "u1"); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("accept err = %v, want FORBIDDEN", err)
	}
	if _, err := table.Close(ctx, ticket.ContainerID, "stranger", "drive-by"); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("close err = %v, want FORBIDDEN", err)
	}

	got, _, err := env.TicketService.Get(ctx, ticket.ContainerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Accepted || got.Closed {
		t.Fatalf("ticket mutated: accepted=%v closed=%v", got.Accepted, got.Closed)
	}
}
