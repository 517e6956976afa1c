package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	"github.com/spec-kit/helpdesk-bot/internal/testsupport"
)

func TestTicketCreationNotifiesAdmins(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	if _, err := env.AdminService.AddToGlobal(ctx, "alice", domain.IdentifierKindIndividual); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	notifications := service.NewNotificationService(env.FanOut, env.AdminService, zap.NewNop())
	notifications.RegisterHandlers(env.Dispatcher)

	mustCreate(t, env, "support", "u1")

	// Delivery is off the creating goroutine; poll briefly for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if msgs := env.Platform.DirectMessages("alice"); len(msgs) == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("alice never notified: %v", env.Platform.DirectMessages("alice"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotificationSkipsNonAdminEvents(t *testing.T) {
	env := testsupport.NewEnv(t)
	notifications := service.NewNotificationService(env.FanOut, env.AdminService, zap.NewNop())
	notifications.RegisterHandlers(env.Dispatcher)

	// No admins configured: creation must still succeed and nobody is
	// messaged.
	ticket := mustCreate(t, env, "support", "u1")
	time.Sleep(20 * time.Millisecond)
	if msgs := env.Platform.DirectMessages("u1"); len(msgs) != 0 {
		t.Fatalf("creator was direct-messaged: %v", msgs)
	}
	_ = ticket
}
