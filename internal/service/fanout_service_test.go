package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	"github.com/spec-kit/helpdesk-bot/internal/testsupport"
)

func individuals(ids ...string) []domain.AdminEntry {
	entries := make([]domain.AdminEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, domain.AdminEntry{Identifier: id, Kind: domain.IdentifierKindIndividual})
	}
	return entries
}

func TestFanOutContinuesPastFailures(t *testing.T) {
	env := testsupport.NewEnv(t)

	var ids []string
	for i := 1; i <= 10; i++ {
		ids = append(ids, fmt.Sprintf("member-%d", i))
	}
	env.Platform.DirectErr["member-4"] = platform.ErrForbidden

	outcome := env.FanOut.FanOut(context.Background(), service.OpNotify, "", "ticket opened", individuals(ids...))
	if len(outcome.Succeeded) != 9 {
		t.Fatalf("succeeded = %d, want 9 (%v)", len(outcome.Succeeded), outcome.Succeeded)
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0] != "member-4" {
		t.Fatalf("failed = %v, want [member-4]", outcome.Failed)
	}

	// Recipients after the failure were still delivered.
	for _, id := range []string{"member-5", "member-10"} {
		if msgs := env.Platform.DirectMessages(id); len(msgs) != 1 {
			t.Fatalf("%s got %d messages, want 1", id, len(msgs))
		}
	}
}

func TestFanOutRetriesRateLimitOnce(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Platform.RateLimitGrants["member-2"] = 1

	outcome := env.FanOut.FanOut(context.Background(), service.OpNotify, "", "hi", individuals("member-1", "member-2"))
	if len(outcome.Failed) != 0 {
		t.Fatalf("failed = %v, want none", outcome.Failed)
	}
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want both", outcome.Succeeded)
	}
	if msgs := env.Platform.DirectMessages("member-2"); len(msgs) != 1 {
		t.Fatalf("member-2 got %d messages, want 1 after retry", len(msgs))
	}
}

func TestFanOutGivesUpAfterSecondRateLimit(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Platform.RateLimitGrants["member-2"] = 2

	outcome := env.FanOut.FanOut(context.Background(), service.OpNotify, "", "hi", individuals("member-1", "member-2", "member-3"))
	if len(outcome.Failed) != 1 || outcome.Failed[0] != "member-2" {
		t.Fatalf("failed = %v, want [member-2]", outcome.Failed)
	}
	// The remaining recipient was not abandoned.
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want member-1 and member-3", outcome.Succeeded)
	}
}

func TestFanOutExpandsRolesAndDeduplicates(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Platform.SetRole("mods", "alice", "bob")

	recipients := append(individuals("alice"), domain.AdminEntry{Identifier: "mods", Kind: domain.IdentifierKindRole})
	outcome := env.FanOut.FanOut(context.Background(), service.OpNotify, "", "hi", recipients)
	if len(outcome.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want alice+bob once each", outcome.Succeeded)
	}
	if msgs := env.Platform.DirectMessages("alice"); len(msgs) != 1 {
		t.Fatalf("alice got %d messages, want 1", len(msgs))
	}
}

func TestFanOutCapsRecipients(t *testing.T) {
	env := testsupport.NewEnvWith(t, testsupport.Options{
		FanOut: config.FanOutConfig{BatchSize: 5, MaxRecipients: 3},
	})

	members := make([]string, 10)
	for i := range members {
		members[i] = fmt.Sprintf("member-%d", i)
	}
	env.Platform.SetRole("everyone", members...)

	outcome := env.FanOut.FanOut(context.Background(), service.OpNotify, "", "hi",
		[]domain.AdminEntry{{Identifier: "everyone", Kind: domain.IdentifierKindRole}})
	if got := len(outcome.Succeeded) + len(outcome.Failed); got != 3 {
		t.Fatalf("processed %d recipients, want cap of 3", got)
	}
}

func TestFanOutGrantAccessWritesOverwrites(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	containerID, err := env.Platform.CreateContainer(ctx, "channel", "", "room", nil)
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	outcome := env.FanOut.FanOut(ctx, service.OpGrantAccess, containerID, "", individuals("alice", "bob"))
	if len(outcome.Failed) != 0 {
		t.Fatalf("failed = %v", outcome.Failed)
	}

	granted := make(map[string]bool)
	for _, ow := range env.Platform.Overwrites(containerID) {
		granted[ow.TargetID] = true
	}
	if !granted["alice"] || !granted["bob"] {
		t.Fatalf("overwrites = %v, want alice and bob", granted)
	}
}
