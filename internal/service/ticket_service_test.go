package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/testsupport"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

func mustCreate(t *testing.T, env *testsupport.Env, typeName, creator string) *domain.Ticket {
	t.Helper()
	ticket, err := env.TicketService.Create(context.Background(), typeName, creator)
	if err != nil {
		t.Fatalf("create %s ticket for %s: %v", typeName, creator, err)
	}
	return ticket
}

func TestCreateAssignsStrictlyIncreasingNumbers(t *testing.T) {
	env := testsupport.NewEnv(t)

	var last int64
	for i, creator := range []string{"u1", "u2", "u3"} {
		ticket := mustCreate(t, env, "support", creator)
		if ticket.Number != int64(i+1) {
			t.Fatalf("ticket %d got number %d", i+1, ticket.Number)
		}
		if ticket.Number <= last {
			t.Fatalf("number %d not above previous %d", ticket.Number, last)
		}
		last = ticket.Number
	}

	// Closing a ticket must not free its number for reuse.
	tickets, _ := env.Tickets.ListAll(context.Background())
	if _, err := env.TicketService.Close(context.Background(), tickets[0].ContainerID, "admin", "done"); err != nil {
		t.Fatalf("close: %v", err)
	}
	next := mustCreate(t, env, "support", "u4")
	if next.Number != 4 {
		t.Fatalf("number after close = %d, want 4", next.Number)
	}
}

// Racing creations must each get a distinct number with no gaps.
func TestCreateConcurrentAssignsDistinctNumbers(t *testing.T) {
	env := testsupport.NewEnv(t)
	const workers = 8

	var wg sync.WaitGroup
	numbers := make(chan int64, workers)
	failures := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, err := env.TicketService.Create(context.Background(), "support", fmt.Sprintf("user-%d", i))
			if err != nil {
				failures <- err
				return
			}
			numbers <- ticket.Number
		}(i)
	}
	wg.Wait()
	close(numbers)
	close(failures)

	for err := range failures {
		t.Fatalf("concurrent create: %v", err)
	}
	seen := make(map[int64]bool, workers)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("number %d assigned twice", number)
		}
		seen[number] = true
	}
	for want := int64(1); want <= workers; want++ {
		if !seen[want] {
			t.Fatalf("number %d missing; got %v", want, seen)
		}
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	env := testsupport.NewEnv(t)

	_, err := env.TicketService.Create(context.Background(), "billing", "u1")
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestCreateAddsCreatorMembership(t *testing.T) {
	env := testsupport.NewEnv(t)
	ticket := mustCreate(t, env, "support", "u1")

	members, err := env.Memberships.ListByTicket(context.Background(), ticket.ContainerID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(members) != 1 || members[0].MemberID != "u1" {
		t.Fatalf("memberships = %+v, want creator only", members)
	}
}

func TestCreateLeavesNoRowOnExhaustion(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Platform.CreateGroupErr = platform.ErrRateLimited

	_, err := env.TicketService.Create(context.Background(), "support", "u1")
	if !apperrors.IsCode(err, "RESOURCE_EXHAUSTED") {
		t.Fatalf("err = %v, want RESOURCE_EXHAUSTED", err)
	}
	tickets, _ := env.Tickets.ListAll(context.Background())
	if len(tickets) != 0 {
		t.Fatalf("tickets persisted despite failed allocation: %+v", tickets)
	}
}

// A failed membership insert must not leave the ticket row behind.
func TestCreateIsAtomicWithCreatorMembership(t *testing.T) {
	env := testsupport.NewEnv(t)
	env.Memberships.AddErr = errors.New("connection reset")

	_, err := env.TicketService.Create(context.Background(), "support", "u1")
	if err == nil {
		t.Fatal("create succeeded despite membership failure")
	}
	tickets, _ := env.Tickets.ListAll(context.Background())
	if len(tickets) != 0 {
		t.Fatalf("ticket persisted without its creator membership: %+v", tickets)
	}
}

func TestLookupFailureIsNotReportedAsMissing(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	if _, err := env.TicketService.Accept(ctx, "no-such-container", "admin"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("missing ticket err = %v, want NOT_FOUND", err)
	}

	env.Tickets.GetErr = errors.New("connection reset")
	_, err := env.TicketService.Accept(ctx, "no-such-container", "admin")
	if !apperrors.IsCode(err, "INTERNAL_ERROR") {
		t.Fatalf("store failure err = %v, want INTERNAL_ERROR", err)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	ticket := mustCreate(t, env, "support", "u1")

	changed, err := env.TicketService.Accept(ctx, ticket.ContainerID, "admin-1")
	if err != nil || !changed {
		t.Fatalf("first accept: changed=%v err=%v", changed, err)
	}
	changed, err = env.TicketService.Accept(ctx, ticket.ContainerID, "admin-2")
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if changed {
		t.Fatal("second accept reported a mutation")
	}

	// The first acceptor sticks.
	stored, _ := env.Tickets.GetByContainer(ctx, ticket.ContainerID)
	if stored.AcceptedBy == nil || *stored.AcceptedBy != "admin-1" {
		t.Fatalf("accepted_by = %v, want admin-1", stored.AcceptedBy)
	}
}

func TestCloseIsIdempotentAndTerminal(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	ticket := mustCreate(t, env, "support", "u1")

	changed, err := env.TicketService.Close(ctx, ticket.ContainerID, "admin", "resolved")
	if err != nil || !changed {
		t.Fatalf("close: changed=%v err=%v", changed, err)
	}
	changed, err = env.TicketService.Close(ctx, ticket.ContainerID, "admin", "again")
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if changed {
		t.Fatal("second close reported a mutation")
	}

	if _, err := env.TicketService.Accept(ctx, ticket.ContainerID, "admin"); !apperrors.IsCode(err, "ALREADY_IN_STATE") {
		t.Fatalf("accept after close: err = %v, want ALREADY_IN_STATE", err)
	}
	if _, err := env.TicketService.AddMember(ctx, ticket.ContainerID, "u2", "admin"); !apperrors.IsCode(err, "ALREADY_IN_STATE") {
		t.Fatalf("add member after close: err = %v, want ALREADY_IN_STATE", err)
	}

	// The original close reason survives the replays.
	stored, _ := env.Tickets.GetByContainer(ctx, ticket.ContainerID)
	if stored.CloseReason == nil || *stored.CloseReason != "resolved" {
		t.Fatalf("close reason = %v, want resolved", stored.CloseReason)
	}
}

func TestCloseWithoutAcceptIsLegal(t *testing.T) {
	env := testsupport.NewEnv(t)
	ticket := mustCreate(t, env, "report", "u1")

	changed, err := env.TicketService.Close(context.Background(), ticket.ContainerID, "admin", "spam")
	if err != nil || !changed {
		t.Fatalf("close unaccepted: changed=%v err=%v", changed, err)
	}
}

func TestAddMemberDeduplicates(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	ticket := mustCreate(t, env, "support", "u1")

	added, err := env.TicketService.AddMember(ctx, ticket.ContainerID, "u2", "admin")
	if err != nil || !added {
		t.Fatalf("add member: added=%v err=%v", added, err)
	}
	added, err = env.TicketService.AddMember(ctx, ticket.ContainerID, "u2", "admin")
	if err != nil {
		t.Fatalf("repeat add: %v", err)
	}
	if added {
		t.Fatal("duplicate membership reported as added")
	}
}

func TestCloseArchivesIntoClosedPoolReadOnly(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	ticket := mustCreate(t, env, "support", "u1")
	if _, err := env.TicketService.AddMember(ctx, ticket.ContainerID, "u2", "admin"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if _, err := env.TicketService.Close(ctx, ticket.ContainerID, "admin", "resolved"); err != nil {
		t.Fatalf("close: %v", err)
	}

	groupID, ok := env.Platform.ContainerGroup(ticket.ContainerID)
	if !ok {
		t.Fatal("container gone after close")
	}
	closedEntries, _ := env.Pools.List(ctx, domain.PoolKindClosed)
	found := false
	for _, entry := range closedEntries {
		if entry.GroupID == groupID {
			found = true
		}
	}
	if !found {
		t.Fatalf("container group %s not in closed pool %+v", groupID, closedEntries)
	}

	for _, memberID := range []string{"u1", "u2"} {
		var seen bool
		for _, ow := range env.Platform.Overwrites(ticket.ContainerID) {
			if ow.TargetID == memberID {
				seen = true
				if ow.Write {
					t.Fatalf("member %s still writable after close", memberID)
				}
				if !ow.Read {
					t.Fatalf("member %s lost read access after close", memberID)
				}
			}
		}
		if !seen {
			t.Fatalf("no overwrite for member %s after close", memberID)
		}
	}
}

// Scenario: a capacity-2 pool absorbs a third ticket by growing exactly one
// new group, and the first two tickets stay where they were placed.
func TestScenarioPoolRollsOverAtCapacity(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	first := mustCreate(t, env, "support", "u1")
	second := mustCreate(t, env, "support", "u2")
	third := mustCreate(t, env, "support", "u3")

	g1, _ := env.Platform.ContainerGroup(first.ContainerID)
	g2, _ := env.Platform.ContainerGroup(second.ContainerID)
	g3, _ := env.Platform.ContainerGroup(third.ContainerID)

	if g1 != g2 {
		t.Fatalf("first two tickets split across groups %s and %s", g1, g2)
	}
	if g3 == g1 {
		t.Fatal("third ticket placed in the full group")
	}
	entries, _ := env.Pools.List(ctx, domain.PoolKindOpen)
	if len(entries) != 2 {
		t.Fatalf("open pool has %d groups, want 2", len(entries))
	}
}

// Scenario: close then accept. The accept must fail loudly rather than
// silently no-op, so the caller can tell a terminal ticket from a replay.
func TestScenarioCloseThenAccept(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()
	ticket := mustCreate(t, env, "support", "u1")

	if _, err := env.TicketService.Close(ctx, ticket.ContainerID, "admin", "stale"); err != nil {
		t.Fatalf("close: %v", err)
	}
	changed, err := env.TicketService.Accept(ctx, ticket.ContainerID, "admin")
	if changed {
		t.Fatal("accept mutated a closed ticket")
	}
	if !apperrors.IsCode(err, "ALREADY_IN_STATE") {
		t.Fatalf("err = %v, want ALREADY_IN_STATE", err)
	}

	stored, _ := env.Tickets.GetByContainer(ctx, ticket.ContainerID)
	if stored.Accepted {
		t.Fatal("closed ticket shows accepted")
	}
	if stored.State() != "closed" {
		t.Fatalf("state = %s, want closed", stored.State())
	}
}

func TestStatsAggregatesByState(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	open := mustCreate(t, env, "support", "u1")
	accepted := mustCreate(t, env, "support", "u2")
	closed := mustCreate(t, env, "report", "u3")
	_ = open
	if _, err := env.TicketService.Accept(ctx, accepted.ContainerID, "admin"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.TicketService.Close(ctx, closed.ContainerID, "admin", "done"); err != nil {
		t.Fatalf("close: %v", err)
	}

	stats, err := env.TicketService.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Open != 1 || stats.Accepted != 1 || stats.Closed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.ByType["support"] != 2 || stats.ByType["report"] != 1 {
		t.Fatalf("by-type = %+v", stats.ByType)
	}
}
