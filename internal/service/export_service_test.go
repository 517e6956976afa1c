package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/testsupport"
)

func TestExportTicketWritesTree(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	ticket := mustCreate(t, env, "support", "u1")
	if _, err := env.Platform.SendMessage(ctx, ticket.ContainerID, "hello"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if _, err := env.TicketService.Close(ctx, ticket.ContainerID, "admin", "resolved"); err != nil {
		t.Fatalf("close: %v", err)
	}

	dir, skipped, err := env.Export.ExportTicket(ctx, ticket.ContainerID, false)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if skipped {
		t.Fatal("fresh export reported skipped")
	}

	for _, name := range []string{"ticket.json", "messages.json", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest struct {
		Number   int64  `json:"number"`
		State    string `json:"state"`
		Messages int    `json:"messages"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Number != ticket.Number || manifest.State != "closed" {
		t.Fatalf("manifest = %+v", manifest)
	}
	if manifest.Messages == 0 {
		t.Fatal("manifest reports no messages")
	}
}

func TestExportTicketSkipsAlreadyExported(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	ticket := mustCreate(t, env, "support", "u1")
	if _, _, err := env.Export.ExportTicket(ctx, ticket.ContainerID, false); err != nil {
		t.Fatalf("export: %v", err)
	}

	_, skipped, err := env.Export.ExportTicket(ctx, ticket.ContainerID, false)
	if err != nil {
		t.Fatalf("repeat export: %v", err)
	}
	if !skipped {
		t.Fatal("repeat export not skipped")
	}

	// force overrides the guard.
	_, skipped, err = env.Export.ExportTicket(ctx, ticket.ContainerID, true)
	if err != nil || skipped {
		t.Fatalf("forced export: skipped=%v err=%v", skipped, err)
	}
}

func TestExportTicketToleratesGoneContainer(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	ticket := mustCreate(t, env, "support", "u1")
	env.Platform.RemoveContainer(ticket.ContainerID)

	dir, _, err := env.Export.ExportTicket(ctx, ticket.ContainerID, false)
	if err != nil {
		t.Fatalf("export of gone container: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ticket.json")); err != nil {
		t.Fatalf("ticket.json missing: %v", err)
	}
}

func TestExportClosedOnlyTouchesClosedTickets(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	open := mustCreate(t, env, "support", "u1")
	closed := mustCreate(t, env, "report", "u2")
	done := mustCreate(t, env, "support", "u3")
	for _, id := range []string{closed.ContainerID, done.ContainerID} {
		if _, err := env.TicketService.Close(ctx, id, "admin", "resolved"); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if _, _, err := env.Export.ExportTicket(ctx, done.ContainerID, false); err != nil {
		t.Fatalf("pre-export: %v", err)
	}

	report, err := env.Export.ExportClosed(ctx)
	if err != nil {
		t.Fatalf("bulk export: %v", err)
	}
	if report.RunID == "" {
		t.Fatal("run id missing")
	}
	if report.Exported != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 1 exported / 1 skipped", report)
	}

	stored, _ := env.Tickets.GetByContainer(ctx, open.ContainerID)
	if stored.Exported {
		t.Fatal("open ticket was exported")
	}
}
