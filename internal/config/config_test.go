package config_test

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %s", cfg.App.Addr())
	}
	if cfg.Tickets.GroupCapacity != 50 {
		t.Fatalf("group capacity = %d, want 50", cfg.Tickets.GroupCapacity)
	}
	if cfg.FanOut.BatchSize != 5 || cfg.FanOut.BatchPause != 750*time.Millisecond {
		t.Fatalf("fan-out defaults = %+v", cfg.FanOut)
	}
	if len(cfg.Tickets.Types) != 3 {
		t.Fatalf("default types = %+v", cfg.Tickets.Types)
	}
}

func TestLoadParsesTicketTypes(t *testing.T) {
	t.Setenv("TICKET_TYPES", "support:thread, report:channel ,appeal")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []config.TicketType{
		{Name: "support", ContainerKind: "thread"},
		{Name: "report", ContainerKind: "channel"},
		{Name: "appeal", ContainerKind: "thread"}, // kind defaults to thread
	}
	if len(cfg.Tickets.Types) != len(want) {
		t.Fatalf("types = %+v", cfg.Tickets.Types)
	}
	for i, tt := range want {
		if cfg.Tickets.Types[i] != tt {
			t.Fatalf("type[%d] = %+v, want %+v", i, cfg.Tickets.Types[i], tt)
		}
	}

	typ, ok := cfg.Tickets.Type("report")
	if !ok || typ.ContainerKind != "channel" {
		t.Fatalf("lookup report = %+v ok=%v", typ, ok)
	}
	if _, ok := cfg.Tickets.Type("billing"); ok {
		t.Fatal("unknown type resolved")
	}
}

func TestLoadRejectsBadTicketTypes(t *testing.T) {
	t.Setenv("TICKET_TYPES", "support:voicemail")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown container kind")
	}

	t.Setenv("TICKET_TYPES", " , ")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for empty type list")
	}
}

func TestLoadRejectsNonPositiveCapacity(t *testing.T) {
	t.Setenv("TICKET_GROUP_CAPACITY", "0")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}
