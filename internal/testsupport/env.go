package testsupport

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/locking"
	"github.com/spec-kit/helpdesk-bot/internal/observability"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/service"
)

// Env wires the full service graph against in-memory stores and the
// in-memory platform, with pacing tuned down so tests run fast.
type Env struct {
	Platform    *platform.Memory
	Tickets     *TicketStore
	Memberships *MembershipStore
	Pools       *PoolStore
	Admins      *AdminStore
	SysConfig   *ConfigStore
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics

	Allocator     *service.AllocatorService
	AdminService  *service.AdminService
	FanOut        *service.FanOutService
	TicketService *service.TicketService
	System        *service.SystemService
	Recovery      *service.RecoveryService
	Export        *service.ExportService
}

// Options tunes the environment. Zero values fall back to the defaults in
// NewEnv.
type Options struct {
	GroupCapacity int
	FanOut        config.FanOutConfig
	ExportDir     string
}

// NewEnv builds an environment with a capacity-2 pool and the standard
// support/report ticket types.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	return NewEnvWith(t, Options{})
}

// NewEnvWith builds an environment with explicit options.
func NewEnvWith(t testing.TB, opts Options) *Env {
	t.Helper()

	if opts.GroupCapacity == 0 {
		opts.GroupCapacity = 2
	}
	if opts.FanOut.BatchSize == 0 {
		opts.FanOut = config.FanOutConfig{
			BatchSize:     5,
			BatchPause:    time.Millisecond,
			RetryBackoff:  time.Millisecond,
			MaxRecipients: 100,
		}
	}
	if opts.ExportDir == "" {
		opts.ExportDir = t.TempDir()
	}

	memberships := NewMembershipStore()
	env := &Env{
		Platform:    platform.NewMemory(),
		Tickets:     NewTicketStore(memberships),
		Memberships: memberships,
		Pools:       NewPoolStore(),
		Admins:      NewAdminStore(),
		SysConfig:   NewConfigStore(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     observability.NewMetrics(),
	}

	logger := zap.NewNop()
	locker := locking.NewLocalLocker()
	types := config.TicketsConfig{
		Types: []config.TicketType{
			{Name: "support", ContainerKind: "thread"},
			{Name: "report", ContainerKind: "channel"},
		},
		GroupCapacity: opts.GroupCapacity,
	}

	env.Allocator = service.NewAllocatorService(service.AllocatorDependencies{
		PoolRepo: env.Pools,
		Platform: env.Platform,
		Locker:   locker,
		Capacity: opts.GroupCapacity,
		Logger:   logger,
	})
	env.AdminService = service.NewAdminService(service.AdminDependencies{
		AdminRepo: env.Admins,
		Platform:  env.Platform,
		Logger:    logger,
	})
	env.FanOut = service.NewFanOutService(service.FanOutDependencies{
		Platform: env.Platform,
		Config:   opts.FanOut,
		Metrics:  env.Metrics,
		Logger:   logger,
	})
	env.TicketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo:     env.Tickets,
		MembershipRepo: env.Memberships,
		Allocator:      env.Allocator,
		Admins:         env.AdminService,
		Platform:       env.Platform,
		Locker:         locker,
		Dispatcher:     env.Dispatcher,
		Types:          types,
		Logger:         logger,
	})
	env.System = service.NewSystemService(service.SystemDependencies{
		ConfigRepo: env.SysConfig,
		Allocator:  env.Allocator,
		Platform:   env.Platform,
		Logger:     logger,
	})
	env.Recovery = service.NewRecoveryService(service.RecoveryDependencies{
		TicketRepo:     env.Tickets,
		MembershipRepo: env.Memberships,
		System:         env.System,
		Allocator:      env.Allocator,
		Platform:       env.Platform,
		Dispatcher:     env.Dispatcher,
		Logger:         logger,
	})
	env.Export = service.NewExportService(service.ExportDependencies{
		TicketRepo:     env.Tickets,
		MembershipRepo: env.Memberships,
		Platform:       env.Platform,
		Config:         config.ExportConfig{Dir: opts.ExportDir, MaxAttachmentBytes: 1 << 20},
		Logger:         logger,
	})
	return env
}
