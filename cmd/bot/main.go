package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-bot/internal/api/http"
	"github.com/spec-kit/helpdesk-bot/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-bot/internal/auth"
	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/dispatch"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/locking"
	"github.com/spec-kit/helpdesk-bot/internal/observability"
	"github.com/spec-kit/helpdesk-bot/internal/persistence"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	"github.com/spec-kit/helpdesk-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var locker locking.Locker = locking.NewRedisLocker(redis.Client)
	var client platform.Client
	if cfg.Platform.Mode == "memory" {
		client = platform.NewMemory()
		locker = locking.NewLocalLocker()
		logger.Warn("running against the in-memory platform")
	} else {
		client = platform.NewREST(cfg.Platform)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	poolRepo := repository.NewPoolRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	configRepo := repository.NewConfigRepository(pool)

	allocator := service.NewAllocatorService(service.AllocatorDependencies{
		PoolRepo: poolRepo,
		Platform: client,
		Locker:   locker,
		Capacity: cfg.Tickets.GroupCapacity,
		Logger:   logger,
	})
	admins := service.NewAdminService(service.AdminDependencies{
		AdminRepo: adminRepo,
		Platform:  client,
		Logger:    logger,
	})
	fanout := service.NewFanOutService(service.FanOutDependencies{
		Platform: client,
		Config:   cfg.FanOut,
		Metrics:  metrics,
		Logger:   logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		MembershipRepo: membershipRepo,
		Allocator:      allocator,
		Admins:         admins,
		Platform:       client,
		Locker:         locker,
		Dispatcher:     dispatcher,
		Types:          cfg.Tickets,
		Logger:         logger,
	})
	system := service.NewSystemService(service.SystemDependencies{
		ConfigRepo: configRepo,
		Allocator:  allocator,
		Platform:   client,
		Logger:     logger,
	})
	recovery := service.NewRecoveryService(service.RecoveryDependencies{
		TicketRepo:     ticketRepo,
		MembershipRepo: membershipRepo,
		System:         system,
		Allocator:      allocator,
		Platform:       client,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	exports := service.NewExportService(service.ExportDependencies{
		TicketRepo:     ticketRepo,
		MembershipRepo: membershipRepo,
		Platform:       client,
		Config:         cfg.Export,
		Logger:         logger,
	})

	notifications := service.NewNotificationService(fanout, admins, logger)
	worker.StartNotificationWorker(notifications, dispatcher)

	// Reconcile persisted state with the live platform before accepting
	// any traffic.
	if _, err := recovery.Run(ctx); err != nil {
		logger.Fatal("startup recovery failed", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Operator.JWTSecret, cfg.Operator.AccessTokenTTLMinutes)
	table := dispatch.NewTable(cfg.Tickets, tickets, admins)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		System:        handlers.NewSystemHandler(system, recovery, tickets, cfg.Operator, tokens),
		Tickets:       handlers.NewTicketsHandler(tickets, exports),
		Admins:        handlers.NewAdminsHandler(admins),
		Interactions:  handlers.NewInteractionsHandler(table),
		Auth:          auth.NewMiddleware(tokens),
		PlatformToken: cfg.Platform.Token,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
