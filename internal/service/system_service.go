package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
)

// SystemService owns the singleton system configuration: the creation
// container members open tickets from, the info container, and the main
// message carrying the ticket-type controls.
type SystemService struct {
	sysconfig repository.ConfigRepository
	allocator *AllocatorService
	platform  platform.Client
	logger    *zap.Logger
}

// SystemDependencies bundles collaborators.
type SystemDependencies struct {
	ConfigRepo repository.ConfigRepository
	Allocator  *AllocatorService
	Platform   platform.Client
	Logger     *zap.Logger
}

// NewSystemService constructs the service.
func NewSystemService(deps SystemDependencies) *SystemService {
	return &SystemService{
		sysconfig: deps.ConfigRepo,
		allocator: deps.Allocator,
		platform:  deps.Platform,
		logger:    deps.Logger,
	}
}

// EnsureInitialized is the idempotent setup entry point: it no-ops when the
// persisted config still resolves on the live platform, and recreates any
// missing container, message or pool group otherwise. Returns the effective
// config and whether anything was (re)created.
func (s *SystemService) EnsureInitialized(ctx context.Context) (*domain.SystemConfig, bool, error) {
	cfg, err := s.sysconfig.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	if cfg == nil {
		cfg = &domain.SystemConfig{}
	}

	changed := false

	if ok, err := s.containerLive(ctx, cfg.CreationContainerID); err != nil {
		return nil, false, err
	} else if !ok {
		id, err := s.platform.CreateContainer(ctx, string(domain.ContainerKindChannel), "", "open-a-ticket", publicReadOnly())
		if err != nil {
			return nil, false, mapPlatformError(err, "creation container")
		}
		cfg.CreationContainerID = id
		cfg.MainMessageID = ""
		changed = true
	}

	if ok, err := s.messageLive(ctx, cfg.CreationContainerID, cfg.MainMessageID); err != nil {
		return nil, false, err
	} else if !ok {
		id, err := s.platform.SendMessage(ctx, cfg.CreationContainerID, "Open a support ticket by picking a request type.")
		if err != nil {
			return nil, false, mapPlatformError(err, "main message")
		}
		cfg.MainMessageID = id
		changed = true
	}

	if ok, err := s.containerLive(ctx, cfg.InfoContainerID); err != nil {
		return nil, false, err
	} else if !ok {
		id, err := s.platform.CreateContainer(ctx, string(domain.ContainerKindChannel), "", "ticket-log", nil)
		if err != nil {
			return nil, false, mapPlatformError(err, "info container")
		}
		cfg.InfoContainerID = id
		changed = true
	}

	// Both pools need at least one live group so the first ticket does not
	// pay group-creation latency.
	for _, kind := range []domain.PoolKind{domain.PoolKindOpen, domain.PoolKindClosed} {
		if _, err := s.allocator.AcquireDestination(ctx, kind); err != nil {
			return nil, false, err
		}
	}

	if changed {
		if err := s.sysconfig.Upsert(ctx, cfg); err != nil {
			return nil, false, err
		}
		s.logger.Info("system configuration refreshed",
			zap.String("creation_container", cfg.CreationContainerID),
			zap.String("info_container", cfg.InfoContainerID))
	}
	return cfg, changed, nil
}

func (s *SystemService) containerLive(ctx context.Context, containerID string) (bool, error) {
	if containerID == "" {
		return false, nil
	}
	return s.platform.ContainerExists(ctx, containerID)
}

func (s *SystemService) messageLive(ctx context.Context, containerID, messageID string) (bool, error) {
	if containerID == "" || messageID == "" {
		return false, nil
	}
	_, err := s.platform.FetchMessage(ctx, containerID, messageID)
	if errors.Is(err, platform.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func publicReadOnly() []platform.Overwrite {
	return []platform.Overwrite{
		{TargetID: "@everyone", IsRole: true, Read: true, Write: false},
	}
}
