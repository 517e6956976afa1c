package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/locking"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// AllocatorService packs ticket containers into fixed-capacity groups and
// grows the pool on demand.
type AllocatorService struct {
	pools    repository.PoolRepository
	platform platform.Client
	locker   locking.Locker
	capacity int
	logger   *zap.Logger
}

// AllocatorDependencies bundles collaborators for the allocator.
type AllocatorDependencies struct {
	PoolRepo repository.PoolRepository
	Platform platform.Client
	Locker   locking.Locker
	Capacity int
	Logger   *zap.Logger
}

// NewAllocatorService constructs the service.
func NewAllocatorService(deps AllocatorDependencies) *AllocatorService {
	return &AllocatorService{
		pools:    deps.PoolRepo,
		platform: deps.Platform,
		locker:   deps.Locker,
		capacity: deps.Capacity,
		logger:   deps.Logger,
	}
}

// AcquireDestination returns the id of a group with spare capacity for the
// given pool, creating and persisting a new group when every existing one is
// full. The scan prefers the lowest-positioned group so containers pack
// densely into the oldest groups. Capacity is compared strictly: a group
// holding `capacity` containers is full.
func (s *AllocatorService) AcquireDestination(ctx context.Context, kind domain.PoolKind) (string, error) {
	var groupID string
	err := s.locker.WithLock(ctx, "pool:"+string(kind), func(ctx context.Context) error {
		entries, _, err := s.healLocked(ctx, kind)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			count, err := s.platform.GroupChildCount(ctx, entry.GroupID)
			if errors.Is(err, platform.ErrNotFound) {
				// Vanished between the heal pass and now; drop it too.
				if removeErr := s.pools.Remove(ctx, kind, entry.GroupID); removeErr != nil {
					return removeErr
				}
				continue
			}
			if err != nil {
				return err
			}
			if count < s.capacity {
				groupID = entry.GroupID
				return nil
			}
		}

		name := fmt.Sprintf("tickets-%s-%d", kind, len(entries)+1)
		created, err := s.platform.CreateGroup(ctx, name)
		if err != nil {
			if errors.Is(err, platform.ErrForbidden) || errors.Is(err, platform.ErrRateLimited) {
				return apperrors.NewResourceExhausted("cannot create a new container group", err)
			}
			return err
		}
		if err := s.pools.Append(ctx, kind, created); err != nil {
			return err
		}
		s.logger.Info("created container group",
			zap.String("kind", string(kind)),
			zap.String("group_id", created))
		groupID = created
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

// Heal validates every group id in the pool against the live platform,
// dropping and persisting removal of ids that no longer resolve. Returns the
// number of groups dropped.
func (s *AllocatorService) Heal(ctx context.Context, kind domain.PoolKind) (int, error) {
	var dropped int
	err := s.locker.WithLock(ctx, "pool:"+string(kind), func(ctx context.Context) error {
		var err error
		_, dropped, err = s.healLocked(ctx, kind)
		return err
	})
	return dropped, err
}

func (s *AllocatorService) healLocked(ctx context.Context, kind domain.PoolKind) ([]domain.PoolEntry, int, error) {
	entries, err := s.pools.List(ctx, kind)
	if err != nil {
		return nil, 0, err
	}

	live := entries[:0]
	dropped := 0
	for _, entry := range entries {
		exists, err := s.platform.GroupExists(ctx, entry.GroupID)
		if err != nil {
			return nil, dropped, err
		}
		if !exists {
			if err := s.pools.Remove(ctx, kind, entry.GroupID); err != nil {
				return nil, dropped, err
			}
			s.logger.Warn("dropped stale group from pool",
				zap.String("kind", string(kind)),
				zap.String("group_id", entry.GroupID))
			dropped++
			continue
		}
		live = append(live, entry)
	}
	return live, dropped, nil
}
