package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/observability"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
)

// FanOutOp selects the per-recipient operation of a fan-out.
type FanOutOp string

const (
	// OpGrantAccess grants each recipient read/write on a container.
	OpGrantAccess FanOutOp = "grant_access"
	// OpNotify delivers a private notification to each recipient.
	OpNotify FanOutOp = "notify"
)

// FanOutService dispatches one operation to many recipients in small paced
// batches so a single ticket event cannot trip the platform's rate limits.
type FanOutService struct {
	platform platform.Client
	cfg      config.FanOutConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// FanOutDependencies bundles collaborators for the engine.
type FanOutDependencies struct {
	Platform platform.Client
	Config   config.FanOutConfig
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewFanOutService constructs the engine.
func NewFanOutService(deps FanOutDependencies) *FanOutService {
	cfg := deps.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = 100
	}
	return &FanOutService{
		platform: deps.Platform,
		cfg:      cfg,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Outcome reports a completed fan-out. A partial failure never aborts the
// remaining recipients; Failed lists the ones given up on.
type Outcome struct {
	Succeeded []string
	Failed    []string
}

// FanOut expands role recipients to their current members, caps the total
// recipient count, and runs the operation in batches with a pause between
// them. A rate-limited operation is retried exactly once after a backoff;
// any second failure is recorded per recipient.
func (s *FanOutService) FanOut(ctx context.Context, op FanOutOp, containerID, content string, recipients []domain.AdminEntry) Outcome {
	members := s.expand(ctx, recipients)

	outcome := Outcome{}
	for i, member := range members {
		if i > 0 && i%s.cfg.BatchSize == 0 {
			if !s.pause(ctx, s.cfg.BatchPause) {
				outcome.Failed = append(outcome.Failed, members[i:]...)
				break
			}
		}

		if err := s.applyOnce(ctx, op, containerID, content, member); err == nil {
			outcome.Succeeded = append(outcome.Succeeded, member)
			continue
		} else if !errors.Is(err, platform.ErrRateLimited) {
			s.logger.Warn("fan-out operation failed",
				zap.String("op", string(op)),
				zap.String("recipient", member),
				zap.Error(err))
			outcome.Failed = append(outcome.Failed, member)
			continue
		}

		// Rate limited: back off once and retry the single failed operation.
		if !s.pause(ctx, s.cfg.RetryBackoff) {
			outcome.Failed = append(outcome.Failed, members[i:]...)
			break
		}
		if err := s.applyOnce(ctx, op, containerID, content, member); err != nil {
			s.logger.Warn("fan-out retry failed",
				zap.String("op", string(op)),
				zap.String("recipient", member),
				zap.Error(err))
			outcome.Failed = append(outcome.Failed, member)
			continue
		}
		outcome.Succeeded = append(outcome.Succeeded, member)
	}

	s.metrics.RecordFanOut(len(outcome.Succeeded), len(outcome.Failed))
	return outcome
}

func (s *FanOutService) applyOnce(ctx context.Context, op FanOutOp, containerID, content, member string) error {
	switch op {
	case OpGrantAccess:
		return s.platform.GrantAccess(ctx, containerID, member)
	case OpNotify:
		return s.platform.DirectMessage(ctx, member, content)
	default:
		return errors.New("unknown fan-out operation")
	}
}

// expand resolves role entries to their current member lists, deduplicates,
// and bounds the result at the configured maximum.
func (s *FanOutService) expand(ctx context.Context, recipients []domain.AdminEntry) []string {
	seen := make(map[string]bool)
	var members []string

	add := func(id string) bool {
		if seen[id] {
			return true
		}
		if len(members) >= s.cfg.MaxRecipients {
			return false
		}
		seen[id] = true
		members = append(members, id)
		return true
	}

	for _, recipient := range recipients {
		if recipient.Kind == domain.IdentifierKindIndividual {
			if !add(recipient.Identifier) {
				break
			}
			continue
		}
		roleMembers, err := s.platform.RoleMembers(ctx, recipient.Identifier)
		if err != nil {
			s.logger.Warn("role expansion failed",
				zap.String("role", recipient.Identifier),
				zap.Error(err))
			continue
		}
		capped := false
		for _, member := range roleMembers {
			if !add(member) {
				capped = true
				break
			}
		}
		if capped {
			s.logger.Warn("fan-out recipient cap reached",
				zap.Int("max", s.cfg.MaxRecipients))
			break
		}
	}
	return members
}

func (s *FanOutService) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
