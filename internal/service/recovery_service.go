package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
)

// CloseReasonRecovered marks tickets the recovery pass closed because their
// live container was gone.
const CloseReasonRecovered = "container removed while offline"

// RecoveryService reconciles persisted state with the live platform. It runs
// once at startup before traffic is accepted, and again on demand via the
// operator surface.
type RecoveryService struct {
	tickets     repository.TicketRepository
	memberships repository.MembershipRepository
	system      *SystemService
	allocator   *AllocatorService
	platform    platform.Client
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// RecoveryDependencies bundles collaborators.
type RecoveryDependencies struct {
	TicketRepo     repository.TicketRepository
	MembershipRepo repository.MembershipRepository
	System         *SystemService
	Allocator      *AllocatorService
	Platform       platform.Client
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewRecoveryService constructs the service.
func NewRecoveryService(deps RecoveryDependencies) *RecoveryService {
	return &RecoveryService{
		tickets:     deps.TicketRepo,
		memberships: deps.MembershipRepo,
		system:      deps.System,
		allocator:   deps.Allocator,
		platform:    deps.Platform,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// Report summarizes one recovery pass. A second pass with no intervening
// platform changes reports zero mutations.
type Report struct {
	ConfigRepaired  bool
	GroupsDropped   int
	TicketsChecked  int
	TicketsReclosed int
	NumbersRepaired int
}

// Run executes the reconciliation steps in order. Failures in one ticket's
// recovery are logged and never abort recovery of the others.
func (s *RecoveryService) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	_, changed, err := s.system.EnsureInitialized(ctx)
	if err != nil {
		return nil, err
	}
	report.ConfigRepaired = changed

	for _, kind := range []domain.PoolKind{domain.PoolKindOpen, domain.PoolKindClosed} {
		dropped, err := s.allocator.Heal(ctx, kind)
		if err != nil {
			return nil, err
		}
		report.GroupsDropped += dropped
	}

	open, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.TicketsChecked++
		if s.recoverTicket(ctx, &open[i]) {
			report.TicketsReclosed++
		}
	}

	repaired, err := s.tickets.AssignMissingNumbers(ctx)
	if err != nil {
		return nil, err
	}
	report.NumbersRepaired = repaired

	s.publish(ctx, report)
	s.logger.Info("recovery completed",
		zap.Int("tickets_checked", report.TicketsChecked),
		zap.Int("tickets_reclosed", report.TicketsReclosed),
		zap.Int("groups_dropped", report.GroupsDropped),
		zap.Int("numbers_repaired", report.NumbersRepaired))
	return report, nil
}

// recoverTicket reconciles one non-closed ticket; reports whether it was
// closed because its container is gone.
func (s *RecoveryService) recoverTicket(ctx context.Context, ticket *domain.Ticket) bool {
	exists, err := s.platform.ContainerExists(ctx, ticket.ContainerID)
	if err != nil {
		s.logger.Warn("could not check ticket container",
			zap.String("container_id", ticket.ContainerID),
			zap.Error(err))
		return false
	}

	if !exists {
		if _, err := s.tickets.MarkClosed(ctx, ticket.ContainerID, "system", CloseReasonRecovered, time.Now()); err != nil {
			s.logger.Warn("could not close orphaned ticket",
				zap.String("container_id", ticket.ContainerID),
				zap.Error(err))
			return false
		}
		if _, err := s.memberships.DeleteByTicket(ctx, ticket.ContainerID); err != nil {
			s.logger.Warn("could not prune orphaned memberships",
				zap.String("container_id", ticket.ContainerID),
				zap.Error(err))
		}
		s.logger.Info("closed orphaned ticket",
			zap.Int64("number", ticket.Number),
			zap.String("container_id", ticket.ContainerID))
		return true
	}

	// Container is live: reattach controls consistent with the persisted
	// flags. An accepted ticket comes back with accept disabled. The last
	// bot message is reused when present so a repeated recovery pass does
	// not grow the container.
	messageID, found, err := s.controlMessageID(ctx, ticket.ContainerID)
	if err == nil && !found {
		messageID, err = s.platform.SendMessage(ctx, ticket.ContainerID, "Ticket controls restored after restart.")
	}
	if err == nil {
		err = s.platform.EditMessageControls(ctx, ticket.ContainerID, messageID, platform.Controls{
			AcceptEnabled: !ticket.Accepted,
			CloseEnabled:  true,
		})
	}
	if err != nil {
		s.logger.Warn("could not reattach ticket controls",
			zap.String("container_id", ticket.ContainerID),
			zap.Error(err))
	}
	return false
}

// controlMessageID finds the most recent bot-authored message in the
// container, the one carrying the interactive controls.
func (s *RecoveryService) controlMessageID(ctx context.Context, containerID string) (string, bool, error) {
	msgs, err := s.platform.ContainerMessages(ctx, containerID, 50)
	if err != nil {
		return "", false, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsOwn {
			return msgs[i].ID, true, nil
		}
	}
	return "", false, nil
}

func (s *RecoveryService) publish(ctx context.Context, report *Report) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRecoveryCompleted,
		Timestamp: time.Now(),
		Payload: events.RecoveryCompletedPayload{
			TicketsChecked:  report.TicketsChecked,
			TicketsReclosed: report.TicketsReclosed,
			GroupsDropped:   report.GroupsDropped,
			NumbersRepaired: report.NumbersRepaired,
		},
	})
}
