package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/config"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/locking"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// TicketService runs the ticket lifecycle state machine:
// Open/Unaccepted -> Open/Accepted -> Closed, with a direct unaccepted close
// permitted. No transition leaves Closed.
type TicketService struct {
	tickets     repository.TicketRepository
	memberships repository.MembershipRepository
	allocator   *AllocatorService
	admins      *AdminService
	platform    platform.Client
	locker      locking.Locker
	dispatcher  events.Dispatcher
	types       config.TicketsConfig
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the lifecycle.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MembershipRepo repository.MembershipRepository
	Allocator      *AllocatorService
	Admins         *AdminService
	Platform       platform.Client
	Locker         locking.Locker
	Dispatcher     events.Dispatcher
	Types          config.TicketsConfig
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		memberships: deps.MembershipRepo,
		allocator:   deps.Allocator,
		admins:      deps.Admins,
		platform:    deps.Platform,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		types:       deps.Types,
		logger:      deps.Logger,
	}
}

// Create opens a ticket of the given type for the creator. Allocation and
// container creation both succeed before anything is persisted, so a
// ResourceExhausted or platform failure leaves no half-written rows.
func (s *TicketService) Create(ctx context.Context, typeName, creatorID string) (*domain.Ticket, error) {
	ticketType, ok := s.types.Type(typeName)
	if !ok {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": typeName})
	}

	admins, err := s.admins.EffectiveAdmins(ctx, typeName)
	if err != nil {
		return nil, err
	}

	groupID, err := s.allocator.AcquireDestination(ctx, domain.PoolKindOpen)
	if err != nil {
		return nil, err
	}

	overwrites := TicketOverwrites(admins, creatorID, nil, false)
	name := fmt.Sprintf("%s-%s", typeName, creatorID)
	containerID, err := s.platform.CreateContainer(ctx, ticketType.ContainerKind, groupID, name, overwrites)
	if err != nil {
		return nil, mapPlatformError(err, "ticket container")
	}

	ticket := &domain.Ticket{
		ContainerID: containerID,
		Type:        typeName,
		CreatorID:   creatorID,
		CreatedAt:   time.Now(),
	}
	creator := &domain.Membership{
		ContainerID: containerID,
		MemberID:    creatorID,
		AddedBy:     creatorID,
	}
	// Number assignment recomputes from current store state inside the
	// insert; the lock serializes racing creations on stores without
	// serializable isolation. The creator membership rides the same
	// transaction, so a failure leaves neither row behind.
	err = s.locker.WithLock(ctx, "ticket-number", func(ctx context.Context) error {
		return s.tickets.CreateWithNextNumber(ctx, ticket, creator)
	})
	if err != nil {
		return nil, err
	}

	if err := s.attachControls(ctx, ticket); err != nil {
		s.logger.Warn("could not attach ticket controls",
			zap.String("container_id", containerID),
			zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: containerID,
		ActorID:  creatorID,
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			TicketType: typeName,
			CreatorID:  creatorID,
			GroupID:    groupID,
		},
	})
	s.logger.Info("ticket created",
		zap.Int64("number", ticket.Number),
		zap.String("type", typeName),
		zap.String("container_id", containerID))
	return ticket, nil
}

// Accept records the acceptor exactly once. The second of two racing accepts
// observes the already-set flag and returns false with no mutation.
func (s *TicketService) Accept(ctx context.Context, containerID, actorID string) (bool, error) {
	ticket, err := s.get(ctx, containerID)
	if err != nil {
		return false, err
	}
	if ticket.Closed {
		return false, apperrors.NewAlreadyInState("ticket is closed", nil)
	}

	changed, err := s.tickets.MarkAccepted(ctx, containerID, actorID, time.Now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	ticket.Accepted = true
	if err := s.attachControls(ctx, ticket); err != nil {
		s.logger.Warn("could not refresh ticket controls",
			zap.String("container_id", containerID),
			zap.Error(err))
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAccepted,
		TicketID: containerID,
		ActorID:  actorID,
		Payload: events.TicketAcceptedPayload{
			Number:     ticket.Number,
			AcceptedBy: actorID,
		},
	})
	return true, nil
}

// AddMember grants a member access to the ticket's container. Returns false
// when the member already holds a membership row.
func (s *TicketService) AddMember(ctx context.Context, containerID, memberID, actorID string) (bool, error) {
	ticket, err := s.get(ctx, containerID)
	if err != nil {
		return false, err
	}
	if ticket.Closed {
		return false, apperrors.NewAlreadyInState("ticket is closed", nil)
	}

	added, err := s.memberships.Add(ctx, &domain.Membership{
		ContainerID: containerID,
		MemberID:    memberID,
		AddedBy:     actorID,
	})
	if err != nil {
		return false, err
	}
	if !added {
		return false, nil
	}

	if err := s.platform.GrantAccess(ctx, containerID, memberID); err != nil {
		return true, mapPlatformError(err, "container access grant")
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketMemberAdded,
		TicketID: containerID,
		ActorID:  actorID,
		Payload: events.TicketMemberAddedPayload{
			MemberID: memberID,
			AddedBy:  actorID,
		},
	})
	return true, nil
}

// Close terminates the ticket: the store flip is the commit point, after
// which the container is archived into the closed pool and its overlay
// rewritten read-only for the creator and members. Archival failures are
// logged, not surfaced; recovery repairs them later.
func (s *TicketService) Close(ctx context.Context, containerID, actorID, reason string) (bool, error) {
	ticket, err := s.get(ctx, containerID)
	if err != nil {
		return false, err
	}

	changed, err := s.tickets.MarkClosed(ctx, containerID, actorID, reason, time.Now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	ticket.Closed = true

	if err := s.archive(ctx, ticket); err != nil {
		s.logger.Warn("ticket archival incomplete",
			zap.String("container_id", containerID),
			zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: containerID,
		ActorID:  actorID,
		Payload: events.TicketClosedPayload{
			Number:   ticket.Number,
			ClosedBy: actorID,
			Reason:   reason,
		},
	})
	s.logger.Info("ticket closed",
		zap.Int64("number", ticket.Number),
		zap.String("reason", reason))
	return true, nil
}

// Get returns one ticket with its membership log.
func (s *TicketService) Get(ctx context.Context, containerID string) (*domain.Ticket, []domain.Membership, error) {
	ticket, err := s.get(ctx, containerID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.memberships.ListByTicket(ctx, containerID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, members, nil
}

// List returns all tickets.
func (s *TicketService) List(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListAll(ctx)
}

// Stats aggregates counts by state and type plus mean accept latency.
func (s *TicketService) Stats(ctx context.Context) (*domain.TicketStats, error) {
	return s.tickets.Stats(ctx)
}

// EffectiveAdmins exposes the resolver for callers holding only the
// lifecycle service.
func (s *TicketService) EffectiveAdmins(ctx context.Context, typeName string) ([]domain.AdminEntry, error) {
	return s.admins.EffectiveAdmins(ctx, typeName)
}

func (s *TicketService) archive(ctx context.Context, ticket *domain.Ticket) error {
	groupID, err := s.allocator.AcquireDestination(ctx, domain.PoolKindClosed)
	if err != nil {
		return err
	}
	if err := s.platform.MoveContainer(ctx, ticket.ContainerID, groupID); err != nil {
		return err
	}

	members, err := s.memberships.ListByTicket(ctx, ticket.ContainerID)
	if err != nil {
		return err
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.MemberID)
	}
	admins, err := s.admins.EffectiveAdmins(ctx, ticket.Type)
	if err != nil {
		return err
	}
	overwrites := TicketOverwrites(admins, ticket.CreatorID, memberIDs, true)
	if err := s.platform.SetOverwrites(ctx, ticket.ContainerID, overwrites); err != nil {
		return err
	}
	return s.attachControls(ctx, ticket)
}

// attachControls posts the ticket's control message with affordances
// matching the persisted flags, so the interactive state is always
// rebuildable from the store alone.
func (s *TicketService) attachControls(ctx context.Context, ticket *domain.Ticket) error {
	content := fmt.Sprintf("Ticket #%d (%s), state: %s", ticket.Number, ticket.Type, ticket.State())
	messageID, err := s.platform.SendMessage(ctx, ticket.ContainerID, content)
	if err != nil {
		return err
	}
	return s.platform.EditMessageControls(ctx, ticket.ContainerID, messageID, platform.Controls{
		AcceptEnabled: !ticket.Accepted && !ticket.Closed,
		CloseEnabled:  !ticket.Closed,
	})
}

// get distinguishes a missing row from a store failure: only the former
// surfaces as NOT_FOUND, anything else is internal.
func (s *TicketService) get(ctx context.Context, containerID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByContainer(ctx, containerID)
	if err != nil {
		if apperrors.IsCode(err, "NOT_FOUND") {
			return nil, err
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapPlatformError(err error, resource string) error {
	switch {
	case errors.Is(err, platform.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, platform.ErrForbidden):
		return apperrors.NewForbidden("missing platform permission for " + resource)
	case errors.Is(err, platform.ErrRateLimited):
		return apperrors.NewRateLimited("platform rate limit hit on " + resource)
	default:
		return apperrors.NewInternalError(err)
	}
}
