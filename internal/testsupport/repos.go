package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// TicketStore is an in-memory repository.TicketRepository with the same
// conditional-update and transactional-create semantics as the SQL
// implementation.
type TicketStore struct {
	mu          sync.Mutex
	tickets     map[string]*domain.Ticket
	memberships *MembershipStore

	// CreateErr fails the create transaction before either row is written.
	CreateErr error
	// GetErr fails reads with a non-domain error, modelling a store outage.
	GetErr error
}

// NewTicketStore builds an empty store sharing the membership store that
// participates in create transactions.
func NewTicketStore(memberships *MembershipStore) *TicketStore {
	return &TicketStore{
		tickets:     make(map[string]*domain.Ticket),
		memberships: memberships,
	}
}

var _ repository.TicketRepository = (*TicketStore)(nil)

func (s *TicketStore) CreateWithNextNumber(ctx context.Context, ticket *domain.Ticket, creator *domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.Number = s.maxNumberLocked() + 1
	clone := *ticket
	s.tickets[ticket.ContainerID] = &clone
	if _, err := s.memberships.Add(ctx, creator); err != nil {
		// both rows or neither, like the SQL transaction
		delete(s.tickets, ticket.ContainerID)
		return err
	}
	return nil
}

// Seed inserts a ticket verbatim, bypassing number assignment. Used to model
// rows written before numbering existed.
func (s *TicketStore) Seed(ticket *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *ticket
	s.tickets[ticket.ContainerID] = &clone
}

func (s *TicketStore) GetByContainer(ctx context.Context, containerID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	ticket, ok := s.tickets[containerID]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	clone := *ticket
	return &clone, nil
}

func (s *TicketStore) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	return s.list(func(t *domain.Ticket) bool { return !t.Closed }), nil
}

func (s *TicketStore) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return s.list(func(t *domain.Ticket) bool { return true }), nil
}

func (s *TicketStore) MarkAccepted(ctx context.Context, containerID, actorID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[containerID]
	if !ok || ticket.Accepted || ticket.Closed {
		return false, nil
	}
	ticket.Accepted = true
	ticket.AcceptedBy = &actorID
	ticket.AcceptedAt = &at
	return true, nil
}

func (s *TicketStore) MarkClosed(ctx context.Context, containerID, actorID, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[containerID]
	if !ok || ticket.Closed {
		return false, nil
	}
	ticket.Closed = true
	ticket.ClosedBy = &actorID
	ticket.ClosedAt = &at
	ticket.CloseReason = &reason
	return true, nil
}

func (s *TicketStore) MarkExported(ctx context.Context, containerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[containerID]
	if !ok {
		return apperrors.NewNotFound("ticket", nil)
	}
	ticket.Exported = true
	return nil
}

func (s *TicketStore) AssignMissingNumbers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []*domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.Number == 0 {
			missing = append(missing, ticket)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].CreatedAt.Before(missing[j].CreatedAt)
	})

	next := s.maxNumberLocked()
	for _, ticket := range missing {
		next++
		ticket.Number = next
	}
	return len(missing), nil
}

func (s *TicketStore) Stats(ctx context.Context) (*domain.TicketStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.TicketStats{ByType: make(map[string]int64)}
	var latencySum time.Duration
	var accepted int64
	for _, ticket := range s.tickets {
		stats.ByType[ticket.Type]++
		switch {
		case ticket.Closed:
			stats.Closed++
		case ticket.Accepted:
			stats.Accepted++
		default:
			stats.Open++
		}
		if ticket.Accepted && ticket.AcceptedAt != nil {
			latencySum += ticket.AcceptedAt.Sub(ticket.CreatedAt)
			accepted++
		}
	}
	if accepted > 0 {
		stats.MeanAcceptLatency = latencySum / time.Duration(accepted)
	}
	return stats, nil
}

func (s *TicketStore) list(keep func(*domain.Ticket) bool) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if keep(ticket) {
			result = append(result, *ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result
}

func (s *TicketStore) maxNumberLocked() int64 {
	var max int64
	for _, ticket := range s.tickets {
		if ticket.Number > max {
			max = ticket.Number
		}
	}
	return max
}

// MembershipStore is an in-memory repository.MembershipRepository.
type MembershipStore struct {
	mu   sync.Mutex
	rows map[string]map[string]*domain.Membership

	// AddErr fails the next inserts, modelling a dropped connection.
	AddErr error
}

// NewMembershipStore builds an empty store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{rows: make(map[string]map[string]*domain.Membership)}
}

var _ repository.MembershipRepository = (*MembershipStore)(nil)

func (s *MembershipStore) Add(ctx context.Context, m *domain.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AddErr != nil {
		return false, s.AddErr
	}
	byMember, ok := s.rows[m.ContainerID]
	if !ok {
		byMember = make(map[string]*domain.Membership)
		s.rows[m.ContainerID] = byMember
	}
	if _, exists := byMember[m.MemberID]; exists {
		return false, nil
	}
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	clone := *m
	byMember[m.MemberID] = &clone
	return true, nil
}

func (s *MembershipStore) ListByTicket(ctx context.Context, containerID string) ([]domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Membership
	for _, m := range s.rows[containerID] {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AddedAt.Before(result[j].AddedAt) })
	return result, nil
}

func (s *MembershipStore) DeleteByTicket(ctx context.Context, containerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.rows[containerID])
	delete(s.rows, containerID)
	return removed, nil
}

// PoolStore is an in-memory repository.PoolRepository.
type PoolStore struct {
	mu      sync.Mutex
	entries map[domain.PoolKind][]domain.PoolEntry
}

// NewPoolStore builds an empty store.
func NewPoolStore() *PoolStore {
	return &PoolStore{entries: make(map[domain.PoolKind][]domain.PoolEntry)}
}

var _ repository.PoolRepository = (*PoolStore)(nil)

func (s *PoolStore) List(ctx context.Context, kind domain.PoolKind) ([]domain.PoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PoolEntry(nil), s.entries[kind]...), nil
}

func (s *PoolStore) Append(ctx context.Context, kind domain.PoolKind, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	position := 1
	if existing := s.entries[kind]; len(existing) > 0 {
		position = existing[len(existing)-1].Position + 1
	}
	s.entries[kind] = append(s.entries[kind], domain.PoolEntry{Kind: kind, GroupID: groupID, Position: position})
	return nil
}

func (s *PoolStore) Remove(ctx context.Context, kind domain.PoolKind, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[kind]
	kept := entries[:0]
	for _, entry := range entries {
		if entry.GroupID != groupID {
			kept = append(kept, entry)
		}
	}
	s.entries[kind] = kept
	return nil
}

// AdminStore is an in-memory repository.AdminRepository.
type AdminStore struct {
	mu      sync.Mutex
	entries map[string]map[string]domain.AdminEntry
}

// NewAdminStore builds an empty store.
func NewAdminStore() *AdminStore {
	return &AdminStore{entries: make(map[string]map[string]domain.AdminEntry)}
}

var _ repository.AdminRepository = (*AdminStore)(nil)

func (s *AdminStore) List(ctx context.Context, scope string) ([]domain.AdminEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AdminEntry
	for _, entry := range s.entries[scope] {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identifier < result[j].Identifier })
	return result, nil
}

func (s *AdminStore) Add(ctx context.Context, entry *domain.AdminEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.entries[entry.Scope]
	if !ok {
		byID = make(map[string]domain.AdminEntry)
		s.entries[entry.Scope] = byID
	}
	if _, exists := byID[entry.Identifier]; exists {
		return false, nil
	}
	byID[entry.Identifier] = *entry
	return true, nil
}

func (s *AdminStore) Remove(ctx context.Context, scope, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.entries[scope]
	if _, exists := byID[identifier]; !exists {
		return false, nil
	}
	delete(byID, identifier)
	return true, nil
}

func (s *AdminStore) RemoveFromTypeScopes(ctx context.Context, identifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for scope, byID := range s.entries {
		if scope == domain.AdminScopeGlobal {
			continue
		}
		if _, exists := byID[identifier]; exists {
			delete(byID, identifier)
			removed++
		}
	}
	return removed, nil
}

func (s *AdminStore) ExistsInScope(ctx context.Context, scope, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[scope][identifier]
	return exists, nil
}

// ConfigStore is an in-memory repository.ConfigRepository.
type ConfigStore struct {
	mu  sync.Mutex
	cfg *domain.SystemConfig
}

// NewConfigStore builds an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

var _ repository.ConfigRepository = (*ConfigStore)(nil)

func (s *ConfigStore) Get(ctx context.Context) (*domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, nil
	}
	clone := *s.cfg
	return &clone, nil
}

func (s *ConfigStore) Upsert(ctx context.Context, cfg *domain.SystemConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cfg
	s.cfg = &clone
	return nil
}
