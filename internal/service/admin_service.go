package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/platform"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// AdminService resolves the effective staff set for ticket types and
// maintains the two-level admin configuration.
type AdminService struct {
	admins   repository.AdminRepository
	platform platform.Client
	logger   *zap.Logger
}

// AdminDependencies bundles collaborators for the resolver.
type AdminDependencies struct {
	AdminRepo repository.AdminRepository
	Platform  platform.Client
	Logger    *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{
		admins:   deps.AdminRepo,
		platform: deps.Platform,
		logger:   deps.Logger,
	}
}

// EffectiveAdmins returns the union of the global set and the type-specific
// set. Role entries are returned as roles; they expand to members only at
// the point permissions are written.
func (s *AdminService) EffectiveAdmins(ctx context.Context, ticketType string) ([]domain.AdminEntry, error) {
	global, err := s.admins.List(ctx, domain.AdminScopeGlobal)
	if err != nil {
		return nil, err
	}
	typed, err := s.admins.List(ctx, domain.TypeScope(ticketType))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(global)+len(typed))
	union := make([]domain.AdminEntry, 0, len(global)+len(typed))
	for _, entry := range append(global, typed...) {
		if seen[entry.Identifier] {
			continue
		}
		seen[entry.Identifier] = true
		union = append(union, entry)
	}
	return union, nil
}

// IsAdmin reports whether the actor may act on tickets of the given type.
// Platform-native elevated privilege wins, then the global set, then the
// type-specific set when a type is given.
func (s *AdminService) IsAdmin(ctx context.Context, actorID, ticketType string) (bool, error) {
	elevated, err := s.platform.HasElevatedPrivilege(ctx, actorID)
	if err != nil {
		return false, err
	}
	if elevated {
		return true, nil
	}

	scopes := []string{domain.AdminScopeGlobal}
	if ticketType != "" {
		scopes = append(scopes, domain.TypeScope(ticketType))
	}
	for _, scope := range scopes {
		entries, err := s.admins.List(ctx, scope)
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			switch entry.Kind {
			case domain.IdentifierKindIndividual:
				if entry.Identifier == actorID {
					return true, nil
				}
			case domain.IdentifierKindRole:
				members, err := s.platform.RoleMembers(ctx, entry.Identifier)
				if errors.Is(err, platform.ErrNotFound) {
					continue
				}
				if err != nil {
					return false, err
				}
				for _, member := range members {
					if member == actorID {
						return true, nil
					}
				}
			}
		}
	}
	return false, nil
}

// AddToGlobal promotes an identifier to the global set, first removing it
// from every type-specific set so the exclusivity invariant holds.
func (s *AdminService) AddToGlobal(ctx context.Context, identifier string, kind domain.IdentifierKind) (bool, error) {
	removed, err := s.admins.RemoveFromTypeScopes(ctx, identifier)
	if err != nil {
		return false, err
	}
	if removed > 0 {
		s.logger.Info("identifier promoted out of type scopes",
			zap.String("identifier", identifier),
			zap.Int("scopes", removed))
	}
	return s.admins.Add(ctx, &domain.AdminEntry{
		Scope:      domain.AdminScopeGlobal,
		Identifier: identifier,
		Kind:       kind,
	})
}

// AddToType adds an identifier to a type-specific set. Identifiers already
// global are rejected.
func (s *AdminService) AddToType(ctx context.Context, ticketType, identifier string, kind domain.IdentifierKind) (bool, error) {
	global, err := s.admins.ExistsInScope(ctx, domain.AdminScopeGlobal, identifier)
	if err != nil {
		return false, err
	}
	if global {
		return false, apperrors.NewAlreadyInState("identifier already in the global admin set", map[string]any{
			"identifier": identifier,
		})
	}
	return s.admins.Add(ctx, &domain.AdminEntry{
		Scope:      domain.TypeScope(ticketType),
		Identifier: identifier,
		Kind:       kind,
	})
}

// Remove drops an identifier from a scope.
func (s *AdminService) Remove(ctx context.Context, scope, identifier string) (bool, error) {
	return s.admins.Remove(ctx, scope, identifier)
}

// List returns the entries of one scope.
func (s *AdminService) List(ctx context.Context, scope string) ([]domain.AdminEntry, error) {
	return s.admins.List(ctx, scope)
}

// TicketOverwrites builds a container permission overlay: the creator and
// each admin entry read/write, everyone else denied. With readOnly set the
// creator and prior members are downgraded to read while admins keep write.
func TicketOverwrites(entries []domain.AdminEntry, creatorID string, members []string, readOnly bool) []platform.Overwrite {
	overwrites := []platform.Overwrite{
		{TargetID: "@everyone", IsRole: true, Read: false, Write: false},
		{TargetID: creatorID, Read: true, Write: !readOnly},
	}
	for _, member := range members {
		if member == creatorID {
			continue
		}
		overwrites = append(overwrites, platform.Overwrite{TargetID: member, Read: true, Write: !readOnly})
	}
	for _, entry := range entries {
		overwrites = append(overwrites, platform.Overwrite{
			TargetID: entry.Identifier,
			IsRole:   entry.Kind == domain.IdentifierKindRole,
			Read:     true,
			Write:    true,
		})
	}
	return overwrites
}
