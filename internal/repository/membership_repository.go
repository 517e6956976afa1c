package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// MembershipRepository encapsulates membership persistence.
type MembershipRepository interface {
	// Add inserts the row; returns false when the member already has one.
	Add(ctx context.Context, m *domain.Membership) (bool, error)
	ListByTicket(ctx context.Context, containerID string) ([]domain.Membership, error)
	// DeleteByTicket removes all rows for a ticket whose live container is
	// confirmed gone. Returns rows removed.
	DeleteByTicket(ctx context.Context, containerID string) (int, error)
}

type membershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository instantiates repository.
func NewMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepository{pool: pool}
}

func (r *membershipRepository) Add(ctx context.Context, m *domain.Membership) (bool, error) {
	const query = `
        INSERT INTO memberships (container_id, member_id, added_by, added_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (container_id, member_id) DO NOTHING`
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	cmd, err := r.pool.Exec(ctx, query, m.ContainerID, m.MemberID, m.AddedBy, m.AddedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *membershipRepository) ListByTicket(ctx context.Context, containerID string) ([]domain.Membership, error) {
	const query = `
        SELECT container_id, member_id, added_by, added_at
        FROM memberships WHERE container_id=$1 ORDER BY added_at`
	rows, err := r.pool.Query(ctx, query, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ContainerID, &m.MemberID, &m.AddedBy, &m.AddedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *membershipRepository) DeleteByTicket(ctx context.Context, containerID string) (int, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE container_id=$1`, containerID)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}
