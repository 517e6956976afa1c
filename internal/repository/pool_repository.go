package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// PoolRepository persists the category pools.
type PoolRepository interface {
	List(ctx context.Context, kind domain.PoolKind) ([]domain.PoolEntry, error)
	// Append adds a group at the end of the pool (position = max + 1).
	Append(ctx context.Context, kind domain.PoolKind, groupID string) error
	Remove(ctx context.Context, kind domain.PoolKind, groupID string) error
}

type poolRepository struct {
	pool *pgxpool.Pool
}

// NewPoolRepository instantiates repository.
func NewPoolRepository(pool *pgxpool.Pool) PoolRepository {
	return &poolRepository{pool: pool}
}

func (r *poolRepository) List(ctx context.Context, kind domain.PoolKind) ([]domain.PoolEntry, error) {
	const query = `
        SELECT kind, group_id, position FROM category_pools
        WHERE kind=$1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PoolEntry
	for rows.Next() {
		var entry domain.PoolEntry
		if err := rows.Scan(&entry.Kind, &entry.GroupID, &entry.Position); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *poolRepository) Append(ctx context.Context, kind domain.PoolKind, groupID string) error {
	const query = `
        INSERT INTO category_pools (kind, group_id, position)
        VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM category_pools WHERE kind=$1))`
	_, err := r.pool.Exec(ctx, query, kind, groupID)
	return err
}

func (r *poolRepository) Remove(ctx context.Context, kind domain.PoolKind, groupID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM category_pools WHERE kind=$1 AND group_id=$2`, kind, groupID)
	return err
}
