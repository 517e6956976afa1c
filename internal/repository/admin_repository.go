package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// AdminRepository persists admin-set entries.
type AdminRepository interface {
	List(ctx context.Context, scope string) ([]domain.AdminEntry, error)
	// Add inserts the entry; returns false when it already exists in scope.
	Add(ctx context.Context, entry *domain.AdminEntry) (bool, error)
	Remove(ctx context.Context, scope, identifier string) (bool, error)
	// RemoveFromTypeScopes deletes the identifier from every type scope,
	// preserving the exclusivity invariant when promoting to global.
	RemoveFromTypeScopes(ctx context.Context, identifier string) (int, error)
	ExistsInScope(ctx context.Context, scope, identifier string) (bool, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository instantiates repository.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

func (r *adminRepository) List(ctx context.Context, scope string) ([]domain.AdminEntry, error) {
	const query = `SELECT scope, identifier, kind FROM admin_sets WHERE scope=$1 ORDER BY identifier`
	rows, err := r.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminEntry
	for rows.Next() {
		var entry domain.AdminEntry
		if err := rows.Scan(&entry.Scope, &entry.Identifier, &entry.Kind); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *adminRepository) Add(ctx context.Context, entry *domain.AdminEntry) (bool, error) {
	const query = `
        INSERT INTO admin_sets (scope, identifier, kind) VALUES ($1,$2,$3)
        ON CONFLICT (scope, identifier) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, entry.Scope, entry.Identifier, entry.Kind)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *adminRepository) Remove(ctx context.Context, scope, identifier string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM admin_sets WHERE scope=$1 AND identifier=$2`, scope, identifier)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *adminRepository) RemoveFromTypeScopes(ctx context.Context, identifier string) (int, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM admin_sets WHERE identifier=$1 AND scope LIKE 'type:%'`, identifier)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *adminRepository) ExistsInScope(ctx context.Context, scope, identifier string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_sets WHERE scope=$1 AND identifier=$2)`,
		scope, identifier).Scan(&exists)
	return exists, err
}
