package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// ConfigRepository persists the singleton system configuration.
type ConfigRepository interface {
	// Get returns nil (no error) when setup has never run.
	Get(ctx context.Context) (*domain.SystemConfig, error)
	Upsert(ctx context.Context, cfg *domain.SystemConfig) error
}

type configRepository struct {
	pool *pgxpool.Pool
}

// NewConfigRepository instantiates repository.
func NewConfigRepository(pool *pgxpool.Pool) ConfigRepository {
	return &configRepository{pool: pool}
}

func (r *configRepository) Get(ctx context.Context) (*domain.SystemConfig, error) {
	const query = `
        SELECT creation_container_id, info_container_id, main_message_id
        FROM system_config WHERE singleton`
	var cfg domain.SystemConfig
	err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.CreationContainerID,
		&cfg.InfoContainerID,
		&cfg.MainMessageID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) Upsert(ctx context.Context, cfg *domain.SystemConfig) error {
	const query = `
        INSERT INTO system_config (singleton, creation_container_id, info_container_id, main_message_id)
        VALUES (TRUE, $1, $2, $3)
        ON CONFLICT (singleton) DO UPDATE SET
            creation_container_id=EXCLUDED.creation_container_id,
            info_container_id=EXCLUDED.info_container_id,
            main_message_id=EXCLUDED.main_message_id`
	_, err := r.pool.Exec(ctx, query, cfg.CreationContainerID, cfg.InfoContainerID, cfg.MainMessageID)
	return err
}
