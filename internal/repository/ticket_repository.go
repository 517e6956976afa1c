package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// CreateWithNextNumber inserts the ticket and its creator membership in
	// one transaction, assigning the next display number inside the insert
	// so concurrent creations never reuse one. A failure on either row
	// leaves neither behind.
	CreateWithNextNumber(ctx context.Context, ticket *domain.Ticket, creator *domain.Membership) error
	GetByContainer(ctx context.Context, containerID string) (*domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	// MarkAccepted flips the accepted flag; returns false when the ticket
	// was already accepted or closed (no row mutated).
	MarkAccepted(ctx context.Context, containerID, actorID string, at time.Time) (bool, error)
	// MarkClosed flips the closed flag; returns false when already closed.
	MarkClosed(ctx context.Context, containerID, actorID, reason string, at time.Time) (bool, error)
	MarkExported(ctx context.Context, containerID string) error
	// AssignMissingNumbers numbers rows with no display number, sequentially
	// above the current maximum in creation order. Returns rows repaired.
	AssignMissingNumbers(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// number is NULL for rows written before numbering existed; recovery assigns
// them. Scans coalesce to 0 so callers see "missing" uniformly.
const ticketColumns = `container_id, COALESCE(number, 0), type, creator_id, accepted_by, accepted_at,
       closed_by, closed_at, close_reason, accepted, closed, exported, created_at`

func (r *ticketRepository) CreateWithNextNumber(ctx context.Context, ticket *domain.Ticket, creator *domain.Membership) error {
	const insertTicket = `
        INSERT INTO tickets (container_id, number, type, creator_id, created_at)
        VALUES ($1, (SELECT COALESCE(MAX(number), 0) + 1 FROM tickets), $2, $3, $4)
        RETURNING number`
	const insertCreator = `
        INSERT INTO memberships (container_id, member_id, added_by, added_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (container_id, member_id) DO NOTHING`
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	if creator.AddedAt.IsZero() {
		creator.AddedAt = ticket.CreatedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, insertTicket,
		ticket.ContainerID,
		ticket.Type,
		ticket.CreatorID,
		ticket.CreatedAt,
	).Scan(&ticket.Number); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertCreator,
		creator.ContainerID,
		creator.MemberID,
		creator.AddedBy,
		creator.AddedAt,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByContainer(ctx context.Context, containerID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE container_id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, containerID).Scan(
		&ticket.ContainerID,
		&ticket.Number,
		&ticket.Type,
		&ticket.CreatorID,
		&ticket.AcceptedBy,
		&ticket.AcceptedAt,
		&ticket.ClosedBy,
		&ticket.ClosedAt,
		&ticket.CloseReason,
		&ticket.Accepted,
		&ticket.Closed,
		&ticket.Exported,
		&ticket.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"container_id": containerID})
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE NOT closed ORDER BY number`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY number`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MarkAccepted(ctx context.Context, containerID, actorID string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET accepted=TRUE, accepted_by=$1, accepted_at=$2
        WHERE container_id=$3 AND NOT accepted AND NOT closed`
	cmd, err := r.pool.Exec(ctx, query, actorID, at, containerID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) MarkClosed(ctx context.Context, containerID, actorID, reason string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET closed=TRUE, closed_by=$1, closed_at=$2, close_reason=$3
        WHERE container_id=$4 AND NOT closed`
	cmd, err := r.pool.Exec(ctx, query, actorID, at, reason, containerID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) MarkExported(ctx context.Context, containerID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET exported=TRUE WHERE container_id=$1`, containerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("ticket", map[string]any{"container_id": containerID})
	}
	return nil
}

func (r *ticketRepository) AssignMissingNumbers(ctx context.Context) (int, error) {
	const query = `
        WITH numbered AS (
            SELECT container_id,
                   (SELECT COALESCE(MAX(number), 0) FROM tickets) +
                   ROW_NUMBER() OVER (ORDER BY created_at) AS next_number
            FROM tickets WHERE number IS NULL
        )
        UPDATE tickets SET number = numbered.next_number
        FROM numbered WHERE tickets.container_id = numbered.container_id`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *ticketRepository) Stats(ctx context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{ByType: make(map[string]int64)}

	const counts = `
        SELECT COUNT(*) FILTER (WHERE NOT accepted AND NOT closed),
               COUNT(*) FILTER (WHERE accepted AND NOT closed),
               COUNT(*) FILTER (WHERE closed),
               COALESCE(EXTRACT(EPOCH FROM AVG(accepted_at - created_at) FILTER (WHERE accepted)), 0)
        FROM tickets`
	var meanSeconds float64
	if err := r.pool.QueryRow(ctx, counts).Scan(&stats.Open, &stats.Accepted, &stats.Closed, &meanSeconds); err != nil {
		return nil, err
	}
	stats.MeanAcceptLatency = time.Duration(meanSeconds * float64(time.Second))

	rows, err := r.pool.Query(ctx, `SELECT type, COUNT(*) FROM tickets GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketType string
		var count int64
		if err := rows.Scan(&ticketType, &count); err != nil {
			return nil, err
		}
		stats.ByType[ticketType] = count
	}
	return stats, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ContainerID,
			&ticket.Number,
			&ticket.Type,
			&ticket.CreatorID,
			&ticket.AcceptedBy,
			&ticket.AcceptedAt,
			&ticket.ClosedBy,
			&ticket.ClosedAt,
			&ticket.CloseReason,
			&ticket.Accepted,
			&ticket.Closed,
			&ticket.Exported,
			&ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
