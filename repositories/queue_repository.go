package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

// GameQueueRepository — единственная логическая операция внешнего хранилища
// очереди: upsert по ключу (event, game) либо (event, team, round). Пары
// никогда не дублируются, повторный вызов обновляет статус на месте.
type GameQueueRepository interface {
	UpsertGameItem(ctx context.Context, exec SQLExecutor, eventID, bracketGameID int, status models.QueueStatus) error
	UpsertSeedingItem(ctx context.Context, exec SQLExecutor, eventID, teamID, round int, status models.QueueStatus) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.GameQueueItem, error)
}

type postgresGameQueueRepository struct {
	db *sql.DB
}

func NewPostgresGameQueueRepository(db *sql.DB) GameQueueRepository {
	return &postgresGameQueueRepository{db: db}
}

func (r *postgresGameQueueRepository) UpsertGameItem(ctx context.Context, exec SQLExecutor, eventID, bracketGameID int, status models.QueueStatus) error {
	query := `
		INSERT INTO game_queue (event_id, bracket_game_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_id, bracket_game_id) WHERE bracket_game_id IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()`

	if _, err := exec.ExecContext(ctx, query, eventID, bracketGameID, status); err != nil {
		return fmt.Errorf("failed to upsert queue item for game %d: %w", bracketGameID, err)
	}
	return nil
}

func (r *postgresGameQueueRepository) UpsertSeedingItem(ctx context.Context, exec SQLExecutor, eventID, teamID, round int, status models.QueueStatus) error {
	query := `
		INSERT INTO game_queue (event_id, team_id, round, status, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (event_id, team_id, round) WHERE team_id IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()`

	if _, err := exec.ExecContext(ctx, query, eventID, teamID, round, status); err != nil {
		return fmt.Errorf("failed to upsert queue item for team %d round %d: %w", teamID, round, err)
	}
	return nil
}

func (r *postgresGameQueueRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.GameQueueItem, error) {
	query := `
		SELECT id, event_id, bracket_game_id, team_id, round, status, updated_at
		FROM game_queue
		WHERE event_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue for event %d: %w", eventID, err)
	}
	defer rows.Close()

	items := make([]*models.GameQueueItem, 0)
	for rows.Next() {
		var item models.GameQueueItem
		if scanErr := rows.Scan(
			&item.ID,
			&item.EventID,
			&item.BracketGameID,
			&item.TeamID,
			&item.Round,
			&item.Status,
			&item.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", scanErr)
		}
		items = append(items, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during queue rows iteration: %w", err)
	}
	return items, nil
}
