package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamEventInvalid = errors.New("team event conflict or invalid")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Team, error)
	ListByIDs(ctx context.Context, ids []int) ([]*models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (event_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, team.EventID, team.Name).Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "teams_event_id_fkey" {
			return ErrTeamEventInvalid
		}
		return err
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, event_id, name, created_at FROM teams WHERE id = $1`

	team := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&team.ID, &team.EventID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team by id %d: %w", id, err)
	}
	return team, nil
}

func (r *postgresTeamRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Team, error) {
	query := `SELECT id, event_id, name, created_at FROM teams WHERE event_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for event %d: %w", eventID, err)
	}
	defer rows.Close()
	return scanTeams(rows)
}

func (r *postgresTeamRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Team, error) {
	query := `SELECT id, event_id, name, created_at FROM teams WHERE id = ANY($1) ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query teams by ids: %w", err)
	}
	defer rows.Close()
	return scanTeams(rows)
}

func scanTeams(rows *sql.Rows) ([]*models.Team, error) {
	teams := make([]*models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team rows iteration: %w", err)
	}
	return teams, nil
}
