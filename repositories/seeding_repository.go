package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

var ErrSeedingScoreNotFound = errors.New("seeding score not found")

type SeedingScoreRepository interface {
	GetByTeamRound(ctx context.Context, eventID, teamID, round int) (*models.SeedingScore, error)
	Upsert(ctx context.Context, exec SQLExecutor, score *models.SeedingScore) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresSeedingScoreRepository struct {
	db *sql.DB
}

func NewPostgresSeedingScoreRepository(db *sql.DB) SeedingScoreRepository {
	return &postgresSeedingScoreRepository{db: db}
}

func (r *postgresSeedingScoreRepository) GetByTeamRound(ctx context.Context, eventID, teamID, round int) (*models.SeedingScore, error) {
	query := `
		SELECT id, event_id, team_id, round, score, submission_id, created_at
		FROM seeding_scores
		WHERE event_id = $1 AND team_id = $2 AND round = $3`

	score := &models.SeedingScore{}
	err := r.db.QueryRowContext(ctx, query, eventID, teamID, round).Scan(
		&score.ID,
		&score.EventID,
		&score.TeamID,
		&score.Round,
		&score.Score,
		&score.SubmissionID,
		&score.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeedingScoreNotFound
		}
		return nil, fmt.Errorf("failed to scan seeding score (team %d, round %d): %w", teamID, round, err)
	}
	return score, nil
}

func (r *postgresSeedingScoreRepository) Upsert(ctx context.Context, exec SQLExecutor, score *models.SeedingScore) error {
	query := `
		INSERT INTO seeding_scores (event_id, team_id, round, score, submission_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, team_id, round) DO UPDATE SET
			score = EXCLUDED.score,
			submission_id = EXCLUDED.submission_id
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		score.EventID,
		score.TeamID,
		score.Round,
		score.Score,
		score.SubmissionID,
	).Scan(&score.ID, &score.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert seeding score (team %d, round %d): %w", score.TeamID, score.Round, err)
	}
	return nil
}

func (r *postgresSeedingScoreRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM seeding_scores WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeedingScoreNotFound)
}
