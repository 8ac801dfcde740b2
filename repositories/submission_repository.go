package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bracketlab/bracket-engine/models"
	"github.com/lib/pq"
)

var ErrSubmissionNotFound = errors.New("score submission not found")

const submissionColumns = `
	id, event_id, kind, team_id, round, bracket_game_id, winner_team_id,
	score1, score2, status, seeding_score_id, reviewed_by, reviewed_at, created_at`

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, submission *models.ScoreSubmission) error
	GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error)
	ListByIDsForEvent(ctx context.Context, eventID int, ids []int) ([]*models.ScoreSubmission, error)
	MarkAccepted(ctx context.Context, exec SQLExecutor, id int, reviewer string, reviewedAt time.Time) error
	MarkPending(ctx context.Context, exec SQLExecutor, id int) error
	SetSeedingScoreLink(ctx context.Context, exec SQLExecutor, id int, seedingScoreID *int) error
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, s *models.ScoreSubmission) error {
	query := `
		INSERT INTO score_submissions
			(event_id, kind, team_id, round, bracket_game_id, winner_team_id, score1, score2, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		s.EventID,
		s.Kind,
		s.TeamID,
		s.Round,
		s.BracketGameID,
		s.WinnerTeamID,
		s.Score1,
		s.Score2,
		s.Status,
	).Scan(&s.ID, &s.CreatedAt)
	return err
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id int) (*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM score_submissions WHERE id = $1`

	s := &models.ScoreSubmission{}
	err := scanSubmission(r.db.QueryRowContext(ctx, query, id), s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan submission by id %d: %w", id, err)
	}
	return s, nil
}

func (r *postgresSubmissionRepository) ListByIDsForEvent(ctx context.Context, eventID int, ids []int) ([]*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM score_submissions WHERE event_id = $1 AND id = ANY($2) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions for event %d: %w", eventID, err)
	}
	defer rows.Close()

	submissions := make([]*models.ScoreSubmission, 0)
	for rows.Next() {
		s := &models.ScoreSubmission{}
		if scanErr := scanSubmission(rows, s); scanErr != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", scanErr)
		}
		submissions = append(submissions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during submission rows iteration: %w", err)
	}
	return submissions, nil
}

func (r *postgresSubmissionRepository) MarkAccepted(ctx context.Context, exec SQLExecutor, id int, reviewer string, reviewedAt time.Time) error {
	query := `
		UPDATE score_submissions
		SET status = 'accepted', reviewed_by = $1, reviewed_at = $2
		WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, reviewer, reviewedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) MarkPending(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE score_submissions
		SET status = 'pending', reviewed_by = NULL, reviewed_at = NULL
		WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) SetSeedingScoreLink(ctx context.Context, exec SQLExecutor, id int, seedingScoreID *int) error {
	query := `UPDATE score_submissions SET seeding_score_id = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, seedingScoreID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func scanSubmission(row rowScanner, s *models.ScoreSubmission) error {
	return row.Scan(
		&s.ID,
		&s.EventID,
		&s.Kind,
		&s.TeamID,
		&s.Round,
		&s.BracketGameID,
		&s.WinnerTeamID,
		&s.Score1,
		&s.Score2,
		&s.Status,
		&s.SeedingScoreID,
		&s.ReviewedBy,
		&s.ReviewedAt,
		&s.CreatedAt,
	)
}
