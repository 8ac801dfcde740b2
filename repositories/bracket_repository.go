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
	ErrBracketNotFound     = errors.New("bracket not found")
	ErrBracketEventInvalid = errors.New("bracket event conflict or invalid")
)

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Bracket, error)
	ListActive(ctx context.Context) ([]*models.Bracket, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.BracketStatus) error
	SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error {
	query := `
		INSERT INTO brackets (event_id, name, size, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		bracket.EventID,
		bracket.Name,
		bracket.Size,
		bracket.Status,
	).Scan(&bracket.ID, &bracket.CreatedAt)

	return r.handleBracketError(err)
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	query := `
		SELECT id, event_id, name, size, status, winner_team_id, created_at
		FROM brackets
		WHERE id = $1`

	bracket := &models.Bracket{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&bracket.ID,
		&bracket.EventID,
		&bracket.Name,
		&bracket.Size,
		&bracket.Status,
		&bracket.WinnerTeamID,
		&bracket.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket by id %d: %w", id, err)
	}
	return bracket, nil
}

func (r *postgresBracketRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Bracket, error) {
	query := `
		SELECT id, event_id, name, size, status, winner_team_id, created_at
		FROM brackets
		WHERE event_id = $1
		ORDER BY id ASC`
	return r.list(ctx, query, eventID)
}

func (r *postgresBracketRepository) ListActive(ctx context.Context) ([]*models.Bracket, error) {
	query := `
		SELECT id, event_id, name, size, status, winner_team_id, created_at
		FROM brackets
		WHERE status = 'active'
		ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *postgresBracketRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Bracket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets: %w", err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		var b models.Bracket
		if scanErr := rows.Scan(
			&b.ID,
			&b.EventID,
			&b.Name,
			&b.Size,
			&b.Status,
			&b.WinnerTeamID,
			&b.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket row: %w", scanErr)
		}
		brackets = append(brackets, &b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket rows iteration: %w", err)
	}
	return brackets, nil
}

func (r *postgresBracketRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.BracketStatus) error {
	query := `UPDATE brackets SET status = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleBracketError(err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error {
	query := `UPDATE brackets SET winner_team_id = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, winnerTeamID, id)
	if err != nil {
		return r.handleBracketError(err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) handleBracketError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "brackets_event_id_fkey":
			return ErrBracketEventInvalid
		}
	}
	return err
}
