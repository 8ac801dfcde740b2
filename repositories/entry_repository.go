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
	ErrEntrySeedConflict = errors.New("seed position already taken in bracket")
	ErrEntryTeamInvalid  = errors.New("bracket entry team conflict or invalid")
)

// BracketEntryRepository хранит посев. Строки создаются один раз при
// создании сетки и дальше не изменяются.
type BracketEntryRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, entries []models.BracketEntry) error
	ListByBracket(ctx context.Context, bracketID int) ([]*models.BracketEntry, error)
}

type postgresBracketEntryRepository struct {
	db *sql.DB
}

func NewPostgresBracketEntryRepository(db *sql.DB) BracketEntryRepository {
	return &postgresBracketEntryRepository{db: db}
}

func (r *postgresBracketEntryRepository) CreateBatch(ctx context.Context, exec SQLExecutor, entries []models.BracketEntry) error {
	query := `
		INSERT INTO bracket_entries (bracket_id, seed_position, team_id, is_bye)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for i := range entries {
		entry := &entries[i]
		err := exec.QueryRowContext(ctx, query,
			entry.BracketID,
			entry.SeedPosition,
			entry.TeamID,
			entry.IsBye,
		).Scan(&entry.ID, &entry.CreatedAt)
		if err != nil {
			return r.handleEntryError(err)
		}
	}
	return nil
}

func (r *postgresBracketEntryRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.BracketEntry, error) {
	query := `
		SELECT id, bracket_id, seed_position, team_id, is_bye, created_at
		FROM bracket_entries
		WHERE bracket_id = $1
		ORDER BY seed_position ASC`

	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	entries := make([]*models.BracketEntry, 0)
	for rows.Next() {
		var e models.BracketEntry
		if scanErr := rows.Scan(
			&e.ID,
			&e.BracketID,
			&e.SeedPosition,
			&e.TeamID,
			&e.IsBye,
			&e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", scanErr)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entry rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresBracketEntryRepository) handleEntryError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "bracket_entries_bracket_id_seed_position_key":
			return ErrEntrySeedConflict
		case "bracket_entries_team_id_fkey":
			return ErrEntryTeamInvalid
		}
	}
	return err
}
