package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

var ErrTemplateNotFound = errors.New("bracket template not found for requested size")

type BracketTemplateRepository interface {
	UpsertForSize(ctx context.Context, exec SQLExecutor, size int, rows []models.BracketTemplate) error
	ListBySize(ctx context.Context, size int) ([]models.BracketTemplate, error)
}

type postgresBracketTemplateRepository struct {
	db *sql.DB
}

func NewPostgresBracketTemplateRepository(db *sql.DB) BracketTemplateRepository {
	return &postgresBracketTemplateRepository{db: db}
}

// UpsertForSize идемпотентно сохраняет шаблон размера: повторный вызов с
// теми же строками не меняет данные.
func (r *postgresBracketTemplateRepository) UpsertForSize(ctx context.Context, exec SQLExecutor, size int, rows []models.BracketTemplate) error {
	query := `
		INSERT INTO bracket_templates
			(bracket_size, game_number, round_name, round_number, side,
			 team1_source, team2_source,
			 winner_advances_to, winner_slot, loser_advances_to, loser_slot,
			 is_championship, is_grand_final, is_reset_game)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (bracket_size, game_number) DO UPDATE SET
			round_name = EXCLUDED.round_name,
			round_number = EXCLUDED.round_number,
			side = EXCLUDED.side,
			team1_source = EXCLUDED.team1_source,
			team2_source = EXCLUDED.team2_source,
			winner_advances_to = EXCLUDED.winner_advances_to,
			winner_slot = EXCLUDED.winner_slot,
			loser_advances_to = EXCLUDED.loser_advances_to,
			loser_slot = EXCLUDED.loser_slot,
			is_championship = EXCLUDED.is_championship,
			is_grand_final = EXCLUDED.is_grand_final,
			is_reset_game = EXCLUDED.is_reset_game`

	for i := range rows {
		row := &rows[i]
		_, err := exec.ExecContext(ctx, query,
			size,
			row.GameNumber,
			row.RoundName,
			row.RoundNumber,
			row.Side,
			row.Team1Source,
			row.Team2Source,
			row.WinnerAdvancesTo,
			row.WinnerSlot,
			row.LoserAdvancesTo,
			row.LoserSlot,
			row.IsChampionship,
			row.IsGrandFinal,
			row.IsResetGame,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert template row (size %d, game %d): %w", size, row.GameNumber, err)
		}
	}
	return nil
}

func (r *postgresBracketTemplateRepository) ListBySize(ctx context.Context, size int) ([]models.BracketTemplate, error) {
	query := `
		SELECT id, bracket_size, game_number, round_name, round_number, side,
		       team1_source, team2_source,
		       winner_advances_to, winner_slot, loser_advances_to, loser_slot,
		       is_championship, is_grand_final, is_reset_game
		FROM bracket_templates
		WHERE bracket_size = $1
		ORDER BY game_number ASC`

	rows, err := r.db.QueryContext(ctx, query, size)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates for size %d: %w", size, err)
	}
	defer rows.Close()

	templates := make([]models.BracketTemplate, 0)
	for rows.Next() {
		var t models.BracketTemplate
		if scanErr := rows.Scan(
			&t.ID,
			&t.BracketSize,
			&t.GameNumber,
			&t.RoundName,
			&t.RoundNumber,
			&t.Side,
			&t.Team1Source,
			&t.Team2Source,
			&t.WinnerAdvancesTo,
			&t.WinnerSlot,
			&t.LoserAdvancesTo,
			&t.LoserSlot,
			&t.IsChampionship,
			&t.IsGrandFinal,
			&t.IsResetGame,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", scanErr)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during template rows iteration: %w", err)
	}
	if len(templates) == 0 {
		return nil, ErrTemplateNotFound
	}
	return templates, nil
}
