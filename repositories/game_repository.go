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
	ErrGameNotFound       = errors.New("bracket game not found")
	ErrGameNumberConflict = errors.New("game number already taken in bracket")
	ErrGameTeamInvalid    = errors.New("bracket game team conflict or invalid")
)

const gameColumns = `
	id, bracket_id, game_number, round_name, round_number, side,
	team1_id, team2_id, team1_source, team2_source,
	status, winner_id, loser_id, score1, score2,
	winner_advances_to, winner_slot, loser_advances_to, loser_slot,
	is_championship, is_grand_final, is_reset_game,
	created_at, completed_at`

// BracketGameRepository хранит игры сетки. Строки создаются один раз при
// создании сетки и дальше только обновляются на месте.
type BracketGameRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, games []*models.BracketGame) error
	GetByID(ctx context.Context, id int) (*models.BracketGame, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.BracketGame, error)
	Update(ctx context.Context, exec SQLExecutor, game *models.BracketGame) error
}

type postgresBracketGameRepository struct {
	db *sql.DB
}

func NewPostgresBracketGameRepository(db *sql.DB) BracketGameRepository {
	return &postgresBracketGameRepository{db: db}
}

func (r *postgresBracketGameRepository) CreateBatch(ctx context.Context, exec SQLExecutor, games []*models.BracketGame) error {
	query := `
		INSERT INTO bracket_games
			(bracket_id, game_number, round_name, round_number, side,
			 team1_id, team2_id, team1_source, team2_source, status,
			 winner_advances_to, winner_slot, loser_advances_to, loser_slot,
			 is_championship, is_grand_final, is_reset_game)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`

	for _, game := range games {
		err := exec.QueryRowContext(ctx, query,
			game.BracketID,
			game.GameNumber,
			game.RoundName,
			game.RoundNumber,
			game.Side,
			game.Team1ID,
			game.Team2ID,
			game.Team1Source,
			game.Team2Source,
			game.Status,
			game.WinnerAdvancesTo,
			game.WinnerSlot,
			game.LoserAdvancesTo,
			game.LoserSlot,
			game.IsChampionship,
			game.IsGrandFinal,
			game.IsResetGame,
		).Scan(&game.ID, &game.CreatedAt)
		if err != nil {
			return r.handleGameError(err)
		}
	}
	return nil
}

func (r *postgresBracketGameRepository) GetByID(ctx context.Context, id int) (*models.BracketGame, error) {
	query := `SELECT ` + gameColumns + ` FROM bracket_games WHERE id = $1`

	game := &models.BracketGame{}
	err := scanGame(r.db.QueryRowContext(ctx, query, id), game)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket game by id %d: %w", id, err)
	}
	return game, nil
}

func (r *postgresBracketGameRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.BracketGame, error) {
	query := `SELECT ` + gameColumns + ` FROM bracket_games WHERE bracket_id = $1 ORDER BY game_number ASC`

	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query games for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	games := make([]*models.BracketGame, 0)
	for rows.Next() {
		game := &models.BracketGame{}
		if scanErr := scanGame(rows, game); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket game row: %w", scanErr)
		}
		games = append(games, game)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during game rows iteration: %w", err)
	}
	return games, nil
}

// Update записывает все изменяемые поля игры. Структурные колонки
// (источники, рёбра продвижения, флаги) не трогаются.
func (r *postgresBracketGameRepository) Update(ctx context.Context, exec SQLExecutor, game *models.BracketGame) error {
	query := `
		UPDATE bracket_games
		SET team1_id = $1, team2_id = $2, status = $3,
		    winner_id = $4, loser_id = $5, score1 = $6, score2 = $7,
		    completed_at = $8
		WHERE id = $9`

	result, err := exec.ExecContext(ctx, query,
		game.Team1ID,
		game.Team2ID,
		game.Status,
		game.WinnerID,
		game.LoserID,
		game.Score1,
		game.Score2,
		game.CompletedAt,
		game.ID,
	)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner, game *models.BracketGame) error {
	return row.Scan(
		&game.ID,
		&game.BracketID,
		&game.GameNumber,
		&game.RoundName,
		&game.RoundNumber,
		&game.Side,
		&game.Team1ID,
		&game.Team2ID,
		&game.Team1Source,
		&game.Team2Source,
		&game.Status,
		&game.WinnerID,
		&game.LoserID,
		&game.Score1,
		&game.Score2,
		&game.WinnerAdvancesTo,
		&game.WinnerSlot,
		&game.LoserAdvancesTo,
		&game.LoserSlot,
		&game.IsChampionship,
		&game.IsGrandFinal,
		&game.IsResetGame,
		&game.CreatedAt,
		&game.CompletedAt,
	)
}

func (r *postgresBracketGameRepository) handleGameError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "bracket_games_bracket_id_game_number_key":
			return ErrGameNumberConflict
		case "bracket_games_team1_id_fkey", "bracket_games_team2_id_fkey",
			"bracket_games_winner_id_fkey", "bracket_games_loser_id_fkey":
			return ErrGameTeamInvalid
		}
	}
	return err
}
