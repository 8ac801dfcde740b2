package models

import "time"

// GameStatus представляет статусы игры сетки, соответствующие ENUM в БД.
type GameStatus string

const (
	GameStatusPending    GameStatus = "pending"
	GameStatusReady      GameStatus = "ready"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusBye        GameStatus = "bye"
)

// BracketGame — одна игра внутри конкретной сетки. Строки создаются один
// раз при создании сетки и дальше только обновляются, никогда не удаляются.
type BracketGame struct {
	ID          int    `json:"id" db:"id"`
	BracketID   int    `json:"bracket_id" db:"bracket_id"`
	GameNumber  int    `json:"game_number" db:"game_number"`
	RoundName   string `json:"round_name" db:"round_name"`
	RoundNumber int    `json:"round_number" db:"round_number"`
	Side        Side   `json:"side" db:"side"`

	Team1ID     *int   `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID     *int   `json:"team2_id,omitempty" db:"team2_id"`
	Team1Source string `json:"team1_source" db:"team1_source"`
	Team2Source string `json:"team2_source" db:"team2_source"`

	Status   GameStatus `json:"status" db:"status"`
	WinnerID *int       `json:"winner_id,omitempty" db:"winner_id"`
	LoserID  *int       `json:"loser_id,omitempty" db:"loser_id"`
	Score1   *int       `json:"score1,omitempty" db:"score1"`
	Score2   *int       `json:"score2,omitempty" db:"score2"`

	WinnerAdvancesTo *int  `json:"winner_advances_to,omitempty" db:"winner_advances_to"`
	WinnerSlot       *Slot `json:"winner_slot,omitempty" db:"winner_slot"`
	LoserAdvancesTo  *int  `json:"loser_advances_to,omitempty" db:"loser_advances_to"`
	LoserSlot        *Slot `json:"loser_slot,omitempty" db:"loser_slot"`

	IsChampionship bool `json:"is_championship" db:"is_championship"`
	IsGrandFinal   bool `json:"is_grand_final" db:"is_grand_final"`
	IsResetGame    bool `json:"is_reset_game" db:"is_reset_game"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// TeamInSlot возвращает команду указанного слота.
func (g *BracketGame) TeamInSlot(slot Slot) *int {
	if slot == SlotTeam1 {
		return g.Team1ID
	}
	return g.Team2ID
}

// SourceOfSlot возвращает выражение-источник указанного слота.
func (g *BracketGame) SourceOfSlot(slot Slot) string {
	if slot == SlotTeam1 {
		return g.Team1Source
	}
	return g.Team2Source
}

// Decided сообщает, определён ли исход игры (сыграна или закрыта как bye).
func (g *BracketGame) Decided() bool {
	return g.Status == GameStatusCompleted || g.Status == GameStatusBye
}
