package models

import "time"

// BracketStatus представляет статусы сетки, соответствующие ENUM в БД.
type BracketStatus string

const (
	BracketStatusSetup     BracketStatus = "setup"
	BracketStatusActive    BracketStatus = "active"
	BracketStatusCompleted BracketStatus = "completed"
)

// Bracket — одна double elimination сетка для подмножества команд события.
type Bracket struct {
	ID           int           `json:"id" db:"id"`
	EventID      int           `json:"event_id" db:"event_id"`
	Name         string        `json:"name" db:"name"`
	Size         int           `json:"size" db:"size"`
	Status       BracketStatus `json:"status" db:"status"`
	WinnerTeamID *int          `json:"winner_team_id,omitempty" db:"winner_team_id"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Entries []BracketEntry `json:"entries,omitempty" db:"-"`
	Games   []BracketGame  `json:"games,omitempty" db:"-"`
}

// BracketEntry — посев: позиция в сетке, занятая командой или bye.
// Ровно одно из {TeamID установлен, IsBye} истинно. Строки неизменяемы,
// пересев означает создание новой сетки.
type BracketEntry struct {
	ID           int       `json:"id" db:"id"`
	BracketID    int       `json:"bracket_id" db:"bracket_id"`
	SeedPosition int       `json:"seed_position" db:"seed_position"`
	TeamID       *int      `json:"team_id,omitempty" db:"team_id"`
	IsBye        bool      `json:"is_bye" db:"is_bye"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
