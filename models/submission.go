package models

import "time"

// SubmissionStatus представляет статусы поданного результата.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusAccepted SubmissionStatus = "accepted"
)

// SubmissionKind различает результат отборочного раунда и игры сетки.
type SubmissionKind string

const (
	SubmissionKindSeeding SubmissionKind = "seeding"
	SubmissionKindBracket SubmissionKind = "bracket"
)

// ScoreSubmission — типизированная выжимка поданного результата.
// Перевод произвольного payload формы в эти поля выполняется снаружи;
// движок никогда не ветвится по нетипизированным ключам.
type ScoreSubmission struct {
	ID      int            `json:"id" db:"id"`
	EventID int            `json:"event_id" db:"event_id"`
	Kind    SubmissionKind `json:"kind" db:"kind"`

	// Для kind=seeding
	TeamID *int `json:"team_id,omitempty" db:"team_id"`
	Round  *int `json:"round,omitempty" db:"round"`

	// Для kind=bracket
	BracketGameID *int `json:"bracket_game_id,omitempty" db:"bracket_game_id"`
	WinnerTeamID  *int `json:"winner_team_id,omitempty" db:"winner_team_id"`

	Score1 *int `json:"score1,omitempty" db:"score1"`
	Score2 *int `json:"score2,omitempty" db:"score2"`

	Status         SubmissionStatus `json:"status" db:"status"`
	SeedingScoreID *int             `json:"seeding_score_id,omitempty" db:"seeding_score_id"`
	ReviewedBy     *string          `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// SeedingScore — принятый результат команды в отборочном раунде.
type SeedingScore struct {
	ID           int       `json:"id" db:"id"`
	EventID      int       `json:"event_id" db:"event_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	Round        int       `json:"round" db:"round"`
	Score        int       `json:"score" db:"score"`
	SubmissionID *int      `json:"submission_id,omitempty" db:"submission_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
