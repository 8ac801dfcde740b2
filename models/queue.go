package models

import "time"

// QueueStatus отражает, принят ли результат для элемента очереди.
type QueueStatus string

const (
	QueueStatusQueued    QueueStatus = "queued"
	QueueStatusCompleted QueueStatus = "completed"
)

// GameQueueItem — одна играбельная единица: игра сетки либо слот
// (команда, отборочный раунд). Пары (event, game) и (event, team, round)
// никогда не дублируются — запись обновляется на месте.
type GameQueueItem struct {
	ID            int         `json:"id" db:"id"`
	EventID       int         `json:"event_id" db:"event_id"`
	BracketGameID *int        `json:"bracket_game_id,omitempty" db:"bracket_game_id"`
	TeamID        *int        `json:"team_id,omitempty" db:"team_id"`
	Round         *int        `json:"round,omitempty" db:"round"`
	Status        QueueStatus `json:"status" db:"status"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}
