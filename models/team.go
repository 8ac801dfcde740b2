package models

import "time"

// Team принадлежит ровно одному событию. Идентичность команды не зависит
// от её ранга и используется и в посеве, и в играх сетки.
type Team struct {
	ID        int       `json:"id" db:"id"`
	EventID   int       `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RankedTeam — элемент отсортированного списка посева, поставляемого
// внешним провайдером рейтинга (лучшая команда первой).
type RankedTeam struct {
	TeamID int `json:"team_id"`
	Rank   int `json:"rank"`
}
