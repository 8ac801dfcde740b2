package models

import "time"

// Event — турнирное событие, которому принадлежат команды и сетки.
type Event struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
