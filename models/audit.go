package models

import (
	"encoding/json"
	"time"
)

// AuditLogEntry — запись журнала изменений. Только добавление,
// существующие строки никогда не изменяются и не удаляются.
type AuditLogEntry struct {
	ID         int             `json:"id" db:"id"`
	EventID    int             `json:"event_id" db:"event_id"`
	Actor      string          `json:"actor" db:"actor"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   int             `json:"entity_id" db:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty" db:"before"`
	After      json.RawMessage `json:"after,omitempty" db:"after"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
