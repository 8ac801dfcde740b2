package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

// AuditLogRepository — контракт записи журнала: только добавление.
// Изменение и удаление записей не предусмотрено намеренно.
type AuditLogRepository interface {
	Append(ctx context.Context, exec SQLExecutor, entry *models.AuditLogEntry) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.AuditLogEntry, error)
}

type postgresAuditLogRepository struct {
	db *sql.DB
}

func NewPostgresAuditLogRepository(db *sql.DB) AuditLogRepository {
	return &postgresAuditLogRepository{db: db}
}

func (r *postgresAuditLogRepository) Append(ctx context.Context, exec SQLExecutor, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (event_id, actor, action, entity_type, entity_id, before, after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		entry.EventID,
		entry.Actor,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Before,
		entry.After,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry (%s %s/%d): %w", entry.Action, entry.EntityType, entry.EntityID, err)
	}
	return nil
}

func (r *postgresAuditLogRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, event_id, actor, action, entity_type, entity_id, before, after, created_at
		FROM audit_log
		WHERE event_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log for event %d: %w", eventID, err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		var e models.AuditLogEntry
		if scanErr := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.Actor,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.Before,
			&e.After,
			&e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", scanErr)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during audit rows iteration: %w", err)
	}
	return entries, nil
}
