package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

var ErrEventNotFound = errors.New("event not found")

type EventRepository interface {
	Create(ctx context.Context, exec SQLExecutor, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) Create(ctx context.Context, exec SQLExecutor, event *models.Event) error {
	query := `
		INSERT INTO events (name, start_date)
		VALUES ($1, $2)
		RETURNING id, created_at`
	return exec.QueryRowContext(ctx, query, event.Name, event.StartDate).Scan(&event.ID, &event.CreatedAt)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT id, name, start_date, created_at FROM events WHERE id = $1`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&event.ID, &event.Name, &event.StartDate, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event by id %d: %w", id, err)
	}
	return event, nil
}
