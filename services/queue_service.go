package services

import (
	"context"

	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
)

type QueueService interface {
	ListQueue(ctx context.Context, eventID int) ([]*models.GameQueueItem, error)
}

type queueService struct {
	eventRepo repositories.EventRepository
	queueRepo repositories.GameQueueRepository
}

func NewQueueService(eventRepo repositories.EventRepository, queueRepo repositories.GameQueueRepository) QueueService {
	return &queueService{eventRepo: eventRepo, queueRepo: queueRepo}
}

// ListQueue отдаёт очередь оценивания события для внешнего UI судей.
func (s *queueService) ListQueue(ctx context.Context, eventID int) ([]*models.GameQueueItem, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, mapRepoError(err)
	}
	return s.queueRepo.ListByEvent(ctx, eventID)
}
