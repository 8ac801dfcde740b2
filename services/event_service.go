package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
)

type CreateEventParams struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
}

type SubmitScoreParams struct {
	Kind          models.SubmissionKind `json:"kind"`
	TeamID        *int                  `json:"team_id,omitempty"`
	Round         *int                  `json:"round,omitempty"`
	BracketGameID *int                  `json:"bracket_game_id,omitempty"`
	WinnerTeamID  *int                  `json:"winner_team_id,omitempty"`
	Score1        *int                  `json:"score1,omitempty"`
	Score2        *int                  `json:"score2,omitempty"`
}

// EventService — приём событий, команд и заявок с результатами.
// Сырые payload скорщиков переводятся в типизированную заявку до этого
// слоя; здесь проверяется только согласованность ссылок.
type EventService interface {
	CreateEvent(ctx context.Context, actor string, params CreateEventParams) (*models.Event, error)
	RegisterTeam(ctx context.Context, actor string, eventID int, name string) (*models.Team, error)
	SubmitScore(ctx context.Context, eventID int, params SubmitScoreParams) (*models.ScoreSubmission, error)
}

type eventService struct {
	txm            repositories.TxManager
	eventRepo      repositories.EventRepository
	teamRepo       repositories.TeamRepository
	gameRepo       repositories.BracketGameRepository
	bracketRepo    repositories.BracketRepository
	submissionRepo repositories.SubmissionRepository
	seedingRepo    repositories.SeedingScoreRepository
	queueRepo      repositories.GameQueueRepository
	auditRepo      repositories.AuditLogRepository
	logger         *slog.Logger
}

func NewEventService(
	txm repositories.TxManager,
	eventRepo repositories.EventRepository,
	teamRepo repositories.TeamRepository,
	gameRepo repositories.BracketGameRepository,
	bracketRepo repositories.BracketRepository,
	submissionRepo repositories.SubmissionRepository,
	seedingRepo repositories.SeedingScoreRepository,
	queueRepo repositories.GameQueueRepository,
	auditRepo repositories.AuditLogRepository,
	logger *slog.Logger,
) EventService {
	return &eventService{
		txm:            txm,
		eventRepo:      eventRepo,
		teamRepo:       teamRepo,
		gameRepo:       gameRepo,
		bracketRepo:    bracketRepo,
		submissionRepo: submissionRepo,
		seedingRepo:    seedingRepo,
		queueRepo:      queueRepo,
		auditRepo:      auditRepo,
		logger:         logger,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, actor string, params CreateEventParams) (*models.Event, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidationFailed)
	}
	if params.StartDate.IsZero() {
		params.StartDate = time.Now()
	}

	event := &models.Event{Name: params.Name, StartDate: params.StartDate}
	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.eventRepo.Create(ctx, exec, event); txErr != nil {
			return txErr
		}
		return s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
			EventID:    event.ID,
			Actor:      actor,
			Action:     actionEventCreated,
			EntityType: entityEvent,
			EntityID:   event.ID,
			After:      snapshotJSON(event),
		})
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) RegisterTeam(ctx context.Context, actor string, eventID int, name string) (*models.Team, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, mapRepoError(err)
	}

	team := &models.Team{EventID: eventID, Name: name}
	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.teamRepo.Create(ctx, exec, team); txErr != nil {
			return txErr
		}
		return s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
			EventID:    eventID,
			Actor:      actor,
			Action:     actionTeamCreated,
			EntityType: entityTeam,
			EntityID:   team.ID,
			After:      snapshotJSON(team),
		})
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// SubmitScore регистрирует заявку в статусе pending. Заявка ничего не
// меняет в сетке, пока её не примет рецензент.
func (s *eventService) SubmitScore(ctx context.Context, eventID int, params SubmitScoreParams) (*models.ScoreSubmission, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, mapRepoError(err)
	}

	sub := &models.ScoreSubmission{
		EventID:       eventID,
		Kind:          params.Kind,
		TeamID:        params.TeamID,
		Round:         params.Round,
		BracketGameID: params.BracketGameID,
		WinnerTeamID:  params.WinnerTeamID,
		Score1:        params.Score1,
		Score2:        params.Score2,
		Status:        models.SubmissionStatusPending,
	}

	switch params.Kind {
	case models.SubmissionKindSeeding:
		if params.TeamID == nil || params.Round == nil || params.Score1 == nil {
			return nil, fmt.Errorf("%w: seeding submission needs team, round and score", ErrSubmissionMissingFields)
		}
		team, err := s.teamRepo.GetByID(ctx, *params.TeamID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if team.EventID != eventID {
			return nil, fmt.Errorf("%w: team %d belongs to event %d", ErrTeamOutsideEvent, team.ID, team.EventID)
		}
	case models.SubmissionKindBracket:
		if params.BracketGameID == nil || params.WinnerTeamID == nil {
			return nil, fmt.Errorf("%w: bracket submission needs game and winner", ErrSubmissionMissingFields)
		}
		game, err := s.gameRepo.GetByID(ctx, *params.BracketGameID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		bracket, err := s.bracketRepo.GetByID(ctx, game.BracketID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if bracket.EventID != eventID {
			return nil, fmt.Errorf("%w: game %d belongs to event %d", ErrValidationFailed, game.ID, bracket.EventID)
		}
	default:
		return nil, fmt.Errorf("%w: unknown submission kind %q", ErrValidationFailed, params.Kind)
	}

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.submissionRepo.Create(ctx, exec, sub); txErr != nil {
			return txErr
		}
		// Отборочный слот встаёт в очередь при первой заявке; уже
		// принятый результат назад в queued не опускается.
		if params.Kind == models.SubmissionKindSeeding {
			_, scoreErr := s.seedingRepo.GetByTeamRound(ctx, eventID, *params.TeamID, *params.Round)
			if errors.Is(scoreErr, repositories.ErrSeedingScoreNotFound) {
				if txErr := s.queueRepo.UpsertSeedingItem(ctx, exec, eventID, *params.TeamID, *params.Round, models.QueueStatusQueued); txErr != nil {
					return txErr
				}
			} else if scoreErr != nil {
				return scoreErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("score submission received",
		slog.Int("event_id", eventID),
		slog.Int("submission_id", sub.ID),
		slog.String("kind", string(params.Kind)))
	return sub, nil
}
