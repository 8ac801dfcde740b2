package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
)

// RevertOutcome — результат запроса на откат. При непустом каскаде и
// отсутствии подтверждения возвращается отчёт о последствиях, и ничего
// не изменяется.
type RevertOutcome struct {
	RequiresConfirmation bool                    `json:"requires_confirmation"`
	Impact               []brackets.AffectedGame `json:"impact,omitempty"`
	Reverted             bool                    `json:"reverted"`
}

type RevertService interface {
	RevertSeeding(ctx context.Context, submissionID int, actor string) error
	RevertBracket(ctx context.Context, submissionID int, actor string, confirm bool) (*RevertOutcome, error)
}

type revertService struct {
	txm            repositories.TxManager
	submissionRepo repositories.SubmissionRepository
	seedingRepo    repositories.SeedingScoreRepository
	gameRepo       repositories.BracketGameRepository
	bracketRepo    repositories.BracketRepository
	queueRepo      repositories.GameQueueRepository
	auditRepo      repositories.AuditLogRepository
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewRevertService(
	txm repositories.TxManager,
	submissionRepo repositories.SubmissionRepository,
	seedingRepo repositories.SeedingScoreRepository,
	gameRepo repositories.BracketGameRepository,
	bracketRepo repositories.BracketRepository,
	queueRepo repositories.GameQueueRepository,
	auditRepo repositories.AuditLogRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) RevertService {
	return &revertService{
		txm:            txm,
		submissionRepo: submissionRepo,
		seedingRepo:    seedingRepo,
		gameRepo:       gameRepo,
		bracketRepo:    bracketRepo,
		queueRepo:      queueRepo,
		auditRepo:      auditRepo,
		hub:            hub,
		logger:         logger,
	}
}

func (s *revertService) RevertSeeding(ctx context.Context, submissionID int, actor string) error {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return mapRepoError(err)
	}
	if sub.Kind != models.SubmissionKindSeeding {
		return ErrSubmissionKindMismatch
	}
	if sub.Status != models.SubmissionStatusAccepted {
		return ErrSubmissionNotAccepted
	}

	// Без привязанного результата откат — чистый откат статуса.
	if sub.SeedingScoreID == nil {
		return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			return s.rollbackSubmission(ctx, exec, sub, actor)
		})
	}

	var score *models.SeedingScore
	if sub.TeamID != nil && sub.Round != nil {
		score, err = s.seedingRepo.GetByTeamRound(ctx, sub.EventID, *sub.TeamID, *sub.Round)
		if err != nil && !errors.Is(err, repositories.ErrSeedingScoreNotFound) {
			return err
		}
	}

	return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if score != nil {
			if txErr := s.seedingRepo.Delete(ctx, exec, score.ID); txErr != nil {
				return txErr
			}
			if txErr := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
				EventID:    sub.EventID,
				Actor:      actor,
				Action:     actionSeedingScoreDeleted,
				EntityType: entitySeedingScore,
				EntityID:   score.ID,
				Before:     snapshotJSON(score),
			}); txErr != nil {
				return txErr
			}
		}
		if txErr := s.submissionRepo.SetSeedingScoreLink(ctx, exec, sub.ID, nil); txErr != nil {
			return txErr
		}
		if sub.TeamID != nil && sub.Round != nil {
			if txErr := s.queueRepo.UpsertSeedingItem(ctx, exec, sub.EventID, *sub.TeamID, *sub.Round, models.QueueStatusQueued); txErr != nil {
				return txErr
			}
		}
		return s.rollbackSubmission(ctx, exec, sub, actor)
	})
}

func (s *revertService) RevertBracket(ctx context.Context, submissionID int, actor string, confirm bool) (*RevertOutcome, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if sub.Kind != models.SubmissionKindBracket {
		return nil, ErrSubmissionKindMismatch
	}
	if sub.Status != models.SubmissionStatusAccepted {
		return nil, ErrSubmissionNotAccepted
	}

	if sub.BracketGameID == nil {
		err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			return s.rollbackSubmission(ctx, exec, sub, actor)
		})
		if err != nil {
			return nil, err
		}
		return &RevertOutcome{Reverted: true}, nil
	}

	game, err := s.gameRepo.GetByID(ctx, *sub.BracketGameID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	bracket, err := s.bracketRepo.GetByID(ctx, game.BracketID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	// Игра без записанного победителя откатывается локально, каскада нет.
	if game.WinnerID == nil {
		err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if txErr := s.queueRepo.UpsertGameItem(ctx, exec, sub.EventID, game.ID, models.QueueStatusQueued); txErr != nil {
				return txErr
			}
			return s.rollbackSubmission(ctx, exec, sub, actor)
		})
		if err != nil {
			return nil, err
		}
		return &RevertOutcome{Reverted: true}, nil
	}

	games, err := s.gameRepo.ListByBracket(ctx, game.BracketID)
	if err != nil {
		return nil, err
	}
	impact := brackets.ComputeCascade(games, game.GameNumber)

	// Протокол dry-run: непустой каскад без явного подтверждения
	// возвращает отчёт, не изменяя ничего.
	if len(impact) > 0 && !confirm {
		return &RevertOutcome{RequiresConfirmation: true, Impact: impact}, nil
	}

	byNumber := indexByNumber(games)
	target := byNumber[game.GameNumber]
	bracketWinnerInvalid := target.IsResetGame || target.IsChampionship

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		gameBefore := snapshotJSON(target)

		// Сама откатываемая игра: участники остаются, результат и
		// таймстемпы очищаются, статус пересчитывается.
		target.WinnerID = nil
		target.LoserID = nil
		target.Score1 = nil
		target.Score2 = nil
		target.CompletedAt = nil
		if target.Team1ID != nil && target.Team2ID != nil {
			target.Status = models.GameStatusReady
		} else {
			target.Status = models.GameStatusPending
		}
		if txErr := s.gameRepo.Update(ctx, exec, target); txErr != nil {
			return txErr
		}
		if txErr := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
			EventID:    sub.EventID,
			Actor:      actor,
			Action:     actionGameReverted,
			EntityType: entityBracketGame,
			EntityID:   target.ID,
			Before:     gameBefore,
			After:      snapshotJSON(target),
		}); txErr != nil {
			return txErr
		}

		// Каскад: у каждой задетой игры очищаются ровно задетые поля.
		for _, a := range impact {
			downstream := byNumber[a.GameNumber]
			before := snapshotJSON(downstream)

			if a.Team1Affected {
				downstream.Team1ID = nil
			}
			if a.Team2Affected {
				downstream.Team2ID = nil
			}
			if a.ResultAffected {
				downstream.WinnerID = nil
				downstream.LoserID = nil
				downstream.Score1 = nil
				downstream.Score2 = nil
			}
			downstream.CompletedAt = nil
			downstream.Status = models.GameStatusPending
			if txErr := s.gameRepo.Update(ctx, exec, downstream); txErr != nil {
				return txErr
			}

			if downstream.IsResetGame || downstream.IsChampionship {
				bracketWinnerInvalid = true
			}
			if txErr := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
				EventID:    sub.EventID,
				Actor:      actor,
				Action:     actionGameReverted,
				EntityType: entityBracketGame,
				EntityID:   downstream.ID,
				Before:     before,
				After:      snapshotJSON(downstream),
			}); txErr != nil {
				return txErr
			}
		}

		if bracketWinnerInvalid && bracket.WinnerTeamID != nil {
			if txErr := s.bracketRepo.SetWinner(ctx, exec, bracket.ID, nil); txErr != nil {
				return txErr
			}
			if txErr := s.bracketRepo.UpdateStatus(ctx, exec, bracket.ID, models.BracketStatusActive); txErr != nil {
				return txErr
			}
		}

		if txErr := s.queueRepo.UpsertGameItem(ctx, exec, sub.EventID, target.ID, models.QueueStatusQueued); txErr != nil {
			return txErr
		}
		return s.rollbackSubmission(ctx, exec, sub, actor)
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(eventRoom(sub.EventID), brackets.WebSocketMessage{
		Type:    brackets.MessageBracketReverted,
		Payload: &RevertOutcome{Reverted: true, Impact: impact},
	})
	return &RevertOutcome{Reverted: true, Impact: impact}, nil
}

// rollbackSubmission возвращает заявку в pending с записью в журнал.
func (s *revertService) rollbackSubmission(ctx context.Context, exec repositories.SQLExecutor, sub *models.ScoreSubmission, actor string) error {
	before := snapshotJSON(sub)
	if err := s.submissionRepo.MarkPending(ctx, exec, sub.ID); err != nil {
		return err
	}
	sub.Status = models.SubmissionStatusPending
	sub.ReviewedBy = nil
	sub.ReviewedAt = nil
	sub.SeedingScoreID = nil
	return s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
		EventID:    sub.EventID,
		Actor:      actor,
		Action:     actionSubmissionReverted,
		EntityType: entitySubmission,
		EntityID:   sub.ID,
		Before:     before,
		After:      snapshotJSON(sub),
	})
}
