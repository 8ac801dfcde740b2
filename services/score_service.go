package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// SkippedSubmission — отклонённый кандидат массового принятия с причиной.
type SkippedSubmission struct {
	SubmissionID int    `json:"submission_id"`
	Reason       string `json:"reason"`
}

type BulkAcceptResult struct {
	Accepted []int               `json:"accepted"`
	Skipped  []SkippedSubmission `json:"skipped"`
}

type ScoreService interface {
	AcceptSeedingScore(ctx context.Context, submissionID int, reviewer string, force bool) (*models.SeedingScore, error)
	AcceptBracketScore(ctx context.Context, submissionID int, reviewer string, force bool) (*models.BracketGame, error)
	// BulkAccept принимает пачку результатов одного события в одной
	// транзакции. Невалидные кандидаты пропускаются с причиной и не
	// роняют пачку целиком.
	BulkAccept(ctx context.Context, eventID int, submissionIDs []int, reviewer string) (*BulkAcceptResult, error)
}

type scoreService struct {
	txm            repositories.TxManager
	submissionRepo repositories.SubmissionRepository
	seedingRepo    repositories.SeedingScoreRepository
	gameRepo       repositories.BracketGameRepository
	bracketRepo    repositories.BracketRepository
	queueRepo      repositories.GameQueueRepository
	auditRepo      repositories.AuditLogRepository
	bracketService BracketService
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewScoreService(
	txm repositories.TxManager,
	submissionRepo repositories.SubmissionRepository,
	seedingRepo repositories.SeedingScoreRepository,
	gameRepo repositories.BracketGameRepository,
	bracketRepo repositories.BracketRepository,
	queueRepo repositories.GameQueueRepository,
	auditRepo repositories.AuditLogRepository,
	bracketService BracketService,
	hub *brackets.Hub,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		txm:            txm,
		submissionRepo: submissionRepo,
		seedingRepo:    seedingRepo,
		gameRepo:       gameRepo,
		bracketRepo:    bracketRepo,
		queueRepo:      queueRepo,
		auditRepo:      auditRepo,
		bracketService: bracketService,
		hub:            hub,
		logger:         logger,
	}
}

func (s *scoreService) AcceptSeedingScore(ctx context.Context, submissionID int, reviewer string, force bool) (*models.SeedingScore, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	existing, err := s.validateSeeding(ctx, sub, force)
	if err != nil {
		return nil, err
	}

	var score *models.SeedingScore
	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		score, txErr = s.applySeeding(ctx, exec, sub, existing, reviewer, time.Now())
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

// validateSeeding проверяет кандидата без записи. Возвращает уже
// существующий результат (team, round), если он есть.
func (s *scoreService) validateSeeding(ctx context.Context, sub *models.ScoreSubmission, force bool) (*models.SeedingScore, error) {
	if sub.Kind != models.SubmissionKindSeeding {
		return nil, ErrSubmissionKindMismatch
	}
	if sub.TeamID == nil || sub.Round == nil || sub.Score1 == nil {
		return nil, fmt.Errorf("%w: seeding submission %d needs team, round and score", ErrSubmissionMissingFields, sub.ID)
	}

	existing, err := s.seedingRepo.GetByTeamRound(ctx, sub.EventID, *sub.TeamID, *sub.Round)
	if err != nil {
		if errors.Is(err, repositories.ErrSeedingScoreNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !force {
		return nil, &ConflictError{
			Entity:    entitySeedingScore,
			Existing:  strconv.Itoa(existing.Score),
			Attempted: strconv.Itoa(*sub.Score1),
		}
	}
	return existing, nil
}

func (s *scoreService) applySeeding(ctx context.Context, exec repositories.SQLExecutor, sub *models.ScoreSubmission, existing *models.SeedingScore, reviewer string, now time.Time) (*models.SeedingScore, error) {
	subBefore := snapshotJSON(sub)

	score := &models.SeedingScore{
		EventID:      sub.EventID,
		TeamID:       *sub.TeamID,
		Round:        *sub.Round,
		Score:        *sub.Score1,
		SubmissionID: &sub.ID,
	}
	if err := s.seedingRepo.Upsert(ctx, exec, score); err != nil {
		return nil, err
	}
	if err := s.submissionRepo.SetSeedingScoreLink(ctx, exec, sub.ID, &score.ID); err != nil {
		return nil, err
	}
	if err := s.submissionRepo.MarkAccepted(ctx, exec, sub.ID, reviewer, now); err != nil {
		return nil, err
	}
	if err := s.queueRepo.UpsertSeedingItem(ctx, exec, sub.EventID, *sub.TeamID, *sub.Round, models.QueueStatusCompleted); err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatusAccepted
	sub.SeedingScoreID = &score.ID
	sub.ReviewedBy = &reviewer
	sub.ReviewedAt = &now

	if err := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
		EventID:    sub.EventID,
		Actor:      reviewer,
		Action:     actionSubmissionAccepted,
		EntityType: entitySubmission,
		EntityID:   sub.ID,
		Before:     subBefore,
		After:      snapshotJSON(sub),
	}); err != nil {
		return nil, err
	}
	if err := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
		EventID:    sub.EventID,
		Actor:      reviewer,
		Action:     actionSeedingScoreWritten,
		EntityType: entitySeedingScore,
		EntityID:   score.ID,
		Before:     snapshotJSON(existing),
		After:      snapshotJSON(score),
	}); err != nil {
		return nil, err
	}
	return score, nil
}

func (s *scoreService) AcceptBracketScore(ctx context.Context, submissionID int, reviewer string, force bool) (*models.BracketGame, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	game, err := s.validateBracket(ctx, sub, force)
	if err != nil {
		return nil, err
	}

	games, err := s.gameRepo.ListByBracket(ctx, game.BracketID)
	if err != nil {
		return nil, err
	}
	byNumber := indexByNumber(games)
	game = byNumber[game.GameNumber]

	bracket, err := s.bracketRepo.GetByID(ctx, game.BracketID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.applyBracket(ctx, exec, sub, game, byNumber, reviewer, time.Now())
	})
	if err != nil {
		return nil, err
	}

	s.postBracketAccept(ctx, bracket.EventID, game)
	return game, nil
}

// validateBracket проверяет кандидата без записи и возвращает игру.
func (s *scoreService) validateBracket(ctx context.Context, sub *models.ScoreSubmission, force bool) (*models.BracketGame, error) {
	if sub.Kind != models.SubmissionKindBracket {
		return nil, ErrSubmissionKindMismatch
	}
	if sub.BracketGameID == nil || sub.WinnerTeamID == nil {
		return nil, fmt.Errorf("%w: bracket submission %d needs game and winner", ErrSubmissionMissingFields, sub.ID)
	}

	game, err := s.gameRepo.GetByID(ctx, *sub.BracketGameID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	winner := *sub.WinnerTeamID
	inSlot1 := game.Team1ID != nil && *game.Team1ID == winner
	inSlot2 := game.Team2ID != nil && *game.Team2ID == winner
	if !inSlot1 && !inSlot2 {
		return nil, fmt.Errorf("%w: team %d in game %d", ErrInvalidWinner, winner, game.ID)
	}

	if game.WinnerID != nil && *game.WinnerID != winner && !force {
		return nil, &ConflictError{
			Entity:    entityBracketGame,
			Existing:  strconv.Itoa(*game.WinnerID),
			Attempted: strconv.Itoa(winner),
		}
	}
	return game, nil
}

// applyBracket записывает результат и продвигает команды по рёбрам
// графа. Вызывается строго внутри транзакции.
func (s *scoreService) applyBracket(ctx context.Context, exec repositories.SQLExecutor, sub *models.ScoreSubmission, game *models.BracketGame, byNumber map[int]*models.BracketGame, reviewer string, now time.Time) error {
	subBefore := snapshotJSON(sub)
	gameBefore := snapshotJSON(game)

	winner := *sub.WinnerTeamID
	var loser *int
	if game.Team1ID != nil && *game.Team1ID == winner {
		loser = game.Team2ID
	} else {
		loser = game.Team1ID
	}

	game.WinnerID = &winner
	game.LoserID = loser
	game.Score1 = sub.Score1
	game.Score2 = sub.Score2
	game.Status = models.GameStatusCompleted
	game.CompletedAt = &now
	if err := s.gameRepo.Update(ctx, exec, game); err != nil {
		return err
	}

	if err := s.advance(ctx, exec, byNumber, game.WinnerAdvancesTo, game.WinnerSlot, &winner); err != nil {
		return err
	}
	if loser != nil {
		if err := s.advance(ctx, exec, byNumber, game.LoserAdvancesTo, game.LoserSlot, loser); err != nil {
			return err
		}
	}

	if err := s.submissionRepo.MarkAccepted(ctx, exec, sub.ID, reviewer, now); err != nil {
		return err
	}
	if err := s.queueRepo.UpsertGameItem(ctx, exec, sub.EventID, game.ID, models.QueueStatusCompleted); err != nil {
		return err
	}

	sub.Status = models.SubmissionStatusAccepted
	sub.ReviewedBy = &reviewer
	sub.ReviewedAt = &now

	if err := s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
		EventID:    sub.EventID,
		Actor:      reviewer,
		Action:     actionSubmissionAccepted,
		EntityType: entitySubmission,
		EntityID:   sub.ID,
		Before:     subBefore,
		After:      snapshotJSON(sub),
	}); err != nil {
		return err
	}
	return s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
		EventID:    sub.EventID,
		Actor:      reviewer,
		Action:     actionGameCompleted,
		EntityType: entityBracketGame,
		EntityID:   game.ID,
		Before:     gameBefore,
		After:      snapshotJSON(game),
	})
}

// advance переносит команду в целевой слот следующей игры.
func (s *scoreService) advance(ctx context.Context, exec repositories.SQLExecutor, byNumber map[int]*models.BracketGame, targetNumber *int, slot *models.Slot, teamID *int) error {
	if targetNumber == nil || slot == nil {
		return nil
	}
	target, ok := byNumber[*targetNumber]
	if !ok {
		return fmt.Errorf("%w: advancement target game %d", ErrGameNotFound, *targetNumber)
	}
	if *slot == models.SlotTeam1 {
		target.Team1ID = teamID
	} else {
		target.Team2ID = teamID
	}
	return s.gameRepo.Update(ctx, exec, target)
}

// postBracketAccept — пост-обработка вне транзакции: промоушен готовых
// игр и каскад bye. Шаги идемпотентны; при сбое их доделает следующий
// прогон резолвера.
func (s *scoreService) postBracketAccept(ctx context.Context, eventID int, game *models.BracketGame) {
	if _, err := s.bracketService.ResolveByes(ctx, game.BracketID); err != nil {
		s.logger.Error("post-accept bye resolution failed",
			slog.Int("bracket_id", game.BracketID), slog.Any("error", err))
	}
	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageGameCompleted,
		Payload: game,
	})
}

func (s *scoreService) BulkAccept(ctx context.Context, eventID int, submissionIDs []int, reviewer string) (*BulkAcceptResult, error) {
	subs, err := s.submissionRepo.ListByIDsForEvent(ctx, eventID, submissionIDs)
	if err != nil {
		return nil, err
	}
	found := make(map[int]*models.ScoreSubmission, len(subs))
	for _, sub := range subs {
		found[sub.ID] = sub
	}

	result := &BulkAcceptResult{Accepted: []int{}, Skipped: []SkippedSubmission{}}

	type bracketCandidate struct {
		sub  *models.ScoreSubmission
		game *models.BracketGame
	}
	type seedingCandidate struct {
		sub      *models.ScoreSubmission
		existing *models.SeedingScore
	}

	var bracketCandidates []bracketCandidate
	var seedingCandidates []seedingCandidate
	gamesInBatch := make(map[int]bool)
	seedingSlotsInBatch := make(map[string]bool)

	// Каждый кандидат валидируется независимо; невалидный пропускается
	// с причиной и не влияет на остальных.
	for _, id := range submissionIDs {
		sub, ok := found[id]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedSubmission{id, "submission not found in event"})
			continue
		}
		if sub.Status == models.SubmissionStatusAccepted {
			result.Skipped = append(result.Skipped, SkippedSubmission{id, "submission already accepted"})
			continue
		}

		switch sub.Kind {
		case models.SubmissionKindSeeding:
			existing, vErr := s.validateSeeding(ctx, sub, false)
			if vErr != nil {
				result.Skipped = append(result.Skipped, SkippedSubmission{id, vErr.Error()})
				continue
			}
			slotKey := fmt.Sprintf("%d:%d", *sub.TeamID, *sub.Round)
			if seedingSlotsInBatch[slotKey] {
				result.Skipped = append(result.Skipped, SkippedSubmission{id, "seeding slot already updated earlier in this batch"})
				continue
			}
			seedingSlotsInBatch[slotKey] = true
			seedingCandidates = append(seedingCandidates, seedingCandidate{sub, existing})
		case models.SubmissionKindBracket:
			game, vErr := s.validateBracket(ctx, sub, false)
			if vErr != nil {
				result.Skipped = append(result.Skipped, SkippedSubmission{id, vErr.Error()})
				continue
			}
			if gamesInBatch[game.ID] {
				result.Skipped = append(result.Skipped, SkippedSubmission{id, "game already updated earlier in this batch"})
				continue
			}
			gamesInBatch[game.ID] = true
			bracketCandidates = append(bracketCandidates, bracketCandidate{sub, game})
		default:
			result.Skipped = append(result.Skipped, SkippedSubmission{id, "unknown submission kind"})
		}
	}

	if len(bracketCandidates) == 0 && len(seedingCandidates) == 0 {
		return result, nil
	}

	// Игры каждой затронутой сетки загружаются один раз: продвижение
	// пишет в соседние игры того же графа.
	gamesByBracket := make(map[int]map[int]*models.BracketGame)
	bracketsByID := make(map[int]*models.Bracket)
	for _, c := range bracketCandidates {
		if _, ok := gamesByBracket[c.game.BracketID]; ok {
			continue
		}
		games, lErr := s.gameRepo.ListByBracket(ctx, c.game.BracketID)
		if lErr != nil {
			return nil, lErr
		}
		gamesByBracket[c.game.BracketID] = indexByNumber(games)
		bracket, bErr := s.bracketRepo.GetByID(ctx, c.game.BracketID)
		if bErr != nil {
			return nil, mapRepoError(bErr)
		}
		bracketsByID[bracket.ID] = bracket
	}

	now := time.Now()
	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, c := range seedingCandidates {
			if _, txErr := s.applySeeding(ctx, exec, c.sub, c.existing, reviewer, now); txErr != nil {
				return txErr
			}
			result.Accepted = append(result.Accepted, c.sub.ID)
		}
		for _, c := range bracketCandidates {
			byNumber := gamesByBracket[c.game.BracketID]
			if txErr := s.applyBracket(ctx, exec, c.sub, byNumber[c.game.GameNumber], byNumber, reviewer, now); txErr != nil {
				return txErr
			}
			result.Accepted = append(result.Accepted, c.sub.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Пост-обработка — по одному разу на затронутую сетку, после коммита.
	g, gCtx := errgroup.WithContext(ctx)
	for bracketID := range gamesByBracket {
		id := bracketID
		g.Go(func() error {
			if _, rErr := s.bracketService.ResolveByes(gCtx, id); rErr != nil {
				s.logger.Error("post-bulk bye resolution failed",
					slog.Int("bracket_id", id), slog.Any("error", rErr))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.hub.BroadcastToRoom(eventRoom(eventID), brackets.WebSocketMessage{
		Type:    brackets.MessageQueueUpdated,
		Payload: result,
	})
	return result, nil
}

func indexByNumber(games []*models.BracketGame) map[int]*models.BracketGame {
	byNumber := make(map[int]*models.BracketGame, len(games))
	for _, g := range games {
		byNumber[g.GameNumber] = g
	}
	return byNumber
}
