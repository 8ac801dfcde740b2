package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type CreateBracketParams struct {
	EventID     int                 `json:"event_id"`
	Name        string              `json:"name"`
	Size        int                 `json:"size"`
	RankedTeams []models.RankedTeam `json:"ranked_teams"`
}

type BracketService interface {
	// EnsureTemplate генерирует шаблон размера и идемпотентно сохраняет его.
	EnsureTemplate(ctx context.Context, size int) ([]models.BracketTemplate, error)
	CreateBracket(ctx context.Context, actor string, params CreateBracketParams) (*models.Bracket, error)
	GetBracket(ctx context.Context, bracketID int) (*models.Bracket, error)
	ResolveByes(ctx context.Context, bracketID int) (*brackets.ResolveStats, error)
	// ResolveActiveBrackets — страховочный прогон по всем активным сеткам;
	// пропущенная после сбоя пост-обработка доезжает здесь.
	ResolveActiveBrackets(ctx context.Context) error
}

type bracketService struct {
	txm          repositories.TxManager
	eventRepo    repositories.EventRepository
	teamRepo     repositories.TeamRepository
	templateRepo repositories.BracketTemplateRepository
	bracketRepo  repositories.BracketRepository
	entryRepo    repositories.BracketEntryRepository
	gameRepo     repositories.BracketGameRepository
	queueRepo    repositories.GameQueueRepository
	auditRepo    repositories.AuditLogRepository
	hub          *brackets.Hub
	logger       *slog.Logger
}

func NewBracketService(
	txm repositories.TxManager,
	eventRepo repositories.EventRepository,
	teamRepo repositories.TeamRepository,
	templateRepo repositories.BracketTemplateRepository,
	bracketRepo repositories.BracketRepository,
	entryRepo repositories.BracketEntryRepository,
	gameRepo repositories.BracketGameRepository,
	queueRepo repositories.GameQueueRepository,
	auditRepo repositories.AuditLogRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		txm:          txm,
		eventRepo:    eventRepo,
		teamRepo:     teamRepo,
		templateRepo: templateRepo,
		bracketRepo:  bracketRepo,
		entryRepo:    entryRepo,
		gameRepo:     gameRepo,
		queueRepo:    queueRepo,
		auditRepo:    auditRepo,
		hub:          hub,
		logger:       logger,
	}
}

func (s *bracketService) EnsureTemplate(ctx context.Context, size int) ([]models.BracketTemplate, error) {
	rows, err := brackets.GenerateTopology(size)
	if err != nil {
		return nil, err
	}
	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.templateRepo.UpsertForSize(ctx, exec, size, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist template for size %d: %w", size, err)
	}
	return rows, nil
}

// loadTemplate отдаёт шаблон размера, генерируя стандартные размеры на
// лету. Нестандартные размеры должны быть заведены заранее — для них
// движок шаблон не синтезирует.
func (s *bracketService) loadTemplate(ctx context.Context, size int) ([]models.BracketTemplate, error) {
	rows, err := s.templateRepo.ListBySize(ctx, size)
	if err == nil {
		return rows, nil
	}
	if mapRepoError(err) == ErrTemplateNotFound && brackets.SupportedSize(size) {
		return s.EnsureTemplate(ctx, size)
	}
	return nil, mapRepoError(err)
}

func (s *bracketService) CreateBracket(ctx context.Context, actor string, params CreateBracketParams) (*models.Bracket, error) {
	if params.Name == "" {
		return nil, ErrBracketNameRequired
	}
	if _, err := s.eventRepo.GetByID(ctx, params.EventID); err != nil {
		return nil, mapRepoError(err)
	}

	// Каждая команда должна существовать и принадлежать событию сетки.
	teamIDs := make([]int, 0, len(params.RankedTeams))
	for _, rt := range params.RankedTeams {
		teamIDs = append(teamIDs, rt.TeamID)
	}
	teams, err := s.teamRepo.ListByIDs(ctx, teamIDs)
	if err != nil {
		return nil, mapRepoError(err)
	}
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	for _, id := range teamIDs {
		team, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: team %d", ErrTeamNotFound, id)
		}
		if team.EventID != params.EventID {
			return nil, fmt.Errorf("%w: team %d belongs to event %d", ErrTeamOutsideEvent, id, team.EventID)
		}
	}

	template, err := s.loadTemplate(ctx, params.Size)
	if err != nil {
		return nil, err
	}

	bracket := &models.Bracket{
		EventID: params.EventID,
		Name:    params.Name,
		Size:    params.Size,
		Status:  models.BracketStatusActive,
	}

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.bracketRepo.Create(ctx, exec, bracket); txErr != nil {
			return txErr
		}

		entries, txErr := brackets.PlaceSeeds(bracket.ID, params.RankedTeams, params.Size)
		if txErr != nil {
			return txErr
		}
		if txErr := s.entryRepo.CreateBatch(ctx, exec, entries); txErr != nil {
			return txErr
		}
		bracket.Entries = entries

		games := gamesFromTemplate(bracket.ID, template)
		if txErr := s.gameRepo.CreateBatch(ctx, exec, games); txErr != nil {
			return txErr
		}

		return s.auditRepo.Append(ctx, exec, &models.AuditLogEntry{
			EventID:    bracket.EventID,
			Actor:      actor,
			Action:     actionBracketCreated,
			EntityType: entityBracket,
			EntityID:   bracket.ID,
			After:      snapshotJSON(bracket),
		})
	})
	if err != nil {
		return nil, err
	}

	// Первый прогон резолвера идёт после коммита: он идемпотентен, и при
	// сбое следующий прогон сойдётся к той же неподвижной точке.
	if _, err := s.ResolveByes(ctx, bracket.ID); err != nil {
		s.logger.Error("initial bye resolution failed",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
	}

	s.hub.BroadcastToRoom(eventRoom(bracket.EventID), brackets.WebSocketMessage{
		Type:    brackets.MessageBracketCreated,
		Payload: bracket,
	})
	return s.GetBracket(ctx, bracket.ID)
}

// gamesFromTemplate материализует строки шаблона в игры конкретной сетки.
func gamesFromTemplate(bracketID int, template []models.BracketTemplate) []*models.BracketGame {
	games := make([]*models.BracketGame, 0, len(template))
	for i := range template {
		t := &template[i]
		games = append(games, &models.BracketGame{
			BracketID:        bracketID,
			GameNumber:       t.GameNumber,
			RoundName:        t.RoundName,
			RoundNumber:      t.RoundNumber,
			Side:             t.Side,
			Team1Source:      t.Team1Source,
			Team2Source:      t.Team2Source,
			Status:           models.GameStatusPending,
			WinnerAdvancesTo: t.WinnerAdvancesTo,
			WinnerSlot:       t.WinnerSlot,
			LoserAdvancesTo:  t.LoserAdvancesTo,
			LoserSlot:        t.LoserSlot,
			IsChampionship:   t.IsChampionship,
			IsGrandFinal:     t.IsGrandFinal,
			IsResetGame:      t.IsResetGame,
		})
	}
	return games
}

func (s *bracketService) GetBracket(ctx context.Context, bracketID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, err := s.entryRepo.ListByBracket(gCtx, bracketID)
		if err != nil {
			return fmt.Errorf("failed to fetch entries for bracket %d: %w", bracketID, err)
		}
		bracket.Entries = make([]models.BracketEntry, len(entries))
		for i, e := range entries {
			bracket.Entries[i] = *e
		}
		return nil
	})

	g.Go(func() error {
		games, err := s.gameRepo.ListByBracket(gCtx, bracketID)
		if err != nil {
			return fmt.Errorf("failed to fetch games for bracket %d: %w", bracketID, err)
		}
		bracket.Games = make([]models.BracketGame, len(games))
		for i, game := range games {
			bracket.Games[i] = *game
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bracket, nil
}

// ResolveByes прогоняет резолвер до неподвижной точки и сохраняет
// изменения одной транзакцией. Вызов идемпотентен: после достигнутой
// неподвижной точки повторный прогон не вносит изменений.
func (s *bracketService) ResolveByes(ctx context.Context, bracketID int) (*brackets.ResolveStats, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	games, err := s.gameRepo.ListByBracket(ctx, bracketID)
	if err != nil {
		return nil, err
	}
	entries, err := s.entryRepo.ListByBracket(ctx, bracketID)
	if err != nil {
		return nil, err
	}

	resolver := brackets.NewResolver(games, entries)
	stats := resolver.Run()

	if stats.IterationCeilingHit {
		// Потолок достигается только на дефектном шаблоне. Частичное
		// разрешение лучше блокировки турнира, поэтому не ошибка.
		s.logger.Warn("bye resolver hit iteration ceiling, template may be defective",
			slog.Int("bracket_id", bracketID),
			slog.Int("passes", stats.Passes),
			slog.Int("games", len(games)))
	}

	changed := resolver.ChangedGames()
	// Однажды закрытую сетку плановые прогоны не перезаписывают.
	closeBracket := stats.ChampionTeamID != nil && bracket.Status != models.BracketStatusCompleted
	if len(changed) == 0 && !closeBracket {
		return &stats, nil
	}

	byNumber := make(map[int]*models.BracketGame, len(games))
	for _, g := range games {
		byNumber[g.GameNumber] = g
	}

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, num := range changed {
			game := byNumber[num]
			if txErr := s.gameRepo.Update(ctx, exec, game); txErr != nil {
				return txErr
			}
			if game.Status == models.GameStatusReady {
				if txErr := s.queueRepo.UpsertGameItem(ctx, exec, bracket.EventID, game.ID, models.QueueStatusQueued); txErr != nil {
					return txErr
				}
			}
		}
		if closeBracket {
			if txErr := s.bracketRepo.SetWinner(ctx, exec, bracketID, stats.ChampionTeamID); txErr != nil {
				return txErr
			}
			if txErr := s.bracketRepo.UpdateStatus(ctx, exec, bracketID, models.BracketStatusCompleted); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.ReadyGamesUpdated > 0 {
		s.hub.BroadcastToRoom(eventRoom(bracket.EventID), brackets.WebSocketMessage{
			Type:    brackets.MessageGameReady,
			Payload: stats,
		})
	}
	return &stats, nil
}

func (s *bracketService) ResolveActiveBrackets(ctx context.Context) error {
	active, err := s.bracketRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	for _, b := range active {
		if _, err := s.ResolveByes(ctx, b.ID); err != nil {
			s.logger.Error("scheduled bye resolution failed",
				slog.Int("bracket_id", b.ID), slog.Any("error", err))
		}
	}
	if len(active) > 0 {
		s.logger.Info("resolved active brackets",
			slog.Int("count", len(active)), slog.Duration("took", time.Since(start)))
	}
	return nil
}
