package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
	"github.com/bracketlab/bracket-engine/storage"
)

// BracketSnapshot — итоговое состояние сетки, выгружаемое во внешнее
// хранилище после завершения.
type BracketSnapshot struct {
	Bracket    *models.Bracket        `json:"bracket"`
	Entries    []*models.BracketEntry `json:"entries"`
	Games      []*models.BracketGame  `json:"games"`
	ExportedAt time.Time              `json:"exported_at"`
}

type ExportService interface {
	ExportBracketSnapshot(ctx context.Context, bracketID int) (string, error)
}

type exportService struct {
	bracketRepo repositories.BracketRepository
	entryRepo   repositories.BracketEntryRepository
	gameRepo    repositories.BracketGameRepository
	store       storage.ObjectStore
	logger      *slog.Logger
}

func NewExportService(
	bracketRepo repositories.BracketRepository,
	entryRepo repositories.BracketEntryRepository,
	gameRepo repositories.BracketGameRepository,
	store storage.ObjectStore,
	logger *slog.Logger,
) ExportService {
	return &exportService{
		bracketRepo: bracketRepo,
		entryRepo:   entryRepo,
		gameRepo:    gameRepo,
		store:       store,
		logger:      logger,
	}
}

// ExportBracketSnapshot выгружает JSON-снапшот завершённой сетки и
// возвращает публичный URL.
func (s *exportService) ExportBracketSnapshot(ctx context.Context, bracketID int) (string, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return "", mapRepoError(err)
	}
	if bracket.Status != models.BracketStatusCompleted {
		return "", ErrBracketNotCompleted
	}

	snapshot := BracketSnapshot{Bracket: bracket, ExportedAt: time.Now().UTC()}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, gErr := s.entryRepo.ListByBracket(gCtx, bracketID)
		if gErr != nil {
			return gErr
		}
		snapshot.Entries = entries
		return nil
	})
	g.Go(func() error {
		games, gErr := s.gameRepo.ListByBracket(gCtx, bracketID)
		if gErr != nil {
			return gErr
		}
		snapshot.Games = games
		return nil
	})
	if err = g.Wait(); err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal bracket snapshot: %w", err)
	}

	key := fmt.Sprintf("brackets/%d/%d/snapshot-%s.json",
		bracket.EventID, bracket.ID, snapshot.ExportedAt.Format("20060102T150405Z"))

	result, err := s.store.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to upload bracket snapshot: %w", err)
	}

	s.logger.Info("bracket snapshot exported",
		slog.Int("bracket_id", bracket.ID),
		slog.String("key", result.Key),
	)
	return result.Location, nil
}
