package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bracketlab/bracket-engine/brackets"
	"github.com/bracketlab/bracket-engine/models"
	"github.com/bracketlab/bracket-engine/repositories"
)

// Фейковые репозитории держат состояние в памяти и повторяют контракт
// postgres-реализаций: чтение отдаёт копии, запись идёт через Update.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memStore struct {
	mu sync.Mutex

	nextID      int
	events      map[int]models.Event
	teams       map[int]models.Team
	templates   map[int][]models.BracketTemplate
	brackets    map[int]models.Bracket
	entries     map[int][]models.BracketEntry
	games       map[int]models.BracketGame
	scores      map[int]models.SeedingScore
	submissions map[int]models.ScoreSubmission
	queue       []models.GameQueueItem
	audit       []models.AuditLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		events:      make(map[int]models.Event),
		teams:       make(map[int]models.Team),
		templates:   make(map[int][]models.BracketTemplate),
		brackets:    make(map[int]models.Bracket),
		entries:     make(map[int][]models.BracketEntry),
		games:       make(map[int]models.BracketGame),
		scores:      make(map[int]models.SeedingScore),
		submissions: make(map[int]models.ScoreSubmission),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

type fakeEventRepo struct{ s *memStore }

func (r fakeEventRepo) Create(_ context.Context, _ repositories.SQLExecutor, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.id()
	e.CreatedAt = time.Now()
	r.s.events[e.ID] = *e
	return nil
}

func (r fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return &e, nil
}

type fakeTeamRepo struct{ s *memStore }

func (r fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.teams[t.ID] = *t
	return nil
}

func (r fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &t, nil
}

func (r fakeTeamRepo) ListByEvent(_ context.Context, eventID int) ([]*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Team
	for _, t := range r.s.teams {
		if t.EventID == eventID {
			team := t
			out = append(out, &team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTeamRepo) ListByIDs(_ context.Context, ids []int) ([]*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Team
	for _, id := range ids {
		if t, ok := r.s.teams[id]; ok {
			team := t
			out = append(out, &team)
		}
	}
	return out, nil
}

type fakeTemplateRepo struct{ s *memStore }

func (r fakeTemplateRepo) UpsertForSize(_ context.Context, _ repositories.SQLExecutor, size int, rows []models.BracketTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := make([]models.BracketTemplate, len(rows))
	copy(stored, rows)
	r.s.templates[size] = stored
	return nil
}

func (r fakeTemplateRepo) ListBySize(_ context.Context, size int) ([]models.BracketTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows, ok := r.s.templates[size]
	if !ok || len(rows) == 0 {
		return nil, repositories.ErrTemplateNotFound
	}
	out := make([]models.BracketTemplate, len(rows))
	copy(out, rows)
	return out, nil
}

type fakeBracketRepo struct{ s *memStore }

func (r fakeBracketRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Bracket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = r.s.id()
	b.CreatedAt = time.Now()
	r.s.brackets[b.ID] = *b
	return nil
}

func (r fakeBracketRepo) GetByID(_ context.Context, id int) (*models.Bracket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	b.Entries = nil
	b.Games = nil
	return &b, nil
}

func (r fakeBracketRepo) ListByEvent(_ context.Context, eventID int) ([]*models.Bracket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Bracket
	for _, b := range r.s.brackets {
		if b.EventID == eventID {
			bracket := b
			out = append(out, &bracket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeBracketRepo) ListActive(_ context.Context) ([]*models.Bracket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Bracket
	for _, b := range r.s.brackets {
		if b.Status == models.BracketStatusActive {
			bracket := b
			out = append(out, &bracket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeBracketRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.BracketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Status = status
	r.s.brackets[id] = b
	return nil
}

func (r fakeBracketRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id int, winnerTeamID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.WinnerTeamID = winnerTeamID
	r.s.brackets[id] = b
	return nil
}

type fakeEntryRepo struct{ s *memStore }

func (r fakeEntryRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, entries []models.BracketEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	bracketID := entries[0].BracketID
	stored := make([]models.BracketEntry, len(entries))
	for i, e := range entries {
		e.ID = r.s.id()
		stored[i] = e
	}
	r.s.entries[bracketID] = stored
	return nil
}

func (r fakeEntryRepo) ListByBracket(_ context.Context, bracketID int) ([]*models.BracketEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BracketEntry
	for _, e := range r.s.entries[bracketID] {
		entry := e
		out = append(out, &entry)
	}
	return out, nil
}

type fakeGameRepo struct{ s *memStore }

func (r fakeGameRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, games []*models.BracketGame) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range games {
		g.ID = r.s.id()
		g.CreatedAt = time.Now()
		r.s.games[g.ID] = *g
	}
	return nil
}

func (r fakeGameRepo) GetByID(_ context.Context, id int) (*models.BracketGame, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	return &g, nil
}

func (r fakeGameRepo) ListByBracket(_ context.Context, bracketID int) ([]*models.BracketGame, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BracketGame
	for _, g := range r.s.games {
		if g.BracketID == bracketID {
			game := g
			out = append(out, &game)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameNumber < out[j].GameNumber })
	return out, nil
}

func (r fakeGameRepo) Update(_ context.Context, _ repositories.SQLExecutor, game *models.BracketGame) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.games[game.ID]; !ok {
		return repositories.ErrGameNotFound
	}
	r.s.games[game.ID] = *game
	return nil
}

type fakeSeedingRepo struct{ s *memStore }

func (r fakeSeedingRepo) GetByTeamRound(_ context.Context, eventID, teamID, round int) (*models.SeedingScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sc := range r.s.scores {
		if sc.EventID == eventID && sc.TeamID == teamID && sc.Round == round {
			score := sc
			return &score, nil
		}
	}
	return nil, repositories.ErrSeedingScoreNotFound
}

func (r fakeSeedingRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, score *models.SeedingScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sc := range r.s.scores {
		if sc.EventID == score.EventID && sc.TeamID == score.TeamID && sc.Round == score.Round {
			score.ID = id
			score.CreatedAt = sc.CreatedAt
			r.s.scores[id] = *score
			return nil
		}
	}
	score.ID = r.s.id()
	score.CreatedAt = time.Now()
	r.s.scores[score.ID] = *score
	return nil
}

func (r fakeSeedingRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.scores[id]; !ok {
		return repositories.ErrSeedingScoreNotFound
	}
	delete(r.s.scores, id)
	return nil
}

type fakeSubmissionRepo struct{ s *memStore }

func (r fakeSubmissionRepo) Create(_ context.Context, _ repositories.SQLExecutor, sub *models.ScoreSubmission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub.ID = r.s.id()
	sub.CreatedAt = time.Now()
	r.s.submissions[sub.ID] = *sub
	return nil
}

func (r fakeSubmissionRepo) GetByID(_ context.Context, id int) (*models.ScoreSubmission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	return &sub, nil
}

func (r fakeSubmissionRepo) ListByIDsForEvent(_ context.Context, eventID int, ids []int) ([]*models.ScoreSubmission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ScoreSubmission
	for _, id := range ids {
		if sub, ok := r.s.submissions[id]; ok && sub.EventID == eventID {
			s := sub
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeSubmissionRepo) MarkAccepted(_ context.Context, _ repositories.SQLExecutor, id int, reviewer string, reviewedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	sub.Status = models.SubmissionStatusAccepted
	sub.ReviewedBy = &reviewer
	sub.ReviewedAt = &reviewedAt
	r.s.submissions[id] = sub
	return nil
}

func (r fakeSubmissionRepo) MarkPending(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	sub.Status = models.SubmissionStatusPending
	sub.ReviewedBy = nil
	sub.ReviewedAt = nil
	r.s.submissions[id] = sub
	return nil
}

func (r fakeSubmissionRepo) SetSeedingScoreLink(_ context.Context, _ repositories.SQLExecutor, id int, seedingScoreID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	sub.SeedingScoreID = seedingScoreID
	r.s.submissions[id] = sub
	return nil
}

type fakeQueueRepo struct{ s *memStore }

func (r fakeQueueRepo) UpsertGameItem(_ context.Context, _ repositories.SQLExecutor, eventID, bracketGameID int, status models.QueueStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, item := range r.s.queue {
		if item.EventID == eventID && item.BracketGameID != nil && *item.BracketGameID == bracketGameID {
			r.s.queue[i].Status = status
			r.s.queue[i].UpdatedAt = time.Now()
			return nil
		}
	}
	gameID := bracketGameID
	r.s.queue = append(r.s.queue, models.GameQueueItem{
		ID:            r.s.id(),
		EventID:       eventID,
		BracketGameID: &gameID,
		Status:        status,
		UpdatedAt:     time.Now(),
	})
	return nil
}

func (r fakeQueueRepo) UpsertSeedingItem(_ context.Context, _ repositories.SQLExecutor, eventID, teamID, round int, status models.QueueStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, item := range r.s.queue {
		if item.EventID == eventID && item.TeamID != nil && *item.TeamID == teamID && item.Round != nil && *item.Round == round {
			r.s.queue[i].Status = status
			r.s.queue[i].UpdatedAt = time.Now()
			return nil
		}
	}
	t, rd := teamID, round
	r.s.queue = append(r.s.queue, models.GameQueueItem{
		ID:        r.s.id(),
		EventID:   eventID,
		TeamID:    &t,
		Round:     &rd,
		Status:    status,
		UpdatedAt: time.Now(),
	})
	return nil
}

func (r fakeQueueRepo) ListByEvent(_ context.Context, eventID int) ([]*models.GameQueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.GameQueueItem
	for _, item := range r.s.queue {
		if item.EventID == eventID {
			qi := item
			out = append(out, &qi)
		}
	}
	return out, nil
}

type fakeAuditRepo struct{ s *memStore }

func (r fakeAuditRepo) Append(_ context.Context, _ repositories.SQLExecutor, entry *models.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.id()
	entry.CreatedAt = time.Now()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r fakeAuditRepo) ListByEvent(_ context.Context, eventID int) ([]*models.AuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLogEntry
	for _, e := range r.s.audit {
		if e.EventID == eventID {
			entry := e
			out = append(out, &entry)
		}
	}
	return out, nil
}

// fixture собирает сервисный слой на фейковых репозиториях.
type fixture struct {
	store *memStore

	bracketService BracketService
	scoreService   ScoreService
	revertService  RevertService
	queueService   QueueService
	eventService   EventService
}

func newFixture() *fixture {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := brackets.NewHub()
	go hub.Run()

	txm := fakeTxManager{}
	eventRepo := fakeEventRepo{store}
	teamRepo := fakeTeamRepo{store}
	templateRepo := fakeTemplateRepo{store}
	bracketRepo := fakeBracketRepo{store}
	entryRepo := fakeEntryRepo{store}
	gameRepo := fakeGameRepo{store}
	seedingRepo := fakeSeedingRepo{store}
	submissionRepo := fakeSubmissionRepo{store}
	queueRepo := fakeQueueRepo{store}
	auditRepo := fakeAuditRepo{store}

	bracketService := NewBracketService(
		txm, eventRepo, teamRepo, templateRepo, bracketRepo,
		entryRepo, gameRepo, queueRepo, auditRepo, hub, logger,
	)
	scoreService := NewScoreService(
		txm, submissionRepo, seedingRepo, gameRepo, bracketRepo,
		queueRepo, auditRepo, bracketService, hub, logger,
	)
	revertService := NewRevertService(
		txm, submissionRepo, seedingRepo, gameRepo, bracketRepo,
		queueRepo, auditRepo, hub, logger,
	)
	queueService := NewQueueService(eventRepo, queueRepo)
	eventService := NewEventService(
		txm, eventRepo, teamRepo, gameRepo, bracketRepo,
		submissionRepo, seedingRepo, queueRepo, auditRepo, logger,
	)

	return &fixture{
		store:          store,
		bracketService: bracketService,
		scoreService:   scoreService,
		revertService:  revertService,
		queueService:   queueService,
		eventService:   eventService,
	}
}

func (f *fixture) addEvent(name string) *models.Event {
	e := &models.Event{Name: name, StartDate: time.Now()}
	_ = (fakeEventRepo{f.store}).Create(context.Background(), nil, e)
	return e
}

func (f *fixture) addTeam(eventID int, name string) *models.Team {
	t := &models.Team{EventID: eventID, Name: name}
	_ = (fakeTeamRepo{f.store}).Create(context.Background(), nil, t)
	return t
}

func (f *fixture) addBracketSubmission(eventID, gameID, winnerTeamID, score1, score2 int) *models.ScoreSubmission {
	sub := &models.ScoreSubmission{
		EventID:       eventID,
		Kind:          models.SubmissionKindBracket,
		BracketGameID: &gameID,
		WinnerTeamID:  &winnerTeamID,
		Score1:        &score1,
		Score2:        &score2,
		Status:        models.SubmissionStatusPending,
	}
	_ = (fakeSubmissionRepo{f.store}).Create(context.Background(), nil, sub)
	return sub
}

func (f *fixture) addSeedingSubmission(eventID, teamID, round, score int) *models.ScoreSubmission {
	sub := &models.ScoreSubmission{
		EventID: eventID,
		Kind:    models.SubmissionKindSeeding,
		TeamID:  &teamID,
		Round:   &round,
		Score1:  &score,
		Status:  models.SubmissionStatusPending,
	}
	_ = (fakeSubmissionRepo{f.store}).Create(context.Background(), nil, sub)
	return sub
}

func (f *fixture) game(id int) models.BracketGame {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.games[id]
}

func (f *fixture) gameByNumber(bracketID, num int) models.BracketGame {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, g := range f.store.games {
		if g.BracketID == bracketID && g.GameNumber == num {
			return g
		}
	}
	return models.BracketGame{}
}

func (f *fixture) submission(id int) models.ScoreSubmission {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.submissions[id]
}

func (f *fixture) bracket(id int) models.Bracket {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.brackets[id]
}

// createBracket создаёт сетку через сервис; ранги идут по порядку teamIDs.
func (f *fixture) createBracket(t *testing.T, eventID int, name string, teamIDs []int, size int) *models.Bracket {
	t.Helper()
	ranked := make([]models.RankedTeam, 0, len(teamIDs))
	for i, id := range teamIDs {
		ranked = append(ranked, models.RankedTeam{TeamID: id, Rank: i + 1})
	}
	bracket, err := f.bracketService.CreateBracket(context.Background(), "operator", CreateBracketParams{
		EventID:     eventID,
		Name:        name,
		Size:        size,
		RankedTeams: ranked,
	})
	if err != nil {
		t.Fatalf("createBracket: %v", err)
	}
	return bracket
}

// acceptGame подаёт и сразу принимает результат игры сетки.
func (f *fixture) acceptGame(t *testing.T, eventID, gameID, winnerTeamID, score1, score2 int) *models.ScoreSubmission {
	t.Helper()
	sub := f.addBracketSubmission(eventID, gameID, winnerTeamID, score1, score2)
	if _, err := f.scoreService.AcceptBracketScore(context.Background(), sub.ID, "reviewer", false); err != nil {
		t.Fatalf("acceptGame %d: %v", gameID, err)
	}
	return sub
}

func (s *memStore) seedingScoreFor(eventID, teamID, round int) (models.SeedingScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scores {
		if sc.EventID == eventID && sc.TeamID == teamID && sc.Round == round {
			return sc, nil
		}
	}
	return models.SeedingScore{}, repositories.ErrSeedingScoreNotFound
}

func (f *fixture) queueItemForGame(eventID, gameID int) *models.GameQueueItem {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, item := range f.store.queue {
		if item.EventID == eventID && item.BracketGameID != nil && *item.BracketGameID == gameID {
			qi := item
			return &qi
		}
	}
	return nil
}
