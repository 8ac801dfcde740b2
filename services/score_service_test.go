package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketlab/bracket-engine/models"
)

// setupFourTeams создаёт событие, четыре команды и активную сетку на 4.
func setupFourTeams(t *testing.T) (*fixture, *models.Event, []int, *models.Bracket) {
	t.Helper()
	f := newFixture()
	event := f.addEvent("Spring Open")
	var teamIDs []int
	for _, name := range []string{"A", "B", "C", "D"} {
		teamIDs = append(teamIDs, f.addTeam(event.ID, name).ID)
	}
	bracket := f.createBracket(t, event.ID, "Main", teamIDs, 4)
	return f, event, teamIDs, bracket
}

func TestAcceptSeedingScore(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path writes score and completes queue slot", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		sub := f.addSeedingSubmission(event.ID, team.ID, 1, 287)

		score, err := f.scoreService.AcceptSeedingScore(ctx, sub.ID, "reviewer", false)
		require.NoError(t, err)
		assert.Equal(t, 287, score.Score)
		assert.Equal(t, team.ID, score.TeamID)
		require.NotNil(t, score.SubmissionID)
		assert.Equal(t, sub.ID, *score.SubmissionID)

		stored := f.submission(sub.ID)
		assert.Equal(t, models.SubmissionStatusAccepted, stored.Status)
		require.NotNil(t, stored.SeedingScoreID)
		assert.Equal(t, score.ID, *stored.SeedingScoreID)
		require.NotNil(t, stored.ReviewedBy)
		assert.Equal(t, "reviewer", *stored.ReviewedBy)

		items, err := f.queueService.ListQueue(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.QueueStatusCompleted, items[0].Status)

		audit, err := (fakeAuditRepo{f.store}).ListByEvent(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, audit, 2)
		assert.Equal(t, "submission_accepted", audit[0].Action)
		assert.Equal(t, "seeding_score_written", audit[1].Action)
	})

	t.Run("existing score conflicts without force", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		first := f.addSeedingSubmission(event.ID, team.ID, 1, 287)
		_, err := f.scoreService.AcceptSeedingScore(ctx, first.ID, "reviewer", false)
		require.NoError(t, err)

		second := f.addSeedingSubmission(event.ID, team.ID, 1, 301)
		_, err = f.scoreService.AcceptSeedingScore(ctx, second.ID, "reviewer", false)
		require.ErrorIs(t, err, ErrScoreConflict)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "287", conflict.Existing)
		assert.Equal(t, "301", conflict.Attempted)

		// Поданный результат остался нетронутым.
		assert.Equal(t, models.SubmissionStatusPending, f.submission(second.ID).Status)
	})

	t.Run("force overwrites the existing score", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		first := f.addSeedingSubmission(event.ID, team.ID, 1, 287)
		_, err := f.scoreService.AcceptSeedingScore(ctx, first.ID, "reviewer", false)
		require.NoError(t, err)

		second := f.addSeedingSubmission(event.ID, team.ID, 1, 301)
		score, err := f.scoreService.AcceptSeedingScore(ctx, second.ID, "reviewer", true)
		require.NoError(t, err)
		assert.Equal(t, 301, score.Score)

		// Пара (команда, раунд) по-прежнему одна.
		f.store.mu.Lock()
		assert.Len(t, f.store.scores, 1)
		f.store.mu.Unlock()
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		sub := &models.ScoreSubmission{
			EventID: event.ID,
			Kind:    models.SubmissionKindSeeding,
			TeamID:  &team.ID,
			Status:  models.SubmissionStatusPending,
		}
		require.NoError(t, (fakeSubmissionRepo{f.store}).Create(ctx, nil, sub))

		_, err := f.scoreService.AcceptSeedingScore(ctx, sub.ID, "reviewer", false)
		assert.ErrorIs(t, err, ErrSubmissionMissingFields)
	})

	t.Run("bracket submission is rejected", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[0], 25, 13)

		_, err := f.scoreService.AcceptSeedingScore(ctx, sub.ID, "reviewer", false)
		assert.ErrorIs(t, err, ErrSubmissionKindMismatch)
	})

	t.Run("unknown submission", func(t *testing.T) {
		f := newFixture()
		_, err := f.scoreService.AcceptSeedingScore(ctx, 999, "reviewer", false)
		assert.ErrorIs(t, err, ErrSubmissionNotFound)
	})
}

func TestAcceptBracketScore(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path advances winner and loser", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[0], 25, 13)

		game, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCompleted, game.Status)
		require.NotNil(t, game.WinnerID)
		assert.Equal(t, teamIDs[0], *game.WinnerID)
		require.NotNil(t, game.LoserID)
		assert.Equal(t, teamIDs[3], *game.LoserID)
		require.NotNil(t, game.Score1)
		assert.Equal(t, 25, *game.Score1)

		// Победитель идёт в финал победителей, проигравший падает вниз.
		g3 := f.gameByNumber(bracket.ID, 3)
		require.NotNil(t, g3.Team1ID)
		assert.Equal(t, teamIDs[0], *g3.Team1ID)
		g4 := f.gameByNumber(bracket.ID, 4)
		require.NotNil(t, g4.Team1ID)
		assert.Equal(t, teamIDs[3], *g4.Team1ID)

		item := f.queueItemForGame(event.ID, g1.ID)
		require.NotNil(t, item)
		assert.Equal(t, models.QueueStatusCompleted, item.Status)

		assert.Equal(t, models.SubmissionStatusAccepted, f.submission(sub.ID).Status)
	})

	t.Run("second semifinal promotes the next round", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		g2 := f.gameByNumber(bracket.ID, 2)
		f.acceptGame(t, event.ID, g1.ID, teamIDs[0], 25, 13)
		f.acceptGame(t, event.ID, g2.ID, teamIDs[2], 25, 20)

		g3 := f.gameByNumber(bracket.ID, 3)
		assert.Equal(t, models.GameStatusReady, g3.Status)
		g4 := f.gameByNumber(bracket.ID, 4)
		assert.Equal(t, models.GameStatusReady, g4.Status)

		// Обе новые игры встали в очередь.
		assert.NotNil(t, f.queueItemForGame(event.ID, g3.ID))
		assert.NotNil(t, f.queueItemForGame(event.ID, g4.ID))
	})

	t.Run("winner outside the game is rejected", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[2], 25, 13)

		_, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		assert.ErrorIs(t, err, ErrInvalidWinner)
	})

	t.Run("decided game conflicts without force", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		f.acceptGame(t, event.ID, g1.ID, teamIDs[0], 25, 13)

		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[3], 25, 27)
		_, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		require.ErrorIs(t, err, ErrScoreConflict)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "bracket_game", conflict.Entity)
	})

	t.Run("force overwrites and re-advances", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		f.acceptGame(t, event.ID, g1.ID, teamIDs[0], 25, 13)

		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[3], 25, 27)
		game, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", true)
		require.NoError(t, err)
		assert.Equal(t, teamIDs[3], *game.WinnerID)

		// Слоты следующих игр перезаписаны новым исходом.
		g3 := f.gameByNumber(bracket.ID, 3)
		require.NotNil(t, g3.Team1ID)
		assert.Equal(t, teamIDs[3], *g3.Team1ID)
		g4 := f.gameByNumber(bracket.ID, 4)
		require.NotNil(t, g4.Team1ID)
		assert.Equal(t, teamIDs[0], *g4.Team1ID)
	})

	t.Run("same winner twice is idempotent without force", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		f.acceptGame(t, event.ID, g1.ID, teamIDs[0], 25, 13)

		sub := f.addBracketSubmission(event.ID, g1.ID, teamIDs[0], 25, 17)
		game, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		require.NoError(t, err)
		assert.Equal(t, teamIDs[0], *game.WinnerID)
	})

	t.Run("missing winner is rejected", func(t *testing.T) {
		f, event, _, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		sub := &models.ScoreSubmission{
			EventID:       event.ID,
			Kind:          models.SubmissionKindBracket,
			BracketGameID: &g1.ID,
			Status:        models.SubmissionStatusPending,
		}
		require.NoError(t, (fakeSubmissionRepo{f.store}).Create(ctx, nil, sub))

		_, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		assert.ErrorIs(t, err, ErrSubmissionMissingFields)
	})
}

func TestBulkAccept(t *testing.T) {
	ctx := context.Background()
	f, event, teamIDs, bracket := setupFourTeams(t)
	g1 := f.gameByNumber(bracket.ID, 1)

	// Уже принятый кандидат.
	accepted := f.addSeedingSubmission(event.ID, teamIDs[2], 1, 250)
	_, err := f.scoreService.AcceptSeedingScore(ctx, accepted.ID, "reviewer", false)
	require.NoError(t, err)

	valid := f.addBracketSubmission(event.ID, g1.ID, teamIDs[0], 25, 13)
	seeding := f.addSeedingSubmission(event.ID, teamIDs[1], 1, 298)
	duplicate := f.addBracketSubmission(event.ID, g1.ID, teamIDs[3], 25, 27)

	result, err := f.scoreService.BulkAccept(ctx, event.ID,
		[]int{valid.ID, seeding.ID, 999, accepted.ID, duplicate.ID}, "reviewer")
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{valid.ID, seeding.ID}, result.Accepted)
	require.Len(t, result.Skipped, 3)
	reasons := make(map[int]string, len(result.Skipped))
	for _, s := range result.Skipped {
		reasons[s.SubmissionID] = s.Reason
	}
	assert.Contains(t, reasons[999], "not found")
	assert.Contains(t, reasons[accepted.ID], "already accepted")
	assert.Contains(t, reasons[duplicate.ID], "earlier in this batch")

	// Принятая пачка применена: игра решена первым кандидатом.
	stored := f.game(g1.ID)
	assert.Equal(t, models.GameStatusCompleted, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, teamIDs[0], *stored.WinnerID)

	assert.Equal(t, models.SubmissionStatusAccepted, f.submission(valid.ID).Status)
	assert.Equal(t, models.SubmissionStatusAccepted, f.submission(seeding.ID).Status)
	assert.Equal(t, models.SubmissionStatusPending, f.submission(duplicate.ID).Status)
}

func TestBulkAcceptDeduplicatesSeedingSlots(t *testing.T) {
	ctx := context.Background()
	f, event, teamIDs, _ := setupFourTeams(t)

	// Две заявки на одну и ту же пару (команда, раунд) в одной пачке:
	// обе валидны относительно состояния до транзакции, но слот должен
	// достаться только первой.
	first := f.addSeedingSubmission(event.ID, teamIDs[0], 1, 100)
	second := f.addSeedingSubmission(event.ID, teamIDs[0], 1, 200)
	other := f.addSeedingSubmission(event.ID, teamIDs[1], 1, 310)

	result, err := f.scoreService.BulkAccept(ctx, event.ID,
		[]int{first.ID, second.ID, other.ID}, "reviewer")
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{first.ID, other.ID}, result.Accepted)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, second.ID, result.Skipped[0].SubmissionID)
	assert.Contains(t, result.Skipped[0].Reason, "earlier in this batch")

	// Записан результат первой заявки, вторая осталась в очереди.
	stored, err := f.store.seedingScoreFor(event.ID, teamIDs[0], 1)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Score)
	assert.Equal(t, models.SubmissionStatusAccepted, f.submission(first.ID).Status)
	assert.Equal(t, models.SubmissionStatusPending, f.submission(second.ID).Status)

	// Другая команда не задета соседним дублем.
	assert.Equal(t, models.SubmissionStatusAccepted, f.submission(other.ID).Status)
}
