package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bracketlab/bracket-engine/models"
)

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture()
		event, err := f.eventService.CreateEvent(ctx, "admin", CreateEventParams{
			Name:      "Spring Open",
			StartDate: time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.NotZero(t, event.ID)
		assert.Equal(t, "Spring Open", event.Name)

		audit, err := (fakeAuditRepo{f.store}).ListByEvent(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "event_created", audit[0].Action)
	})

	t.Run("name is required", func(t *testing.T) {
		f := newFixture()
		_, err := f.eventService.CreateEvent(ctx, "admin", CreateEventParams{})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
}

func TestRegisterTeam(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")

		team, err := f.eventService.RegisterTeam(ctx, "admin", event.ID, "Iron Wolves")
		require.NoError(t, err)
		assert.NotZero(t, team.ID)
		assert.Equal(t, event.ID, team.EventID)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture()
		_, err := f.eventService.RegisterTeam(ctx, "admin", 42, "Iron Wolves")
		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func TestSubmitScore(t *testing.T) {
	ctx := context.Background()

	t.Run("seeding submission queues the slot", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		round := 1
		score := 287

		sub, err := f.eventService.SubmitScore(ctx, event.ID, SubmitScoreParams{
			Kind:   models.SubmissionKindSeeding,
			TeamID: &team.ID,
			Round:  &round,
			Score1: &score,
		})
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionStatusPending, sub.Status)

		items, err := f.queueService.ListQueue(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.QueueStatusQueued, items[0].Status)
	})

	t.Run("accepted slot is not re-queued by a late submission", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		team := f.addTeam(event.ID, "A")
		first := f.addSeedingSubmission(event.ID, team.ID, 1, 287)
		_, err := f.scoreService.AcceptSeedingScore(ctx, first.ID, "reviewer", false)
		require.NoError(t, err)

		round := 1
		score := 301
		_, err = f.eventService.SubmitScore(ctx, event.ID, SubmitScoreParams{
			Kind:   models.SubmissionKindSeeding,
			TeamID: &team.ID,
			Round:  &round,
			Score1: &score,
		})
		require.NoError(t, err)

		items, err := f.queueService.ListQueue(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, models.QueueStatusCompleted, items[0].Status)
	})

	t.Run("bracket submission checks the game's event", func(t *testing.T) {
		f, _, teamIDs, bracket := setupFourTeams(t)
		other := f.addEvent("Fall Open")
		g1 := f.gameByNumber(bracket.ID, 1)

		_, err := f.eventService.SubmitScore(ctx, other.ID, SubmitScoreParams{
			Kind:          models.SubmissionKindBracket,
			BracketGameID: &g1.ID,
			WinnerTeamID:  &teamIDs[0],
		})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("foreign team is rejected", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")
		other := f.addEvent("Fall Open")
		stranger := f.addTeam(other.ID, "X")
		round := 1
		score := 100

		_, err := f.eventService.SubmitScore(ctx, event.ID, SubmitScoreParams{
			Kind:   models.SubmissionKindSeeding,
			TeamID: &stranger.ID,
			Round:  &round,
			Score1: &score,
		})
		assert.ErrorIs(t, err, ErrTeamOutsideEvent)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		f := newFixture()
		event := f.addEvent("Spring Open")

		_, err := f.eventService.SubmitScore(ctx, event.ID, SubmitScoreParams{Kind: "exhibition"})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("submitted bracket score is acceptable end to end", func(t *testing.T) {
		f, event, teamIDs, bracket := setupFourTeams(t)
		g1 := f.gameByNumber(bracket.ID, 1)
		s1, s2 := 25, 13

		sub, err := f.eventService.SubmitScore(ctx, event.ID, SubmitScoreParams{
			Kind:          models.SubmissionKindBracket,
			BracketGameID: &g1.ID,
			WinnerTeamID:  &teamIDs[0],
			Score1:        &s1,
			Score2:        &s2,
		})
		require.NoError(t, err)

		game, err := f.scoreService.AcceptBracketScore(ctx, sub.ID, "reviewer", false)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCompleted, game.Status)
		require.NotNil(t, game.WinnerID)
		assert.Equal(t, teamIDs[0], *game.WinnerID)
	})
}
