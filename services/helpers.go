package services

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/bracketlab/bracket-engine/repositories"
)

// Действия и типы сущностей журнала аудита.
const (
	actionSubmissionAccepted  = "submission_accepted"
	actionSubmissionReverted  = "submission_reverted"
	actionGameCompleted       = "game_completed"
	actionGameReverted        = "game_reverted"
	actionSeedingScoreWritten = "seeding_score_written"
	actionSeedingScoreDeleted = "seeding_score_deleted"
	actionBracketCreated      = "bracket_created"
	actionEventCreated        = "event_created"
	actionTeamCreated         = "team_created"

	entitySubmission   = "score_submission"
	entityBracketGame  = "bracket_game"
	entitySeedingScore = "seeding_score"
	entityBracket      = "bracket"
	entityEvent        = "event"
	entityTeam         = "team"
)

// snapshotJSON сериализует срез состояния сущности для журнала аудита.
// Снимки непрозрачны для движка, ошибка маршалинга не должна валить операцию.
func snapshotJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"snapshot_failed":true}`)
	}
	return b
}

// mapRepoError переводит ошибки хранилища в ошибки сервисного слоя,
// чтобы HTTP-маппинг не зависел от пакета репозиториев.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrSubmissionNotFound):
		return ErrSubmissionNotFound
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, repositories.ErrTemplateNotFound):
		return ErrTemplateNotFound
	default:
		return err
	}
}

func eventRoom(eventID int) string {
	return "event_" + strconv.Itoa(eventID)
}
