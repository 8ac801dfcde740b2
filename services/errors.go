package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed        = errors.New("validation failed")
	ErrSubmissionMissingFields = errors.New("submission is missing required fields")
	ErrSubmissionNotAccepted   = errors.New("submission has not been accepted")
	ErrSubmissionKindMismatch  = errors.New("submission kind does not match the operation")
	ErrInvalidWinner           = errors.New("declared winner is not one of the game's teams")
	ErrTeamOutsideEvent        = errors.New("team does not belong to the bracket's event")
	ErrBracketNameRequired     = errors.New("bracket name is required")
	ErrBracketNotCompleted     = errors.New("bracket is not completed yet")

	// Ошибки конфликтов
	ErrScoreConflict = errors.New("a result is already recorded")

	// Ошибки, специфичные для сущностей (дают больше контекста, чем ErrNotFound)
	ErrEventNotFound      = errors.New("event not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrBracketNotFound    = errors.New("bracket not found")
	ErrGameNotFound       = errors.New("bracket game not found")
	ErrSubmissionNotFound = errors.New("score submission not found")
	ErrTemplateNotFound   = errors.New("no bracket template for requested size")
)

// ConflictError сообщает о попытке перезаписать уже принятый результат.
// Несёт оба значения, чтобы вызывающий мог осознанно запросить перезапись.
type ConflictError struct {
	Entity    string `json:"entity"`
	Existing  string `json:"existing"`
	Attempted string `json:"attempted"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already has a recorded result %q, attempted %q (pass force to overwrite)",
		e.Entity, e.Existing, e.Attempted)
}

func (e *ConflictError) Unwrap() error { return ErrScoreConflict }
