package handlers

import (
	"net/http"

	"github.com/bracketlab/bracket-engine/middleware"
	"github.com/bracketlab/bracket-engine/services"
)

type ScoreHandler struct {
	scoreService  services.ScoreService
	revertService services.RevertService
}

func NewScoreHandler(ss services.ScoreService, rs services.RevertService) *ScoreHandler {
	return &ScoreHandler{
		scoreService:  ss,
		revertService: rs,
	}
}

type acceptInput struct {
	Force bool `json:"force"`
}

type bulkAcceptInput struct {
	SubmissionIDs []int `json:"submission_ids"`
}

type revertInput struct {
	Confirm bool `json:"confirm"`
}

// AcceptSeedingHandler обрабатывает POST /submissions/{submissionID}/accept-seeding
func (h *ScoreHandler) AcceptSeedingHandler(w http.ResponseWriter, r *http.Request) {
	reviewer, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to accept scores")
		return
	}

	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input acceptInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	score, err := h.scoreService.AcceptSeedingScore(r.Context(), submissionID, reviewer, input.Force)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"seeding_score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AcceptBracketHandler обрабатывает POST /submissions/{submissionID}/accept-bracket
func (h *ScoreHandler) AcceptBracketHandler(w http.ResponseWriter, r *http.Request) {
	reviewer, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to accept scores")
		return
	}

	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input acceptInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	game, err := h.scoreService.AcceptBracketScore(r.Context(), submissionID, reviewer, input.Force)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkAcceptHandler обрабатывает POST /events/{eventID}/submissions/bulk-accept
func (h *ScoreHandler) BulkAcceptHandler(w http.ResponseWriter, r *http.Request) {
	reviewer, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to accept scores")
		return
	}

	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input bulkAcceptInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.scoreService.BulkAccept(r.Context(), eventID, input.SubmissionIDs, reviewer)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bulk_result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RevertSeedingHandler обрабатывает POST /submissions/{submissionID}/revert-seeding
func (h *ScoreHandler) RevertSeedingHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to revert scores")
		return
	}

	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.revertService.RevertSeeding(r.Context(), submissionID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"reverted": true}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RevertBracketHandler обрабатывает POST /submissions/{submissionID}/revert-bracket
// Без confirm=true непустой каскад возвращает отчёт о последствиях,
// не изменяя данные.
func (h *ScoreHandler) RevertBracketHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to revert scores")
		return
	}

	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input revertInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	outcome, err := h.revertService.RevertBracket(r.Context(), submissionID, actor, input.Confirm)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.RequiresConfirmation {
		// 202: запрос понят, но без подтверждения ничего не изменено.
		status = http.StatusAccepted
	}
	if err := writeJSON(w, status, jsonResponse{"outcome": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
