package handlers

import (
	"net/http"

	"github.com/bracketlab/bracket-engine/middleware"
	"github.com/bracketlab/bracket-engine/services"
)

type EventHandler struct {
	eventService services.EventService
}

func NewEventHandler(es services.EventService) *EventHandler {
	return &EventHandler{eventService: es}
}

type createTeamInput struct {
	Name string `json:"name"`
}

// CreateHandler обрабатывает POST /events
func (h *EventHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create events")
		return
	}

	var params services.CreateEventParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.CreateEvent(r.Context(), actor, params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateTeamHandler обрабатывает POST /events/{eventID}/teams
func (h *EventHandler) CreateTeamHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to register teams")
		return
	}

	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input createTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.eventService.RegisterTeam(r.Context(), actor, eventID, input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitScoreHandler обрабатывает POST /events/{eventID}/submissions
func (h *EventHandler) SubmitScoreHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var params services.SubmitScoreParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sub, err := h.eventService.SubmitScore(r.Context(), eventID, params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"submission": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
