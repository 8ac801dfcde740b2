package handlers

import (
	"net/http"

	"github.com/bracketlab/bracket-engine/services"
)

type QueueHandler struct {
	queueService services.QueueService
}

func NewQueueHandler(qs services.QueueService) *QueueHandler {
	return &QueueHandler{queueService: qs}
}

// ListHandler обрабатывает GET /events/{eventID}/queue
func (h *QueueHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	items, err := h.queueService.ListQueue(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"queue": items}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
