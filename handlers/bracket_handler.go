package handlers

import (
	"net/http"

	"github.com/bracketlab/bracket-engine/middleware"
	"github.com/bracketlab/bracket-engine/services"
)

type BracketHandler struct {
	bracketService services.BracketService
	exportService  services.ExportService
}

func NewBracketHandler(bs services.BracketService, es services.ExportService) *BracketHandler {
	return &BracketHandler{
		bracketService: bs,
		exportService:  es,
	}
}

// CreateHandler обрабатывает POST /brackets
func (h *BracketHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create bracket")
		return
	}

	var params services.CreateBracketParams
	if err := readJSON(w, r, &params); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.CreateBracket(r.Context(), actor, params)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /brackets/{bracketID}
func (h *BracketHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	bracketID, err := getIDFromURL(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracket(r.Context(), bracketID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveHandler обрабатывает POST /brackets/{bracketID}/resolve
// Ручной запуск резолвера; тот же код выполняется фоновым планировщиком.
func (h *BracketHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	bracketID, err := getIDFromURL(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stats, err := h.bracketService.ResolveByes(r.Context(), bracketID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"resolve_stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TemplateHandler обрабатывает GET /brackets/templates/{size} — строки
// шаблона для размера, с генерацией и сохранением при первом обращении.
func (h *BracketHandler) TemplateHandler(w http.ResponseWriter, r *http.Request) {
	size, err := getIDFromURL(r, "size")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rows, err := h.bracketService.EnsureTemplate(r.Context(), size)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"template": rows}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportHandler обрабатывает POST /brackets/{bracketID}/export
func (h *BracketHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	bracketID, err := getIDFromURL(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if h.exportService == nil {
		errorResponse(w, r, http.StatusServiceUnavailable, "snapshot export is not configured")
		return
	}

	location, err := h.exportService.ExportBracketSnapshot(r.Context(), bracketID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"snapshot_url": location}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
