package handlers

import (
	"net/http"

	"github.com/lanecrew/tournament-system/services"
)

type BowlerHandler struct {
	bowlerService services.BowlerService
}

func NewBowlerHandler(bs services.BowlerService) *BowlerHandler {
	return &BowlerHandler{bowlerService: bs}
}

// ListHandler обрабатывает GET /bowlers
// С параметром q выполняет нечёткий поиск по имени.
func (h *BowlerHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	bowlers, err := h.bowlerService.Search(r.Context(), query)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bowlers": bowlers}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetProfileHandler обрабатывает GET /bowlers/{bowlerID}
func (h *BowlerHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bowlerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	profile, err := h.bowlerService.GetProfile(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"profile": profile}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecalculateHandler обрабатывает POST /admin/bowlers/{bowlerID}/recalculate
// Принудительный пересчёт статистики, обычно она обновляется после ввода очков.
func (h *BowlerHandler) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bowlerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bowler, err := h.bowlerService.RecalculateStats(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bowler": bowler}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddResultHandler обрабатывает POST /admin/bowlers/{bowlerID}/results
// Заносит результат турнира, сыгранного вне системы.
func (h *BowlerHandler) AddResultHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bowlerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.AddResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.bowlerService.AddResult(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
