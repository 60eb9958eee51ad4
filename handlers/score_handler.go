package handlers

import (
	"net/http"

	"github.com/lanecrew/tournament-system/services"
)

type ScoreHandler struct {
	scoreService       services.ScoreService
	advancementService services.AdvancementService
}

func NewScoreHandler(ss services.ScoreService, as services.AdvancementService) *ScoreHandler {
	return &ScoreHandler{
		scoreService:       ss,
		advancementService: as,
	}
}

// EnterScoresHandler обрабатывает PUT /admin/registrations/{registrationID}/scores
// Повторная отправка перезаписывает очки этапа целиком.
func (h *ScoreHandler) EnterScoresHandler(w http.ResponseWriter, r *http.Request) {
	registrationID, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.EnterScoresInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoreService.EnterScores(r.Context(), registrationID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage_score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaderboardHandler обрабатывает GET /tournaments/{tournamentID}/stages/{stageIndex}/leaderboard
func (h *ScoreHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	stageIndex, err := getIDFromURL(r, "stageIndex")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	leaderboard, err := h.scoreService.StageLeaderboard(r.Context(), tournamentID, stageIndex)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": leaderboard}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdvanceHandler обрабатывает POST /admin/tournaments/{tournamentID}/stages/{stageIndex}/advance
func (h *ScoreHandler) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	stageIndex, err := getIDFromURL(r, "stageIndex")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.advancementService.AdvanceStage(r.Context(), tournamentID, stageIndex)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"advancement": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdvanceAllHandler обрабатывает POST /admin/tournaments/{tournamentID}/advance
// Проходит по всем этапам подряд и возвращает суммарный отчёт.
func (h *ScoreHandler) AdvanceAllHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.advancementService.AdvanceAll(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"advancement": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecalculateHandler обрабатывает POST /admin/tournaments/{tournamentID}/recalculate
// Применяется после изменения настроек гандикапа уже идущего турнира.
func (h *ScoreHandler) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	updated, err := h.scoreService.Recalculate(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"updated": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
