package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lanecrew/tournament-system/services"
)

type ReservationHandler struct {
	reservationService services.ReservationService
}

func NewReservationHandler(rs services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// CreateHandler обрабатывает POST /tournaments/{tournamentID}/reservations
// Повторный запрос с тем же session_key возвращает существующий холд.
func (h *ReservationHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var body struct {
		SessionKey string `json:"session_key"`
		SquadIDs   []int  `json:"squads"`
	}
	if err := readJSON(w, r, &body); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	reservation, err := h.reservationService.Create(r.Context(), services.CreateReservationInput{
		TournamentID: tournamentID,
		SessionKey:   body.SessionKey,
		SquadIDs:     body.SquadIDs,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"reservation": reservation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /reservations/{sessionKey}
func (h *ReservationHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "sessionKey")
	if sessionKey == "" {
		badRequestResponse(w, r, errors.New("missing sessionKey in URL path"))
		return
	}

	reservation, err := h.reservationService.GetBySessionKey(r.Context(), sessionKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"reservation": reservation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReleaseHandler обрабатывает DELETE /reservations/{sessionKey}
// Снятие несуществующего или истёкшего холда не считается ошибкой.
func (h *ReservationHandler) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "sessionKey")
	if sessionKey == "" {
		badRequestResponse(w, r, errors.New("missing sessionKey in URL path"))
		return
	}

	if err := h.reservationService.Release(r.Context(), sessionKey); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
