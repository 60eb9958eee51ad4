package handlers

import (
	"errors"
	"net/http"

	"github.com/lanecrew/tournament-system/middleware"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/services"
)

type RegistrationHandler struct {
	registrationService services.RegistrationService
}

func NewRegistrationHandler(rs services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: rs}
}

// CreateHandler обрабатывает POST /tournaments/{tournamentID}/registrations
// Регистрация публичная: аккаунт не требуется, достаточно данных игрока.
func (h *RegistrationHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateRegistrationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.TournamentID = tournamentID

	registration, err := h.registrationService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /registrations/{registrationID}
// Доступно администратору и владельцу заявки (по email из токена).
func (h *RegistrationHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	email, role, err := requesterIdentity(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registration, err := h.registrationService.GetByID(r.Context(), id, email, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MyRegistrationsHandler обрабатывает GET /registrations/me
func (h *RegistrationHandler) MyRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	email, _, err := requesterIdentity(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registrations, err := h.registrationService.ListByEmail(r.Context(), email)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByTournamentHandler обрабатывает GET /admin/tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) ListByTournamentHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.RegistrationStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		value := models.RegistrationStatus(statusStr)
		status = &value
	}

	registrations, err := h.registrationService.ListByTournament(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler обрабатывает PATCH /registrations/{registrationID}
func (h *RegistrationHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	email, role, err := requesterIdentity(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.UpdateRegistrationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.registrationService.Update(r.Context(), id, input, email, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateStatusHandler обрабатывает PATCH /admin/registrations/{registrationID}/status
func (h *RegistrationHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusInput struct {
		Status models.RegistrationStatus `json:"status"`
	}
	if err := readJSON(w, r, &statusInput); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.registrationService.UpdateStatus(r.Context(), id, statusInput.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler обрабатывает DELETE /registrations/{registrationID}
func (h *RegistrationHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	email, role, err := requesterIdentity(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.registrationService.Cancel(r.Context(), id, email, role); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteHandler обрабатывает DELETE /admin/registrations/{registrationID}
// В отличие от отмены заявка удаляется безвозвратно, вместе с назначениями.
func (h *RegistrationHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.registrationService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requesterIdentity достаёт email и роль запрашивающего из JWT claims.
func requesterIdentity(r *http.Request) (string, models.UserRole, error) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		return "", "", err
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		return "", "", err
	}
	if email == "" {
		return "", "", errors.New("missing email claim")
	}
	return email, role, nil
}
