package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/services"
)

// reservationServiceStub подменяет сервис на уровне хендлера: здесь проверяется
// только HTTP-слой, вся логика холдов покрыта тестами сервиса.
type reservationServiceStub struct {
	CreateFunc  func(ctx context.Context, input services.CreateReservationInput) (*models.SpotReservation, error)
	GetFunc     func(ctx context.Context, sessionKey string) (*models.SpotReservation, error)
	ReleaseFunc func(ctx context.Context, sessionKey string) error
}

func (s *reservationServiceStub) Create(ctx context.Context, input services.CreateReservationInput) (*models.SpotReservation, error) {
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, input)
	}
	return nil, services.ErrReservationNotFound
}

func (s *reservationServiceStub) GetBySessionKey(ctx context.Context, sessionKey string) (*models.SpotReservation, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, sessionKey)
	}
	return nil, services.ErrReservationNotFound
}

func (s *reservationServiceStub) Release(ctx context.Context, sessionKey string) error {
	if s.ReleaseFunc != nil {
		return s.ReleaseFunc(ctx, sessionKey)
	}
	return nil
}

// reservationRouter монтирует хендлер на те же шаблоны путей, что и боевой роутер.
func reservationRouter(stub *reservationServiceStub) *chi.Mux {
	h := NewReservationHandler(stub)
	router := chi.NewRouter()
	router.Post("/tournaments/{tournamentID}/reservations", h.CreateHandler)
	router.Get("/reservations/{sessionKey}", h.GetHandler)
	router.Delete("/reservations/{sessionKey}", h.ReleaseHandler)
	return router
}

func TestReservationHandler_Create(t *testing.T) {
	t.Run("creates a hold and returns 201", func(t *testing.T) {
		var gotInput services.CreateReservationInput
		stub := &reservationServiceStub{
			CreateFunc: func(_ context.Context, input services.CreateReservationInput) (*models.SpotReservation, error) {
				gotInput = input
				return &models.SpotReservation{
					ID:           70,
					TournamentID: input.TournamentID,
					SessionKey:   input.SessionKey,
					SquadIDs:     input.SquadIDs,
					ExpiresAt:    time.Date(2026, 10, 1, 18, 10, 0, 0, time.UTC),
				}, nil
			},
		}

		body := `{"session_key": "sess-1", "squads": [21, 22]}`
		req := httptest.NewRequest(http.MethodPost, "/tournaments/5/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		reservationRouter(stub).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, 5, gotInput.TournamentID, "идентификатор турнира берётся из пути, не из тела")
		assert.Equal(t, "sess-1", gotInput.SessionKey)
		assert.Equal(t, []int{21, 22}, gotInput.SquadIDs)
		assert.Contains(t, rec.Body.String(), `"reservation"`)
		assert.Contains(t, rec.Body.String(), `"session_key": "sess-1"`)
	})

	t.Run("maps full squad to 400", func(t *testing.T) {
		stub := &reservationServiceStub{
			CreateFunc: func(_ context.Context, _ services.CreateReservationInput) (*models.SpotReservation, error) {
				return nil, services.ErrSquadFull
			},
		}

		body := `{"session_key": "sess-1", "squads": [21]}`
		req := httptest.NewRequest(http.MethodPost, "/tournaments/5/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		reservationRouter(stub).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		called := false
		stub := &reservationServiceStub{
			CreateFunc: func(_ context.Context, _ services.CreateReservationInput) (*models.SpotReservation, error) {
				called = true
				return nil, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/tournaments/5/reservations", strings.NewReader(`{"squads": [21,}`))
		rec := httptest.NewRecorder()
		reservationRouter(stub).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, called, "до сервиса дело дойти не должно")
	})

	t.Run("rejects non-numeric tournament id", func(t *testing.T) {
		body := `{"session_key": "sess-1", "squads": [21]}`
		req := httptest.NewRequest(http.MethodPost, "/tournaments/abc/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		reservationRouter(&reservationServiceStub{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReservationHandler_Get(t *testing.T) {
	t.Run("returns the hold by session key", func(t *testing.T) {
		stub := &reservationServiceStub{
			GetFunc: func(_ context.Context, sessionKey string) (*models.SpotReservation, error) {
				require.Equal(t, "sess-1", sessionKey)
				return &models.SpotReservation{ID: 70, TournamentID: 5, SessionKey: sessionKey, SquadIDs: []int{21}}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/reservations/sess-1", nil)
		rec := httptest.NewRecorder()
		reservationRouter(stub).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"session_key": "sess-1"`)
	})

	t.Run("unknown key yields 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reservations/sess-ghost", nil)
		rec := httptest.NewRecorder()
		reservationRouter(&reservationServiceStub{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReservationHandler_Release(t *testing.T) {
	t.Run("releases and returns 204", func(t *testing.T) {
		var released string
		stub := &reservationServiceStub{
			ReleaseFunc: func(_ context.Context, sessionKey string) error {
				released = sessionKey
				return nil
			},
		}

		req := httptest.NewRequest(http.MethodDelete, "/reservations/sess-1", nil)
		rec := httptest.NewRecorder()
		reservationRouter(stub).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "sess-1", released)
		assert.Empty(t, rec.Body.String())
	})
}
