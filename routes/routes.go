package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lanecrew/tournament-system/handlers"
	"github.com/lanecrew/tournament-system/middleware"
	"github.com/lanecrew/tournament-system/models"
)

// Deps собирает всё, что нужно роутеру: обработчики и сквозные middleware.
type Deps struct {
	Auth          *handlers.AuthHandler
	Tournaments   *handlers.TournamentHandler
	Reservations  *handlers.ReservationHandler
	Registrations *handlers.RegistrationHandler
	Scores        *handlers.ScoreHandler
	Bowlers       *handlers.BowlerHandler
	WebSocket     *handlers.WebSocketHandler

	Authenticator  *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	Observe        func(http.Handler) http.Handler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
}

func SetupRoutes(router *chi.Mux, deps Deps) {
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(deps.Observe)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	router.Post("/auth/register", deps.Auth.RegisterHandler)
	router.Post("/auth/login", deps.Auth.LoginHandler)
	router.Group(func(r chi.Router) {
		r.Use(deps.Authenticator.Authenticate)
		r.Get("/auth/me", deps.Auth.MeHandler)
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты: просмотр турниров, табло и доступность
		r.Get("/", deps.Tournaments.ListHandler)
		r.Get("/slug/{slug}", deps.Tournaments.GetBySlugHandler)
		r.Get("/{tournamentID}", deps.Tournaments.GetByIDHandler)
		r.Get("/{tournamentID}/availability", deps.Tournaments.AvailabilityHandler)
		r.Get("/{tournamentID}/stages/{stageIndex}/leaderboard", deps.Scores.LeaderboardHandler)

		// Публичная запись: холды мест и подача заявок, с лимитом частоты
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.Limit)
			r.Post("/{tournamentID}/reservations", deps.Reservations.CreateHandler)
			r.Post("/{tournamentID}/registrations", deps.Registrations.CreateHandler)
		})
	})

	router.Route("/reservations", func(r chi.Router) {
		r.Use(deps.RateLimiter.Limit)
		r.Get("/{sessionKey}", deps.Reservations.GetHandler)
		r.Delete("/{sessionKey}", deps.Reservations.ReleaseHandler)
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(deps.Authenticator.Authenticate)
		r.Get("/me", deps.Registrations.MyRegistrationsHandler)
		r.Get("/{registrationID}", deps.Registrations.GetByIDHandler)
		r.Patch("/{registrationID}", deps.Registrations.UpdateHandler)
		r.Delete("/{registrationID}", deps.Registrations.CancelHandler)
	})

	router.Route("/bowlers", func(r chi.Router) {
		r.Get("/", deps.Bowlers.ListHandler)
		r.Get("/{bowlerID}", deps.Bowlers.GetProfileHandler)
	})

	// Административные маршруты
	router.Route("/admin", func(r chi.Router) {
		r.Use(deps.Authenticator.Authenticate)
		r.Use(deps.Authenticator.RequireRole(models.RoleAdmin))

		r.Post("/tournaments", deps.Tournaments.CreateHandler)
		r.Put("/tournaments/{tournamentID}", deps.Tournaments.UpdateHandler)
		r.Patch("/tournaments/{tournamentID}/status", deps.Tournaments.UpdateStatusHandler)
		r.Delete("/tournaments/{tournamentID}", deps.Tournaments.DeleteHandler)
		r.Post("/tournaments/{tournamentID}/logo", deps.Tournaments.UploadLogoHandler)
		r.Get("/tournaments/{tournamentID}/registrations", deps.Registrations.ListByTournamentHandler)
		r.Post("/tournaments/{tournamentID}/advance", deps.Scores.AdvanceAllHandler)
		r.Post("/tournaments/{tournamentID}/stages/{stageIndex}/advance", deps.Scores.AdvanceHandler)
		r.Post("/tournaments/{tournamentID}/recalculate", deps.Scores.RecalculateHandler)

		r.Put("/registrations/{registrationID}/scores", deps.Scores.EnterScoresHandler)
		r.Patch("/registrations/{registrationID}/status", deps.Registrations.UpdateStatusHandler)
		r.Delete("/registrations/{registrationID}", deps.Registrations.DeleteHandler)

		r.Post("/bowlers/{bowlerID}/results", deps.Bowlers.AddResultHandler)
		r.Post("/bowlers/{bowlerID}/recalculate", deps.Bowlers.RecalculateHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", deps.WebSocket.ServeWs)
}
