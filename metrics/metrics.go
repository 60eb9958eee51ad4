package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registration outcomes used as label values.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
)

// Metrics defines the interface for collecting application metrics,
// decoupling services from the Prometheus implementation.
type Metrics interface {
	ObserveHTTPRequest(method, route, status string, duration float64)
	IncRegistration(outcome string)
	IncReservationCreated()
	IncReservationReleased()
	AddReservationsExpired(count int)
	IncScoresEntered()
	IncStageAdvancement()
	IncEmailSent()
	IncEmailFailed()
}

var _ Metrics = (*Service)(nil)

// Service holds all the Prometheus metrics for the application.
// Defining them in one place keeps naming and labeling consistent.
type Service struct {
	HTTPRequestDuration  *prometheus.HistogramVec
	RegistrationsTotal   *prometheus.CounterVec
	ReservationsCreated  prometheus.Counter
	ReservationsReleased prometheus.Counter
	ReservationsExpired  prometheus.Counter
	ScoresEntered        prometheus.Counter
	StageAdvancements    prometheus.Counter
	EmailsSent           prometheus.Counter
	EmailsFailed         prometheus.Counter
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bowling_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, route and status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),
		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bowling_registrations_total",
			Help: "The total number of registration attempts by outcome.",
		}, []string{"outcome"}),
		ReservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_reservations_created_total",
			Help: "The total number of spot reservations created.",
		}),
		ReservationsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_reservations_released_total",
			Help: "The total number of spot reservations released by clients.",
		}),
		ReservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_reservations_expired_total",
			Help: "The total number of expired spot reservations removed by cleanup.",
		}),
		ScoresEntered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_scores_entered_total",
			Help: "The total number of stage score sheets saved.",
		}),
		StageAdvancements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_stage_advancements_total",
			Help: "The total number of stage advancement runs executed.",
		}),
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_emails_sent_total",
			Help: "The total number of confirmation emails successfully sent.",
		}),
		EmailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bowling_emails_failed_total",
			Help: "The total number of confirmation emails that failed to send.",
		}),
	}

	reg.MustRegister(
		s.HTTPRequestDuration,
		s.RegistrationsTotal,
		s.ReservationsCreated,
		s.ReservationsReleased,
		s.ReservationsExpired,
		s.ScoresEntered,
		s.StageAdvancements,
		s.EmailsSent,
		s.EmailsFailed,
	)

	return s
}

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

func (s *Service) ObserveHTTPRequest(method, route, status string, duration float64) {
	s.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration)
}

func (s *Service) IncRegistration(outcome string) {
	s.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (s *Service) IncReservationCreated() {
	s.ReservationsCreated.Inc()
}

func (s *Service) IncReservationReleased() {
	s.ReservationsReleased.Inc()
}

func (s *Service) AddReservationsExpired(count int) {
	s.ReservationsExpired.Add(float64(count))
}

func (s *Service) IncScoresEntered() {
	s.ScoresEntered.Inc()
}

func (s *Service) IncStageAdvancement() {
	s.StageAdvancements.Inc()
}

func (s *Service) IncEmailSent() {
	s.EmailsSent.Inc()
}

func (s *Service) IncEmailFailed() {
	s.EmailsFailed.Inc()
}
