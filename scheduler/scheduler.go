package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/services"
)

const (
	statusUpdateInterval     = time.Minute
	reservationPurgeInterval = 5 * time.Minute
)

// Scheduler крутит фоновые задачи: автопереходы статусов турниров по датам
// и чистку истёкших холдов. Холды и так не учитываются после expires_at,
// чистка лишь убирает мёртвые строки.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func New(
	tournaments services.TournamentService,
	reservations repositories.ReservationRepository,
	m metrics.Metrics,
	logger *slog.Logger,
) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(statusUpdateInterval),
		gocron.NewTask(func() {
			updated, err := tournaments.RunAutoStatusUpdates(context.Background(), time.Now())
			if err != nil {
				logger.Error("scheduler: tournament status update failed", slog.Any("error", err))
				return
			}
			if updated > 0 {
				logger.Info("scheduler: tournament statuses updated", slog.Int("count", updated))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule status update job: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(reservationPurgeInterval),
		gocron.NewTask(func() {
			purged, err := reservations.DeleteExpired(context.Background(), time.Now())
			if err != nil {
				logger.Error("scheduler: reservation purge failed", slog.Any("error", err))
				return
			}
			if purged > 0 {
				m.AddReservationsExpired(int(purged))
				logger.Info("scheduler: expired reservations purged", slog.Int64("count", purged))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reservation purge job: %w", err)
	}

	return &Scheduler{sched: sched, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("background scheduler started",
		slog.Duration("status_interval", statusUpdateInterval),
		slog.Duration("purge_interval", reservationPurgeInterval))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
