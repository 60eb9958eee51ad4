package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"golang.org/x/sync/errgroup"
)

// AvailabilityService считает занятость сквадов: capacity - registered - reserved.
// Registered - регистрации в статусах pending/confirmed, reserved - неистёкшие
// брони. Отчёт не опускается ниже нуля даже при рассинхроне данных.
type AvailabilityService interface {
	TournamentAvailability(ctx context.Context, tournamentID int) ([]models.SquadAvailability, error)
	// SquadSnapshot считает занятость одного сквада. Передача exec позволяет
	// выполнять пересчёт внутри транзакции приёма заявки, под блокировкой строки.
	SquadSnapshot(ctx context.Context, exec repositories.SQLExecutor, squad models.Squad, now time.Time) (models.SquadAvailability, error)
}

type availabilityService struct {
	tournamentRepo   repositories.TournamentRepository
	squadRepo        repositories.SquadRepository
	registrationRepo repositories.RegistrationRepository
	reservationRepo  repositories.ReservationRepository
}

func NewAvailabilityService(
	tournamentRepo repositories.TournamentRepository,
	squadRepo repositories.SquadRepository,
	registrationRepo repositories.RegistrationRepository,
	reservationRepo repositories.ReservationRepository,
) AvailabilityService {
	return &availabilityService{
		tournamentRepo:   tournamentRepo,
		squadRepo:        squadRepo,
		registrationRepo: registrationRepo,
		reservationRepo:  reservationRepo,
	}
}

func (s *availabilityService) TournamentAvailability(ctx context.Context, tournamentID int) ([]models.SquadAvailability, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	squads, err := s.squadRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads for tournament %d: %w", tournamentID, err)
	}

	now := time.Now()
	availability := make([]models.SquadAvailability, len(squads))

	g, gCtx := errgroup.WithContext(ctx)
	for i := range squads {
		i := i
		g.Go(func() error {
			snapshot, err := s.SquadSnapshot(gCtx, nil, squads[i], now)
			if err != nil {
				return err
			}
			availability[i] = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return availability, nil
}

func (s *availabilityService) SquadSnapshot(ctx context.Context, exec repositories.SQLExecutor, squad models.Squad, now time.Time) (models.SquadAvailability, error) {
	registered, err := s.registrationRepo.CountActiveBySquad(ctx, exec, squad.ID)
	if err != nil {
		return models.SquadAvailability{}, fmt.Errorf("failed to count registrations for squad %d: %w", squad.ID, err)
	}
	reserved, err := s.reservationRepo.CountActiveBySquad(ctx, exec, squad.ID, now)
	if err != nil {
		return models.SquadAvailability{}, fmt.Errorf("failed to count reservations for squad %d: %w", squad.ID, err)
	}

	available := squad.Capacity - registered - reserved
	if available < 0 {
		available = 0
	}
	return models.SquadAvailability{
		SquadID:    squad.ID,
		SquadName:  squad.Name,
		Capacity:   squad.Capacity,
		Registered: registered,
		Reserved:   reserved,
		Available:  available,
	}, nil
}
