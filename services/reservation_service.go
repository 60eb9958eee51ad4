package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
)

type CreateReservationInput struct {
	TournamentID int    `json:"tournament_id"`
	SessionKey   string `json:"session_key,omitempty"`
	SquadIDs     []int  `json:"squad_ids"`
}

// ReservationService управляет временными бронями мест. Бронь держит место
// 10 минут, пока посетитель заполняет форму регистрации, и идемпотентна по
// ключу сессии: повторный запрос возвращает существующую бронь, не продлевая её.
type ReservationService interface {
	Create(ctx context.Context, input CreateReservationInput) (*models.SpotReservation, error)
	GetBySessionKey(ctx context.Context, sessionKey string) (*models.SpotReservation, error)
	Release(ctx context.Context, sessionKey string) error
}

type reservationService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	squadRepo       repositories.SquadRepository
	reservationRepo repositories.ReservationRepository
	availability    AvailabilityService
	hub             *live.Hub
	metrics         metrics.Metrics
	logger          *slog.Logger
}

func NewReservationService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	squadRepo repositories.SquadRepository,
	reservationRepo repositories.ReservationRepository,
	availability AvailabilityService,
	hub *live.Hub,
	m metrics.Metrics,
	logger *slog.Logger,
) ReservationService {
	return &reservationService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		squadRepo:       squadRepo,
		reservationRepo: reservationRepo,
		availability:    availability,
		hub:             hub,
		metrics:         m,
		logger:          logger,
	}
}

func (s *reservationService) Create(ctx context.Context, input CreateReservationInput) (*models.SpotReservation, error) {
	squadIDs := uniqueInts(input.SquadIDs)
	if len(squadIDs) == 0 {
		return nil, ErrNoSquadsSelected
	}

	sessionKey := input.SessionKey
	if sessionKey == "" {
		sessionKey = uuid.NewString()
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, input.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", input.TournamentID, err)
	}

	now := time.Now()
	if tournament.Status != models.StatusUpcoming {
		return nil, ErrTournamentNotUpcoming
	}
	if !isRegistrationWindowOpen(tournament, now) {
		if tournament.RegistrationDeadline != nil && now.After(*tournament.RegistrationDeadline) {
			return nil, ErrRegistrationDeadlinePassed
		}
		return nil, ErrRegistrationNotOpen
	}

	reservation, created, err := s.createInTx(ctx, tournament, sessionKey, squadIDs, now)
	if err != nil {
		// Гонка двух запросов с одним ключом: проигравший читает бронь победителя.
		if errors.Is(err, repositories.ErrReservationSessionExists) {
			existing, readErr := s.reservationRepo.GetBySessionKey(ctx, nil, sessionKey, time.Now())
			if readErr == nil {
				return existing, nil
			}
			return nil, fmt.Errorf("reservation race for session %s could not be resolved: %w", sessionKey, err)
		}
		return nil, err
	}

	// Идемпотентный повтор вернул живую бронь: счётчик и занятость не меняются.
	if created {
		s.metrics.IncReservationCreated()
		broadcastAvailability(ctx, tournament.ID, s.availability, s.hub, s.logger)
	}
	return reservation, nil
}

func (s *reservationService) createInTx(ctx context.Context, tournament *models.Tournament, sessionKey string, squadIDs []int, now time.Time) (reservation *models.SpotReservation, created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()

	// Идемпотентность: живая бронь по этому ключу возвращается как есть,
	// без продления срока и без изменения набора сквадов.
	existing, err := s.reservationRepo.GetBySessionKey(ctx, tx, sessionKey, now)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrReservationNotFound) {
		return nil, false, err
	}
	err = nil

	// Ключ мог остаться от истёкшей брони: убираем строку, чтобы вставка
	// не упала на уникальном индексе.
	if err = s.reservationRepo.DeleteBySessionKey(ctx, tx, sessionKey); err != nil {
		return nil, false, err
	}

	locked, err := s.squadRepo.LockByIDs(ctx, tx, squadIDs)
	if err != nil {
		return nil, false, err
	}
	squadsByID := make(map[int]models.Squad, len(locked))
	for _, squad := range locked {
		squadsByID[squad.ID] = squad
	}

	// Проверяем в порядке, присланном клиентом: первая неудача называет сквад.
	for _, squadID := range squadIDs {
		squad, ok := squadsByID[squadID]
		if !ok || squad.TournamentID != tournament.ID {
			err = fmt.Errorf("%w: squad %d", ErrSquadNotFound, squadID)
			return nil, false, err
		}
		snapshot, snapErr := s.availability.SquadSnapshot(ctx, tx, squad, now)
		if snapErr != nil {
			err = snapErr
			return nil, false, err
		}
		if snapshot.Available <= 0 {
			err = fmt.Errorf("%w: %s", ErrSquadFull, squad.Name)
			return nil, false, err
		}
	}

	reservation = &models.SpotReservation{
		TournamentID: tournament.ID,
		SessionKey:   sessionKey,
		SquadIDs:     squadIDs,
		ExpiresAt:    now.Add(models.ReservationTTL),
	}
	if err = s.reservationRepo.Create(ctx, tx, reservation); err != nil {
		return nil, false, err
	}
	if err = s.reservationRepo.AssignSquads(ctx, tx, reservation.ID, squadIDs); err != nil {
		return nil, false, err
	}
	return reservation, true, nil
}

func (s *reservationService) GetBySessionKey(ctx context.Context, sessionKey string) (*models.SpotReservation, error) {
	reservation, err := s.reservationRepo.GetBySessionKey(ctx, nil, sessionKey, time.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation by session key: %w", err)
	}
	return reservation, nil
}

// Release снимает бронь безусловно: отсутствие строки не ошибка, бронь могла
// истечь или быть снятой повторным запросом.
func (s *reservationService) Release(ctx context.Context, sessionKey string) error {
	reservation, err := s.reservationRepo.GetBySessionKey(ctx, nil, sessionKey, time.Now())
	if err != nil && !errors.Is(err, repositories.ErrReservationNotFound) {
		return fmt.Errorf("failed to get reservation before release: %w", err)
	}

	if err := s.reservationRepo.DeleteBySessionKey(ctx, nil, sessionKey); err != nil {
		return err
	}

	if reservation != nil {
		s.metrics.IncReservationReleased()
		broadcastAvailability(ctx, reservation.TournamentID, s.availability, s.hub, s.logger)
	}
	return nil
}
