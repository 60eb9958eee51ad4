package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/scoring"
)

type CreateRegistrationInput struct {
	TournamentID int           `json:"tournament_id"`
	PlayerName   string        `json:"player_name"`
	Email        string        `json:"email"`
	Phone        *string       `json:"phone,omitempty"`
	Gender       models.Gender `json:"gender"`
	AverageScore *int          `json:"average_score,omitempty"`
	Notes        *string       `json:"notes,omitempty"`
	SquadIDs     []int         `json:"squad_ids"`
	// SessionKey - ключ брони, удерживающей места для этой заявки.
	// Бронь снимается в той же транзакции, что и приём заявки.
	SessionKey *string `json:"session_key,omitempty"`
}

type UpdateRegistrationInput struct {
	Phone        *string `json:"phone,omitempty"`
	AverageScore *int    `json:"average_score,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// RegistrationService принимает заявки на турнир. Порядок проверок фиксирован,
// возвращается первая неудача: статус турнира, окно регистрации, сквады и их
// вместимость, количество квалификационных сквадов, общий лимит, дубликат email.
// Начиная с вместимости проверки идут внутри транзакции под блокировкой строк
// сквадов: две параллельные заявки на последнее место не могут пройти обе.
type RegistrationService interface {
	Create(ctx context.Context, input CreateRegistrationInput) (*models.Registration, error)
	GetByID(ctx context.Context, id int, requesterEmail string, requesterRole models.UserRole) (*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Registration, error)
	Update(ctx context.Context, id int, input UpdateRegistrationInput, requesterEmail string, requesterRole models.UserRole) (*models.Registration, error)
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) (*models.Registration, error)
	Cancel(ctx context.Context, id int, requesterEmail string, requesterRole models.UserRole) error
	Delete(ctx context.Context, id int) error
}

type registrationService struct {
	db               *sql.DB
	tournamentRepo   repositories.TournamentRepository
	squadRepo        repositories.SquadRepository
	registrationRepo repositories.RegistrationRepository
	reservationRepo  repositories.ReservationRepository
	bowlerRepo       repositories.BowlerRepository
	availability     AvailabilityService
	emailSender      EmailSender
	hub              *live.Hub
	metrics          metrics.Metrics
	logger           *slog.Logger
}

func NewRegistrationService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	squadRepo repositories.SquadRepository,
	registrationRepo repositories.RegistrationRepository,
	reservationRepo repositories.ReservationRepository,
	bowlerRepo repositories.BowlerRepository,
	availability AvailabilityService,
	emailSender EmailSender,
	hub *live.Hub,
	m metrics.Metrics,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		db:               db,
		tournamentRepo:   tournamentRepo,
		squadRepo:        squadRepo,
		registrationRepo: registrationRepo,
		reservationRepo:  reservationRepo,
		bowlerRepo:       bowlerRepo,
		availability:     availability,
		emailSender:      emailSender,
		hub:              hub,
		metrics:          m,
		logger:           logger,
	}
}

func (s *registrationService) Create(ctx context.Context, input CreateRegistrationInput) (*models.Registration, error) {
	registration, err := s.create(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrRegistrationConflict):
			s.metrics.IncRegistration(metrics.OutcomeConflict)
		default:
			s.metrics.IncRegistration(metrics.OutcomeRejected)
		}
		return nil, err
	}
	s.metrics.IncRegistration(metrics.OutcomeCreated)
	return registration, nil
}

func (s *registrationService) create(ctx context.Context, input CreateRegistrationInput) (*models.Registration, error) {
	if err := validateRegistrationInput(&input); err != nil {
		return nil, err
	}
	squadIDs := uniqueInts(input.SquadIDs)

	tournament, err := s.tournamentRepo.GetByID(ctx, input.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", input.TournamentID, err)
	}

	now := time.Now()

	// Проверка 1: приём заявок идёт только до старта турнира.
	if tournament.Status != models.StatusUpcoming {
		return nil, ErrTournamentNotUpcoming
	}

	// Проверка 2: окно регистрации.
	if !isRegistrationWindowOpen(tournament, now) {
		if tournament.RegistrationDeadline != nil && now.After(*tournament.RegistrationDeadline) {
			return nil, ErrRegistrationDeadlinePassed
		}
		return nil, ErrRegistrationNotOpen
	}

	// Проверка 3 (существование): все сквады принадлежат турниру.
	allSquads, err := s.squadRepo.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads for tournament %d: %w", tournament.ID, err)
	}
	squadsByID := make(map[int]models.Squad, len(allSquads))
	for _, squad := range allSquads {
		squadsByID[squad.ID] = squad
	}
	if len(squadIDs) == 0 {
		return nil, ErrNoSquadsSelected
	}
	selected := make([]models.Squad, 0, len(squadIDs))
	for _, squadID := range squadIDs {
		squad, ok := squadsByID[squadID]
		if !ok {
			return nil, fmt.Errorf("%w: squad %d", ErrSquadNotFound, squadID)
		}
		selected = append(selected, squad)
	}

	// Остальные проверки идут внутри транзакции под блокировкой сквадов:
	// вместимость гоночная, а квалификационный счёт, лимит и дубликат
	// следуют за ней, чтобы первая неудача называлась в фиксированном порядке.
	registration, err := s.admit(ctx, tournament, input, selected, now)
	if err != nil {
		return nil, err
	}

	go s.sendConfirmationEmail(registration, tournament, selected)
	broadcastAvailability(ctx, tournament.ID, s.availability, s.hub, s.logger)

	return registration, nil
}

// admit выполняет решающие проверки и вставку атомарно. Сквады блокируются
// SELECT ... FOR UPDATE в порядке возрастания id, поэтому конкурирующие заявки
// на пересекающиеся сквады выстраиваются в очередь, а не взаимоблокируются.
func (s *registrationService) admit(ctx context.Context, tournament *models.Tournament, input CreateRegistrationInput, selected []models.Squad, now time.Time) (registration *models.Registration, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
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

	squadIDs := make([]int, len(selected))
	for i, squad := range selected {
		squadIDs[i] = squad.ID
	}
	if _, err = s.squadRepo.LockByIDs(ctx, tx, squadIDs); err != nil {
		return nil, err
	}

	// Собственная бронь заявителя не должна блокировать его же заявку:
	// её места вычитаются из reserved при пересчёте.
	ownReservedSquads := make(map[int]bool)
	if input.SessionKey != nil && *input.SessionKey != "" {
		reservation, resErr := s.reservationRepo.GetBySessionKey(ctx, tx, *input.SessionKey, now)
		if resErr == nil {
			for _, squadID := range reservation.SquadIDs {
				ownReservedSquads[squadID] = true
			}
		} else if !errors.Is(resErr, repositories.ErrReservationNotFound) {
			err = resErr
			return nil, err
		}
	}

	// Проверка 3 (вместимость): первая неудача называет сквад.
	for _, squad := range selected {
		snapshot, snapErr := s.availability.SquadSnapshot(ctx, tx, squad, now)
		if snapErr != nil {
			err = snapErr
			return nil, err
		}
		available := snapshot.Available
		if ownReservedSquads[squad.ID] {
			available++
		}
		if available <= 0 {
			err = fmt.Errorf("%w: %s", ErrSquadFull, squad.Name)
			return nil, err
		}
	}

	// Проверка 4: количество квалификационных сквадов.
	qualifying := 0
	for _, squad := range selected {
		if squad.IsQualifying {
			qualifying++
		}
	}
	if qualifying < tournament.SquadsToQualify {
		err = fmt.Errorf("%w: need %d, selected %d", ErrNotEnoughQualifyingSquads, tournament.SquadsToQualify, qualifying)
		return nil, err
	}
	if !tournament.AllowReentry && qualifying > tournament.SquadsToQualify {
		err = fmt.Errorf("%w: exactly %d qualifying squads required", ErrReentryNotAllowed, tournament.SquadsToQualify)
		return nil, err
	}

	// Проверка 5: общий лимит участников.
	if tournament.MaxParticipants != nil {
		total, cntErr := s.registrationRepo.CountActiveByTournament(ctx, tx, tournament.ID)
		if cntErr != nil {
			err = cntErr
			return nil, err
		}
		if total >= *tournament.MaxParticipants {
			err = ErrTournamentFull
			return nil, err
		}
	}

	// Проверка 6: дубликат email. Решающая защита - уникальный индекс,
	// предварительный запрос даёт понятную ошибку без аварии вставки.
	exists, exErr := s.registrationRepo.ExistsByTournamentAndEmail(ctx, tx, tournament.ID, input.Email)
	if exErr != nil {
		err = exErr
		return nil, err
	}
	if exists {
		err = ErrRegistrationConflict
		return nil, err
	}

	bowler := &models.Bowler{
		Email:        strings.ToLower(input.Email),
		Name:         input.PlayerName,
		Phone:        input.Phone,
		Gender:       input.Gender,
		AverageScore: input.AverageScore,
	}
	if err = s.bowlerRepo.UpsertByEmail(ctx, tx, bowler); err != nil {
		return nil, err
	}

	// Заявка, прошедшая все проверки, подтверждается сразу. Статус pending
	// остаётся административным инструментом (перевод через PATCH).
	registration = &models.Registration{
		TournamentID: tournament.ID,
		BowlerID:     &bowler.ID,
		PlayerName:   input.PlayerName,
		Email:        strings.ToLower(input.Email),
		Phone:        input.Phone,
		Gender:       input.Gender,
		AverageScore: input.AverageScore,
		Notes:        input.Notes,
		Status:       models.RegistrationConfirmed,
	}
	if err = s.registrationRepo.Create(ctx, tx, registration); err != nil {
		if errors.Is(err, repositories.ErrRegistrationDuplicate) {
			err = ErrRegistrationConflict
		}
		return nil, err
	}
	if err = s.registrationRepo.AssignSquads(ctx, tx, registration.ID, squadIDs); err != nil {
		return nil, err
	}
	registration.AssignedSquads = squadIDs

	// Бронь выполнила свою задачу: заявка принята, места закреплены за регистрацией.
	if input.SessionKey != nil && *input.SessionKey != "" {
		if err = s.reservationRepo.DeleteBySessionKey(ctx, tx, *input.SessionKey); err != nil {
			return nil, err
		}
	}
	return registration, nil
}

func (s *registrationService) sendConfirmationEmail(registration *models.Registration, tournament *models.Tournament, squads []models.Squad) {
	if s.emailSender == nil {
		return
	}
	if err := s.emailSender.SendRegistrationConfirmation(registration, tournament, squads); err != nil {
		s.metrics.IncEmailFailed()
		s.logger.Warn("failed to send registration confirmation email",
			slog.Int("registration_id", registration.ID),
			slog.String("email", registration.Email),
			slog.Any("error", err))
		return
	}
	s.metrics.IncEmailSent()
}

func (s *registrationService) GetByID(ctx context.Context, id int, requesterEmail string, requesterRole models.UserRole) (*models.Registration, error) {
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", id, err)
	}
	if !canManageRegistration(registration, requesterEmail, requesterRole) {
		return nil, ErrForbiddenOperation
	}
	return registration, nil
}

func (s *registrationService) ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error) {
	if status != nil && !isValidRegistrationStatus(*status) {
		return nil, fmt.Errorf("%w: unknown registration status %q", ErrValidationFailed, *status)
	}
	registrations, err := s.registrationRepo.ListByTournament(ctx, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for tournament %d: %w", tournamentID, err)
	}
	return registrations, nil
}

func (s *registrationService) ListByEmail(ctx context.Context, email string) ([]*models.Registration, error) {
	registrations, err := s.registrationRepo.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for email: %w", err)
	}
	return registrations, nil
}

func (s *registrationService) Update(ctx context.Context, id int, input UpdateRegistrationInput, requesterEmail string, requesterRole models.UserRole) (*models.Registration, error) {
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", id, err)
	}
	if !canManageRegistration(registration, requesterEmail, requesterRole) {
		return nil, ErrForbiddenOperation
	}
	if err := s.ensureEditableByBowler(ctx, registration, requesterRole); err != nil {
		return nil, err
	}

	if input.AverageScore != nil && (*input.AverageScore < scoring.MinGameScore || *input.AverageScore > scoring.MaxGameScore) {
		return nil, fmt.Errorf("%w: average score must be between %d and %d", ErrValidationFailed, scoring.MinGameScore, scoring.MaxGameScore)
	}

	phone := registration.Phone
	if input.Phone != nil {
		phone = input.Phone
	}
	averageScore := registration.AverageScore
	if input.AverageScore != nil {
		averageScore = input.AverageScore
	}
	notes := registration.Notes
	if input.Notes != nil {
		notes = input.Notes
	}

	if err := s.registrationRepo.UpdateContact(ctx, id, phone, averageScore, notes); err != nil {
		return nil, err
	}
	registration.Phone = phone
	registration.AverageScore = averageScore
	registration.Notes = notes
	return registration, nil
}

func (s *registrationService) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) (*models.Registration, error) {
	if !isValidRegistrationStatus(status) {
		return nil, fmt.Errorf("%w: unknown registration status %q", ErrValidationFailed, status)
	}
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", id, err)
	}

	if err := s.registrationRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	registration.Status = status

	// Переходы из/в активные статусы меняют занятость сквадов.
	broadcastAvailability(ctx, registration.TournamentID, s.availability, s.hub, s.logger)
	return registration, nil
}

func (s *registrationService) Cancel(ctx context.Context, id int, requesterEmail string, requesterRole models.UserRole) error {
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to get registration %d: %w", id, err)
	}
	if !canManageRegistration(registration, requesterEmail, requesterRole) {
		return ErrForbiddenOperation
	}
	if registration.Status == models.RegistrationCanceled {
		return nil
	}
	if err := s.ensureEditableByBowler(ctx, registration, requesterRole); err != nil {
		return err
	}

	if err := s.registrationRepo.UpdateStatus(ctx, id, models.RegistrationCanceled); err != nil {
		return err
	}
	broadcastAvailability(ctx, registration.TournamentID, s.availability, s.hub, s.logger)
	return nil
}

// Delete окончательно удаляет заявку вместе с назначениями на сквады.
// В отличие от Cancel запись не остаётся в истории, поэтому операция
// доступна только администратору (маршрут под require-admin).
func (s *registrationService) Delete(ctx context.Context, id int) error {
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to get registration %d: %w", id, err)
	}

	if err := s.registrationRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return err
	}
	broadcastAvailability(ctx, registration.TournamentID, s.availability, s.hub, s.logger)
	return nil
}

// ensureEditableByBowler разрешает участнику менять или отзывать заявку только
// пока турнир не стартовал. Администратору стадия турнира не мешает.
func (s *registrationService) ensureEditableByBowler(ctx context.Context, registration *models.Registration, requesterRole models.UserRole) error {
	if requesterRole == models.RoleAdmin {
		return nil
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, registration.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to get tournament %d: %w", registration.TournamentID, err)
	}
	if tournament.Status != models.StatusUpcoming {
		return ErrTournamentNotUpcoming
	}
	return nil
}

func canManageRegistration(registration *models.Registration, requesterEmail string, requesterRole models.UserRole) bool {
	if requesterRole == models.RoleAdmin {
		return true
	}
	return requesterEmail != "" && strings.EqualFold(registration.Email, requesterEmail)
}

func validateRegistrationInput(input *CreateRegistrationInput) error {
	if strings.TrimSpace(input.PlayerName) == "" {
		return fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}
	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrValidationFailed)
	}
	if input.Gender != models.GenderMale && input.Gender != models.GenderFemale {
		return fmt.Errorf("%w: gender must be %q or %q", ErrValidationFailed, models.GenderMale, models.GenderFemale)
	}
	if input.AverageScore != nil && (*input.AverageScore < scoring.MinGameScore || *input.AverageScore > scoring.MaxGameScore) {
		return fmt.Errorf("%w: average score must be between %d and %d", ErrValidationFailed, scoring.MinGameScore, scoring.MaxGameScore)
	}
	return nil
}
