package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
)

type registrationTestEnv struct {
	mock             sqlmock.Sqlmock
	tournamentRepo   *repositories.MockTournamentRepository
	squadRepo        *repositories.MockSquadRepository
	registrationRepo *repositories.MockRegistrationRepository
	reservationRepo  *repositories.MockReservationRepository
	bowlerRepo       *repositories.MockBowlerRepository
	metrics          *metrics.Mock
	svc              RegistrationService
}

func newRegistrationTestEnv(t *testing.T) *registrationTestEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &registrationTestEnv{
		mock:             mock,
		tournamentRepo:   &repositories.MockTournamentRepository{},
		squadRepo:        &repositories.MockSquadRepository{},
		registrationRepo: &repositories.MockRegistrationRepository{},
		reservationRepo:  &repositories.MockReservationRepository{},
		bowlerRepo:       &repositories.MockBowlerRepository{},
		metrics:          metrics.NewMock(),
	}
	availability := NewAvailabilityService(env.tournamentRepo, env.squadRepo, env.registrationRepo, env.reservationRepo)
	env.svc = NewRegistrationService(db, env.tournamentRepo, env.squadRepo, env.registrationRepo, env.reservationRepo,
		env.bowlerRepo, availability, nil, nil, env.metrics, testLogger())

	// Типовой турнир: регистрация открыта, нужен один квалификационный сквад.
	env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
		tournament := upcomingTournament(id)
		tournament.SquadsToQualify = 1
		return tournament, nil
	}
	env.squadRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Squad, error) {
		return []models.Squad{
			{ID: 21, TournamentID: tournamentID, Name: "Friday Evening", Capacity: 10, IsQualifying: true},
			{ID: 22, TournamentID: tournamentID, Name: "Saturday Morning", Capacity: 10, IsQualifying: true},
			{ID: 23, TournamentID: tournamentID, Name: "Desperado", Capacity: 6, IsQualifying: false},
		}, nil
	}
	return env
}

func registrationInput() CreateRegistrationInput {
	return CreateRegistrationInput{
		TournamentID: 5,
		PlayerName:   "Ivan Petrov",
		Email:        "Ivan.Petrov@Example.com",
		Gender:       models.GenderMale,
		AverageScore: intPtr(185),
		SquadIDs:     []int{21},
	}
}

func TestRegistrationService_Create(t *testing.T) {
	t.Run("admits a valid entry in one transaction", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()

		env.bowlerRepo.UpsertByEmailFunc = func(bowler *models.Bowler) error {
			bowler.ID = 7
			return nil
		}
		env.registrationRepo.CreateFunc = func(registration *models.Registration) error {
			registration.ID = 100
			return nil
		}

		registration, err := env.svc.Create(context.Background(), registrationInput())
		require.NoError(t, err)

		assert.Equal(t, "ivan.petrov@example.com", registration.Email)
		assert.Equal(t, models.RegistrationConfirmed, registration.Status, "принятая заявка подтверждается сразу")
		assert.Equal(t, []int{21}, registration.AssignedSquads)
		require.NotNil(t, registration.BowlerID)
		assert.Equal(t, 7, *registration.BowlerID, "заявка связана с профилем, созданным по email")

		require.Len(t, env.squadRepo.LockByIDsCalls, 1)
		assert.Equal(t, []int{21}, env.squadRepo.LockByIDsCalls[0])
		require.Len(t, env.registrationRepo.AssignSquadsCalls, 1)
		assert.Equal(t, 100, env.registrationRepo.AssignSquadsCalls[0].RegistrationID)
		require.Len(t, env.bowlerRepo.UpsertByEmailCalls, 1)
		assert.Equal(t, "ivan.petrov@example.com", env.bowlerRepo.UpsertByEmailCalls[0].Email)

		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeCreated))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("rejects a blank player name", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		input := registrationInput()
		input.PlayerName = "   "

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrValidationFailed)
		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeRejected))
	})

	t.Run("unknown tournament", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.tournamentRepo.GetByIDFunc = nil

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("tournament already started", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.Status = models.StatusActive
			return tournament, nil
		}

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrTournamentNotUpcoming)
	})

	t.Run("registration window not open yet", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.RegistrationOpenDate = timePtr(time.Now().Add(48 * time.Hour))
			return tournament, nil
		}

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrRegistrationNotOpen)
	})

	t.Run("registration deadline passed", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.RegistrationDeadline = timePtr(time.Now().Add(-time.Hour))
			return tournament, nil
		}

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrRegistrationDeadlinePassed)
	})

	t.Run("no squads selected", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		input := registrationInput()
		input.SquadIDs = nil

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrNoSquadsSelected)
	})

	t.Run("squad from another tournament", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		input := registrationInput()
		input.SquadIDs = []int{99}

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrSquadNotFound)
		assert.ErrorContains(t, err, "squad 99")
	})

	t.Run("not enough qualifying squads", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		input := registrationInput()
		input.SquadIDs = []int{23}

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrNotEnoughQualifyingSquads)
		assert.ErrorContains(t, err, "need 1, selected 0")
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("extra qualifying squads need re-entry enabled", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		input := registrationInput()
		input.SquadIDs = []int{21, 22}

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrReentryNotAllowed)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("full squad is reported before the qualifying shortfall", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		// Единственный выбранный сквад и заполнен, и не квалификационный.
		// Первой называется нехватка мест с именем сквада.
		env.registrationRepo.CountActiveBySquadFunc = func(squadID int) (int, error) { return 6, nil }
		input := registrationInput()
		input.SquadIDs = []int{23}

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrSquadFull)
		assert.ErrorContains(t, err, "Desperado")
		assert.NotErrorIs(t, err, ErrNotEnoughQualifyingSquads)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("re-entry allowed admits extra qualifying squads", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.SquadsToQualify = 1
			tournament.AllowReentry = true
			return tournament, nil
		}
		input := registrationInput()
		input.SquadIDs = []int{21, 22}

		registration, err := env.svc.Create(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, []int{21, 22}, registration.AssignedSquads)
	})

	t.Run("full squad fails inside the transaction", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		env.registrationRepo.CountActiveBySquadFunc = func(squadID int) (int, error) { return 10, nil }

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrSquadFull)
		assert.ErrorContains(t, err, "Friday Evening")
		assert.Empty(t, env.registrationRepo.CreateCalls)
		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeRejected))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("participant limit reached", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.SquadsToQualify = 1
			tournament.MaxParticipants = intPtr(30)
			return tournament, nil
		}
		env.registrationRepo.CountActiveByTournamentFunc = func(tournamentID int) (int, error) { return 30, nil }

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrTournamentFull)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		env.registrationRepo.ExistsByTournamentAndEmailFunc = func(tournamentID int, email string) (bool, error) {
			return true, nil
		}

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrRegistrationConflict)
		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeConflict))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("insert race maps the unique violation to a conflict", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		// Предварительная проверка успела до чужого коммита, вставка уже нет.
		env.registrationRepo.CreateFunc = func(registration *models.Registration) error {
			return repositories.ErrRegistrationDuplicate
		}

		_, err := env.svc.Create(context.Background(), registrationInput())
		require.ErrorIs(t, err, ErrRegistrationConflict)
		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeConflict))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("own hold does not block its own registration", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()

		env.squadRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Squad, error) {
			return []models.Squad{{ID: 24, TournamentID: tournamentID, Name: "Last Lane", Capacity: 1, IsQualifying: true}}, nil
		}
		// Единственное место занято собственной бронью заявителя.
		env.reservationRepo.CountActiveBySquadFunc = func(squadID int, now time.Time) (int, error) { return 1, nil }
		env.reservationRepo.GetBySessionKeyFunc = func(sessionKey string, now time.Time) (*models.SpotReservation, error) {
			return &models.SpotReservation{
				ID:           70,
				TournamentID: 5,
				SessionKey:   sessionKey,
				SquadIDs:     []int{24},
				ExpiresAt:    now.Add(5 * time.Minute),
			}, nil
		}

		input := registrationInput()
		input.SquadIDs = []int{24}
		input.SessionKey = strPtr("sess-own")

		registration, err := env.svc.Create(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, []int{24}, registration.AssignedSquads)
		// Бронь снимается в той же транзакции, что и приём заявки.
		assert.Equal(t, []string{"sess-own"}, env.reservationRepo.DeleteBySessionKeyCalls)
		assert.Equal(t, 1, env.metrics.Registrations(metrics.OutcomeCreated))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("someone else's hold still blocks", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()

		env.squadRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Squad, error) {
			return []models.Squad{{ID: 24, TournamentID: tournamentID, Name: "Last Lane", Capacity: 1, IsQualifying: true}}, nil
		}
		env.reservationRepo.CountActiveBySquadFunc = func(squadID int, now time.Time) (int, error) { return 1, nil }

		input := registrationInput()
		input.SquadIDs = []int{24}

		_, err := env.svc.Create(context.Background(), input)
		require.ErrorIs(t, err, ErrSquadFull)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}

func TestRegistrationService_Access(t *testing.T) {
	registration := &models.Registration{
		ID:           100,
		TournamentID: 5,
		PlayerName:   "Ivan Petrov",
		Email:        "ivan.petrov@example.com",
		Status:       models.RegistrationPending,
	}

	t.Run("owner reads their registration case-insensitively", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) { return registration, nil }

		got, err := env.svc.GetByID(context.Background(), 100, "Ivan.Petrov@Example.com", models.RoleBowler)
		require.NoError(t, err)
		assert.Equal(t, registration, got)
	})

	t.Run("stranger is forbidden, admin is not", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) { return registration, nil }

		_, err := env.svc.GetByID(context.Background(), 100, "someone.else@example.com", models.RoleBowler)
		require.ErrorIs(t, err, ErrForbiddenOperation)

		_, err = env.svc.GetByID(context.Background(), 100, "admin@example.com", models.RoleAdmin)
		require.NoError(t, err)
	})

	t.Run("unknown registration", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		_, err := env.svc.GetByID(context.Background(), 404, "ivan.petrov@example.com", models.RoleBowler)
		require.ErrorIs(t, err, ErrRegistrationNotFound)
	})
}

func TestRegistrationService_Update(t *testing.T) {
	ownerRegistration := func(id int) (*models.Registration, error) {
		return &models.Registration{
			ID:           id,
			TournamentID: 5,
			Email:        "ivan.petrov@example.com",
			Status:       models.RegistrationConfirmed,
		}, nil
	}

	t.Run("owner edits contact details before the start", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = ownerRegistration

		updated, err := env.svc.Update(context.Background(), 100,
			UpdateRegistrationInput{Phone: strPtr("+7 900 000-00-00")},
			"ivan.petrov@example.com", models.RoleBowler)
		require.NoError(t, err)
		require.NotNil(t, updated.Phone)
		assert.Equal(t, "+7 900 000-00-00", *updated.Phone)
		require.Len(t, env.registrationRepo.UpdateContactCalls, 1)
	})

	t.Run("bowler cannot edit after the tournament started", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = ownerRegistration
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.Status = models.StatusActive
			return tournament, nil
		}

		_, err := env.svc.Update(context.Background(), 100,
			UpdateRegistrationInput{Phone: strPtr("+7 900 000-00-00")},
			"ivan.petrov@example.com", models.RoleBowler)
		require.ErrorIs(t, err, ErrTournamentNotUpcoming)
		assert.Empty(t, env.registrationRepo.UpdateContactCalls, "данные заявки не тронуты")
	})

	t.Run("admin edits regardless of the tournament stage", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = ownerRegistration
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.Status = models.StatusCompleted
			return tournament, nil
		}

		_, err := env.svc.Update(context.Background(), 100,
			UpdateRegistrationInput{Notes: strPtr("paid cash on site")},
			"admin@example.com", models.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, env.registrationRepo.UpdateContactCalls, 1)
	})
}

func TestRegistrationService_Cancel(t *testing.T) {
	t.Run("cancel is idempotent", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) {
			return &models.Registration{
				ID:     id,
				Email:  "ivan.petrov@example.com",
				Status: models.RegistrationCanceled,
			}, nil
		}

		err := env.svc.Cancel(context.Background(), 100, "ivan.petrov@example.com", models.RoleBowler)
		require.NoError(t, err)
		assert.Empty(t, env.registrationRepo.UpdateStatusCalls, "повторная отмена не трогает хранилище")
	})

	t.Run("active registration is canceled", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) {
			return &models.Registration{
				ID:     id,
				Email:  "ivan.petrov@example.com",
				Status: models.RegistrationConfirmed,
			}, nil
		}

		err := env.svc.Cancel(context.Background(), 100, "ivan.petrov@example.com", models.RoleBowler)
		require.NoError(t, err)
		require.Len(t, env.registrationRepo.UpdateStatusCalls, 1)
		assert.Equal(t, models.RegistrationCanceled, env.registrationRepo.UpdateStatusCalls[0].Status)
	})

	t.Run("bowler cannot cancel after the tournament started", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) {
			return &models.Registration{
				ID:           id,
				TournamentID: 5,
				Email:        "ivan.petrov@example.com",
				Status:       models.RegistrationConfirmed,
			}, nil
		}
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.Status = models.StatusActive
			return tournament, nil
		}

		err := env.svc.Cancel(context.Background(), 100, "ivan.petrov@example.com", models.RoleBowler)
		require.ErrorIs(t, err, ErrTournamentNotUpcoming)
		assert.Empty(t, env.registrationRepo.UpdateStatusCalls, "статус заявки не тронут")
	})

	t.Run("admin cancels regardless of the tournament stage", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) {
			return &models.Registration{
				ID:           id,
				TournamentID: 5,
				Email:        "ivan.petrov@example.com",
				Status:       models.RegistrationConfirmed,
			}, nil
		}
		env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
			tournament := upcomingTournament(id)
			tournament.Status = models.StatusActive
			return tournament, nil
		}

		err := env.svc.Cancel(context.Background(), 100, "admin@example.com", models.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, env.registrationRepo.UpdateStatusCalls, 1)
		assert.Equal(t, models.RegistrationCanceled, env.registrationRepo.UpdateStatusCalls[0].Status)
	})
}

func TestRegistrationService_Delete(t *testing.T) {
	t.Run("removes the entry for good", func(t *testing.T) {
		env := newRegistrationTestEnv(t)
		env.registrationRepo.GetByIDFunc = func(id int) (*models.Registration, error) {
			return &models.Registration{
				ID:           id,
				TournamentID: 5,
				Email:        "ivan.petrov@example.com",
				Status:       models.RegistrationConfirmed,
			}, nil
		}

		err := env.svc.Delete(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, []int{100}, env.registrationRepo.DeleteCalls)
	})

	t.Run("unknown registration", func(t *testing.T) {
		env := newRegistrationTestEnv(t)

		err := env.svc.Delete(context.Background(), 404)
		require.ErrorIs(t, err, ErrRegistrationNotFound)
		assert.Empty(t, env.registrationRepo.DeleteCalls)
	})
}
