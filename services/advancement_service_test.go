package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
)

type advancementTestEnv struct {
	mock             sqlmock.Sqlmock
	tournamentRepo   *repositories.MockTournamentRepository
	stageRepo        *repositories.MockStageRepository
	registrationRepo *repositories.MockRegistrationRepository
	metrics          *metrics.Mock
	svc              AdvancementService
}

func newAdvancementTestEnv(t *testing.T) *advancementTestEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &advancementTestEnv{
		mock:             mock,
		tournamentRepo:   &repositories.MockTournamentRepository{},
		stageRepo:        &repositories.MockStageRepository{},
		registrationRepo: &repositories.MockRegistrationRepository{},
		metrics:          metrics.NewMock(),
	}
	env.svc = NewAdvancementService(db, env.tournamentRepo, env.stageRepo, env.registrationRepo, nil, env.metrics, testLogger())

	env.tournamentRepo.GetByIDFunc = func(id int) (*models.Tournament, error) {
		return &models.Tournament{ID: id, Name: "City Open", Status: models.StatusActive}, nil
	}
	env.stageRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Stage, error) {
		return []models.Stage{
			{Index: 0, Name: "Qualifying", Games: 3, AdvancingBowlers: intPtr(2)},
			{Index: 1, Name: "Final", Games: 3, CarryoverPinfall: true, CarryoverPercentage: 50},
		}, nil
	}
	// Три законченных протокола и один неполный: Дмитрий сыграл две игры из трёх.
	env.registrationRepo.ListByStageFunc = func(tournamentID, stageIndex int) ([]*models.Registration, error) {
		return []*models.Registration{
			{ID: 1, TournamentID: tournamentID, PlayerName: "Anna", StageScores: []models.StageScore{
				{RegistrationID: 1, StageIndex: 0, Scores: []int{180, 190, 170}, HandicapPerGame: 71, Total: 753},
			}},
			{ID: 2, TournamentID: tournamentID, PlayerName: "Boris", StageScores: []models.StageScore{
				{RegistrationID: 2, StageIndex: 0, Scores: []int{200, 200, 200}, Total: 600},
			}},
			{ID: 3, TournamentID: tournamentID, PlayerName: "Viktor", StageScores: []models.StageScore{
				{RegistrationID: 3, StageIndex: 0, Scores: []int{210, 215, 215}, Total: 640},
			}},
			{ID: 4, TournamentID: tournamentID, PlayerName: "Dmitry", StageScores: []models.StageScore{
				{RegistrationID: 4, StageIndex: 0, Scores: []int{200, 200}, Total: 400},
			}},
		}, nil
	}
	return env
}

func TestAdvancementService_AdvanceStage(t *testing.T) {
	t.Run("advances the top of the ranking with carryover", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()

		report, err := env.svc.AdvanceStage(context.Background(), 5, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, report.NextStageIndex)
		assert.Equal(t, 3, report.Eligible, "неполный протокол не участвует в продвижении")
		assert.Equal(t, 0, report.AlreadyAdvanced)
		assert.Equal(t, 2, report.Advanced)

		require.Len(t, env.registrationRepo.UpsertStageScoreCalls, 2)
		anna := env.registrationRepo.UpsertStageScoreCalls[0]
		assert.Equal(t, 1, anna.RegistrationID)
		assert.Equal(t, 1, anna.StageIndex)
		assert.Empty(t, anna.Scores)
		assert.Equal(t, 71, anna.HandicapPerGame, "гандикап переезжает вместе с боулером")
		assert.Equal(t, 377, anna.Carryover)
		assert.Equal(t, 377, anna.Total)

		viktor := env.registrationRepo.UpsertStageScoreCalls[1]
		assert.Equal(t, 3, viktor.RegistrationID)
		assert.Equal(t, 320, viktor.Carryover)

		require.Len(t, env.registrationRepo.SetCurrentStageCalls, 2)
		assert.Equal(t, 1, env.registrationRepo.SetCurrentStageCalls[0].ID)
		assert.Equal(t, 1, env.registrationRepo.SetCurrentStageCalls[0].StageIndex)
		assert.Equal(t, 3, env.registrationRepo.SetCurrentStageCalls[1].ID)

		assert.Equal(t, 1, env.metrics.StageAdvancementsCount())
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("re-run with a filled quota advances nobody", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.registrationRepo.CountActiveBeyondStageFunc = func(tournamentID, stageIndex int) (int, error) {
			return 2, nil
		}

		report, err := env.svc.AdvanceStage(context.Background(), 5, 0)
		require.NoError(t, err)

		assert.Equal(t, 3, report.Eligible)
		assert.Equal(t, 2, report.AlreadyAdvanced)
		assert.Equal(t, 0, report.Advanced)
		assert.Empty(t, env.registrationRepo.UpsertStageScoreCalls)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("partially filled quota takes only the remainder", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()
		env.registrationRepo.CountActiveBeyondStageFunc = func(tournamentID, stageIndex int) (int, error) {
			return 1, nil
		}

		report, err := env.svc.AdvanceStage(context.Background(), 5, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Advanced)
		require.Len(t, env.registrationRepo.UpsertStageScoreCalls, 1)
		assert.Equal(t, 1, env.registrationRepo.UpsertStageScoreCalls[0].RegistrationID, "добирается лучший из ещё не продвинутых")
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("failure on one bowler does not stop the rest", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectRollback()
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()

		env.registrationRepo.UpsertStageScoreFunc = func(score *models.StageScore) error {
			if score.RegistrationID == 1 {
				return errors.New("deadlock detected")
			}
			return nil
		}

		report, err := env.svc.AdvanceStage(context.Background(), 5, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Advanced)
		require.Len(t, env.registrationRepo.SetCurrentStageCalls, 1)
		assert.Equal(t, 3, env.registrationRepo.SetCurrentStageCalls[0].ID)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("final stage has nowhere to advance", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		_, err := env.svc.AdvanceStage(context.Background(), 5, 1)
		require.ErrorIs(t, err, ErrStageIsFinal)
	})

	t.Run("missing next stage", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.stageRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Stage, error) {
			return []models.Stage{{Index: 0, Name: "Qualifying", Games: 3, AdvancingBowlers: intPtr(2)}}, nil
		}

		_, err := env.svc.AdvanceStage(context.Background(), 5, 0)
		require.ErrorIs(t, err, ErrStageHasNoNextStage)
	})

	t.Run("unknown stage index", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		_, err := env.svc.AdvanceStage(context.Background(), 5, 9)
		require.ErrorIs(t, err, ErrStageNotFound)
	})
}

func TestAdvancementService_AdvanceAll(t *testing.T) {
	t.Run("walks the stages and sums the advanced count", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()
		env.mock.ExpectBegin()
		env.mock.ExpectCommit()

		report, err := env.svc.AdvanceAll(context.Background(), 5)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Advanced)
		require.Len(t, report.Stages, 1, "финальный этап перехода не даёт")
		assert.Equal(t, 0, report.Stages[0].StageIndex)
		assert.Equal(t, 2, report.Stages[0].Advanced)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("picks up later stages in the same pass", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.stageRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Stage, error) {
			return []models.Stage{
				{Index: 0, Name: "Qualifying", Games: 3, AdvancingBowlers: intPtr(2)},
				{Index: 1, Name: "Semifinal", Games: 3, AdvancingBowlers: intPtr(1), CarryoverPinfall: true, CarryoverPercentage: 50},
				{Index: 2, Name: "Final", Games: 1, CarryoverPinfall: true, CarryoverPercentage: 100},
			}, nil
		}
		defaultList := env.registrationRepo.ListByStageFunc
		// Кирилл закончил полуфинал ещё до этого запуска, свежепродвинутые
		// из квалификации приходят на полуфинал с пустыми протоколами.
		env.registrationRepo.ListByStageFunc = func(tournamentID, stageIndex int) ([]*models.Registration, error) {
			if stageIndex == 1 {
				return []*models.Registration{
					{ID: 9, TournamentID: tournamentID, PlayerName: "Kirill", CurrentStage: 1, StageScores: []models.StageScore{
						{RegistrationID: 9, StageIndex: 1, Scores: []int{220, 230, 210}, Total: 660},
					}},
				}, nil
			}
			return defaultList(tournamentID, stageIndex)
		}
		for i := 0; i < 3; i++ {
			env.mock.ExpectBegin()
			env.mock.ExpectCommit()
		}

		report, err := env.svc.AdvanceAll(context.Background(), 5)
		require.NoError(t, err)

		assert.Equal(t, 3, report.Advanced)
		require.Len(t, report.Stages, 2)
		assert.Equal(t, 2, report.Stages[0].Advanced)
		assert.Equal(t, 1, report.Stages[1].Advanced)

		require.Len(t, env.registrationRepo.UpsertStageScoreCalls, 3)
		kirill := env.registrationRepo.UpsertStageScoreCalls[2]
		assert.Equal(t, 9, kirill.RegistrationID)
		assert.Equal(t, 2, kirill.StageIndex)
		assert.Equal(t, 660, kirill.Carryover, "стопроцентный перенос в финал")

		assert.Equal(t, 2, env.metrics.StageAdvancementsCount())
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("single-stage tournament has no transitions", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.stageRepo.ListByTournamentFunc = func(tournamentID int) ([]models.Stage, error) {
			return []models.Stage{{Index: 0, Name: "Open", Games: 6}}, nil
		}

		report, err := env.svc.AdvanceAll(context.Background(), 5)
		require.NoError(t, err)

		assert.Equal(t, 0, report.Advanced)
		assert.Empty(t, report.Stages)
		assert.Empty(t, env.registrationRepo.UpsertStageScoreCalls)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		env := newAdvancementTestEnv(t)
		env.tournamentRepo.GetByIDFunc = nil

		_, err := env.svc.AdvanceAll(context.Background(), 9)
		require.ErrorIs(t, err, ErrTournamentNotFound)
	})
}
