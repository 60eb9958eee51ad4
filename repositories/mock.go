package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/lanecrew/tournament-system/models"
)

// Func-поля позволяют тестам задавать поведение мока на месте; вызовы
// записываются для проверок. Незаданная функция возвращает нулевые значения.

var (
	_ TournamentRepository   = (*MockTournamentRepository)(nil)
	_ SquadRepository        = (*MockSquadRepository)(nil)
	_ StageRepository        = (*MockStageRepository)(nil)
	_ RegistrationRepository = (*MockRegistrationRepository)(nil)
	_ ReservationRepository  = (*MockReservationRepository)(nil)
	_ BowlerRepository       = (*MockBowlerRepository)(nil)
	_ UserRepository         = (*MockUserRepository)(nil)
)

// MockTournamentRepository is a mock implementation of TournamentRepository
// for testing. It is safe for concurrent use.
type MockTournamentRepository struct {
	mu sync.Mutex

	CreateFunc                            func(tournament *models.Tournament) error
	GetByIDFunc                           func(id int) (*models.Tournament, error)
	GetBySlugFunc                         func(slug string) (*models.Tournament, error)
	ListFunc                              func(filter ListTournamentsFilter) ([]*models.Tournament, error)
	UpdateFunc                            func(tournament *models.Tournament) error
	UpdateStatusFunc                      func(id int, status models.TournamentStatus) error
	UpdateLogoKeyFunc                     func(id int, logoKey *string) error
	DeleteFunc                            func(id int) error
	GetTournamentsForAutoStatusUpdateFunc func(currentTime time.Time) ([]*models.Tournament, error)

	UpdateStatusCalls []struct {
		ID     int
		Status models.TournamentStatus
	}
}

func (m *MockTournamentRepository) Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(tournament)
	}
	return nil
}

func (m *MockTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, ErrTournamentNotFound
}

func (m *MockTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(slug)
	}
	return nil, ErrTournamentNotFound
}

func (m *MockTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	if m.ListFunc != nil {
		return m.ListFunc(filter)
	}
	return nil, nil
}

func (m *MockTournamentRepository) Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(tournament)
	}
	return nil
}

func (m *MockTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	m.mu.Lock()
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, struct {
		ID     int
		Status models.TournamentStatus
	}{id, status})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(id, status)
	}
	return nil
}

func (m *MockTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	if m.UpdateLogoKeyFunc != nil {
		return m.UpdateLogoKeyFunc(id, logoKey)
	}
	return nil
}

func (m *MockTournamentRepository) Delete(ctx context.Context, id int) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *MockTournamentRepository) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	if m.GetTournamentsForAutoStatusUpdateFunc != nil {
		return m.GetTournamentsForAutoStatusUpdateFunc(currentTime)
	}
	return nil, nil
}

// MockSquadRepository is a mock implementation of SquadRepository for testing.
type MockSquadRepository struct {
	mu sync.Mutex

	ListByTournamentFunc func(tournamentID int) ([]models.Squad, error)
	GetByIDsFunc         func(ids []int) ([]models.Squad, error)
	LockByIDsFunc        func(ids []int) ([]models.Squad, error)
	ReplaceFunc          func(tournamentID int, squads []models.Squad) ([]models.Squad, error)

	LockByIDsCalls [][]int
}

func (m *MockSquadRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Squad, error) {
	if m.ListByTournamentFunc != nil {
		return m.ListByTournamentFunc(tournamentID)
	}
	return nil, nil
}

func (m *MockSquadRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ids)
	}
	return nil, nil
}

func (m *MockSquadRepository) LockByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error) {
	m.mu.Lock()
	m.LockByIDsCalls = append(m.LockByIDsCalls, ids)
	m.mu.Unlock()
	if m.LockByIDsFunc != nil {
		return m.LockByIDsFunc(ids)
	}
	return nil, nil
}

func (m *MockSquadRepository) Replace(ctx context.Context, exec SQLExecutor, tournamentID int, squads []models.Squad) ([]models.Squad, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(tournamentID, squads)
	}
	return squads, nil
}

// MockStageRepository is a mock implementation of StageRepository for testing.
type MockStageRepository struct {
	ListByTournamentFunc func(tournamentID int) ([]models.Stage, error)
	ReplaceFunc          func(tournamentID int, stages []models.Stage) ([]models.Stage, error)
}

func (m *MockStageRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Stage, error) {
	if m.ListByTournamentFunc != nil {
		return m.ListByTournamentFunc(tournamentID)
	}
	return nil, nil
}

func (m *MockStageRepository) Replace(ctx context.Context, exec SQLExecutor, tournamentID int, stages []models.Stage) ([]models.Stage, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(tournamentID, stages)
	}
	return stages, nil
}

// MockRegistrationRepository is a mock implementation of RegistrationRepository
// for testing. It is safe for concurrent use.
type MockRegistrationRepository struct {
	mu sync.Mutex

	CreateFunc                     func(registration *models.Registration) error
	AssignSquadsFunc               func(registrationID int, squadIDs []int) error
	GetByIDFunc                    func(id int) (*models.Registration, error)
	ExistsByTournamentAndEmailFunc func(tournamentID int, email string) (bool, error)
	ListByTournamentFunc           func(tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error)
	ListByStageFunc                func(tournamentID, stageIndex int) ([]*models.Registration, error)
	ListWithStageScoreFunc         func(tournamentID, stageIndex int) ([]*models.Registration, error)
	ListByEmailFunc                func(email string) ([]*models.Registration, error)
	CountActiveBySquadFunc         func(squadID int) (int, error)
	CountActiveByTournamentFunc    func(tournamentID int) (int, error)
	CountActiveBeyondStageFunc     func(tournamentID, stageIndex int) (int, error)
	UpdateContactFunc              func(id int, phone *string, averageScore *int, notes *string) error
	UpdateStatusFunc               func(id int, status models.RegistrationStatus) error
	SetCurrentStageFunc            func(id, stageIndex int) error
	DeleteFunc                     func(id int) error
	UpsertStageScoreFunc           func(score *models.StageScore) error
	ListStageScoresFunc            func(registrationID int) ([]models.StageScore, error)

	CreateCalls       []*models.Registration
	AssignSquadsCalls []struct {
		RegistrationID int
		SquadIDs       []int
	}
	UpdateContactCalls []struct {
		ID           int
		Phone        *string
		AverageScore *int
		Notes        *string
	}
	UpdateStatusCalls []struct {
		ID     int
		Status models.RegistrationStatus
	}
	SetCurrentStageCalls []struct {
		ID         int
		StageIndex int
	}
	DeleteCalls           []int
	UpsertStageScoreCalls []*models.StageScore
}

func (m *MockRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, registration *models.Registration) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, registration)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(registration)
	}
	return nil
}

func (m *MockRegistrationRepository) AssignSquads(ctx context.Context, exec SQLExecutor, registrationID int, squadIDs []int) error {
	m.mu.Lock()
	m.AssignSquadsCalls = append(m.AssignSquadsCalls, struct {
		RegistrationID int
		SquadIDs       []int
	}{registrationID, squadIDs})
	m.mu.Unlock()
	if m.AssignSquadsFunc != nil {
		return m.AssignSquadsFunc(registrationID, squadIDs)
	}
	return nil
}

func (m *MockRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, ErrRegistrationNotFound
}

func (m *MockRegistrationRepository) ExistsByTournamentAndEmail(ctx context.Context, exec SQLExecutor, tournamentID int, email string) (bool, error) {
	if m.ExistsByTournamentAndEmailFunc != nil {
		return m.ExistsByTournamentAndEmailFunc(tournamentID, email)
	}
	return false, nil
}

func (m *MockRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error) {
	if m.ListByTournamentFunc != nil {
		return m.ListByTournamentFunc(tournamentID, status)
	}
	return nil, nil
}

func (m *MockRegistrationRepository) ListByStage(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error) {
	if m.ListByStageFunc != nil {
		return m.ListByStageFunc(tournamentID, stageIndex)
	}
	return nil, nil
}

func (m *MockRegistrationRepository) ListWithStageScore(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error) {
	if m.ListWithStageScoreFunc != nil {
		return m.ListWithStageScoreFunc(tournamentID, stageIndex)
	}
	return nil, nil
}

func (m *MockRegistrationRepository) ListByEmail(ctx context.Context, email string) ([]*models.Registration, error) {
	if m.ListByEmailFunc != nil {
		return m.ListByEmailFunc(email)
	}
	return nil, nil
}

func (m *MockRegistrationRepository) CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int) (int, error) {
	if m.CountActiveBySquadFunc != nil {
		return m.CountActiveBySquadFunc(squadID)
	}
	return 0, nil
}

func (m *MockRegistrationRepository) CountActiveByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	if m.CountActiveByTournamentFunc != nil {
		return m.CountActiveByTournamentFunc(tournamentID)
	}
	return 0, nil
}

func (m *MockRegistrationRepository) CountActiveBeyondStage(ctx context.Context, exec SQLExecutor, tournamentID, stageIndex int) (int, error) {
	if m.CountActiveBeyondStageFunc != nil {
		return m.CountActiveBeyondStageFunc(tournamentID, stageIndex)
	}
	return 0, nil
}

func (m *MockRegistrationRepository) UpdateContact(ctx context.Context, id int, phone *string, averageScore *int, notes *string) error {
	m.mu.Lock()
	m.UpdateContactCalls = append(m.UpdateContactCalls, struct {
		ID           int
		Phone        *string
		AverageScore *int
		Notes        *string
	}{id, phone, averageScore, notes})
	m.mu.Unlock()
	if m.UpdateContactFunc != nil {
		return m.UpdateContactFunc(id, phone, averageScore, notes)
	}
	return nil
}

func (m *MockRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	m.mu.Lock()
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, struct {
		ID     int
		Status models.RegistrationStatus
	}{id, status})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(id, status)
	}
	return nil
}

func (m *MockRegistrationRepository) SetCurrentStage(ctx context.Context, exec SQLExecutor, id, stageIndex int) error {
	m.mu.Lock()
	m.SetCurrentStageCalls = append(m.SetCurrentStageCalls, struct {
		ID         int
		StageIndex int
	}{id, stageIndex})
	m.mu.Unlock()
	if m.SetCurrentStageFunc != nil {
		return m.SetCurrentStageFunc(id, stageIndex)
	}
	return nil
}

func (m *MockRegistrationRepository) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *MockRegistrationRepository) UpsertStageScore(ctx context.Context, exec SQLExecutor, score *models.StageScore) error {
	m.mu.Lock()
	m.UpsertStageScoreCalls = append(m.UpsertStageScoreCalls, score)
	m.mu.Unlock()
	if m.UpsertStageScoreFunc != nil {
		return m.UpsertStageScoreFunc(score)
	}
	return nil
}

func (m *MockRegistrationRepository) ListStageScores(ctx context.Context, registrationID int) ([]models.StageScore, error) {
	if m.ListStageScoresFunc != nil {
		return m.ListStageScoresFunc(registrationID)
	}
	return nil, nil
}

// MockReservationRepository is a mock implementation of ReservationRepository
// for testing. It is safe for concurrent use.
type MockReservationRepository struct {
	mu sync.Mutex

	CreateFunc             func(reservation *models.SpotReservation) error
	AssignSquadsFunc       func(reservationID int, squadIDs []int) error
	GetBySessionKeyFunc    func(sessionKey string, now time.Time) (*models.SpotReservation, error)
	DeleteBySessionKeyFunc func(sessionKey string) error
	CountActiveBySquadFunc func(squadID int, now time.Time) (int, error)
	DeleteExpiredFunc      func(now time.Time) (int64, error)

	CreateCalls             []*models.SpotReservation
	DeleteBySessionKeyCalls []string
}

func (m *MockReservationRepository) Create(ctx context.Context, exec SQLExecutor, reservation *models.SpotReservation) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, reservation)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(reservation)
	}
	return nil
}

func (m *MockReservationRepository) AssignSquads(ctx context.Context, exec SQLExecutor, reservationID int, squadIDs []int) error {
	if m.AssignSquadsFunc != nil {
		return m.AssignSquadsFunc(reservationID, squadIDs)
	}
	return nil
}

func (m *MockReservationRepository) GetBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string, now time.Time) (*models.SpotReservation, error) {
	if m.GetBySessionKeyFunc != nil {
		return m.GetBySessionKeyFunc(sessionKey, now)
	}
	return nil, ErrReservationNotFound
}

func (m *MockReservationRepository) DeleteBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string) error {
	m.mu.Lock()
	m.DeleteBySessionKeyCalls = append(m.DeleteBySessionKeyCalls, sessionKey)
	m.mu.Unlock()
	if m.DeleteBySessionKeyFunc != nil {
		return m.DeleteBySessionKeyFunc(sessionKey)
	}
	return nil
}

func (m *MockReservationRepository) CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int, now time.Time) (int, error) {
	if m.CountActiveBySquadFunc != nil {
		return m.CountActiveBySquadFunc(squadID, now)
	}
	return 0, nil
}

func (m *MockReservationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(now)
	}
	return 0, nil
}

// MockBowlerRepository is a mock implementation of BowlerRepository for testing.
// It is safe for concurrent use.
type MockBowlerRepository struct {
	mu sync.Mutex

	UpsertByEmailFunc           func(bowler *models.Bowler) error
	GetByIDFunc                 func(id int) (*models.Bowler, error)
	GetByEmailFunc              func(email string) (*models.Bowler, error)
	ListFunc                    func() ([]models.Bowler, error)
	UpdateStatsFunc             func(id int, tournamentAverage, highGame, highSeries *int) error
	CreateResultFunc            func(result *models.BowlerResult) error
	ListResultsFunc             func(bowlerID int) ([]models.BowlerResult, error)
	ListStageScoresByBowlerFunc func(bowlerID int) ([]models.StageScore, error)

	UpsertByEmailCalls []*models.Bowler
	CreateResultCalls  []*models.BowlerResult
	UpdateStatsCalls   []struct {
		ID                int
		TournamentAverage *int
		HighGame          *int
		HighSeries        *int
	}
}

func (m *MockBowlerRepository) UpsertByEmail(ctx context.Context, exec SQLExecutor, bowler *models.Bowler) error {
	m.mu.Lock()
	m.UpsertByEmailCalls = append(m.UpsertByEmailCalls, bowler)
	m.mu.Unlock()
	if m.UpsertByEmailFunc != nil {
		return m.UpsertByEmailFunc(bowler)
	}
	return nil
}

func (m *MockBowlerRepository) GetByID(ctx context.Context, id int) (*models.Bowler, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, ErrBowlerNotFound
}

func (m *MockBowlerRepository) GetByEmail(ctx context.Context, email string) (*models.Bowler, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(email)
	}
	return nil, ErrBowlerNotFound
}

func (m *MockBowlerRepository) List(ctx context.Context) ([]models.Bowler, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *MockBowlerRepository) UpdateStats(ctx context.Context, id int, tournamentAverage, highGame, highSeries *int) error {
	m.mu.Lock()
	m.UpdateStatsCalls = append(m.UpdateStatsCalls, struct {
		ID                int
		TournamentAverage *int
		HighGame          *int
		HighSeries        *int
	}{id, tournamentAverage, highGame, highSeries})
	m.mu.Unlock()
	if m.UpdateStatsFunc != nil {
		return m.UpdateStatsFunc(id, tournamentAverage, highGame, highSeries)
	}
	return nil
}

func (m *MockBowlerRepository) CreateResult(ctx context.Context, result *models.BowlerResult) error {
	m.mu.Lock()
	m.CreateResultCalls = append(m.CreateResultCalls, result)
	m.mu.Unlock()
	if m.CreateResultFunc != nil {
		return m.CreateResultFunc(result)
	}
	return nil
}

func (m *MockBowlerRepository) ListResults(ctx context.Context, bowlerID int) ([]models.BowlerResult, error) {
	if m.ListResultsFunc != nil {
		return m.ListResultsFunc(bowlerID)
	}
	return nil, nil
}

func (m *MockBowlerRepository) ListStageScoresByBowler(ctx context.Context, bowlerID int) ([]models.StageScore, error) {
	if m.ListStageScoresByBowlerFunc != nil {
		return m.ListStageScoresByBowlerFunc(bowlerID)
	}
	return nil, nil
}

// MockUserRepository is a mock implementation of UserRepository for testing.
type MockUserRepository struct {
	mu sync.Mutex

	CreateFunc     func(user *models.User) error
	GetByEmailFunc func(email string) (*models.User, error)
	GetByIDFunc    func(id int) (*models.User, error)

	CreateCalls []*models.User
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, user)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(user)
	}
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(email)
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, ErrUserNotFound
}
