package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrRegistrationDuplicate = errors.New("registration with this email already exists for the tournament")
)

type RegistrationRepository interface {
	// Create вставляет строку регистрации. Гонка двух заявок с одним email
	// на один турнир разрешается уникальным индексом по (tournament_id, lower(email)).
	Create(ctx context.Context, exec SQLExecutor, registration *models.Registration) error
	AssignSquads(ctx context.Context, exec SQLExecutor, registrationID int, squadIDs []int) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	ExistsByTournamentAndEmail(ctx context.Context, exec SQLExecutor, tournamentID int, email string) (bool, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error)
	// ListByStage возвращает активные регистрации (pending/confirmed) на заданном
	// этапе вместе со всеми их очками по этапам.
	ListByStage(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error)
	// ListWithStageScore возвращает активные регистрации, у которых записаны очки
	// на заданном этапе, независимо от их текущего этапа. Источник данных для
	// таблиц лидеров: после перевода игроков дальше таблица этапа должна
	// оставаться видимой.
	ListWithStageScore(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Registration, error)
	CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int) (int, error)
	CountActiveByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// CountActiveBeyondStage считает активные регистрации, ушедшие дальше
	// заданного этапа. Единственный путь вперёд - движок продвижения, поэтому
	// это число уже продвинутых с этапа.
	CountActiveBeyondStage(ctx context.Context, exec SQLExecutor, tournamentID, stageIndex int) (int, error)
	UpdateContact(ctx context.Context, id int, phone *string, averageScore *int, notes *string) error
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	SetCurrentStage(ctx context.Context, exec SQLExecutor, id, stageIndex int) error
	Delete(ctx context.Context, id int) error
	UpsertStageScore(ctx context.Context, exec SQLExecutor, score *models.StageScore) error
	ListStageScores(ctx context.Context, registrationID int) ([]models.StageScore, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `id, tournament_id, bowler_id, player_name, email, phone, gender, average_score, notes, status, current_stage, created_at`

// activeStatuses - статусы, занимающие место в скваде и общем лимите турнира.
const activeStatuses = `('pending', 'confirmed')`

func scanRegistration(s rowScanner) (*models.Registration, error) {
	var reg models.Registration
	err := s.Scan(&reg.ID, &reg.TournamentID, &reg.BowlerID, &reg.PlayerName, &reg.Email,
		&reg.Phone, &reg.Gender, &reg.AverageScore, &reg.Notes,
		&reg.Status, &reg.CurrentStage, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, registration *models.Registration) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO registrations (tournament_id, bowler_id, player_name, email, phone, gender, average_score, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, current_stage, created_at`

	err := executor.QueryRowContext(ctx, query,
		registration.TournamentID, registration.BowlerID, registration.PlayerName,
		registration.Email, registration.Phone, registration.Gender,
		registration.AverageScore, registration.Notes, registration.Status,
	).Scan(&registration.ID, &registration.CurrentStage, &registration.CreatedAt)
	if err != nil {
		return handleRegistrationError(err, "failed to create registration")
	}
	return nil
}

func (r *postgresRegistrationRepository) AssignSquads(ctx context.Context, exec SQLExecutor, registrationID int, squadIDs []int) error {
	executor := getExecutor(r.db, exec)
	query := `INSERT INTO registration_squads (registration_id, squad_id) VALUES ($1, $2)`
	for _, squadID := range squadIDs {
		if _, err := executor.ExecContext(ctx, query, registrationID, squadID); err != nil {
			return handleRegistrationError(err, "failed to assign squad to registration")
		}
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	registration, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration by id: %w", err)
	}

	if err := r.loadSquadIDs(ctx, []*models.Registration{registration}); err != nil {
		return nil, err
	}
	scores, err := r.ListStageScores(ctx, registration.ID)
	if err != nil {
		return nil, err
	}
	registration.StageScores = scores
	return registration, nil
}

func (r *postgresRegistrationRepository) ExistsByTournamentAndEmail(ctx context.Context, exec SQLExecutor, tournamentID int, email string) (bool, error) {
	executor := getExecutor(r.db, exec)
	query := `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE tournament_id = $1 AND lower(email) = lower($2) AND status IN ` + activeStatuses + `
		)`
	var exists bool
	if err := executor.QueryRowContext(ctx, query, tournamentID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registration existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY created_at, id"

	registrations, err := r.queryRegistrations(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.loadSquadIDs(ctx, registrations); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) ListByStage(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE tournament_id = $1 AND current_stage = $2 AND status IN ` + activeStatuses + `
		ORDER BY id`

	registrations, err := r.queryRegistrations(ctx, query, tournamentID, stageIndex)
	if err != nil {
		return nil, err
	}
	if err := r.loadStageScores(ctx, registrations); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) ListWithStageScore(ctx context.Context, tournamentID, stageIndex int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE tournament_id = $1 AND status IN ` + activeStatuses + `
		  AND id IN (SELECT registration_id FROM stage_scores WHERE stage_index = $2)
		ORDER BY id`

	registrations, err := r.queryRegistrations(ctx, query, tournamentID, stageIndex)
	if err != nil {
		return nil, err
	}
	if err := r.loadStageScores(ctx, registrations); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) ListByEmail(ctx context.Context, email string) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE lower(email) = lower($1) ORDER BY created_at DESC`
	registrations, err := r.queryRegistrations(ctx, query, email)
	if err != nil {
		return nil, err
	}
	if err := r.loadSquadIDs(ctx, registrations); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) queryRegistrations(ctx context.Context, query string, args ...interface{}) ([]*models.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	registrations := []*models.Registration{}
	for rows.Next() {
		registration, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		registrations = append(registrations, registration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return registrations, nil
}

// loadSquadIDs подтягивает назначенные сквады одним запросом для всего списка.
func (r *postgresRegistrationRepository) loadSquadIDs(ctx context.Context, registrations []*models.Registration) error {
	if len(registrations) == 0 {
		return nil
	}
	ids := make([]int, 0, len(registrations))
	byID := make(map[int]*models.Registration, len(registrations))
	for _, reg := range registrations {
		ids = append(ids, reg.ID)
		byID[reg.ID] = reg
		reg.AssignedSquads = []int{}
	}

	query := `SELECT registration_id, squad_id FROM registration_squads WHERE registration_id = ANY($1) ORDER BY registration_id, squad_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load registration squads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var registrationID, squadID int
		if err := rows.Scan(&registrationID, &squadID); err != nil {
			return fmt.Errorf("failed to scan registration squad row: %w", err)
		}
		if reg, ok := byID[registrationID]; ok {
			reg.AssignedSquads = append(reg.AssignedSquads, squadID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) loadStageScores(ctx context.Context, registrations []*models.Registration) error {
	if len(registrations) == 0 {
		return nil
	}
	ids := make([]int, 0, len(registrations))
	byID := make(map[int]*models.Registration, len(registrations))
	for _, reg := range registrations {
		ids = append(ids, reg.ID)
		byID[reg.ID] = reg
		reg.StageScores = []models.StageScore{}
	}

	query := `
		SELECT id, registration_id, stage_index, scores, bonus_pins, handicap_per_game, carryover, total, updated_at
		FROM stage_scores
		WHERE registration_id = ANY($1)
		ORDER BY registration_id, stage_index`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load stage scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		score, err := scanStageScore(rows)
		if err != nil {
			return fmt.Errorf("failed to scan stage score row: %w", err)
		}
		if reg, ok := byID[score.RegistrationID]; ok {
			reg.StageScores = append(reg.StageScores, score)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int) (int, error) {
	executor := getExecutor(r.db, exec)
	query := `
		SELECT COUNT(*)
		FROM registration_squads rs
		JOIN registrations reg ON reg.id = rs.registration_id
		WHERE rs.squad_id = $1 AND reg.status IN ` + activeStatuses

	var count int
	if err := executor.QueryRowContext(ctx, query, squadID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations for squad: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) CountActiveByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status IN ` + activeStatuses

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations for tournament: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) CountActiveBeyondStage(ctx context.Context, exec SQLExecutor, tournamentID, stageIndex int) (int, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND current_stage > $2 AND status IN ` + activeStatuses

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, stageIndex).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations beyond stage: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) UpdateContact(ctx context.Context, id int, phone *string, averageScore *int, notes *string) error {
	query := `UPDATE registrations SET phone = $1, average_score = $2, notes = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, phone, averageScore, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update registration contact: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	query := `UPDATE registrations SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) SetCurrentStage(ctx context.Context, exec SQLExecutor, id, stageIndex int) error {
	executor := getExecutor(r.db, exec)
	query := `UPDATE registrations SET current_stage = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, stageIndex, id)
	if err != nil {
		return fmt.Errorf("failed to set registration stage: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM registrations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

// UpsertStageScore записывает или обновляет очки регистрации на этапе.
// Итоги (handicap_per_game, carryover, total) считаются сервисом и хранятся
// денормализованно, чтобы таблицы лидеров не пересчитывали их на каждый запрос.
func (r *postgresRegistrationRepository) UpsertStageScore(ctx context.Context, exec SQLExecutor, score *models.StageScore) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO stage_scores (registration_id, stage_index, scores, bonus_pins, handicap_per_game, carryover, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (registration_id, stage_index) DO UPDATE SET
			scores = EXCLUDED.scores,
			bonus_pins = EXCLUDED.bonus_pins,
			handicap_per_game = EXCLUDED.handicap_per_game,
			carryover = EXCLUDED.carryover,
			total = EXCLUDED.total,
			updated_at = now()
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		score.RegistrationID, score.StageIndex,
		intsToArray(score.Scores), intsToArray(score.BonusPins),
		score.HandicapPerGame, score.Carryover, score.Total,
	).Scan(&score.ID, &score.UpdatedAt)
	if err != nil {
		return handleRegistrationError(err, "failed to upsert stage score")
	}
	return nil
}

func (r *postgresRegistrationRepository) ListStageScores(ctx context.Context, registrationID int) ([]models.StageScore, error) {
	query := `
		SELECT id, registration_id, stage_index, scores, bonus_pins, handicap_per_game, carryover, total, updated_at
		FROM stage_scores
		WHERE registration_id = $1
		ORDER BY stage_index`

	rows, err := r.db.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage scores: %w", err)
	}
	defer rows.Close()

	scores := []models.StageScore{}
	for rows.Next() {
		score, err := scanStageScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage score row: %w", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return scores, nil
}

func scanStageScore(s rowScanner) (models.StageScore, error) {
	var score models.StageScore
	var scores, bonusPins pq.Int64Array
	err := s.Scan(&score.ID, &score.RegistrationID, &score.StageIndex, &scores, &bonusPins,
		&score.HandicapPerGame, &score.Carryover, &score.Total, &score.UpdatedAt)
	if err != nil {
		return models.StageScore{}, err
	}
	score.Scores = arrayToInts(scores)
	score.BonusPins = arrayToInts(bonusPins)
	return score, nil
}

func intsToArray(values []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(values))
	for i, v := range values {
		arr[i] = int64(v)
	}
	return arr
}

func arrayToInts(arr pq.Int64Array) []int {
	values := make([]int, len(arr))
	for i, v := range arr {
		values[i] = int(v)
	}
	return values
}

func handleRegistrationError(err error, context string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "registrations_tournament_email_unique" {
				return ErrRegistrationDuplicate
			}
		case "23503":
			switch pqErr.Constraint {
			case "registration_squads_squad_id_fkey":
				return ErrSquadNotFound
			case "registrations_tournament_id_fkey":
				return ErrTournamentNotFound
			case "stage_scores_registration_id_fkey":
				return ErrRegistrationNotFound
			}
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}
