package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lanecrew/tournament-system/models"
)

var ErrBowlerNotFound = errors.New("bowler not found")

// BowlerRepository хранит профили игроков. Профиль создаётся и обновляется
// автоматически при регистрации на турнир, ключом служит email.
type BowlerRepository interface {
	UpsertByEmail(ctx context.Context, exec SQLExecutor, bowler *models.Bowler) error
	GetByID(ctx context.Context, id int) (*models.Bowler, error)
	GetByEmail(ctx context.Context, email string) (*models.Bowler, error)
	List(ctx context.Context) ([]models.Bowler, error)
	UpdateStats(ctx context.Context, id int, tournamentAverage, highGame, highSeries *int) error
	CreateResult(ctx context.Context, result *models.BowlerResult) error
	ListResults(ctx context.Context, bowlerID int) ([]models.BowlerResult, error)
	// ListStageScoresByBowler собирает все сыгранные этапы игрока по всем его
	// регистрациям, для пересчёта статистики профиля.
	ListStageScoresByBowler(ctx context.Context, bowlerID int) ([]models.StageScore, error)
}

type postgresBowlerRepository struct {
	db *sql.DB
}

func NewPostgresBowlerRepository(db *sql.DB) BowlerRepository {
	return &postgresBowlerRepository{db: db}
}

const bowlerColumns = `id, email, name, phone, gender, average_score, tournament_average, high_game, high_series, created_at, updated_at`

func scanBowler(s rowScanner) (*models.Bowler, error) {
	var b models.Bowler
	err := s.Scan(&b.ID, &b.Email, &b.Name, &b.Phone, &b.Gender, &b.AverageScore,
		&b.TournamentAverage, &b.HighGame, &b.HighSeries, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpsertByEmail создаёт профиль или освежает контактные данные существующего.
// COALESCE не даёт затереть заявленный средний счёт, если в новой регистрации
// он не указан.
func (r *postgresBowlerRepository) UpsertByEmail(ctx context.Context, exec SQLExecutor, bowler *models.Bowler) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO bowlers (email, name, phone, gender, average_score)
		VALUES (lower($1), $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = COALESCE(EXCLUDED.phone, bowlers.phone),
			gender = EXCLUDED.gender,
			average_score = COALESCE(EXCLUDED.average_score, bowlers.average_score),
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		bowler.Email, bowler.Name, bowler.Phone, bowler.Gender, bowler.AverageScore,
	).Scan(&bowler.ID, &bowler.CreatedAt, &bowler.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert bowler: %w", err)
	}
	return nil
}

func (r *postgresBowlerRepository) GetByID(ctx context.Context, id int) (*models.Bowler, error) {
	query := `SELECT ` + bowlerColumns + ` FROM bowlers WHERE id = $1`
	bowler, err := scanBowler(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBowlerNotFound
		}
		return nil, fmt.Errorf("failed to get bowler by id: %w", err)
	}
	return bowler, nil
}

func (r *postgresBowlerRepository) GetByEmail(ctx context.Context, email string) (*models.Bowler, error) {
	query := `SELECT ` + bowlerColumns + ` FROM bowlers WHERE email = lower($1)`
	bowler, err := scanBowler(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBowlerNotFound
		}
		return nil, fmt.Errorf("failed to get bowler by email: %w", err)
	}
	return bowler, nil
}

func (r *postgresBowlerRepository) List(ctx context.Context) ([]models.Bowler, error) {
	query := `SELECT ` + bowlerColumns + ` FROM bowlers ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bowlers: %w", err)
	}
	defer rows.Close()

	bowlers := []models.Bowler{}
	for rows.Next() {
		bowler, err := scanBowler(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bowler row: %w", err)
		}
		bowlers = append(bowlers, *bowler)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return bowlers, nil
}

func (r *postgresBowlerRepository) UpdateStats(ctx context.Context, id int, tournamentAverage, highGame, highSeries *int) error {
	query := `UPDATE bowlers SET tournament_average = $1, high_game = $2, high_series = $3, updated_at = now() WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, tournamentAverage, highGame, highSeries, id)
	if err != nil {
		return fmt.Errorf("failed to update bowler stats: %w", err)
	}
	return checkAffectedRows(result, ErrBowlerNotFound)
}

func (r *postgresBowlerRepository) CreateResult(ctx context.Context, result *models.BowlerResult) error {
	query := `
		INSERT INTO bowler_results (bowler_id, tournament_name, event_date, games, scratch_total, high_game)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		result.BowlerID, result.TournamentName, result.EventDate,
		result.Games, result.ScratchTotal, result.HighGame,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bowler result: %w", err)
	}
	return nil
}

func (r *postgresBowlerRepository) ListResults(ctx context.Context, bowlerID int) ([]models.BowlerResult, error) {
	query := `
		SELECT id, bowler_id, tournament_name, event_date, games, scratch_total, high_game, created_at
		FROM bowler_results
		WHERE bowler_id = $1
		ORDER BY event_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, bowlerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bowler results: %w", err)
	}
	defer rows.Close()

	results := []models.BowlerResult{}
	for rows.Next() {
		var res models.BowlerResult
		err := rows.Scan(&res.ID, &res.BowlerID, &res.TournamentName, &res.EventDate,
			&res.Games, &res.ScratchTotal, &res.HighGame, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bowler result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return results, nil
}

func (r *postgresBowlerRepository) ListStageScoresByBowler(ctx context.Context, bowlerID int) ([]models.StageScore, error) {
	query := `
		SELECT ss.id, ss.registration_id, ss.stage_index, ss.scores, ss.bonus_pins,
		       ss.handicap_per_game, ss.carryover, ss.total, ss.updated_at
		FROM stage_scores ss
		JOIN registrations reg ON reg.id = ss.registration_id
		WHERE reg.bowler_id = $1
		ORDER BY ss.updated_at`

	rows, err := r.db.QueryContext(ctx, query, bowlerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage scores for bowler: %w", err)
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
