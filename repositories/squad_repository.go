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
	ErrSquadNotFound        = errors.New("squad not found")
	ErrSquadInUse           = errors.New("squad has registrations or reservations and cannot be removed")
	ErrSquadInvalidCapacity = errors.New("squad capacity must be at least 1")
)

type SquadRepository interface {
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Squad, error)
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error)
	// LockByIDs читает сквады в фиксированном порядке (ORDER BY id) c FOR UPDATE.
	// Фиксированный порядок блокировок исключает deadlock между параллельными
	// регистрациями, пересекающимися по сквадам.
	LockByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error)
	Replace(ctx context.Context, exec SQLExecutor, tournamentID int, squads []models.Squad) ([]models.Squad, error)
}

type postgresSquadRepository struct {
	db *sql.DB
}

func NewPostgresSquadRepository(db *sql.DB) SquadRepository {
	return &postgresSquadRepository{db: db}
}

const squadColumns = `id, tournament_id, name, squad_date, start_time, capacity, is_qualifying`

func scanSquad(s rowScanner) (models.Squad, error) {
	var squad models.Squad
	err := s.Scan(&squad.ID, &squad.TournamentID, &squad.Name, &squad.Date,
		&squad.StartTime, &squad.Capacity, &squad.IsQualifying)
	return squad, err
}

func (r *postgresSquadRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Squad, error) {
	query := `SELECT ` + squadColumns + ` FROM squads WHERE tournament_id = $1 ORDER BY squad_date, start_time, id`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	defer rows.Close()

	squads := []models.Squad{}
	for rows.Next() {
		squad, err := scanSquad(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad row: %w", err)
		}
		squads = append(squads, squad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return squads, nil
}

func (r *postgresSquadRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error) {
	return r.selectByIDs(ctx, exec, ids, false)
}

func (r *postgresSquadRepository) LockByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Squad, error) {
	return r.selectByIDs(ctx, exec, ids, true)
}

func (r *postgresSquadRepository) selectByIDs(ctx context.Context, exec SQLExecutor, ids []int, forUpdate bool) ([]models.Squad, error) {
	if len(ids) == 0 {
		return []models.Squad{}, nil
	}
	executor := getExecutor(r.db, exec)

	query := `SELECT ` + squadColumns + ` FROM squads WHERE id = ANY($1) ORDER BY id`
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to select squads by ids: %w", err)
	}
	defer rows.Close()

	squads := []models.Squad{}
	for rows.Next() {
		squad, err := scanSquad(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad row: %w", err)
		}
		squads = append(squads, squad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return squads, nil
}

// Replace приводит набор сквадов турнира к переданному списку: существующие
// (ID > 0) обновляются, новые вставляются, отсутствующие в списке удаляются.
// Удаление сквада с активными регистрациями блокируется внешним ключом.
func (r *postgresSquadRepository) Replace(ctx context.Context, exec SQLExecutor, tournamentID int, squads []models.Squad) ([]models.Squad, error) {
	executor := getExecutor(r.db, exec)

	keepIDs := []int{}
	for i := range squads {
		if squads[i].ID > 0 {
			keepIDs = append(keepIDs, squads[i].ID)
		}
	}

	deleteQuery := `DELETE FROM squads WHERE tournament_id = $1 AND NOT (id = ANY($2))`
	if _, err := executor.ExecContext(ctx, deleteQuery, tournamentID, pq.Array(keepIDs)); err != nil {
		return nil, handleSquadError(err, "failed to delete removed squads")
	}

	result := make([]models.Squad, 0, len(squads))
	for i := range squads {
		squad := squads[i]
		squad.TournamentID = tournamentID

		if squad.ID > 0 {
			updateQuery := `
				UPDATE squads SET name = $1, squad_date = $2, start_time = $3, capacity = $4, is_qualifying = $5
				WHERE id = $6 AND tournament_id = $7`
			res, err := executor.ExecContext(ctx, updateQuery,
				squad.Name, squad.Date, squad.StartTime, squad.Capacity, squad.IsQualifying,
				squad.ID, tournamentID)
			if err != nil {
				return nil, handleSquadError(err, "failed to update squad")
			}
			if err := checkAffectedRows(res, ErrSquadNotFound); err != nil {
				return nil, err
			}
		} else {
			insertQuery := `
				INSERT INTO squads (tournament_id, name, squad_date, start_time, capacity, is_qualifying)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`
			err := executor.QueryRowContext(ctx, insertQuery,
				tournamentID, squad.Name, squad.Date, squad.StartTime, squad.Capacity, squad.IsQualifying,
			).Scan(&squad.ID)
			if err != nil {
				return nil, handleSquadError(err, "failed to insert squad")
			}
		}
		result = append(result, squad)
	}
	return result, nil
}

func handleSquadError(err error, context string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return ErrSquadInUse
		case "23514":
			if pqErr.Constraint == "squads_capacity_check" {
				return ErrSquadInvalidCapacity
			}
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}
