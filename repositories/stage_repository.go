package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lanecrew/tournament-system/models"
)

type StageRepository interface {
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Stage, error)
	Replace(ctx context.Context, exec SQLExecutor, tournamentID int, stages []models.Stage) ([]models.Stage, error)
}

type postgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Stage, error) {
	query := `
		SELECT id, tournament_id, stage_index, name, games, advancing_bowlers, carryover_pinfall, carryover_percentage
		FROM stages
		WHERE tournament_id = $1
		ORDER BY stage_index`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	stages := []models.Stage{}
	for rows.Next() {
		var stage models.Stage
		err := rows.Scan(&stage.ID, &stage.TournamentID, &stage.Index, &stage.Name, &stage.Games,
			&stage.AdvancingBowlers, &stage.CarryoverPinfall, &stage.CarryoverPercentage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return stages, nil
}

// Replace полностью перезаписывает этапы турнира. Очки этапов ссылаются на
// stage_index, а не на id строки, поэтому пересоздание строк безопасно.
func (r *postgresStageRepository) Replace(ctx context.Context, exec SQLExecutor, tournamentID int, stages []models.Stage) ([]models.Stage, error) {
	executor := getExecutor(r.db, exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM stages WHERE tournament_id = $1`, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to delete stages: %w", err)
	}

	insertQuery := `
		INSERT INTO stages (tournament_id, stage_index, name, games, advancing_bowlers, carryover_pinfall, carryover_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	result := make([]models.Stage, 0, len(stages))
	for i := range stages {
		stage := stages[i]
		stage.TournamentID = tournamentID
		err := executor.QueryRowContext(ctx, insertQuery,
			tournamentID, stage.Index, stage.Name, stage.Games,
			stage.AdvancingBowlers, stage.CarryoverPinfall, stage.CarryoverPercentage,
		).Scan(&stage.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert stage: %w", err)
		}
		result = append(result, stage)
	}
	return result, nil
}
