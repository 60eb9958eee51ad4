package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/scoring"
)

type EnterScoresInput struct {
	StageIndex int   `json:"stage_index"`
	Scores     []int `json:"scores"`
	BonusPins  []int `json:"bonus_pins,omitempty"`
}

// StatsRecalculator пересчитывает статистику профиля боулера после изменения
// его результатов.
type StatsRecalculator interface {
	RecalculateStats(ctx context.Context, bowlerID int) (*models.Bowler, error)
}

// ScoreService ведёт счёт этапов. Гандикап и итог пересчитываются при каждом
// сохранении и хранятся вместе с очками: таблицы лидеров читают готовые числа.
type ScoreService interface {
	EnterScores(ctx context.Context, registrationID int, input EnterScoresInput) (*models.StageScore, error)
	StageLeaderboard(ctx context.Context, tournamentID, stageIndex int) ([]scoring.StageResult, error)
	// Recalculate перечитывает все сохранённые очки турнира и переписывает
	// гандикап и итоги по текущему формату. Carryover не трогается: он был
	// зафиксирован продвижением и пересчёту задним числом не подлежит.
	Recalculate(ctx context.Context, tournamentID int) (int, error)
}

type scoreService struct {
	tournamentRepo   repositories.TournamentRepository
	stageRepo        repositories.StageRepository
	registrationRepo repositories.RegistrationRepository
	stats            StatsRecalculator
	hub              *live.Hub
	metrics          metrics.Metrics
	logger           *slog.Logger
}

func NewScoreService(
	tournamentRepo repositories.TournamentRepository,
	stageRepo repositories.StageRepository,
	registrationRepo repositories.RegistrationRepository,
	stats StatsRecalculator,
	hub *live.Hub,
	m metrics.Metrics,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		tournamentRepo:   tournamentRepo,
		stageRepo:        stageRepo,
		registrationRepo: registrationRepo,
		stats:            stats,
		hub:              hub,
		metrics:          m,
		logger:           logger,
	}
}

func (s *scoreService) EnterScores(ctx context.Context, registrationID int, input EnterScoresInput) (*models.StageScore, error) {
	registration, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", registrationID, err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, registration.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament %d: %w", registration.TournamentID, err)
	}
	stages, err := s.stageRepo.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	stage := stageByIndex(stages, input.StageIndex)
	if stage == nil {
		return nil, fmt.Errorf("%w: stage %d", ErrStageNotFound, input.StageIndex)
	}

	if len(input.Scores) > stage.Games {
		return nil, fmt.Errorf("%w: stage %q has %d games, got %d scores", ErrValidationFailed, stage.Name, stage.Games, len(input.Scores))
	}
	if len(input.BonusPins) > 0 && !tournament.Format.BonusPointsEnabled {
		return nil, fmt.Errorf("%w: bonus pins are disabled for this tournament", ErrValidationFailed)
	}
	if err := scoring.ValidateScores(input.Scores, input.BonusPins); err != nil {
		return nil, err
	}

	handicap := scoring.HandicapPerGame(tournament.Format, registration.AverageScore, registration.Gender)

	// Carryover пишет только движок продвижения, ручной ввод очков его сохраняет.
	carryover := 0
	if existing := registration.StageScoreFor(input.StageIndex); existing != nil {
		carryover = existing.Carryover
	}

	result := scoring.ComputeStage(scoring.StageInput{
		RegistrationID:  registration.ID,
		PlayerName:      registration.PlayerName,
		Scores:          input.Scores,
		BonusPins:       input.BonusPins,
		HandicapPerGame: handicap,
		Carryover:       carryover,
	})

	score := &models.StageScore{
		RegistrationID:  registration.ID,
		StageIndex:      input.StageIndex,
		Scores:          input.Scores,
		BonusPins:       input.BonusPins,
		HandicapPerGame: handicap,
		Carryover:       carryover,
		Total:           result.GrandTotal,
	}
	if err := s.registrationRepo.UpsertStageScore(ctx, nil, score); err != nil {
		return nil, err
	}
	s.metrics.IncScoresEntered()

	if registration.BowlerID != nil && s.stats != nil {
		if _, statsErr := s.stats.RecalculateStats(ctx, *registration.BowlerID); statsErr != nil {
			s.logger.Warn("failed to recalculate bowler stats after score entry",
				slog.Int("bowler_id", *registration.BowlerID), slog.Any("error", statsErr))
		}
	}
	s.broadcastLeaderboard(ctx, tournament.ID, input.StageIndex)

	return score, nil
}

func (s *scoreService) StageLeaderboard(ctx context.Context, tournamentID, stageIndex int) ([]scoring.StageResult, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	stages, err := s.stageRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if stageByIndex(stages, stageIndex) == nil {
		return nil, fmt.Errorf("%w: stage %d", ErrStageNotFound, stageIndex)
	}

	registrations, err := s.registrationRepo.ListWithStageScore(ctx, tournamentID, stageIndex)
	if err != nil {
		return nil, err
	}

	results := make([]scoring.StageResult, 0, len(registrations))
	for _, registration := range registrations {
		row := registration.StageScoreFor(stageIndex)
		if row == nil {
			continue
		}
		results = append(results, scoring.ComputeStage(scoring.StageInput{
			RegistrationID:  registration.ID,
			PlayerName:      registration.PlayerName,
			Scores:          row.Scores,
			BonusPins:       row.BonusPins,
			HandicapPerGame: row.HandicapPerGame,
			Carryover:       row.Carryover,
		}))
	}
	return scoring.Rank(results), nil
}

func (s *scoreService) Recalculate(ctx context.Context, tournamentID int) (int, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return 0, ErrTournamentNotFound
		}
		return 0, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	registrations, err := s.registrationRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, registration := range registrations {
		rows, err := s.registrationRepo.ListStageScores(ctx, registration.ID)
		if err != nil {
			return updated, err
		}
		handicap := scoring.HandicapPerGame(tournament.Format, registration.AverageScore, registration.Gender)
		for i := range rows {
			row := rows[i]
			result := scoring.ComputeStage(scoring.StageInput{
				Scores:          row.Scores,
				BonusPins:       row.BonusPins,
				HandicapPerGame: handicap,
				Carryover:       row.Carryover,
			})
			if row.HandicapPerGame == handicap && row.Total == result.GrandTotal {
				continue
			}
			row.HandicapPerGame = handicap
			row.Total = result.GrandTotal
			if err := s.registrationRepo.UpsertStageScore(ctx, nil, &row); err != nil {
				return updated, err
			}
			updated++
		}
	}
	return updated, nil
}

func (s *scoreService) broadcastLeaderboard(ctx context.Context, tournamentID, stageIndex int) {
	if s.hub == nil {
		return
	}
	leaderboard, err := s.StageLeaderboard(ctx, tournamentID, stageIndex)
	if err != nil {
		s.logger.Warn("failed to build leaderboard for broadcast",
			slog.Int("tournament_id", tournamentID), slog.Int("stage_index", stageIndex), slog.Any("error", err))
		return
	}
	s.hub.BroadcastLeaderboard(tournamentID, map[string]interface{}{
		"stage_index": stageIndex,
		"results":     leaderboard,
	})
}

func stageByIndex(stages []models.Stage, index int) *models.Stage {
	for i := range stages {
		if stages[i].Index == index {
			return &stages[i]
		}
	}
	return nil
}
