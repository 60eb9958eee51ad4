package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/scoring"
)

// AdvancementResult - отчёт одного запуска продвижения для админки.
type AdvancementResult struct {
	TournamentID    int `json:"tournament_id"`
	StageIndex      int `json:"stage_index"`
	NextStageIndex  int `json:"next_stage_index"`
	Eligible        int `json:"eligible"`
	AlreadyAdvanced int `json:"already_advanced"`
	Advanced        int `json:"advanced"`
}

// TournamentAdvancementResult - итог прохода по всем этапам турнира сразу.
type TournamentAdvancementResult struct {
	TournamentID int                  `json:"tournament_id"`
	Advanced     int                  `json:"advanced"`
	Stages       []*AdvancementResult `json:"stages"`
}

// AdvancementService переводит лучших боулеров этапа на следующий этап.
// Запускается администратором, безопасен для повторного запуска: уже
// продвинутые не выбираются снова и уменьшают оставшуюся квоту, так что
// повторный клик не протащит наверх следующую партию.
type AdvancementService interface {
	AdvanceStage(ctx context.Context, tournamentID, stageIndex int) (*AdvancementResult, error)
	// AdvanceAll прогоняет продвижение по этапам от первого к предпоследнему.
	// Финальные этапы (без квоты) молча пропускаются, отчёт суммирует всех
	// продвинутых за проход.
	AdvanceAll(ctx context.Context, tournamentID int) (*TournamentAdvancementResult, error)
}

type advancementService struct {
	db               *sql.DB
	tournamentRepo   repositories.TournamentRepository
	stageRepo        repositories.StageRepository
	registrationRepo repositories.RegistrationRepository
	hub              *live.Hub
	metrics          metrics.Metrics
	logger           *slog.Logger
}

func NewAdvancementService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	stageRepo repositories.StageRepository,
	registrationRepo repositories.RegistrationRepository,
	hub *live.Hub,
	m metrics.Metrics,
	logger *slog.Logger,
) AdvancementService {
	return &advancementService{
		db:               db,
		tournamentRepo:   tournamentRepo,
		stageRepo:        stageRepo,
		registrationRepo: registrationRepo,
		hub:              hub,
		metrics:          m,
		logger:           logger,
	}
}

func (s *advancementService) AdvanceStage(ctx context.Context, tournamentID, stageIndex int) (*AdvancementResult, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	stages, err := s.stageRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	stage := stageByIndex(stages, stageIndex)
	if stage == nil {
		return nil, fmt.Errorf("%w: stage %d", ErrStageNotFound, stageIndex)
	}
	if stage.AdvancingBowlers == nil {
		return nil, ErrStageIsFinal
	}
	nextStage := stageByIndex(stages, stageIndex+1)
	if nextStage == nil {
		return nil, fmt.Errorf("%w: stage %d", ErrStageHasNoNextStage, stageIndex)
	}

	return s.advanceBetween(ctx, tournament, stage, nextStage)
}

func (s *advancementService) AdvanceAll(ctx context.Context, tournamentID int) (*TournamentAdvancementResult, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}

	stages, err := s.stageRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	report := &TournamentAdvancementResult{TournamentID: tournamentID}
	for i := range stages {
		stage := &stages[i]
		if stage.AdvancingBowlers == nil {
			continue
		}
		nextStage := stageByIndex(stages, stage.Index+1)
		if nextStage == nil {
			continue
		}
		stageReport, err := s.advanceBetween(ctx, tournament, stage, nextStage)
		if err != nil {
			return nil, err
		}
		report.Advanced += stageReport.Advanced
		report.Stages = append(report.Stages, stageReport)
	}
	return report, nil
}

func (s *advancementService) advanceBetween(ctx context.Context, tournament *models.Tournament, stage, nextStage *models.Stage) (*AdvancementResult, error) {
	// Выбираются только боулеры этого этапа с полным комплектом игр:
	// продвигать по незаконченному этапу нельзя.
	registrations, err := s.registrationRepo.ListByStage(ctx, tournament.ID, stage.Index)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]*models.Registration, len(registrations))
	results := make([]scoring.StageResult, 0, len(registrations))
	for _, registration := range registrations {
		row := registration.StageScoreFor(stage.Index)
		if row == nil || len(row.Scores) != stage.Games {
			continue
		}
		byID[registration.ID] = registration
		results = append(results, scoring.ComputeStage(scoring.StageInput{
			RegistrationID:  registration.ID,
			PlayerName:      registration.PlayerName,
			Scores:          row.Scores,
			BonusPins:       row.BonusPins,
			HandicapPerGame: row.HandicapPerGame,
			Carryover:       row.Carryover,
		}))
	}
	ranked := scoring.Rank(results)

	alreadyAdvanced, err := s.registrationRepo.CountActiveBeyondStage(ctx, nil, tournament.ID, stage.Index)
	if err != nil {
		return nil, err
	}

	remaining := *stage.AdvancingBowlers - alreadyAdvanced
	if remaining < 0 {
		remaining = 0
	}
	if remaining > len(ranked) {
		remaining = len(ranked)
	}

	report := &AdvancementResult{
		TournamentID:    tournament.ID,
		StageIndex:      stage.Index,
		NextStageIndex:  nextStage.Index,
		Eligible:        len(ranked),
		AlreadyAdvanced: alreadyAdvanced,
	}

	// Каждый боулер - независимая единица работы: сбой на одном не откатывает
	// остальных, повторный запуск доберёт оставшихся.
	for i := 0; i < remaining; i++ {
		result := ranked[i]
		registration := byID[result.RegistrationID]
		if err := s.advanceOne(ctx, registration, result, nextStage); err != nil {
			s.logger.Error("failed to advance bowler to next stage",
				slog.Int("registration_id", result.RegistrationID),
				slog.Int("stage_index", stage.Index),
				slog.Any("error", err))
			continue
		}
		report.Advanced++
	}

	s.metrics.IncStageAdvancement()
	if s.hub != nil && report.Advanced > 0 {
		s.hub.BroadcastStageAdvanced(tournament.ID, report)
	}
	return report, nil
}

func (s *advancementService) advanceOne(ctx context.Context, registration *models.Registration, result scoring.StageResult, nextStage *models.Stage) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
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

	carryover := scoring.CarryoverIntoStage(result.GrandTotal, nextStage)

	// Пустая запись следующего этапа резервирует строку и фиксирует перенос.
	score := &models.StageScore{
		RegistrationID:  registration.ID,
		StageIndex:      nextStage.Index,
		Scores:          []int{},
		BonusPins:       []int{},
		HandicapPerGame: result.HandicapPerGame,
		Carryover:       carryover,
		Total:           carryover,
	}
	if err = s.registrationRepo.UpsertStageScore(ctx, tx, score); err != nil {
		return err
	}
	if err = s.registrationRepo.SetCurrentStage(ctx, tx, registration.ID, nextStage.Index); err != nil {
		return err
	}
	return nil
}
