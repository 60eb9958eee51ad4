package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/scoring"
)

// BowlerProfile - карточка игрока: профиль, агрегаты и внешние результаты.
type BowlerProfile struct {
	Bowler  *models.Bowler        `json:"bowler"`
	Results []models.BowlerResult `json:"results"`
}

// AddResultInput - результат турнира, сыгранного вне системы. Попадает в
// историю игрока и учитывается при пересчёте статистики.
type AddResultInput struct {
	TournamentName string    `json:"tournament_name"`
	EventDate      time.Time `json:"event_date"`
	Games          int       `json:"games"`
	ScratchTotal   int       `json:"scratch_total"`
	HighGame       int       `json:"high_game"`
}

type BowlerService interface {
	GetProfile(ctx context.Context, id int) (*BowlerProfile, error)
	List(ctx context.Context) ([]models.Bowler, error)
	// Search ищет игроков по имени с допуском на опечатки, результат
	// отсортирован от лучшего совпадения к худшему.
	Search(ctx context.Context, query string) ([]models.Bowler, error)
	AddResult(ctx context.Context, bowlerID int, input AddResultInput) (*models.BowlerResult, error)
	// RecalculateStats пересчитывает средний, лучшую игру и лучшую серию по
	// всем сыгранным этапам и внешним результатам игрока.
	RecalculateStats(ctx context.Context, bowlerID int) (*models.Bowler, error)
}

type bowlerService struct {
	bowlerRepo repositories.BowlerRepository
}

func NewBowlerService(bowlerRepo repositories.BowlerRepository) BowlerService {
	return &bowlerService{bowlerRepo: bowlerRepo}
}

func (s *bowlerService) GetProfile(ctx context.Context, id int) (*BowlerProfile, error) {
	bowler, err := s.bowlerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrBowlerNotFound) {
			return nil, ErrBowlerNotFound
		}
		return nil, fmt.Errorf("failed to get bowler %d: %w", id, err)
	}

	results, err := s.bowlerRepo.ListResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BowlerProfile{Bowler: bowler, Results: results}, nil
}

func (s *bowlerService) List(ctx context.Context) ([]models.Bowler, error) {
	return s.bowlerRepo.List(ctx)
}

func (s *bowlerService) Search(ctx context.Context, query string) ([]models.Bowler, error) {
	query = strings.TrimSpace(query)
	bowlers, err := s.bowlerRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return bowlers, nil
	}

	names := make([]string, len(bowlers))
	byName := make(map[string][]models.Bowler, len(bowlers))
	for i, bowler := range bowlers {
		names[i] = bowler.Name
		byName[bowler.Name] = append(byName[bowler.Name], bowler)
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Sort(ranks)

	matched := make([]models.Bowler, 0, len(ranks))
	seen := make(map[int]bool, len(ranks))
	for _, rank := range ranks {
		for _, bowler := range byName[rank.Target] {
			if seen[bowler.ID] {
				continue
			}
			seen[bowler.ID] = true
			matched = append(matched, bowler)
		}
	}
	return matched, nil
}

func (s *bowlerService) AddResult(ctx context.Context, bowlerID int, input AddResultInput) (*models.BowlerResult, error) {
	if _, err := s.bowlerRepo.GetByID(ctx, bowlerID); err != nil {
		if errors.Is(err, repositories.ErrBowlerNotFound) {
			return nil, ErrBowlerNotFound
		}
		return nil, err
	}
	if err := validateResultInput(input); err != nil {
		return nil, err
	}

	result := &models.BowlerResult{
		BowlerID:       bowlerID,
		TournamentName: strings.TrimSpace(input.TournamentName),
		EventDate:      input.EventDate,
		Games:          input.Games,
		ScratchTotal:   input.ScratchTotal,
		HighGame:       input.HighGame,
	}
	if err := s.bowlerRepo.CreateResult(ctx, result); err != nil {
		return nil, err
	}

	if _, err := s.RecalculateStats(ctx, bowlerID); err != nil {
		return nil, err
	}
	return result, nil
}

func validateResultInput(input AddResultInput) error {
	if strings.TrimSpace(input.TournamentName) == "" {
		return fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if input.EventDate.IsZero() {
		return fmt.Errorf("%w: event date is required", ErrValidationFailed)
	}
	if input.Games < 1 {
		return fmt.Errorf("%w: games must be at least 1", ErrValidationFailed)
	}
	if input.HighGame < scoring.MinGameScore || input.HighGame > scoring.MaxGameScore {
		return fmt.Errorf("%w: high game must be between %d and %d", ErrValidationFailed, scoring.MinGameScore, scoring.MaxGameScore)
	}
	if input.ScratchTotal < input.HighGame || input.ScratchTotal > input.Games*scoring.MaxGameScore {
		return fmt.Errorf("%w: scratch total out of range for %d games", ErrValidationFailed, input.Games)
	}
	return nil
}

func (s *bowlerService) RecalculateStats(ctx context.Context, bowlerID int) (*models.Bowler, error) {
	bowler, err := s.bowlerRepo.GetByID(ctx, bowlerID)
	if err != nil {
		if errors.Is(err, repositories.ErrBowlerNotFound) {
			return nil, ErrBowlerNotFound
		}
		return nil, err
	}

	stageScores, err := s.bowlerRepo.ListStageScoresByBowler(ctx, bowlerID)
	if err != nil {
		return nil, err
	}
	results, err := s.bowlerRepo.ListResults(ctx, bowlerID)
	if err != nil {
		return nil, err
	}

	var totalPins, totalGames, highGame, highSeries int
	for _, score := range stageScores {
		if len(score.Scores) == 0 {
			continue
		}
		scratch := 0
		for _, game := range score.Scores {
			scratch += game
			if game > highGame {
				highGame = game
			}
		}
		totalPins += scratch
		totalGames += len(score.Scores)
		if scratch > highSeries {
			highSeries = scratch
		}
	}
	for _, result := range results {
		totalPins += result.ScratchTotal
		totalGames += result.Games
		if result.HighGame > highGame {
			highGame = result.HighGame
		}
		if result.ScratchTotal > highSeries {
			highSeries = result.ScratchTotal
		}
	}

	if totalGames == 0 {
		bowler.TournamentAverage = nil
		bowler.HighGame = nil
		bowler.HighSeries = nil
	} else {
		average := int(math.Round(float64(totalPins) / float64(totalGames)))
		bowler.TournamentAverage = &average
		bowler.HighGame = &highGame
		bowler.HighSeries = &highSeries
	}

	if err := s.bowlerRepo.UpdateStats(ctx, bowlerID, bowler.TournamentAverage, bowler.HighGame, bowler.HighSeries); err != nil {
		return nil, err
	}
	return bowler, nil
}
