package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/lanecrew/tournament-system/models"
)

// Validation boundaries for admin-entered values. Out-of-range input is
// rejected, never clamped.
const (
	MinGameScore = 0
	MaxGameScore = 300
	MinBonusPins = 0
	MaxBonusPins = 100
)

var (
	ErrScoreOutOfRange     = errors.New("game score must be between 0 and 300")
	ErrBonusPinsOutOfRange = errors.New("bonus pins must be between 0 and 100")
	ErrBonusLengthMismatch = errors.New("bonus pins list must match the scores list length")
)

// StageInput carries everything needed to score one bowler in one stage.
// Scores and BonusPins are parallel per-game lists.
type StageInput struct {
	RegistrationID  int
	PlayerName      string
	Scores          []int
	BonusPins       []int
	HandicapPerGame int
	Carryover       int
}

// StageResult is the computed line for one bowler in one stage.
type StageResult struct {
	RegistrationID  int    `json:"registration_id"`
	PlayerName      string `json:"player_name"`
	Position        int    `json:"position"`
	Scores          []int  `json:"scores"`
	GamesPlayed     int    `json:"games_played"`
	ScratchTotal    int    `json:"scratch_total"`
	HandicapPerGame int    `json:"handicap_per_game"`
	TotalHandicap   int    `json:"total_handicap"`
	TotalBonus      int    `json:"total_bonus"`
	Carryover       int    `json:"carryover"`
	GrandTotal      int    `json:"grand_total"`
	Average         int    `json:"average"`
	HighGame        int    `json:"high_game"`
}

// ValidateScores checks admin-entered per-game values before they are accepted.
func ValidateScores(scores, bonusPins []int) error {
	if len(bonusPins) != 0 && len(bonusPins) != len(scores) {
		return ErrBonusLengthMismatch
	}
	for i, s := range scores {
		if s < MinGameScore || s > MaxGameScore {
			return fmt.Errorf("%w: game %d has score %d", ErrScoreOutOfRange, i+1, s)
		}
	}
	for i, b := range bonusPins {
		if b < MinBonusPins || b > MaxBonusPins {
			return fmt.Errorf("%w: game %d has %d bonus pins", ErrBonusPinsOutOfRange, i+1, b)
		}
	}
	return nil
}

// HandicapPerGame computes the per-game handicap for a bowler under the given
// format. The base part is max(0, round((base - average) * percentage / 100)),
// so a bowler at or above the base gets nothing from it. Female bowlers get
// the flat pin bonus on top when the tournament does not run separate
// divisions. Defaults cover formats that left the values unset.
func HandicapPerGame(format *models.Format, averageScore *int, gender models.Gender) int {
	if format == nil || !format.UseHandicap {
		return 0
	}

	base := format.HandicapBase
	if base <= 0 {
		base = models.DefaultHandicapBase
	}
	percentage := format.HandicapPercentage
	if percentage <= 0 {
		percentage = models.DefaultHandicapPercentage
	}
	average := models.DefaultAverageScore
	if averageScore != nil {
		average = *averageScore
	}

	handicap := 0
	if average < base {
		handicap = roundToInt(float64(base-average) * float64(percentage) / 100.0)
		if handicap < 0 {
			handicap = 0
		}
	}

	if gender == models.GenderFemale && !format.SeparateDivisions {
		pins := format.FemaleHandicapPins
		if pins <= 0 {
			pins = models.DefaultFemaleHandicapPins
		}
		handicap += pins
	}

	return handicap
}

// ComputeStage scores one bowler for one stage. It is a pure function:
// identical inputs always produce identical results.
func ComputeStage(in StageInput) StageResult {
	result := StageResult{
		RegistrationID:  in.RegistrationID,
		PlayerName:      in.PlayerName,
		Scores:          in.Scores,
		GamesPlayed:     len(in.Scores),
		HandicapPerGame: in.HandicapPerGame,
		Carryover:       in.Carryover,
	}

	for _, s := range in.Scores {
		result.ScratchTotal += s
		if s > result.HighGame {
			result.HighGame = s
		}
	}
	for _, b := range in.BonusPins {
		result.TotalBonus += b
	}

	result.TotalHandicap = in.HandicapPerGame * result.GamesPlayed
	result.GrandTotal = result.ScratchTotal + result.TotalHandicap + result.TotalBonus + in.Carryover

	if result.GamesPlayed > 0 {
		result.Average = roundToInt(float64(result.ScratchTotal) / float64(result.GamesPlayed))
	}

	return result
}

// CarryoverIntoStage computes the pinfall a bowler brings into the given
// stage from a prior grand total. Stages without the carryover flag start
// from zero.
func CarryoverIntoStage(grandTotal int, stage *models.Stage) int {
	if stage == nil || !stage.CarryoverPinfall {
		return 0
	}
	return roundToInt(float64(grandTotal) * float64(stage.CarryoverPercentage) / 100.0)
}

func roundToInt(v float64) int {
	return int(math.Round(v))
}
