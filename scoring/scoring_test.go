package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/models"
)

func intPtr(v int) *int { return &v }

func TestHandicapPerGame(t *testing.T) {
	t.Run("returns zero when handicap is disabled", func(t *testing.T) {
		format := &models.Format{UseHandicap: false, HandicapBase: 220, HandicapPercentage: 90}
		assert.Equal(t, 0, HandicapPerGame(format, intPtr(150), models.GenderMale))
	})

	t.Run("returns zero for nil format", func(t *testing.T) {
		assert.Equal(t, 0, HandicapPerGame(nil, intPtr(150), models.GenderMale))
	})

	t.Run("computes base handicap from the average gap", func(t *testing.T) {
		format := &models.Format{UseHandicap: true, HandicapBase: 220, HandicapPercentage: 90}
		// (220 - 150) * 0.9 = 63
		assert.Equal(t, 63, HandicapPerGame(format, intPtr(150), models.GenderMale))
	})

	t.Run("adds female pins when divisions are shared", func(t *testing.T) {
		format := &models.Format{
			UseHandicap:        true,
			HandicapBase:       220,
			HandicapPercentage: 90,
			FemaleHandicapPins: 8,
			SeparateDivisions:  false,
		}
		// 63 + 8 = 71
		assert.Equal(t, 71, HandicapPerGame(format, intPtr(150), models.GenderFemale))
	})

	t.Run("skips female pins when divisions are separate", func(t *testing.T) {
		format := &models.Format{
			UseHandicap:        true,
			HandicapBase:       220,
			HandicapPercentage: 90,
			FemaleHandicapPins: 8,
			SeparateDivisions:  true,
		}
		assert.Equal(t, 63, HandicapPerGame(format, intPtr(150), models.GenderFemale))
	})

	t.Run("average at or above base gets no base handicap", func(t *testing.T) {
		format := &models.Format{UseHandicap: true, HandicapBase: 220, HandicapPercentage: 90}
		assert.Equal(t, 0, HandicapPerGame(format, intPtr(220), models.GenderMale))
		assert.Equal(t, 0, HandicapPerGame(format, intPtr(250), models.GenderMale))
	})

	t.Run("female pins apply even above the base", func(t *testing.T) {
		format := &models.Format{UseHandicap: true, HandicapBase: 220, HandicapPercentage: 90, FemaleHandicapPins: 8}
		assert.Equal(t, 8, HandicapPerGame(format, intPtr(230), models.GenderFemale))
	})

	t.Run("falls back to defaults for unset values", func(t *testing.T) {
		format := &models.Format{UseHandicap: true}
		// База 220, процент 90, средний 180: (220 - 180) * 0.9 = 36.
		assert.Equal(t, 36, HandicapPerGame(format, nil, models.GenderMale))
		// Дефолтные женские пины.
		assert.Equal(t, 44, HandicapPerGame(format, nil, models.GenderFemale))
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		format := &models.Format{UseHandicap: true, HandicapBase: 200, HandicapPercentage: 50}
		// (200 - 175) * 0.5 = 12.5 -> 13
		assert.Equal(t, 13, HandicapPerGame(format, intPtr(175), models.GenderMale))
	})
}

func TestComputeStage(t *testing.T) {
	t.Run("sums scratch, handicap, bonus and carryover", func(t *testing.T) {
		result := ComputeStage(StageInput{
			RegistrationID:  7,
			PlayerName:      "Anna",
			Scores:          []int{180, 190, 170},
			HandicapPerGame: 71,
		})

		assert.Equal(t, 7, result.RegistrationID)
		assert.Equal(t, 3, result.GamesPlayed)
		assert.Equal(t, 540, result.ScratchTotal)
		assert.Equal(t, 213, result.TotalHandicap)
		assert.Equal(t, 0, result.TotalBonus)
		assert.Equal(t, 753, result.GrandTotal)
		assert.Equal(t, 180, result.Average)
		assert.Equal(t, 190, result.HighGame)
	})

	t.Run("bonus pins are added per game", func(t *testing.T) {
		result := ComputeStage(StageInput{
			Scores:    []int{200, 210},
			BonusPins: []int{10, 0},
		})
		assert.Equal(t, 10, result.TotalBonus)
		assert.Equal(t, 420, result.GrandTotal)
	})

	t.Run("carryover lands in the grand total only", func(t *testing.T) {
		result := ComputeStage(StageInput{
			Scores:    []int{150},
			Carryover: 377,
		})
		assert.Equal(t, 150, result.ScratchTotal)
		assert.Equal(t, 377, result.Carryover)
		assert.Equal(t, 527, result.GrandTotal)
		// Средний считается только по сыгранным играм, без переноса.
		assert.Equal(t, 150, result.Average)
	})

	t.Run("no games played yields an all-zero line plus carryover", func(t *testing.T) {
		result := ComputeStage(StageInput{Carryover: 377})
		assert.Equal(t, 0, result.GamesPlayed)
		assert.Equal(t, 0, result.ScratchTotal)
		assert.Equal(t, 0, result.Average)
		assert.Equal(t, 377, result.GrandTotal)
	})

	t.Run("identical input produces identical output", func(t *testing.T) {
		in := StageInput{Scores: []int{199, 201, 167}, BonusPins: []int{10, 10, 0}, HandicapPerGame: 12, Carryover: 88}
		assert.Equal(t, ComputeStage(in), ComputeStage(in))
	})

	t.Run("average rounds to nearest pin", func(t *testing.T) {
		result := ComputeStage(StageInput{Scores: []int{100, 101}})
		// 201 / 2 = 100.5 -> 101
		assert.Equal(t, 101, result.Average)
	})
}

func TestCarryoverIntoStage(t *testing.T) {
	t.Run("applies the stage percentage", func(t *testing.T) {
		stage := &models.Stage{CarryoverPinfall: true, CarryoverPercentage: 50}
		// round(753 * 0.5) = 377
		assert.Equal(t, 377, CarryoverIntoStage(753, stage))
	})

	t.Run("full carryover at one hundred percent", func(t *testing.T) {
		stage := &models.Stage{CarryoverPinfall: true, CarryoverPercentage: 100}
		assert.Equal(t, 753, CarryoverIntoStage(753, stage))
	})

	t.Run("stage without the flag starts from zero", func(t *testing.T) {
		stage := &models.Stage{CarryoverPinfall: false, CarryoverPercentage: 50}
		assert.Equal(t, 0, CarryoverIntoStage(753, stage))
	})

	t.Run("nil stage starts from zero", func(t *testing.T) {
		assert.Equal(t, 0, CarryoverIntoStage(753, nil))
	})
}

func TestValidateScores(t *testing.T) {
	t.Run("accepts scores within bounds", func(t *testing.T) {
		require.NoError(t, ValidateScores([]int{0, 300, 150}, nil))
		require.NoError(t, ValidateScores([]int{200, 210}, []int{0, 100}))
	})

	t.Run("rejects a score above the maximum", func(t *testing.T) {
		err := ValidateScores([]int{200, 301}, nil)
		require.ErrorIs(t, err, ErrScoreOutOfRange)
		assert.Contains(t, err.Error(), "game 2")
	})

	t.Run("rejects a negative score", func(t *testing.T) {
		require.ErrorIs(t, ValidateScores([]int{-1}, nil), ErrScoreOutOfRange)
	})

	t.Run("rejects bonus pins out of range", func(t *testing.T) {
		require.ErrorIs(t, ValidateScores([]int{200, 200}, []int{0, 101}), ErrBonusPinsOutOfRange)
		require.ErrorIs(t, ValidateScores([]int{200, 200}, []int{-5, 0}), ErrBonusPinsOutOfRange)
	})

	t.Run("rejects bonus list of a different length", func(t *testing.T) {
		require.ErrorIs(t, ValidateScores([]int{200, 200}, []int{10}), ErrBonusLengthMismatch)
	})
}
