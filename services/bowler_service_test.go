package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
)

func TestBowlerService_Search(t *testing.T) {
	bowlers := []models.Bowler{
		{ID: 1, Name: "Jon Smith"},
		{ID: 2, Name: "Jonathan Price"},
		{ID: 3, Name: "Boris Kuznetsov"},
	}
	repo := &repositories.MockBowlerRepository{
		ListFunc: func() ([]models.Bowler, error) { return bowlers, nil },
	}
	svc := NewBowlerService(repo)

	t.Run("closer matches come first", func(t *testing.T) {
		found, err := svc.Search(context.Background(), "jon")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Jon Smith", found[0].Name)
		assert.Equal(t, "Jonathan Price", found[1].Name)
	})

	t.Run("empty query returns everyone", func(t *testing.T) {
		found, err := svc.Search(context.Background(), "   ")
		require.NoError(t, err)
		assert.Len(t, found, 3)
	})

	t.Run("no match returns an empty list", func(t *testing.T) {
		found, err := svc.Search(context.Background(), "zzzz")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("namesakes are returned once each", func(t *testing.T) {
		twins := &repositories.MockBowlerRepository{
			ListFunc: func() ([]models.Bowler, error) {
				return []models.Bowler{
					{ID: 1, Name: "Jon Smith"},
					{ID: 4, Name: "Jon Smith"},
				}, nil
			},
		}
		found, err := NewBowlerService(twins).Search(context.Background(), "jon")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.NotEqual(t, found[0].ID, found[1].ID)
	})
}

func TestBowlerService_AddResult(t *testing.T) {
	validInput := func() AddResultInput {
		return AddResultInput{
			TournamentName: "  City Open 2026  ",
			EventDate:      time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
			Games:          3,
			ScratchTotal:   555,
			HighGame:       221,
		}
	}
	existing := func(repo *repositories.MockBowlerRepository) {
		repo.GetByIDFunc = func(id int) (*models.Bowler, error) {
			return &models.Bowler{ID: id, Name: "Jon Smith"}, nil
		}
	}

	t.Run("stores the result and refreshes profile stats", func(t *testing.T) {
		repo := &repositories.MockBowlerRepository{}
		existing(repo)
		repo.ListResultsFunc = func(bowlerID int) ([]models.BowlerResult, error) {
			return []models.BowlerResult{{Games: 3, ScratchTotal: 555, HighGame: 221}}, nil
		}
		svc := NewBowlerService(repo)

		result, err := svc.AddResult(context.Background(), 7, validInput())
		require.NoError(t, err)
		assert.Equal(t, "City Open 2026", result.TournamentName)

		require.Len(t, repo.CreateResultCalls, 1)
		require.Len(t, repo.UpdateStatsCalls, 1)
		call := repo.UpdateStatsCalls[0]
		assert.Equal(t, 7, call.ID)
		require.NotNil(t, call.TournamentAverage)
		assert.Equal(t, 185, *call.TournamentAverage)
	})

	t.Run("unknown bowler", func(t *testing.T) {
		svc := NewBowlerService(&repositories.MockBowlerRepository{})
		_, err := svc.AddResult(context.Background(), 404, validInput())
		require.ErrorIs(t, err, ErrBowlerNotFound)
	})

	t.Run("rejects inconsistent numbers", func(t *testing.T) {
		repo := &repositories.MockBowlerRepository{}
		existing(repo)
		svc := NewBowlerService(repo)

		cases := map[string]func(*AddResultInput){
			"empty name":                  func(in *AddResultInput) { in.TournamentName = "  " },
			"zero date":                   func(in *AddResultInput) { in.EventDate = time.Time{} },
			"no games":                    func(in *AddResultInput) { in.Games = 0 },
			"high game above maximum":     func(in *AddResultInput) { in.HighGame = 301 },
			"scratch below high game":     func(in *AddResultInput) { in.ScratchTotal = 200 },
			"scratch above possible pins": func(in *AddResultInput) { in.ScratchTotal = 1000 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				input := validInput()
				mutate(&input)
				_, err := svc.AddResult(context.Background(), 7, input)
				require.ErrorIs(t, err, ErrValidationFailed)
			})
		}
		assert.Empty(t, repo.CreateResultCalls)
	})
}

func TestBowlerService_RecalculateStats(t *testing.T) {
	t.Run("replays stage scores and external results", func(t *testing.T) {
		repo := &repositories.MockBowlerRepository{
			GetByIDFunc: func(id int) (*models.Bowler, error) {
				return &models.Bowler{ID: id, Name: "Jon Smith"}, nil
			},
			ListStageScoresByBowlerFunc: func(bowlerID int) ([]models.StageScore, error) {
				return []models.StageScore{
					{Scores: []int{200, 210, 190}},
					{Scores: []int{}}, // зарезервированная строка следующего этапа, игр ещё нет
					{Scores: []int{180, 190}},
				}, nil
			},
			ListResultsFunc: func(bowlerID int) ([]models.BowlerResult, error) {
				return []models.BowlerResult{{Games: 3, ScratchTotal: 555, HighGame: 221}}, nil
			},
		}
		svc := NewBowlerService(repo)

		bowler, err := svc.RecalculateStats(context.Background(), 7)
		require.NoError(t, err)

		// 1525 пинов за 8 игр.
		require.NotNil(t, bowler.TournamentAverage)
		assert.Equal(t, 191, *bowler.TournamentAverage)
		require.NotNil(t, bowler.HighGame)
		assert.Equal(t, 221, *bowler.HighGame)
		require.NotNil(t, bowler.HighSeries)
		assert.Equal(t, 600, *bowler.HighSeries)

		require.Len(t, repo.UpdateStatsCalls, 1)
	})

	t.Run("no games clears the aggregates", func(t *testing.T) {
		avg := 180
		repo := &repositories.MockBowlerRepository{
			GetByIDFunc: func(id int) (*models.Bowler, error) {
				return &models.Bowler{ID: id, TournamentAverage: &avg}, nil
			},
		}
		svc := NewBowlerService(repo)

		bowler, err := svc.RecalculateStats(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, bowler.TournamentAverage)
		assert.Nil(t, bowler.HighGame)
		assert.Nil(t, bowler.HighSeries)

		require.Len(t, repo.UpdateStatsCalls, 1)
		assert.Nil(t, repo.UpdateStatsCalls[0].TournamentAverage)
	})
}
