package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(v time.Time) *time.Time { return &v }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestIsRegistrationWindowOpen(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("manual override opens the window regardless of dates", func(t *testing.T) {
		tournament := &models.Tournament{
			RegistrationManuallyOpen: true,
			RegistrationOpenDate:     timePtr(now.Add(24 * time.Hour)),
		}
		assert.True(t, isRegistrationWindowOpen(tournament, now))
	})

	t.Run("closed until the open date", func(t *testing.T) {
		tournament := &models.Tournament{RegistrationOpenDate: timePtr(now.Add(time.Hour))}
		assert.False(t, isRegistrationWindowOpen(tournament, now))
	})

	t.Run("closed when no open date is set", func(t *testing.T) {
		assert.False(t, isRegistrationWindowOpen(&models.Tournament{}, now))
	})

	t.Run("open between open date and deadline", func(t *testing.T) {
		tournament := &models.Tournament{
			RegistrationOpenDate: timePtr(now.Add(-time.Hour)),
			RegistrationDeadline: timePtr(now.Add(time.Hour)),
		}
		assert.True(t, isRegistrationWindowOpen(tournament, now))
	})

	t.Run("closed after the deadline", func(t *testing.T) {
		tournament := &models.Tournament{
			RegistrationOpenDate: timePtr(now.Add(-2 * time.Hour)),
			RegistrationDeadline: timePtr(now.Add(-time.Hour)),
		}
		assert.False(t, isRegistrationWindowOpen(tournament, now))
	})

	t.Run("open-ended window without a deadline", func(t *testing.T) {
		tournament := &models.Tournament{RegistrationOpenDate: timePtr(now.Add(-time.Hour))}
		assert.True(t, isRegistrationWindowOpen(tournament, now))
	})
}

func TestValidateTournamentDates(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	require.NoError(t, validateTournamentDates(start, end, nil, nil))
	require.NoError(t, validateTournamentDates(start, start, nil, nil))

	require.ErrorIs(t, validateTournamentDates(time.Time{}, end, nil, nil), ErrTournamentDatesRequired)
	require.ErrorIs(t, validateTournamentDates(end, start, nil, nil), ErrTournamentInvalidDateRange)
	require.ErrorIs(t,
		validateTournamentDates(start, end, timePtr(start.AddDate(0, 0, -1)), timePtr(start.AddDate(0, 0, -2))),
		ErrTournamentInvalidDateRange)
}

func TestIsValidStatusTransition(t *testing.T) {
	assert.True(t, isValidStatusTransition(models.StatusUpcoming, models.StatusUpcoming))
	assert.True(t, isValidStatusTransition(models.StatusUpcoming, models.StatusActive))
	assert.True(t, isValidStatusTransition(models.StatusUpcoming, models.StatusCanceled))
	assert.True(t, isValidStatusTransition(models.StatusActive, models.StatusCompleted))
	assert.True(t, isValidStatusTransition(models.StatusActive, models.StatusCanceled))

	assert.False(t, isValidStatusTransition(models.StatusUpcoming, models.StatusCompleted))
	assert.False(t, isValidStatusTransition(models.StatusCompleted, models.StatusActive))
	assert.False(t, isValidStatusTransition(models.StatusCanceled, models.StatusUpcoming))
}

func TestUniqueInts(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, uniqueInts([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, uniqueInts(nil))
}

func TestGetExtensionFromContentType(t *testing.T) {
	for contentType, want := range map[string]string{
		"image/jpeg":    ".jpg",
		"image/png":     ".png",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	} {
		ext, err := GetExtensionFromContentType(contentType)
		require.NoError(t, err, contentType)
		assert.Equal(t, want, ext)
	}

	_, err := GetExtensionFromContentType("application/pdf")
	require.Error(t, err)
}
