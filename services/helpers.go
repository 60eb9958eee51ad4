package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/storage"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// uniqueInts убирает дубликаты, сохраняя порядок первого вхождения.
func uniqueInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	result := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// broadcastAvailability шлёт подписчикам комнаты свежий снимок занятости.
// Ошибка здесь не должна влиять на уже завершённую операцию, поэтому только лог.
func broadcastAvailability(ctx context.Context, tournamentID int, availability AvailabilityService, hub *live.Hub, logger *slog.Logger) {
	if hub == nil {
		return
	}
	snapshot, err := availability.TournamentAvailability(ctx, tournamentID)
	if err != nil {
		logger.Warn("failed to build availability snapshot for broadcast",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	hub.BroadcastAvailability(tournamentID, snapshot)
}

func validateTournamentDates(start, end time.Time, openDate, deadline *time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if end.Before(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrTournamentInvalidDateRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if openDate != nil && deadline != nil && deadline.Before(*openDate) {
		return fmt.Errorf("%w: registration deadline %s is before open date %s", ErrTournamentInvalidDateRange,
			deadline.Format(time.RFC3339), openDate.Format(time.RFC3339))
	}
	return nil
}

// isRegistrationWindowOpen проверяет окно регистрации. Ручное открытие
// организатором обходит обе даты: им пользуются для ранних приглашений
// и для продления после дедлайна.
func isRegistrationWindowOpen(t *models.Tournament, now time.Time) bool {
	if t.RegistrationManuallyOpen {
		return true
	}
	if t.RegistrationOpenDate == nil || now.Before(*t.RegistrationOpenDate) {
		return false
	}
	if t.RegistrationDeadline != nil && now.After(*t.RegistrationDeadline) {
		return false
	}
	return true
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusUpcoming:  {models.StatusActive, models.StatusCanceled},
		models.StatusActive:    {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted: {},
		models.StatusCanceled:  {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func isValidTournamentStatus(status models.TournamentStatus) bool {
	switch status {
	case models.StatusUpcoming, models.StatusActive, models.StatusCompleted, models.StatusCanceled:
		return true
	}
	return false
}

func isValidRegistrationStatus(status models.RegistrationStatus) bool {
	switch status {
	case models.RegistrationPending, models.RegistrationConfirmed, models.RegistrationCanceled, models.RegistrationWaitlist:
		return true
	}
	return false
}

// --- Хелперы для заполнения URL логотипов ---

func populateTournamentLogoURL(tournament *models.Tournament, uploader storage.FileUploader) {
	if tournament != nil && tournament.LogoKey != nil && *tournament.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*tournament.LogoKey)
		if url != "" {
			tournament.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType определяет расширение файла по Content-Type.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			// Убираем возможные суффиксы типа "+xml" (например, "image/svg+xml")
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}
