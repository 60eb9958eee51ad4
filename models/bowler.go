package models

import "time"

// Bowler - профиль игрока, ключом служит email. Создаётся и обновляется
// автоматически при успешной регистрации на турнир.
type Bowler struct {
	ID           int     `json:"id" db:"id"`
	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	Phone        *string `json:"phone,omitempty" db:"phone"`
	Gender       Gender  `json:"gender" db:"gender"`
	AverageScore *int    `json:"average_score,omitempty" db:"average_score"`

	// Агрегированная статистика, пересчитывается по всем stage_scores
	// всех регистраций боулера плюс внешним результатам.
	TournamentAverage *int `json:"tournament_average,omitempty" db:"tournament_average"`
	HighGame          *int `json:"high_game,omitempty" db:"high_game"`
	HighSeries        *int `json:"high_series,omitempty" db:"high_series"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BowlerResult - результат турнира, проведённого вне системы.
// Вносится администратором и участвует в пересчёте статистики профиля.
type BowlerResult struct {
	ID             int       `json:"id" db:"id"`
	BowlerID       int       `json:"bowler_id" db:"bowler_id"`
	TournamentName string    `json:"tournament_name" db:"tournament_name"`
	EventDate      time.Time `json:"event_date" db:"event_date"`
	Games          int       `json:"games" db:"games"`
	ScratchTotal   int       `json:"scratch_total" db:"scratch_total"`
	HighGame       int       `json:"high_game" db:"high_game"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
