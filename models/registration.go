package models

import "time"

// RegistrationStatus представляет статусы регистрации, соответствующие ENUM в БД.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCanceled  RegistrationStatus = "canceled"
	RegistrationWaitlist  RegistrationStatus = "waitlist"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Registration - заявка боулера на турнир. Поля игрока - денормализованный
// снимок на момент регистрации; профиль боулера связан через BowlerID.
type Registration struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	BowlerID     *int `json:"bowler_id,omitempty" db:"bowler_id"`

	PlayerName   string  `json:"player_name" db:"player_name"`
	Email        string  `json:"email" db:"email"`
	Phone        *string `json:"phone,omitempty" db:"phone"`
	Gender       Gender  `json:"gender" db:"gender"`
	AverageScore *int    `json:"average_score,omitempty" db:"average_score"`
	Notes        *string `json:"notes,omitempty" db:"notes"`

	Status RegistrationStatus `json:"status" db:"status"`

	// CurrentStage - индекс этапа, на котором боулер находится сейчас.
	// Продвигается только движком авто-продвижения.
	CurrentStage int `json:"current_stage" db:"current_stage"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Связанные сущности, загружаются отдельно.
	AssignedSquads []int        `json:"assigned_squads,omitempty" db:"-"`
	StageScores    []StageScore `json:"stage_scores,omitempty" db:"-"`
}

// StageScoreFor возвращает запись счёта для этапа с данным индексом, если она есть.
func (r *Registration) StageScoreFor(stageIndex int) *StageScore {
	for i := range r.StageScores {
		if r.StageScores[i].StageIndex == stageIndex {
			return &r.StageScores[i]
		}
	}
	return nil
}

// StageScore - счёт одного боулера на одном этапе.
// Scores и BonusPins - параллельные списки по играм этапа.
type StageScore struct {
	ID              int       `json:"id" db:"id"`
	RegistrationID  int       `json:"registration_id" db:"registration_id"`
	StageIndex      int       `json:"stage_index" db:"stage_index"`
	Scores          []int     `json:"scores" db:"scores"`
	BonusPins       []int     `json:"bonus_pins" db:"bonus_pins"`
	HandicapPerGame int       `json:"handicap_per_game" db:"handicap_per_game"`
	Carryover       int       `json:"carryover" db:"carryover"`
	Total           int       `json:"total" db:"total"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
