package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusActive    TournamentStatus = "active"
	StatusCompleted TournamentStatus = "completed"
	StatusCanceled  TournamentStatus = "canceled"
)

// Tournament представляет турнир по боулингу.
// Squads и Format загружаются отдельно и не мапятся напрямую на колонки.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Slug        string           `json:"slug" db:"slug"`
	Description *string          `json:"description,omitempty" db:"description"`
	Location    *string          `json:"location,omitempty" db:"location"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	EndDate     time.Time        `json:"end_date" db:"end_date"`
	Status      TournamentStatus `json:"status" db:"status"`

	// Окно регистрации: до RegistrationOpenDate регистрация закрыта,
	// если только организатор не открыл её вручную; после дедлайна - закрыта всегда.
	RegistrationOpenDate     *time.Time `json:"registration_open_date,omitempty" db:"registration_open_date"`
	RegistrationManuallyOpen bool       `json:"registration_manually_open" db:"registration_manually_open"`
	RegistrationDeadline     *time.Time `json:"registration_deadline,omitempty" db:"registration_deadline"`

	// MaxParticipants == nil означает отсутствие общего лимита.
	MaxParticipants *int `json:"max_participants,omitempty" db:"max_participants"`
	AllowReentry    bool `json:"allow_reentry" db:"allow_reentry"`
	SquadsToQualify int  `json:"squads_to_qualify" db:"squads_to_qualify"`

	EntryFee            *string `json:"entry_fee,omitempty" db:"entry_fee"`
	PaymentInstructions *string `json:"payment_instructions,omitempty" db:"payment_instructions"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Format *Format `json:"format,omitempty" db:"-"`
	Squads []Squad `json:"squads,omitempty" db:"-"`
}

// SquadByID возвращает сквад турнира по его ID.
func (t *Tournament) SquadByID(squadID int) *Squad {
	for i := range t.Squads {
		if t.Squads[i].ID == squadID {
			return &t.Squads[i]
		}
	}
	return nil
}

// Squad - игровая сессия с фиксированной вместимостью внутри турнира.
// Существует только как часть турнира, создаётся и редактируется вместе с ним.
type Squad struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Date         time.Time `json:"date" db:"squad_date"`
	StartTime    string    `json:"start_time" db:"start_time"`
	Capacity     int       `json:"capacity" db:"capacity"`
	IsQualifying bool      `json:"is_qualifying" db:"is_qualifying"`
}

// SquadAvailability - снимок занятости сквада на момент запроса.
// Available считается как capacity - registered - reserved и не опускается ниже нуля.
type SquadAvailability struct {
	SquadID    int    `json:"squad_id"`
	SquadName  string `json:"squad_name"`
	Capacity   int    `json:"capacity"`
	Registered int    `json:"registered"`
	Reserved   int    `json:"reserved"`
	Available  int    `json:"available"`
}
