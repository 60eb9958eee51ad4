package models

// Format описывает правила подсчёта очков турнира: количество игр,
// конфигурацию гандикапа, бонусы матч-плея и этапы.
// Хранится в колонках таблицы tournaments, этапы - в таблице stages.
type Format struct {
	GamesPerBowler int `json:"games_per_bowler" db:"games_per_bowler"`

	UseHandicap        bool `json:"use_handicap" db:"use_handicap"`
	HandicapBase       int  `json:"handicap_base" db:"handicap_base"`
	HandicapPercentage int  `json:"handicap_percentage" db:"handicap_percentage"`
	FemaleHandicapPins int  `json:"female_handicap_pins" db:"female_handicap_pins"`
	SeparateDivisions  bool `json:"separate_divisions" db:"separate_divisions"`

	MatchPlayWinPoints  int  `json:"match_play_win_points" db:"match_play_win_points"`
	MatchPlayTiePoints  int  `json:"match_play_tie_points" db:"match_play_tie_points"`
	MatchPlayLossPoints int  `json:"match_play_loss_points" db:"match_play_loss_points"`
	BonusPointsEnabled  bool `json:"bonus_points_enabled" db:"bonus_points_enabled"`

	Stages []Stage `json:"stages,omitempty" db:"-"`
}

// Значения по умолчанию для гандикапа, применяются когда турнир их не задал.
const (
	DefaultHandicapBase       = 220
	DefaultHandicapPercentage = 90
	DefaultFemaleHandicapPins = 8
	DefaultAverageScore       = 180
)

// Stage - один этап многоэтапного турнира, упорядочен по Index.
type Stage struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Index        int    `json:"index" db:"stage_index"`
	Name         string `json:"name" db:"name"`
	Games        int    `json:"games" db:"games"`

	// AdvancingBowlers == nil означает финальный этап: из него никто не проходит дальше.
	AdvancingBowlers *int `json:"advancing_bowlers,omitempty" db:"advancing_bowlers"`

	CarryoverPinfall    bool `json:"carryover_pinfall" db:"carryover_pinfall"`
	CarryoverPercentage int  `json:"carryover_percentage" db:"carryover_percentage"`
}
