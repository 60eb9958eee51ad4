package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed           = errors.New("validation failed") // Общая ошибка валидации
	ErrPasswordTooShort           = errors.New("password is too short")
	ErrTournamentNotUpcoming      = errors.New("tournament is not accepting registrations")
	ErrRegistrationNotOpen        = errors.New("tournament registration is not open yet")
	ErrRegistrationDeadlinePassed = errors.New("tournament registration deadline has passed")
	ErrNoSquadsSelected           = errors.New("at least one squad must be selected")
	ErrSquadFull                  = errors.New("squad is full")
	ErrNotEnoughQualifyingSquads  = errors.New("not enough qualifying squads selected")
	ErrReentryNotAllowed          = errors.New("tournament does not allow extra qualifying squads")
	ErrTournamentFull             = errors.New("tournament registration is full")
	ErrStageIsFinal               = errors.New("stage is final, nobody advances from it")
	ErrStageHasNoNextStage        = errors.New("tournament has no stage after the requested one")

	// Ошибки конфликтов
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrRegistrationConflict = errors.New("a registration with this email already exists for the tournament")
	ErrTournamentSlugTaken  = errors.New("tournament with a similar name already exists")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed") // Общая ошибка аутентификации
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей (могут дублировать ErrNotFound, но дают больше контекста)
	ErrUserNotFound         = errors.New("user not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrSquadNotFound        = errors.New("squad not found")
	ErrStageNotFound        = errors.New("stage not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrReservationNotFound  = errors.New("reservation not found or expired")
	ErrBowlerNotFound       = errors.New("bowler not found")

	// Ошибки конфигурации турнира
	ErrTournamentDatesRequired           = errors.New("tournament start and end dates are required")
	ErrTournamentInvalidDateRange        = errors.New("tournament end date must not be before start date")
	ErrTournamentInvalidCapacity         = errors.New("tournament max participants must be positive")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrSquadsRequired                    = errors.New("tournament must have at least one squad")
	ErrSquadCapacityInvalid              = errors.New("squad capacity must be at least 1")
	ErrStagesRequired                    = errors.New("tournament must have at least one stage")
	ErrStagesNotContiguous               = errors.New("stage indexes must be contiguous starting from 0")
	ErrStageGamesInvalid                 = errors.New("stage games count must be at least 1")
	ErrStageAdvancingInvalid             = errors.New("stage advancing bowlers must be positive")
	ErrCarryoverPercentageInvalid        = errors.New("stage carryover percentage must be between 0 and 100")
	ErrSquadsToQualifyInvalid            = errors.New("squads to qualify must be between 1 and the number of qualifying squads")
)
