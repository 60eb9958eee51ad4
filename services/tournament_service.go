package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/models"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/storage"
	"golang.org/x/sync/errgroup"
)

type SquadInput struct {
	ID           int       `json:"id,omitempty"` // 0 - новый сквад
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"start_time"`
	Capacity     int       `json:"capacity"`
	IsQualifying bool      `json:"is_qualifying"`
}

type TournamentStageInput struct {
	Name                string `json:"name"`
	Games               int    `json:"games"`
	AdvancingBowlers    *int   `json:"advancing_bowlers,omitempty"`
	CarryoverPinfall    bool   `json:"carryover_pinfall"`
	CarryoverPercentage int    `json:"carryover_percentage"`
}

type FormatInput struct {
	GamesPerBowler      int  `json:"games_per_bowler"`
	UseHandicap         bool `json:"use_handicap"`
	HandicapBase        *int `json:"handicap_base,omitempty"`
	HandicapPercentage  *int `json:"handicap_percentage,omitempty"`
	FemaleHandicapPins  *int `json:"female_handicap_pins,omitempty"`
	SeparateDivisions   bool `json:"separate_divisions"`
	MatchPlayWinPoints  int  `json:"match_play_win_points"`
	MatchPlayTiePoints  int  `json:"match_play_tie_points"`
	MatchPlayLossPoints int  `json:"match_play_loss_points"`
	BonusPointsEnabled  bool `json:"bonus_points_enabled"`

	Stages []TournamentStageInput `json:"stages"`
}

type TournamentInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	RegistrationOpenDate     *time.Time `json:"registration_open_date,omitempty"`
	RegistrationManuallyOpen bool       `json:"registration_manually_open"`
	RegistrationDeadline     *time.Time `json:"registration_deadline,omitempty"`

	MaxParticipants *int `json:"max_participants,omitempty"`
	AllowReentry    bool `json:"allow_reentry"`
	SquadsToQualify int  `json:"squads_to_qualify"`

	EntryFee            *string `json:"entry_fee,omitempty"`
	PaymentInstructions *string `json:"payment_instructions,omitempty"`

	Format FormatInput  `json:"format"`
	Squads []SquadInput `json:"squads"`
}

type TournamentService interface {
	Create(ctx context.Context, input TournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetBySlug(ctx context.Context, slugValue string) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, id int, input TournamentInput) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error
	UploadLogo(ctx context.Context, id int, file io.Reader, contentType string) (*models.Tournament, error)
	// RunAutoStatusUpdates переводит турниры по датам: upcoming -> active после
	// start_date, active -> completed после end_date. Возвращает число переходов.
	RunAutoStatusUpdates(ctx context.Context, now time.Time) (int, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	squadRepo      repositories.SquadRepository
	stageRepo      repositories.StageRepository
	uploader       storage.FileUploader
	hub            *live.Hub
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	squadRepo repositories.SquadRepository,
	stageRepo repositories.StageRepository,
	uploader storage.FileUploader,
	hub *live.Hub,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		squadRepo:      squadRepo,
		stageRepo:      stageRepo,
		uploader:       uploader,
		hub:            hub,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input TournamentInput) (tournament *models.Tournament, err error) {
	if err = validateTournamentInput(&input); err != nil {
		return nil, err
	}

	tournament = tournamentFromInput(&input)
	tournament.Status = models.StatusUpcoming
	tournament.Slug = slug.Make(input.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()

	err = s.tournamentRepo.Create(ctx, tx, tournament)
	if errors.Is(err, repositories.ErrTournamentSlugTaken) {
		// Одноимённый турнир уже есть (прошлогодний, например): добавляем суффикс.
		tournament.Slug = fmt.Sprintf("%s-%s", tournament.Slug, uuid.NewString()[:8])
		err = s.tournamentRepo.Create(ctx, tx, tournament)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentSlugTaken) {
			err = ErrTournamentSlugTaken
		}
		return nil, err
	}

	if tournament.Squads, err = s.squadRepo.Replace(ctx, tx, tournament.ID, squadsFromInput(input.Squads)); err != nil {
		err = translateSquadError(err)
		return nil, err
	}
	if tournament.Format.Stages, err = s.stageRepo.Replace(ctx, tx, tournament.ID, stagesFromInput(input.Format.Stages)); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	if err := s.loadDetails(ctx, tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) GetBySlug(ctx context.Context, slugValue string) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament by slug %q: %w", slugValue, err)
	}
	if err := s.loadDetails(ctx, tournament); err != nil {
		return nil, err
	}
	return tournament, nil
}

// loadDetails подтягивает сквады и этапы параллельно.
func (s *tournamentService) loadDetails(ctx context.Context, tournament *models.Tournament) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		squads, err := s.squadRepo.ListByTournament(gCtx, tournament.ID)
		if err != nil {
			return fmt.Errorf("failed to load squads for tournament %d: %w", tournament.ID, err)
		}
		tournament.Squads = squads
		return nil
	})
	g.Go(func() error {
		stages, err := s.stageRepo.ListByTournament(gCtx, tournament.ID)
		if err != nil {
			return fmt.Errorf("failed to load stages for tournament %d: %w", tournament.ID, err)
		}
		tournament.Format.Stages = stages
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	if filter.Status != nil && !isValidTournamentStatus(*filter.Status) {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidStatus, *filter.Status)
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, tournament := range tournaments {
		populateTournamentLogoURL(tournament, s.uploader)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input TournamentInput) (tournament *models.Tournament, err error) {
	if err = validateTournamentInput(&input); err != nil {
		return nil, err
	}

	existing, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}

	tournament = tournamentFromInput(&input)
	tournament.ID = existing.ID
	tournament.Status = existing.Status
	tournament.LogoKey = existing.LogoKey
	tournament.CreatedAt = existing.CreatedAt
	// Slug не меняется при переименовании: внешние ссылки должны жить.
	tournament.Slug = existing.Slug

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()

	if err = s.tournamentRepo.Update(ctx, tx, tournament); err != nil {
		return nil, err
	}
	if tournament.Squads, err = s.squadRepo.Replace(ctx, tx, tournament.ID, squadsFromInput(input.Squads)); err != nil {
		err = translateSquadError(err)
		return nil, err
	}
	if tournament.Format.Stages, err = s.stageRepo.Replace(ctx, tx, tournament.ID, stagesFromInput(input.Format.Stages)); err != nil {
		return nil, err
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if !isValidTournamentStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidStatus, status)
	}
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(tournament.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, status)
	}
	if tournament.Status == status {
		return tournament, nil
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, err
	}
	tournament.Status = status

	if s.hub != nil {
		s.hub.BroadcastStatusChanged(tournament.ID, map[string]interface{}{
			"tournament_id": tournament.ID,
			"status":        status,
		})
	}
	return tournament, nil
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to get tournament %d: %w", id, err)
	}

	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return err
	}

	if tournament.LogoKey != nil && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *tournament.LogoKey); delErr != nil {
			s.logger.Warn("failed to delete tournament logo from storage",
				slog.Int("tournament_id", id), slog.String("key", *tournament.LogoKey), slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, id int, file io.Reader, contentType string) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, errors.New("file storage is not configured")
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	// Уникальный ключ на каждую загрузку, чтобы CDN не отдавал устаревший логотип.
	key := fmt.Sprintf("tournaments/%d/logo-%s%s", id, uuid.NewString()[:8], ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	oldKey := tournament.LogoKey
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, err
	}
	tournament.LogoKey = &key

	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous tournament logo",
				slog.Int("tournament_id", id), slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) RunAutoStatusUpdates(ctx context.Context, now time.Time) (updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	due, err := s.tournamentRepo.GetTournamentsForAutoStatusUpdate(ctx, tx, now)
	if err != nil {
		return 0, err
	}

	transitions := make(map[int]models.TournamentStatus, len(due))
	for _, tournament := range due {
		var next models.TournamentStatus
		switch {
		case tournament.Status == models.StatusUpcoming && !tournament.StartDate.After(now):
			next = models.StatusActive
		case tournament.Status == models.StatusActive && tournament.EndDate.Before(now):
			next = models.StatusCompleted
		default:
			continue
		}
		if err = s.tournamentRepo.UpdateStatus(ctx, tx, tournament.ID, next); err != nil {
			return 0, err
		}
		transitions[tournament.ID] = next
		updated++
	}

	// Коммит здесь, а не в defer: рассылка идёт строго после него,
	// подписчики не должны увидеть статус, который мог откатиться.
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.hub != nil {
		for tournamentID, status := range transitions {
			s.hub.BroadcastStatusChanged(tournamentID, map[string]interface{}{
				"tournament_id": tournamentID,
				"status":        status,
			})
		}
	}
	return updated, nil
}

func tournamentFromInput(input *TournamentInput) *models.Tournament {
	format := &models.Format{
		GamesPerBowler:      input.Format.GamesPerBowler,
		UseHandicap:         input.Format.UseHandicap,
		HandicapBase:        models.DefaultHandicapBase,
		HandicapPercentage:  models.DefaultHandicapPercentage,
		FemaleHandicapPins:  models.DefaultFemaleHandicapPins,
		SeparateDivisions:   input.Format.SeparateDivisions,
		MatchPlayWinPoints:  input.Format.MatchPlayWinPoints,
		MatchPlayTiePoints:  input.Format.MatchPlayTiePoints,
		MatchPlayLossPoints: input.Format.MatchPlayLossPoints,
		BonusPointsEnabled:  input.Format.BonusPointsEnabled,
	}
	if input.Format.HandicapBase != nil {
		format.HandicapBase = *input.Format.HandicapBase
	}
	if input.Format.HandicapPercentage != nil {
		format.HandicapPercentage = *input.Format.HandicapPercentage
	}
	if input.Format.FemaleHandicapPins != nil {
		format.FemaleHandicapPins = *input.Format.FemaleHandicapPins
	}

	return &models.Tournament{
		Name:                     input.Name,
		Description:              input.Description,
		Location:                 input.Location,
		StartDate:                input.StartDate,
		EndDate:                  input.EndDate,
		RegistrationOpenDate:     input.RegistrationOpenDate,
		RegistrationManuallyOpen: input.RegistrationManuallyOpen,
		RegistrationDeadline:     input.RegistrationDeadline,
		MaxParticipants:          input.MaxParticipants,
		AllowReentry:             input.AllowReentry,
		SquadsToQualify:          input.SquadsToQualify,
		EntryFee:                 input.EntryFee,
		PaymentInstructions:      input.PaymentInstructions,
		Format:                   format,
	}
}

func squadsFromInput(inputs []SquadInput) []models.Squad {
	squads := make([]models.Squad, len(inputs))
	for i, in := range inputs {
		squads[i] = models.Squad{
			ID:           in.ID,
			Name:         in.Name,
			Date:         in.Date,
			StartTime:    in.StartTime,
			Capacity:     in.Capacity,
			IsQualifying: in.IsQualifying,
		}
	}
	return squads
}

func stagesFromInput(inputs []TournamentStageInput) []models.Stage {
	stages := make([]models.Stage, len(inputs))
	for i, in := range inputs {
		stages[i] = models.Stage{
			Index:               i,
			Name:                in.Name,
			Games:               in.Games,
			AdvancingBowlers:    in.AdvancingBowlers,
			CarryoverPinfall:    in.CarryoverPinfall,
			CarryoverPercentage: in.CarryoverPercentage,
		}
	}
	return stages
}

func validateTournamentInput(input *TournamentInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if err := validateTournamentDates(input.StartDate, input.EndDate, input.RegistrationOpenDate, input.RegistrationDeadline); err != nil {
		return err
	}
	if input.MaxParticipants != nil && *input.MaxParticipants <= 0 {
		return ErrTournamentInvalidCapacity
	}

	if len(input.Squads) == 0 {
		return ErrSquadsRequired
	}
	qualifying := 0
	for i := range input.Squads {
		if input.Squads[i].Capacity < 1 {
			return fmt.Errorf("%w: squad %q", ErrSquadCapacityInvalid, input.Squads[i].Name)
		}
		if input.Squads[i].IsQualifying {
			qualifying++
		}
	}
	if input.SquadsToQualify < 1 || input.SquadsToQualify > qualifying {
		return fmt.Errorf("%w: requested %d, qualifying squads %d", ErrSquadsToQualifyInvalid, input.SquadsToQualify, qualifying)
	}

	if input.Format.GamesPerBowler < 1 {
		return fmt.Errorf("%w: games per bowler must be at least 1", ErrValidationFailed)
	}
	if len(input.Format.Stages) == 0 {
		return ErrStagesRequired
	}
	for i, stage := range input.Format.Stages {
		if stage.Games < 1 {
			return fmt.Errorf("%w: stage %q", ErrStageGamesInvalid, stage.Name)
		}
		isLast := i == len(input.Format.Stages)-1
		if stage.AdvancingBowlers == nil && !isLast {
			return fmt.Errorf("%w: stage %q must advance bowlers, only the final stage may not", ErrStageAdvancingInvalid, stage.Name)
		}
		if stage.AdvancingBowlers != nil && *stage.AdvancingBowlers < 1 {
			return fmt.Errorf("%w: stage %q", ErrStageAdvancingInvalid, stage.Name)
		}
		if stage.CarryoverPercentage < 0 || stage.CarryoverPercentage > 100 {
			return fmt.Errorf("%w: stage %q", ErrCarryoverPercentageInvalid, stage.Name)
		}
	}
	return nil
}

func translateSquadError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrSquadInUse):
		return fmt.Errorf("%w: squad has registrations or reservations", ErrValidationFailed)
	case errors.Is(err, repositories.ErrSquadInvalidCapacity):
		return ErrSquadCapacityInvalid
	case errors.Is(err, repositories.ErrSquadNotFound):
		return ErrSquadNotFound
	}
	return err
}
