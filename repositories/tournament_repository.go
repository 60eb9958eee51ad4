package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lanecrew/tournament-system/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentSlugTaken    = errors.New("tournament slug already in use")
	ErrTournamentInvalidDates = errors.New("tournament end date is before start date")
)

// ListTournamentsFilter задаёт параметры фильтрации для списка турниров.
type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Search string
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
	GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, slug, description, location, start_date, end_date, status,
	registration_open_date, registration_manually_open, registration_deadline,
	max_participants, allow_reentry, squads_to_qualify,
	entry_fee, payment_instructions, logo_key,
	games_per_bowler, use_handicap, handicap_base, handicap_percentage,
	female_handicap_pins, separate_divisions,
	match_play_win_points, match_play_tie_points, match_play_loss_points,
	bonus_points_enabled, created_at`

func scanTournament(s rowScanner) (*models.Tournament, error) {
	var t models.Tournament
	var f models.Format
	err := s.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Description, &t.Location, &t.StartDate, &t.EndDate, &t.Status,
		&t.RegistrationOpenDate, &t.RegistrationManuallyOpen, &t.RegistrationDeadline,
		&t.MaxParticipants, &t.AllowReentry, &t.SquadsToQualify,
		&t.EntryFee, &t.PaymentInstructions, &t.LogoKey,
		&f.GamesPerBowler, &f.UseHandicap, &f.HandicapBase, &f.HandicapPercentage,
		&f.FemaleHandicapPins, &f.SeparateDivisions,
		&f.MatchPlayWinPoints, &f.MatchPlayTiePoints, &f.MatchPlayLossPoints,
		&f.BonusPointsEnabled, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Format = &f
	return &t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO tournaments (
			name, slug, description, location, start_date, end_date, status,
			registration_open_date, registration_manually_open, registration_deadline,
			max_participants, allow_reentry, squads_to_qualify,
			entry_fee, payment_instructions,
			games_per_bowler, use_handicap, handicap_base, handicap_percentage,
			female_handicap_pins, separate_divisions,
			match_play_win_points, match_play_tie_points, match_play_loss_points,
			bonus_points_enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING id, status, created_at`

	f := tournament.Format
	err := executor.QueryRowContext(ctx, query,
		tournament.Name, tournament.Slug, tournament.Description, tournament.Location,
		tournament.StartDate, tournament.EndDate, tournament.Status,
		tournament.RegistrationOpenDate, tournament.RegistrationManuallyOpen, tournament.RegistrationDeadline,
		tournament.MaxParticipants, tournament.AllowReentry, tournament.SquadsToQualify,
		tournament.EntryFee, tournament.PaymentInstructions,
		f.GamesPerBowler, f.UseHandicap, f.HandicapBase, f.HandicapPercentage,
		f.FemaleHandicapPins, f.SeparateDivisions,
		f.MatchPlayWinPoints, f.MatchPlayTiePoints, f.MatchPlayLossPoints,
		f.BonusPointsEnabled,
	).Scan(&tournament.ID, &tournament.Status, &tournament.CreatedAt)
	if err != nil {
		return handleTournamentError(err, "failed to create tournament")
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	tournament, err := scanTournament(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament by id: %w", err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE slug = $1`
	tournament, err := scanTournament(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament by slug: %w", err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	query += " ORDER BY start_date DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []*models.Tournament{}
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	executor := getExecutor(r.db, exec)
	query := `
		UPDATE tournaments SET
			name = $1, slug = $2, description = $3, location = $4,
			start_date = $5, end_date = $6,
			registration_open_date = $7, registration_manually_open = $8, registration_deadline = $9,
			max_participants = $10, allow_reentry = $11, squads_to_qualify = $12,
			entry_fee = $13, payment_instructions = $14,
			games_per_bowler = $15, use_handicap = $16, handicap_base = $17, handicap_percentage = $18,
			female_handicap_pins = $19, separate_divisions = $20,
			match_play_win_points = $21, match_play_tie_points = $22, match_play_loss_points = $23,
			bonus_points_enabled = $24
		WHERE id = $25`

	f := tournament.Format
	result, err := executor.ExecContext(ctx, query,
		tournament.Name, tournament.Slug, tournament.Description, tournament.Location,
		tournament.StartDate, tournament.EndDate,
		tournament.RegistrationOpenDate, tournament.RegistrationManuallyOpen, tournament.RegistrationDeadline,
		tournament.MaxParticipants, tournament.AllowReentry, tournament.SquadsToQualify,
		tournament.EntryFee, tournament.PaymentInstructions,
		f.GamesPerBowler, f.UseHandicap, f.HandicapBase, f.HandicapPercentage,
		f.FemaleHandicapPins, f.SeparateDivisions,
		f.MatchPlayWinPoints, f.MatchPlayTiePoints, f.MatchPlayLossPoints,
		f.BonusPointsEnabled,
		tournament.ID,
	)
	if err != nil {
		return handleTournamentError(err, "failed to update tournament")
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := getExecutor(r.db, exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// GetTournamentsForAutoStatusUpdate возвращает турниры, статус которых пора
// переключить по датам: upcoming -> active после start_date,
// active -> completed после end_date. Блокирует строки до конца транзакции.
func (r *postgresTournamentRepository) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	executor := getExecutor(r.db, exec)
	query := `SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE (status = 'upcoming' AND start_date <= $1)
		   OR (status = 'active' AND end_date < $1)
		ORDER BY id
		FOR UPDATE`

	rows, err := executor.QueryContext(ctx, query, currentTime)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournaments for status update: %w", err)
	}
	defer rows.Close()

	tournaments := []*models.Tournament{}
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return tournaments, nil
}

func handleTournamentError(err error, context string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_slug_key" {
				return ErrTournamentSlugTaken
			}
		case "23514":
			if pqErr.Constraint == "tournaments_dates_check" {
				return ErrTournamentInvalidDates
			}
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}
