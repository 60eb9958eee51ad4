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
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrReservationSessionExists = errors.New("reservation for this session already exists")
)

// ReservationRepository хранит временные брони мест. Истечение не требует
// фонового процесса: каждый читающий запрос фильтрует по expires_at > now,
// а DeleteExpired лишь подчищает мусорные строки.
type ReservationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reservation *models.SpotReservation) error
	AssignSquads(ctx context.Context, exec SQLExecutor, reservationID int, squadIDs []int) error
	GetBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string, now time.Time) (*models.SpotReservation, error)
	// DeleteBySessionKey снимает бронь. Отсутствие строки не считается ошибкой:
	// бронь могла истечь и быть удалена фоновой очисткой.
	DeleteBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string) error
	CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type postgresReservationRepository struct {
	db *sql.DB
}

func NewPostgresReservationRepository(db *sql.DB) ReservationRepository {
	return &postgresReservationRepository{db: db}
}

func (r *postgresReservationRepository) Create(ctx context.Context, exec SQLExecutor, reservation *models.SpotReservation) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO spot_reservations (tournament_id, session_key, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		reservation.TournamentID, reservation.SessionKey, reservation.ExpiresAt,
	).Scan(&reservation.ID, &reservation.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrReservationSessionExists
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) AssignSquads(ctx context.Context, exec SQLExecutor, reservationID int, squadIDs []int) error {
	executor := getExecutor(r.db, exec)
	query := `INSERT INTO reservation_squads (reservation_id, squad_id) VALUES ($1, $2)`
	for _, squadID := range squadIDs {
		if _, err := executor.ExecContext(ctx, query, reservationID, squadID); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "reservation_squads_squad_id_fkey" {
				return ErrSquadNotFound
			}
			return fmt.Errorf("failed to assign squad to reservation: %w", err)
		}
	}
	return nil
}

func (r *postgresReservationRepository) GetBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string, now time.Time) (*models.SpotReservation, error) {
	executor := getExecutor(r.db, exec)
	query := `
		SELECT id, tournament_id, session_key, expires_at, created_at
		FROM spot_reservations
		WHERE session_key = $1 AND expires_at > $2`

	var reservation models.SpotReservation
	err := executor.QueryRowContext(ctx, query, sessionKey, now).Scan(
		&reservation.ID, &reservation.TournamentID, &reservation.SessionKey,
		&reservation.ExpiresAt, &reservation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation by session key: %w", err)
	}

	squadQuery := `SELECT squad_id FROM reservation_squads WHERE reservation_id = $1 ORDER BY squad_id`
	rows, err := executor.QueryContext(ctx, squadQuery, reservation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation squads: %w", err)
	}
	defer rows.Close()

	reservation.SquadIDs = []int{}
	for rows.Next() {
		var squadID int
		if err := rows.Scan(&squadID); err != nil {
			return nil, fmt.Errorf("failed to scan reservation squad row: %w", err)
		}
		reservation.SquadIDs = append(reservation.SquadIDs, squadID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return &reservation, nil
}

func (r *postgresReservationRepository) DeleteBySessionKey(ctx context.Context, exec SQLExecutor, sessionKey string) error {
	executor := getExecutor(r.db, exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM spot_reservations WHERE session_key = $1`, sessionKey); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) CountActiveBySquad(ctx context.Context, exec SQLExecutor, squadID int, now time.Time) (int, error) {
	executor := getExecutor(r.db, exec)
	query := `
		SELECT COUNT(*)
		FROM reservation_squads rs
		JOIN spot_reservations res ON res.id = rs.reservation_id
		WHERE rs.squad_id = $1 AND res.expires_at > $2`

	var count int
	if err := executor.QueryRowContext(ctx, query, squadID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reservations for squad: %w", err)
	}
	return count, nil
}

func (r *postgresReservationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM spot_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reservations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return deleted, nil
}
