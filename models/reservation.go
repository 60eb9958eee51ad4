package models

import "time"

// ReservationTTL - время жизни временного холда на места в сквадах.
const ReservationTTL = 10 * time.Minute

// SpotReservation - временный холд на места в сквадах на период заполнения
// формы регистрации. Не гарантирует место: учитывается при расчёте
// доступности, но окончательная проверка происходит при регистрации.
// Запись с истёкшим ExpiresAt считается отсутствующей независимо от того,
// удалена ли она физически.
type SpotReservation struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	SessionKey   string    `json:"session_key" db:"session_key"`
	SquadIDs     []int     `json:"squads" db:"-"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Expired сообщает, истёк ли холд на момент now.
func (r *SpotReservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
