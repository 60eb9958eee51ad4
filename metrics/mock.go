package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                   sync.Mutex
	httpObservations     int
	registrations        map[string]int
	reservationsCreated  int
	reservationsReleased int
	reservationsExpired  int
	scoresEntered        int
	stageAdvancements    int
	emailsSent           int
	emailsFailed         int
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		registrations: make(map[string]int),
	}
}

func (m *Mock) ObserveHTTPRequest(method, route, status string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpObservations++
}

func (m *Mock) IncRegistration(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[outcome]++
}

func (m *Mock) IncReservationCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservationsCreated++
}

func (m *Mock) IncReservationReleased() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservationsReleased++
}

func (m *Mock) AddReservationsExpired(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservationsExpired += count
}

func (m *Mock) IncScoresEntered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoresEntered++
}

func (m *Mock) IncStageAdvancement() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageAdvancements++
}

func (m *Mock) IncEmailSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailsSent++
}

func (m *Mock) IncEmailFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailsFailed++
}

// Registrations returns how many times IncRegistration was called for the outcome.
func (m *Mock) Registrations(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registrations[outcome]
}

// ReservationsCreatedCount returns how many times IncReservationCreated was called.
func (m *Mock) ReservationsCreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservationsCreated
}

// ReservationsReleasedCount returns how many times IncReservationReleased was called.
func (m *Mock) ReservationsReleasedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservationsReleased
}

// ReservationsExpiredCount returns the accumulated AddReservationsExpired total.
func (m *Mock) ReservationsExpiredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservationsExpired
}

// ScoresEnteredCount returns how many times IncScoresEntered was called.
func (m *Mock) ScoresEnteredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoresEntered
}

// StageAdvancementsCount returns how many times IncStageAdvancement was called.
func (m *Mock) StageAdvancementsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stageAdvancements
}
