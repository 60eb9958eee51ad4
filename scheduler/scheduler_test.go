package scheduler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/services"
)

// Интервалы заданы константами пакета, поэтому сами задачи здесь не
// дожидаемся: их тела вызывают уже покрытые тестами методы. Проверяем
// только сборку и остановку планировщика.
func TestScheduler_Lifecycle(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tournaments := services.NewTournamentService(
		db,
		&repositories.MockTournamentRepository{},
		&repositories.MockSquadRepository{},
		&repositories.MockStageRepository{},
		nil,
		nil,
		logger,
	)

	sched, err := New(tournaments, &repositories.MockReservationRepository{}, metrics.NewMock(), logger)
	require.NoError(t, err)
	require.NotNil(t, sched)

	assert.Len(t, sched.sched.Jobs(), 2, "статусы турниров и чистка холдов")

	sched.Start()
	require.NoError(t, sched.Shutdown())
}
