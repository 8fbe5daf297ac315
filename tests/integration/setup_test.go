package integration

import (
	"os"
	"testing"

	"github.com/dimitrije/raidroom-api/internal/cache"
	"github.com/dimitrije/raidroom-api/internal/events"
	"github.com/dimitrije/raidroom-api/internal/repository"
	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/tests/testutil"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestMain runs before all tests in this package
func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

// setupTest creates a test database with a room service on top of it
func setupTest(t *testing.T) (*testutil.TestDB, *services.RoomService) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	logger, _ := test.NewNullLogger()
	svc := services.NewRoomService(repository.NewRoomRepository(tdb.DB), cache.Noop{}, events.Noop{}, logger)
	return tdb, svc
}
