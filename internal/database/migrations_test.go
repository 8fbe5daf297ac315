package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insertVersion = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`

func setupMigrationDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &DB{Pool: mock}, mock
}

func expectApplied(mock pgxmock.PgxPoolIface, versions ...int) {
	mock.ExpectExec(createMigrationsTable).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	rows := pgxmock.NewRows([]string{"version"})
	for _, v := range versions {
		rows.AddRow(v)
	}
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(rows)
}

func allVersions() []int {
	versions := make([]int, len(migrations))
	for i := range migrations {
		versions[i] = i + 1
	}
	return versions
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db, mock := setupMigrationDB(t)

	expectApplied(mock)
	for i, migration := range migrations {
		mock.ExpectBegin()
		mock.ExpectExec(insertVersion).WithArgs(i + 1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(migration).WillReturnResult(pgxmock.NewResult("OK", 0))
		mock.ExpectCommit()
	}

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SecondRunExecutesNothing(t *testing.T) {
	db, mock := setupMigrationDB(t)

	// a rerun must not touch room_reviews again
	expectApplied(mock, allVersions()...)

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesOnlyPendingVersions(t *testing.T) {
	db, mock := setupMigrationDB(t)

	last := len(migrations)
	expectApplied(mock, allVersions()[:last-1]...)
	mock.ExpectBegin()
	mock.ExpectExec(insertVersion).WithArgs(last).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(migrations[last-1]).WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectCommit()

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_VersionClaimedByAnotherInstance(t *testing.T) {
	db, mock := setupMigrationDB(t)

	last := len(migrations)
	expectApplied(mock, allVersions()[:last-1]...)
	mock.ExpectBegin()
	mock.ExpectExec(insertVersion).WithArgs(last).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db, mock := setupMigrationDB(t)

	expectApplied(mock)
	mock.ExpectBegin()
	mock.ExpectExec(insertVersion).WithArgs(1).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(migrations[0]).WillReturnError(errors.New("permission denied to create extension"))
	mock.ExpectRollback()

	err := db.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1 failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
