package migrate

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func TestMigrationsEmbedded(t *testing.T) {
	got, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "0001_users", got[0].Version)
	assert.Contains(t, got[0].SQL, "CREATE TABLE IF NOT EXISTS users")
}

func TestLoadSortsAndSkipsNonSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql": {Data: []byte("B")},
		"m/0001_a.sql": {Data: []byte("A")},
		"m/README.md":  {Data: []byte("ignored")},
		"m/sub/x.sql":  {Data: []byte("nested")},
	}
	got, err := load(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []Migration{{Version: "0001_a", SQL: "A"}, {Version: "0002_b", SQL: "B"}}, got)
}

func expectVersion(mock sqlmock.Sqlmock, version string, alreadyApplied bool) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(lockQuery)).WithArgs(lockKey).WillReturnResult(driver.ResultNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(appliedQuery)).
		WithArgs(version).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(alreadyApplied))
}

func TestApplySkipsRecordedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations := []Migration{
		{Version: "0001_a", SQL: "CREATE TABLE a (id int)"},
		{Version: "0002_b", SQL: "CREATE TABLE b (id int)"},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(driver.ResultNoRows)
	expectVersion(mock, "0001_a", true)
	mock.ExpectRollback()
	expectVersion(mock, "0002_b", false)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id int)")).WillReturnResult(driver.ResultNoRows)
	mock.ExpectExec(regexp.QuoteMeta(recordQuery)).WithArgs("0002_b").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := apply(context.Background(), db, migrations, discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations := []Migration{
		{Version: "0001_a", SQL: "BROKEN"},
		{Version: "0002_b", SQL: "NEVER RUN"},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(driver.ResultNoRows)
	expectVersion(mock, "0001_a", false)
	mock.ExpectExec("BROKEN").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := apply(context.Background(), db, migrations, discard)
	require.ErrorContains(t, err, "exec migration 0001_a: syntax error")
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
