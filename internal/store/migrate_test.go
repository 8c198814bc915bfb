package store

import (
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var tableInfoColumns = []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}

// fullSessionsTableInfo returns PRAGMA rows matching the target sessions
// schema exactly.
func fullSessionsTableInfo() *sqlmock.Rows {
	rows := sqlmock.NewRows(tableInfoColumns)
	rows.AddRow(0, "local_id", "TEXT", 0, nil, 1)
	rows.AddRow(1, "canonical_id", "TEXT", 0, nil, 0)
	rows.AddRow(2, "sync_state", "TEXT", 1, "'local'", 0)
	rows.AddRow(3, "started_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(4, "ended_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(5, "tags", "TEXT", 1, "''", 0)
	rows.AddRow(6, "rating", "INTEGER", 1, "0", 0)
	rows.AddRow(7, "notes", "TEXT", 1, "''", 0)
	rows.AddRow(8, "created_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(9, "updated_at", "TIMESTAMP", 0, nil, 0)
	return rows
}

func TestEnsureTable_UpToDateIsNoOp(t *testing.T) {
	db, mock := newTestDB(t)
	storeDB := newDBFromSQL(db)

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(sessions);")).
		WillReturnRows(fullSessionsTableInfo())

	require.NoError(t, storeDB.ensureTable(testContext(), sessionsSpec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable_MissingTableIsSkipped(t *testing.T) {
	db, mock := newTestDB(t)
	storeDB := newDBFromSQL(db)

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(sessions);")).
		WillReturnRows(sqlmock.NewRows(tableInfoColumns))

	require.NoError(t, storeDB.ensureTable(testContext(), sessionsSpec))
}

func TestEnsureTable_AddsMissingColumn(t *testing.T) {
	db, mock := newTestDB(t)
	storeDB := newDBFromSQL(db)

	// schema version N-1: the rating column does not exist yet
	rows := sqlmock.NewRows(tableInfoColumns)
	rows.AddRow(0, "local_id", "TEXT", 0, nil, 1)
	rows.AddRow(1, "canonical_id", "TEXT", 0, nil, 0)
	rows.AddRow(2, "sync_state", "TEXT", 1, "'local'", 0)
	rows.AddRow(3, "started_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(4, "ended_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(5, "tags", "TEXT", 1, "''", 0)
	rows.AddRow(6, "notes", "TEXT", 1, "''", 0)
	rows.AddRow(7, "created_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(8, "updated_at", "TIMESTAMP", 0, nil, 0)

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(sessions);")).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE sessions ADD COLUMN rating INTEGER NOT NULL DEFAULT 0;")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, storeDB.ensureTable(testContext(), sessionsSpec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable_RebuildOnConstraintMismatch(t *testing.T) {
	db, mock := newTestDB(t)
	storeDB := newDBFromSQL(db)

	// sync_state was created nullable by an older build; SQLite cannot
	// tighten the constraint in place, so a shadow rebuild is required
	rows := sqlmock.NewRows(tableInfoColumns)
	rows.AddRow(0, "local_id", "TEXT", 0, nil, 1)
	rows.AddRow(1, "canonical_id", "TEXT", 0, nil, 0)
	rows.AddRow(2, "sync_state", "TEXT", 0, nil, 0)
	rows.AddRow(3, "started_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(4, "ended_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(5, "tags", "TEXT", 1, "''", 0)
	rows.AddRow(6, "rating", "INTEGER", 1, "0", 0)
	rows.AddRow(7, "notes", "TEXT", 1, "''", 0)
	rows.AddRow(8, "created_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(9, "updated_at", "TIMESTAMP", 0, nil, 0)

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(sessions);")).
		WillReturnRows(rows)

	// leftover shadow from an aborted rebuild is dropped first
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS sessions_rebuild;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE sessions_rebuild").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// explicit column list, never SELECT *
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions_rebuild (local_id, canonical_id, sync_state, started_at, ended_at, tags, rating, notes, created_at, updated_at) SELECT local_id, canonical_id, sync_state, started_at, ended_at, tags, rating, notes, created_at, updated_at FROM sessions;")).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE sessions;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE sessions_rebuild RENAME TO sessions;")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, storeDB.ensureTable(testContext(), sessionsSpec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable_RebuildKeepsOriginalOnCopyFailure(t *testing.T) {
	db, mock := newTestDB(t)
	storeDB := newDBFromSQL(db)

	rows := sqlmock.NewRows(tableInfoColumns)
	rows.AddRow(0, "local_id", "TEXT", 0, nil, 1)
	rows.AddRow(1, "payload", "BLOB", 0, nil, 0) // payload lost NOT NULL
	rows.AddRow(2, "attempts", "INTEGER", 1, "0", 0)
	rows.AddRow(3, "last_attempt_at", "TIMESTAMP", 0, nil, 0)
	rows.AddRow(4, "created_at", "TIMESTAMP", 0, nil, 0)

	mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info(sync_queue);")).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS sync_queue_rebuild;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE sync_queue_rebuild").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO sync_queue_rebuild").
		WillReturnError(errors.New("disk I/O error"))

	err := storeDB.ensureTable(testContext(), queueSpec)
	require.ErrorIs(t, err, ErrMigration)
	// the DROP TABLE sync_queue step was never reached, so the original
	// table is intact and the rebuild can be retried on next launch
	require.NoError(t, mock.ExpectationsWereMet())
}
