package store

import (
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woodshedapp/woodshed/internal/logger"
)

var queueColumnNames = []string{
	"local_id", "payload", "attempts", "last_attempt_at", "created_at",
}

func TestQueueRepository_ListEntries(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	attempted := created.Add(time.Minute)

	rows := sqlmock.NewRows(queueColumnNames).
		AddRow("1700000000000", []byte(`{"a":1}`), int64(0), nil, created).
		AddRow("1700000000001", []byte(`{"b":2}`), int64(3), attempted, created.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(getAllQueueEntries)).WillReturnRows(rows)

	entries, err := repo.ListEntries(testContext())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "1700000000000", entries[0].LocalID)
	assert.Nil(t, entries[0].LastAttemptAt)
	assert.Equal(t, int64(3), entries[1].Attempts)
	require.NotNil(t, entries[1].LastAttemptAt)
	assert.Equal(t, attempted, *entries[1].LastAttemptAt)
}

func TestQueueRepository_ListEntries_Empty(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	mock.ExpectQuery(regexp.QuoteMeta(getAllQueueEntries)).
		WillReturnRows(sqlmock.NewRows(queueColumnNames))

	entries, err := repo.ListEntries(testContext())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueueRepository_BumpAttempt(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	at := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(bumpQueueAttempt)).
		WithArgs(at, "1700000000000").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.BumpAttempt(testContext(), "1700000000000", at))
}

func TestQueueRepository_BumpAttempt_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	mock.ExpectExec(regexp.QuoteMeta(bumpQueueAttempt)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.BumpAttempt(testContext(), "missing", time.Now())
	require.ErrorIs(t, err, ErrQueueEntryNotFound)
}

func TestQueueRepository_RemoveEntry(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	mock.ExpectExec(regexp.QuoteMeta(deleteQueueEntry)).
		WithArgs("1700000000000").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RemoveEntry(testContext(), "1700000000000"))
}

func TestQueueRepository_RemoveEntry_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewQueueRepository(newDBFromSQL(db), logger.Nop())

	mock.ExpectExec(regexp.QuoteMeta(deleteQueueEntry)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveEntry(testContext(), "missing")
	require.ErrorIs(t, err, ErrQueueEntryNotFound)
}
