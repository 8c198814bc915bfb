package store

import "errors"

// Sentinel errors returned by store methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrStorageInit is returned when the underlying SQLite engine cannot
	// be opened or the schema cannot be brought up. Fatal for the session:
	// the client cannot proceed past startup without a durable store.
	ErrStorageInit = errors.New("local storage initialization failed")

	// ErrMigration is returned when a schema upgrade step fails. Partial
	// state is detected structurally on the next launch (by inspecting
	// actual column presence), so retrying the migration is always safe.
	ErrMigration = errors.New("schema migration failed")

	// ErrSessionNotFound is returned when a query targets a practice
	// session (identified by local id) that does not exist locally.
	ErrSessionNotFound = errors.New("session was not found")

	// ErrQueueEntryNotFound is returned when a queue operation targets a
	// local id with no live queue entry.
	ErrQueueEntryNotFound = errors.New("sync queue entry was not found")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain
// logic can be applied.
var (
	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommittingTransaction is returned when committing an open
	// transaction fails. The transaction is considered rolled back.
	ErrCommittingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to execute statement")

	// ErrScanningRow is returned when scanning column values from a result
	// row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")
)
