package store

import (
	"context"
	"fmt"

	"github.com/woodshedapp/woodshed/internal/config"
	"github.com/woodshedapp/woodshed/internal/logger"
)

// ClientStorages groups the local repositories into a single value that can
// be passed around the service layer.
type ClientStorages struct {
	// Sessions is the SQLite-backed repository for practice sessions.
	Sessions SessionRepository

	// Queue is the SQLite-backed repository for pending sync queue entries.
	Queue QueueRepository

	db *DB
}

// NewClientStorages initialises the local storage layer using the supplied
// configuration and logger. It performs the following steps:
//  1. Opens an SQLite connection to the file path specified in cfg.DB.DSN,
//     creating the database file if it does not yet exist.
//  2. Brings the schema up to date via [DB.Initialize] (goose baseline plus
//     the structural repair pass).
//  3. Constructs and returns a [ClientStorages] value wired to fresh
//     repositories.
//
// Returns an error wrapping ErrStorageInit or ErrMigration if the database
// cannot be opened or the schema cannot be brought up.
func NewClientStorages(ctx context.Context, cfg config.Storage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Msg("creating local storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	return &ClientStorages{
		Sessions: NewSessionRepository(db, logger),
		Queue:    NewQueueRepository(db, logger),
		db:       db,
	}, nil
}

// Close releases the underlying database handle.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
