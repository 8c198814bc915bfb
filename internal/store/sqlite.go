package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/woodshedapp/woodshed/internal/config"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/migrations"
)

// DB wraps the SQLite connection together with the single-flight
// initialization state. Opening the connection and bringing up the schema
// are separate steps: Open is cheap and infallible short of an unusable
// file, Initialize does the schema work and may be called from several
// goroutines at first use.
type DB struct {
	*sql.DB
	logger *logger.Logger

	initMu   sync.Mutex
	initDone bool
	initCh   chan struct{}
	initFn   func(ctx context.Context) error // defaults to (*DB).initialize
}

// NewConnectSQLite opens (creating if necessary) the SQLite database file at
// cfg.DSN and verifies the connection with a ping. The schema is not touched
// here; call [DB.Initialize] before first use.
func NewConnectSQLite(ctx context.Context, cfg config.DB, log *logger.Logger) (*DB, error) {
	if err := createLocalDBFileIfNotExists(cfg.DSN); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error creating database file")
		return nil, fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	conn, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting database")
		return nil, fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting database (ping)")
		return nil, fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	log.Debug().Str("func", "NewConnectSQLite").Msg("connected to database successfully")

	db := &DB{
		DB:     conn,
		logger: log,
	}
	db.initFn = db.initialize

	return db, nil
}

// Initialize brings the schema up to date. It is idempotent and safe to
// call concurrently: the first caller runs the baseline migrations and the
// structural repair pass while every concurrent caller waits for that same
// in-flight initialization instead of racing table creation. A failed
// initialization is not cached, so a later call retries.
func (db *DB) Initialize(ctx context.Context) error {
	db.initMu.Lock()
	if db.initDone {
		db.initMu.Unlock()
		return nil
	}

	if db.initCh != nil {
		// another goroutine is initializing; await its outcome
		ch := db.initCh
		db.initMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStorageInit, ctx.Err())
		}

		db.initMu.Lock()
		done := db.initDone
		db.initMu.Unlock()
		if !done {
			return fmt.Errorf("%w: concurrent initialization failed", ErrStorageInit)
		}
		return nil
	}

	ch := make(chan struct{})
	db.initCh = ch
	initFn := db.initFn
	if initFn == nil {
		initFn = db.initialize
	}
	db.initMu.Unlock()

	err := initFn(ctx)

	db.initMu.Lock()
	db.initDone = err == nil
	db.initCh = nil
	close(ch)
	db.initMu.Unlock()

	return err
}

func (db *DB) initialize(ctx context.Context) error {
	if err := migrations.Migrate(db.DB); err != nil {
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}

	if err := db.ensureSchema(ctx); err != nil {
		return err
	}

	return nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}
