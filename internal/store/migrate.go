package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/woodshedapp/woodshed/internal/logger"
)

// Structural schema repair. The goose baseline (see the migrations package)
// records a version number, but a crash mid-upgrade can leave the actual
// table shape behind the recorded version. This pass therefore inspects the
// real column presence with PRAGMA table_info and applies the minimal set
// of changes: additive ADD COLUMN where SQLite allows it, shadow-table
// rebuild where it does not (nullability or constraint changes).

// columnSpec is the target shape of one column.
type columnSpec struct {
	name    string
	ddl     string // full column DDL used in ADD COLUMN / CREATE TABLE
	notNull bool
}

type tableSpec struct {
	name    string
	columns []columnSpec
}

var sessionsSpec = tableSpec{
	name: "sessions",
	columns: []columnSpec{
		{name: "local_id", ddl: "local_id TEXT PRIMARY KEY", notNull: true},
		{name: "canonical_id", ddl: "canonical_id TEXT"},
		{name: "sync_state", ddl: "sync_state TEXT NOT NULL DEFAULT 'local'", notNull: true},
		{name: "started_at", ddl: "started_at TIMESTAMP"},
		{name: "ended_at", ddl: "ended_at TIMESTAMP"},
		{name: "tags", ddl: "tags TEXT NOT NULL DEFAULT ''", notNull: true},
		{name: "rating", ddl: "rating INTEGER NOT NULL DEFAULT 0", notNull: true},
		{name: "notes", ddl: "notes TEXT NOT NULL DEFAULT ''", notNull: true},
		{name: "created_at", ddl: "created_at TIMESTAMP"},
		{name: "updated_at", ddl: "updated_at TIMESTAMP"},
	},
}

var queueSpec = tableSpec{
	name: "sync_queue",
	columns: []columnSpec{
		{name: "local_id", ddl: "local_id TEXT PRIMARY KEY", notNull: true},
		{name: "payload", ddl: "payload BLOB NOT NULL DEFAULT X''", notNull: true},
		{name: "attempts", ddl: "attempts INTEGER NOT NULL DEFAULT 0", notNull: true},
		{name: "last_attempt_at", ddl: "last_attempt_at TIMESTAMP"},
		{name: "created_at", ddl: "created_at TIMESTAMP"},
	},
}

// ensureSchema reconciles both tables with their target shape.
func (db *DB) ensureSchema(ctx context.Context) error {
	for _, spec := range []tableSpec{sessionsSpec, queueSpec} {
		if err := db.ensureTable(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ensureTable(ctx context.Context, spec tableSpec) error {
	log := logger.FromContext(ctx)

	existing, err := db.tableColumns(ctx, spec.name)
	if err != nil {
		return fmt.Errorf("%w: inspect %s: %v", ErrMigration, spec.name, err)
	}

	if len(existing) == 0 {
		// baseline migration has not created the table; nothing to repair
		return nil
	}

	needsRebuild := false
	var missing []columnSpec
	for _, col := range spec.columns {
		info, ok := existing[col.name]
		if !ok {
			missing = append(missing, col)
			continue
		}
		if info.notNull != col.notNull {
			// SQLite cannot alter nullability in place
			needsRebuild = true
		}
	}

	if needsRebuild {
		log.Warn().
			Str("func", "DB.ensureTable").
			Str("table", spec.name).
			Msg("column constraints diverge from target schema, rebuilding table")
		return db.rebuildTable(ctx, spec, existing)
	}

	for _, col := range missing {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", spec.name, col.ddl)); err != nil {
			return fmt.Errorf("%w: add column %s.%s: %v", ErrMigration, spec.name, col.name, err)
		}
		log.Info().
			Str("func", "DB.ensureTable").
			Str("table", spec.name).
			Str("column", col.name).
			Msg("added missing column")
	}

	return nil
}

// rebuildTable runs the shadow-table strategy: drop any shadow left over
// from a previously aborted rebuild, create a fresh shadow with the target
// schema, copy rows across with an explicit column list (never SELECT *),
// then drop the original and rename the shadow into place. The original
// table is untouched until the drop/rename step, so a failure before that
// point leaves the store usable and the rebuild retryable on next launch.
func (db *DB) rebuildTable(ctx context.Context, spec tableSpec, existing map[string]columnInfo) error {
	shadow := spec.name + "_rebuild"

	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", shadow)); err != nil {
		return fmt.Errorf("%w: drop leftover shadow %s: %v", ErrMigration, shadow, err)
	}

	ddl := make([]string, 0, len(spec.columns))
	for _, col := range spec.columns {
		ddl = append(ddl, col.ddl)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s);", shadow, strings.Join(ddl, ", "))
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("%w: create shadow %s: %v", ErrMigration, shadow, err)
	}

	// copy only the columns present in both shapes; new columns take their
	// declared defaults
	var copied []string
	for _, col := range spec.columns {
		if _, ok := existing[col.name]; ok {
			copied = append(copied, col.name)
		}
	}
	cols := strings.Join(copied, ", ")
	copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;", shadow, cols, cols, spec.name)
	if _, err := db.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("%w: copy rows into shadow %s: %v", ErrMigration, shadow, err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s;", spec.name)); err != nil {
		return fmt.Errorf("%w: drop original %s: %v", ErrMigration, spec.name, err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", shadow, spec.name)); err != nil {
		return fmt.Errorf("%w: rename shadow %s: %v", ErrMigration, shadow, err)
	}

	return nil
}

type columnInfo struct {
	name    string
	typ     string
	notNull bool
}

func (db *DB) tableColumns(ctx context.Context, table string) (map[string]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return nil, fmt.Errorf("pragma table_info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]columnInfo)
	for rows.Next() {
		var (
			cid     int64
			name    string
			typ     string
			notNull int64
			dflt    sql.NullString
			pk      int64
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		columns[name] = columnInfo{name: name, typ: typ, notNull: notNull == 1 || pk == 1}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table_info rows: %w", err)
	}

	return columns, nil
}
