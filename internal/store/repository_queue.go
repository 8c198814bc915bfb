package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

type queueRepository struct {
	*DB
	logger *logger.Logger
}

// NewQueueRepository builds the SQLite-backed sync queue repository.
func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *queueRepository) ListEntries(ctx context.Context) ([]models.SyncQueueEntry, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, getAllQueueEntries)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.ListEntries").
			Msg("failed to execute query for queue entries")
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.SyncQueueEntry
	for rows.Next() {
		var (
			entry         models.SyncQueueEntry
			lastAttemptAt sql.NullTime
		)

		scanErr := rows.Scan(
			&entry.LocalID,
			&entry.Payload,
			&entry.Attempts,
			&lastAttemptAt,
			&entry.CreatedAt,
		)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.ListEntries").
				Msg("failed to scan queue entry row")
			return nil, fmt.Errorf("%w: %v", ErrScanningRow, scanErr)
		}

		if lastAttemptAt.Valid {
			at := lastAttemptAt.Time
			entry.LastAttemptAt = &at
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "queueRepository.ListEntries").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, rowsErr)
	}

	return entries, nil
}

func (r *queueRepository) BumpAttempt(ctx context.Context, localID string, at time.Time) error {
	log := logger.FromContext(ctx)

	result, err := r.DB.ExecContext(ctx, bumpQueueAttempt, at, localID)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.BumpAttempt").
			Str("local_id", localID).
			Msg("failed to bump queue attempt")
		return fmt.Errorf("%w: bump attempt (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w (local_id=%s)", ErrQueueEntryNotFound, localID)
	}

	return nil
}

func (r *queueRepository) RemoveEntry(ctx context.Context, localID string) error {
	log := logger.FromContext(ctx)

	result, err := r.DB.ExecContext(ctx, deleteQueueEntry, localID)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.RemoveEntry").
			Str("local_id", localID).
			Msg("failed to remove queue entry")
		return fmt.Errorf("%w: remove entry (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w (local_id=%s)", ErrQueueEntryNotFound, localID)
	}

	return nil
}
