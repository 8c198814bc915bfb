package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

type sessionRepository struct {
	*DB
	logger *logger.Logger
}

// NewSessionRepository builds the SQLite-backed session repository.
func NewSessionRepository(db *DB, logger *logger.Logger) SessionRepository {
	return &sessionRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *sessionRepository) SaveSession(ctx context.Context, session models.Session) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, upsertSession,
		session.LocalID,
		nullableString(session.CanonicalID),
		session.SyncState,
		session.StartedAt,
		session.EndedAt,
		session.Tags,
		session.Rating,
		session.Notes,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.SaveSession").
			Str("local_id", session.LocalID).
			Msg("failed to execute upsert for session")
		return fmt.Errorf("%w: save session (local_id=%s): %v", ErrExecutingStatement, session.LocalID, err)
	}

	return nil
}

func (r *sessionRepository) SaveSessionWithQueue(ctx context.Context, session models.Session, payload []byte) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.SaveSessionWithQueue").
			Str("local_id", session.LocalID).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %v", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, upsertSession,
		session.LocalID,
		nullableString(session.CanonicalID),
		session.SyncState,
		session.StartedAt,
		session.EndedAt,
		session.Tags,
		session.Rating,
		session.Notes,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.SaveSessionWithQueue").
			Str("local_id", session.LocalID).
			Msg("failed to upsert session inside transaction")
		return fmt.Errorf("%w: save session (local_id=%s): %v", ErrExecutingStatement, session.LocalID, err)
	}

	_, err = tx.ExecContext(ctx, upsertQueueEntry,
		session.LocalID,
		payload,
		session.CreatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.SaveSessionWithQueue").
			Str("local_id", session.LocalID).
			Msg("failed to upsert queue entry inside transaction")
		return fmt.Errorf("%w: enqueue session (local_id=%s): %v", ErrExecutingStatement, session.LocalID, err)
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).
			Str("func", "sessionRepository.SaveSessionWithQueue").
			Str("local_id", session.LocalID).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %v", ErrCommittingTransaction, err)
	}

	return nil
}

func (r *sessionRepository) GetSession(ctx context.Context, localID string) (models.Session, error) {
	log := logger.FromContext(ctx)

	row := r.DB.QueryRowContext(ctx, getSingleSession, localID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, fmt.Errorf("%w (local_id=%s)", ErrSessionNotFound, localID)
		}
		log.Err(err).
			Str("func", "sessionRepository.GetSession").
			Str("local_id", localID).
			Msg("failed to scan session row")
		return models.Session{}, fmt.Errorf("%w: %v", ErrScanningRow, err)
	}

	return session, nil
}

func (r *sessionRepository) ListSessions(ctx context.Context) ([]models.Session, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, getAllSessions)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.ListSessions").
			Msg("failed to execute query for all sessions")
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			log.Err(err).
				Str("func", "sessionRepository.ListSessions").
				Msg("failed to scan session row")
			return nil, fmt.Errorf("%w: %v", ErrScanningRow, err)
		}
		sessions = append(sessions, session)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "sessionRepository.ListSessions").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, rowsErr)
	}

	return sessions, nil
}

func (r *sessionRepository) UpdateSyncState(ctx context.Context, localID string, state models.SyncState) error {
	log := logger.FromContext(ctx)

	result, err := r.DB.ExecContext(ctx, updateSessionSyncState, state, time.Now().UTC(), localID)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.UpdateSyncState").
			Str("local_id", localID).
			Str("sync_state", string(state)).
			Msg("failed to update session sync state")
		return fmt.Errorf("%w: update sync state (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w (local_id=%s)", ErrSessionNotFound, localID)
	}

	return nil
}

func (r *sessionRepository) MarkSyncedAndDequeue(ctx context.Context, localID, canonicalID string) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.MarkSyncedAndDequeue").
			Str("local_id", localID).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %v", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, setSessionCanonicalID,
		canonicalID,
		models.SyncStateSynced,
		time.Now().UTC(),
		localID,
		canonicalID,
	)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.MarkSyncedAndDequeue").
			Str("local_id", localID).
			Str("canonical_id", canonicalID).
			Msg("failed to set canonical id")
		return fmt.Errorf("%w: mark synced (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}
	if affected == 0 {
		// either the session is gone or it already carries a different
		// canonical id; both are left for the reconciler to report
		log.Warn().
			Str("func", "sessionRepository.MarkSyncedAndDequeue").
			Str("local_id", localID).
			Str("canonical_id", canonicalID).
			Msg("no rows affected while marking session synced")
	}

	if _, err = tx.ExecContext(ctx, deleteQueueEntry, localID); err != nil {
		log.Err(err).
			Str("func", "sessionRepository.MarkSyncedAndDequeue").
			Str("local_id", localID).
			Msg("failed to remove queue entry inside transaction")
		return fmt.Errorf("%w: dequeue (local_id=%s): %v", ErrExecutingStatement, localID, err)
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).
			Str("func", "sessionRepository.MarkSyncedAndDequeue").
			Str("local_id", localID).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %v", ErrCommittingTransaction, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var (
		session     models.Session
		canonicalID sql.NullString
	)

	err := row.Scan(
		&session.LocalID,
		&canonicalID,
		&session.SyncState,
		&session.StartedAt,
		&session.EndedAt,
		&session.Tags,
		&session.Rating,
		&session.Notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return models.Session{}, err
	}

	session.CanonicalID = canonicalID.String
	return session, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
