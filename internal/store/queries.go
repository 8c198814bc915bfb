package store

const (
	upsertSession = `
		INSERT INTO sessions (
			local_id,
			canonical_id,
			sync_state,
			started_at,
			ended_at,
			tags,
			rating,
			notes,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			canonical_id = excluded.canonical_id,
			sync_state   = excluded.sync_state,
			started_at   = excluded.started_at,
			ended_at     = excluded.ended_at,
			tags         = excluded.tags,
			rating       = excluded.rating,
			notes        = excluded.notes,
			updated_at   = excluded.updated_at;`

	getSingleSession = `
		SELECT
			local_id,
			canonical_id,
			sync_state,
			started_at,
			ended_at,
			tags,
			rating,
			notes,
			created_at,
			updated_at
		FROM sessions
		WHERE local_id = ?;`

	getAllSessions = `
		SELECT
			local_id,
			canonical_id,
			sync_state,
			started_at,
			ended_at,
			tags,
			rating,
			notes,
			created_at,
			updated_at
		FROM sessions
		ORDER BY created_at ASC, local_id ASC;`

	updateSessionSyncState = `
		UPDATE sessions SET
			sync_state = ?,
			updated_at = ?
		WHERE local_id = ?;`

	// The canonical id guard keeps the at-most-once transition: an empty or
	// equal canonical id may be (re)written, a different one may not.
	setSessionCanonicalID = `
		UPDATE sessions SET
			canonical_id = ?,
			sync_state   = ?,
			updated_at   = ?
		WHERE local_id = ?
		  AND (canonical_id IS NULL OR canonical_id = '' OR canonical_id = ?);`

	upsertQueueEntry = `
		INSERT INTO sync_queue (
			local_id,
			payload,
			attempts,
			last_attempt_at,
			created_at
		) VALUES (?, ?, 0, NULL, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			payload = excluded.payload;`

	getAllQueueEntries = `
		SELECT
			local_id,
			payload,
			attempts,
			last_attempt_at,
			created_at
		FROM sync_queue
		ORDER BY created_at ASC, local_id ASC;`

	bumpQueueAttempt = `
		UPDATE sync_queue SET
			attempts        = attempts + 1,
			last_attempt_at = ?
		WHERE local_id = ?;`

	deleteQueueEntry = `
		DELETE FROM sync_queue
		WHERE local_id = ?;`
)
