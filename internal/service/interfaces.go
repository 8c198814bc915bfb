package service

import (
	"context"
	"io"
	"time"

	"github.com/woodshedapp/woodshed/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// SessionService is the application-facing surface of the sync
// orchestrator: record-first session creation and the queue drain.
type SessionService interface {
	// CreateSession persists a new session. Online it creates on the server
	// directly; offline (or on any server failure) it falls back to the
	// durable queue. The returned session always carries a usable id.
	CreateSession(ctx context.Context, draft models.SessionDraft) (models.Session, error)

	// ListSessions returns all locally known sessions in creation order.
	ListSessions(ctx context.Context) ([]models.Session, error)

	// UploadArtifact uploads a binary under the session's current identity
	// and links it locally.
	UploadArtifact(ctx context.Context, sessionID, ext string, content io.Reader) (models.Artifact, error)

	// DrainQueue pushes pending queue entries to the server, FIFO. A drain
	// already in progress suppresses the call.
	DrainQueue(ctx context.Context) error
}

// Drainer is the part of the orchestrator the background job needs.
type Drainer interface {
	DrainQueue(ctx context.Context) error
}

// Job is a start/stop background worker around the queue drain.
type Job interface {
	Start(ctx context.Context, interval time.Duration)
	Stop()
}
