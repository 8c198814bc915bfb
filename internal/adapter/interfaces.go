package adapter

import (
	"context"
	"io"

	"github.com/woodshedapp/woodshed/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// ServerAdapter is the outbound API surface of the woodshed backend.
//
// Login, Register and Refresh are public endpoints. CreateSession and
// UploadArtifact run through the credential manager: an expired access
// token is refreshed once and the request replayed. Ping satisfies
// netmon.Prober.
type ServerAdapter interface {
	Register(ctx context.Context, email, password string) (models.TokenPair, error)
	Login(ctx context.Context, email, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	CreateSession(ctx context.Context, req models.CreateSessionRequest) (models.CreateSessionResponse, error)
	UploadArtifact(ctx context.Context, ownerID, ref string, content io.Reader) error

	Ping(ctx context.Context) error
}
