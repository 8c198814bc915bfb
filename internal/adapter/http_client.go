// Package adapter implements the HTTP client for the woodshed backend. All
// knowledge of URLs, status codes and response shapes stays behind the
// ServerAdapter interface; callers see canonical models and sentinel errors.
package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/woodshedapp/woodshed/internal/auth"
	"github.com/woodshedapp/woodshed/internal/config"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

type HTTPServerAdapter struct {
	client  *resty.Client
	logger  *logger.Logger
	manager *auth.Manager
}

// NewHTTPServerAdapter builds the resty-backed adapter. The credential
// manager is attached afterwards with UseCredentialManager because the
// manager itself needs this adapter's Refresh as its refresh function.
func NewHTTPServerAdapter(cfg config.Adapter, log *logger.Logger) *HTTPServerAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &HTTPServerAdapter{client: cli, logger: log}
}

// UseCredentialManager attaches the manager that authenticates
// CreateSession and UploadArtifact. Must be called before either is used.
func (h *HTTPServerAdapter) UseCredentialManager(manager *auth.Manager) {
	h.manager = manager
}

func (h *HTTPServerAdapter) Register(ctx context.Context, email, password string) (models.TokenPair, error) {
	return h.obtainPair(ctx, "/api/auth/register", email, password)
}

func (h *HTTPServerAdapter) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	return h.obtainPair(ctx, "/api/auth/login", email, password)
}

func (h *HTTPServerAdapter) obtainPair(ctx context.Context, path, email, password string) (models.TokenPair, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.LoginRequest{Email: email, Password: password}).
		Post(path)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.TokenPair{}, err
	}

	normalized, err := models.NormalizeRefreshResponse(resp.Body())
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  normalized.AccessToken,
		RefreshToken: normalized.RefreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new pair. Public endpoint: it
// must never route through the credential manager it serves. The caller
// (the manager) bounds it with its own explicit timeout context.
func (h *HTTPServerAdapter) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.RefreshRequest{RefreshToken: refreshToken}).
		Post("/api/auth/refresh")
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.TokenPair{}, err
	}

	normalized, err := models.NormalizeRefreshResponse(resp.Body())
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  normalized.AccessToken,
		RefreshToken: normalized.RefreshToken,
	}, nil
}

// CreateSession creates a session on the server. The request always carries
// the local id so a replayed create after a crash or a double drain
// deduplicates server-side to the same canonical id.
func (h *HTTPServerAdapter) CreateSession(ctx context.Context, req models.CreateSessionRequest) (models.CreateSessionResponse, error) {
	var out models.CreateSessionResponse

	err := h.manager.Do(ctx, func(accessToken string) error {
		resp, err := h.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Authorization", "Bearer "+accessToken).
			SetBody(req).
			Post("/api/sessions")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		if err = mapHTTPError(resp); err != nil {
			return err
		}

		out, err = models.NormalizeCreateSessionResponse(resp.Body())
		return err
	})
	if err != nil {
		return models.CreateSessionResponse{}, err
	}

	h.logger.Debug().
		Str("func", "HTTPServerAdapter.CreateSession").
		Str("local_id", req.LocalID).
		Str("canonical_id", out.CanonicalID).
		Msg("session created on server")
	return out, nil
}

// UploadArtifact uploads an artifact under the owning session's id. The
// owner id path segment may still be provisional; the linker re-parents
// locally once the owner resolves, the server is never asked to relink.
func (h *HTTPServerAdapter) UploadArtifact(ctx context.Context, ownerID, ref string, content io.Reader) error {
	// buffered up front: a token-refresh replay must re-send the full body
	payload, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("read artifact %q: %w", ref, err)
	}

	return h.manager.Do(ctx, func(accessToken string) error {
		resp, err := h.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+accessToken).
			SetFileReader("artifact", ref, bytes.NewReader(payload)).
			Post("/api/sessions/" + ownerID + "/artifacts")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		return mapHTTPError(resp)
	})
}

// Ping implements netmon.Prober against the health endpoint.
func (h *HTTPServerAdapter) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/api/ping")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return mapHTTPError(resp)
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	if resp.StatusCode() == http.StatusConflict {
		return ErrConflict
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}
