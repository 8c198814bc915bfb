// Package auth implements the credential lifecycle manager: it owns the
// access/refresh token pair, performs single-flight token refresh, and
// wraps authenticated requests so that a request racing a token expiry is
// refreshed and replayed exactly once.
//
// The manager never imports the application state owner; session state
// changes (token rotation, forced logout) are announced on the event bus.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/woodshedapp/woodshed/internal/bus"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

// State is the manager's refresh state machine.
type State int

const (
	// StateValid means a token pair is held and assumed usable.
	StateValid State = iota
	// StateRefreshing means exactly one refresh call is in flight and
	// concurrent callers are parked awaiting its outcome.
	StateRefreshing
	// StateInvalid means credentials were cleared; no further refresh is
	// attempted until a new login stores a fresh pair.
	StateInvalid
)

// RefreshFunc performs the wire refresh call. The HTTP adapter provides the
// production implementation; injecting it keeps the manager free of any
// transport dependency.
type RefreshFunc func(ctx context.Context, refreshToken string) (models.TokenPair, error)

// refreshAttempt is the explicit in-flight promise concurrent callers
// await. It replaces the boolean-flag-plus-queue-array shape that made the
// old state machine impossible to audit.
type refreshAttempt struct {
	done chan struct{}
	pair models.TokenPair
	err  error
}

// Manager owns the token pair and the single-flight refresh discipline.
type Manager struct {
	refresh RefreshFunc
	events  *bus.Bus
	logger  *logger.Logger
	timeout time.Duration

	mu         sync.Mutex
	state      State
	pair       models.TokenPair
	generation int64
	inflight   *refreshAttempt
}

// NewManager builds a Manager in the Invalid state (no credentials yet).
// timeout bounds the refresh call; an expired timeout is a refresh failure,
// not a retry loop.
func NewManager(refresh RefreshFunc, events *bus.Bus, timeout time.Duration, log *logger.Logger) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		refresh: refresh,
		events:  events,
		logger:  log,
		timeout: timeout,
		state:   StateInvalid,
	}
}

// SetPair stores the pair produced by a fresh login and moves the manager
// to Valid. Publishes TokenUpdated so subscribers see the rotation.
func (m *Manager) SetPair(pair models.TokenPair) {
	m.mu.Lock()
	m.pair = pair
	m.state = StateValid
	m.generation++
	m.mu.Unlock()

	m.events.Publish(bus.TokenUpdated{Pair: pair})
}

// Pair returns the currently held token pair.
func (m *Manager) Pair() models.TokenPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Logout clears credentials and publishes LoggedOut. Used for explicit
// user-initiated logout; refresh failures take the same path internally.
func (m *Manager) Logout(reason string) {
	m.mu.Lock()
	alreadyOut := m.state == StateInvalid && m.pair.Empty()
	m.pair = models.TokenPair{}
	m.state = StateInvalid
	m.mu.Unlock()

	if !alreadyOut {
		m.events.Publish(bus.LoggedOut{Reason: reason})
	}
}

// Do runs call with a valid access token. If the server rejects the token
// (call returns ErrUnauthorized), the manager performs a single-flight
// refresh bound to the token generation the caller observed and replays
// call exactly once with the new token. A burst of N concurrent rejected
// callers produces exactly one refresh on the wire; all N share its
// outcome.
func (m *Manager) Do(ctx context.Context, call func(accessToken string) error) error {
	pair, generation, err := m.current(ctx)
	if err != nil {
		return err
	}

	err = call(pair.AccessToken)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return err
	}

	newPair, refreshErr := m.refreshOnce(ctx, generation)
	if refreshErr != nil {
		return refreshErr
	}

	// replay exactly once with the refreshed token
	return call(newPair.AccessToken)
}

// current returns a usable pair plus the generation it belongs to,
// proactively refreshing when the access token's exp claim is already past.
func (m *Manager) current(ctx context.Context) (models.TokenPair, int64, error) {
	m.mu.Lock()
	if m.pair.Empty() && m.inflight == nil {
		m.mu.Unlock()
		return models.TokenPair{}, 0, ErrNoSession
	}
	pair := m.pair
	generation := m.generation
	m.mu.Unlock()

	if exp := pair.AccessExpiresAt(); !exp.IsZero() && time.Now().After(exp) {
		refreshed, err := m.refreshOnce(ctx, generation)
		if err != nil {
			return models.TokenPair{}, 0, err
		}

		m.mu.Lock()
		generation = m.generation
		m.mu.Unlock()
		return refreshed, generation, nil
	}

	return pair, generation, nil
}

// refreshOnce guarantees at most one refresh call per token generation.
// observedGeneration is the generation whose access token the caller saw
// rejected; if the pair rotated since then, the rotated pair is returned
// without another refresh.
func (m *Manager) refreshOnce(ctx context.Context, observedGeneration int64) (models.TokenPair, error) {
	m.mu.Lock()

	if m.inflight != nil {
		attempt := m.inflight
		m.mu.Unlock()
		return m.await(ctx, attempt)
	}

	if m.state == StateInvalid {
		m.mu.Unlock()
		return models.TokenPair{}, fmt.Errorf("%w: credentials cleared", ErrAuth)
	}

	if m.generation != observedGeneration {
		// someone else already rotated the pair; reuse it
		pair := m.pair
		m.mu.Unlock()
		return pair, nil
	}

	attempt := &refreshAttempt{done: make(chan struct{})}
	m.inflight = attempt
	m.state = StateRefreshing
	refreshToken := m.pair.RefreshToken
	m.mu.Unlock()

	m.logger.Debug().
		Str("func", "Manager.refreshOnce").
		Int64("generation", observedGeneration).
		Msg("starting token refresh")

	// the refresh outlives any single caller: a cancelled waiter must not
	// kill the shared attempt, only the explicit timeout bounds it
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	pair, err := m.refresh(rctx, refreshToken)

	m.mu.Lock()
	// a Logout or a fresh login may have landed while the refresh was on
	// the wire; the later event wins, the refresh result is discarded
	superseded := m.state != StateRefreshing || m.generation != observedGeneration
	switch {
	case superseded && m.state == StateValid && !m.pair.Empty():
		attempt.pair = m.pair
	case superseded:
		attempt.err = fmt.Errorf("%w: session ended during refresh", ErrAuth)
	case err != nil:
		m.pair = models.TokenPair{}
		m.state = StateInvalid
		attempt.err = fmt.Errorf("%w: %v", ErrAuth, err)
	default:
		m.pair = pair
		m.state = StateValid
		m.generation++
		attempt.pair = pair
	}
	m.inflight = nil
	m.mu.Unlock()

	// events go out before the parked waiters are released; the
	// superseding login/logout already published its own
	switch {
	case superseded:
		m.logger.Debug().
			Str("func", "Manager.refreshOnce").
			Int64("generation", observedGeneration).
			Msg("refresh result superseded by login or logout")
	case err != nil:
		m.logger.Warn().
			Str("func", "Manager.refreshOnce").
			Err(err).
			Msg("token refresh failed, forcing logout")
		m.events.Publish(bus.LoggedOut{Reason: "token refresh failed"})
	default:
		m.events.Publish(bus.TokenUpdated{Pair: pair})
	}
	close(attempt.done)

	if attempt.err != nil {
		return models.TokenPair{}, attempt.err
	}
	return attempt.pair, nil
}

// await parks the caller on an in-flight refresh attempt.
func (m *Manager) await(ctx context.Context, attempt *refreshAttempt) (models.TokenPair, error) {
	select {
	case <-attempt.done:
	case <-ctx.Done():
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrAuth, ctx.Err())
	}

	if attempt.err != nil {
		return models.TokenPair{}, attempt.err
	}
	return attempt.pair, nil
}
