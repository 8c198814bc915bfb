// Package netmon implements the network state monitor: a pure observation
// source reporting current connectivity and connectivity-change events.
// Retry and backoff policy live with the sync orchestrator, never here.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/woodshedapp/woodshed/internal/logger"
)

//go:generate mockgen -source=monitor.go -destination=../mock/netmon_mock.go -package=mock

// Prober checks reachability of the API origin. The HTTP adapter provides
// the production implementation.
type Prober interface {
	Ping(ctx context.Context) error
}

// Listener receives connectivity transitions. Called synchronously from the
// monitor's polling goroutine, only when the observed state changes.
type Listener func(online bool)

// Monitor polls a Prober and caches the last observation. Online may be
// stale by up to one probe interval; callers that need certainty fall back
// to attempting the real request and handling its failure.
type Monitor struct {
	prober Prober
	logger *logger.Logger

	mu     sync.RWMutex
	online bool
	nextID int64
	subs   map[int64]Listener
}

// New builds a Monitor that starts offline until the first probe says
// otherwise. Call Run to start polling.
func New(prober Prober, log *logger.Logger) *Monitor {
	return &Monitor{
		prober: prober,
		logger: log,
		subs:   make(map[int64]Listener),
	}
}

// Online returns the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers fn for connectivity transitions and returns an
// unsubscribe function.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Probe performs one reachability check immediately and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	err := m.prober.Ping(ctx)
	online := err == nil

	if err != nil {
		m.logger.Debug().
			Str("func", "Monitor.Probe").
			Err(err).
			Msg("connectivity probe failed")
	}

	m.set(online)
	return online
}

// Run polls the prober every interval until ctx is cancelled. An immediate
// first probe runs before the ticker starts so the monitor does not sit on
// its pessimistic default for a full interval.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m.Probe(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online

	var snapshot []Listener
	if changed {
		snapshot = make([]Listener, 0, len(m.subs))
		for _, fn := range m.subs {
			snapshot = append(snapshot, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info().
		Str("func", "Monitor.set").
		Bool("online", online).
		Msg("connectivity state changed")

	for _, fn := range snapshot {
		fn(online)
	}
}
