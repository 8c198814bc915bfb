package netmon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woodshedapp/woodshed/internal/logger"
)

type stubProber struct {
	err error
}

func (s *stubProber) Ping(_ context.Context) error { return s.err }

func TestMonitor_StartsOffline(t *testing.T) {
	m := New(&stubProber{}, logger.Nop())
	assert.False(t, m.Online())
}

func TestMonitor_ProbeFlipsState(t *testing.T) {
	prober := &stubProber{}
	m := New(prober, logger.Nop())

	assert.True(t, m.Probe(context.Background()))
	assert.True(t, m.Online())

	prober.err = errors.New("connection refused")
	assert.False(t, m.Probe(context.Background()))
	assert.False(t, m.Online())
}

func TestMonitor_NotifiesOnTransitionOnly(t *testing.T) {
	prober := &stubProber{}
	m := New(prober, logger.Nop())

	var transitions []bool
	m.Subscribe(func(online bool) { transitions = append(transitions, online) })

	m.Probe(context.Background()) // offline -> online
	m.Probe(context.Background()) // online, no change
	prober.err = errors.New("down")
	m.Probe(context.Background()) // online -> offline

	require.Equal(t, []bool{true, false}, transitions)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := New(&stubProber{}, logger.Nop())

	calls := 0
	unsub := m.Subscribe(func(bool) { calls++ })
	unsub()

	m.Probe(context.Background())
	assert.Zero(t, calls)
}
