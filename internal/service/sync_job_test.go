package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDrainer struct {
	calls atomic.Int64
}

func (d *countingDrainer) DrainQueue(context.Context) error {
	d.calls.Add(1)
	return nil
}

func TestSyncJob_DrainsOnTicker(t *testing.T) {
	drainer := &countingDrainer{}
	job := NewSyncJob(drainer)

	job.Start(context.Background(), 10*time.Millisecond)
	defer job.Stop()

	require.Eventually(t, func() bool {
		return drainer.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSyncJob_StopBlocksUntilExit(t *testing.T) {
	drainer := &countingDrainer{}
	job := NewSyncJob(drainer)

	job.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return drainer.calls.Load() >= 1
	}, 2*time.Second, time.Millisecond)

	job.Stop()
	settled := drainer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, drainer.calls.Load())
}

func TestSyncJob_StopWithoutStartIsNoOp(t *testing.T) {
	job := NewSyncJob(&countingDrainer{})
	job.Stop()
}

func TestSyncJob_RestartReplacesPreviousRun(t *testing.T) {
	drainer := &countingDrainer{}
	job := NewSyncJob(drainer)

	job.Start(context.Background(), time.Hour)
	job.Start(context.Background(), 5*time.Millisecond)
	defer job.Stop()

	require.Eventually(t, func() bool {
		return drainer.calls.Load() >= 1
	}, 2*time.Second, time.Millisecond)
}

func TestSyncJob_ContextCancelStops(t *testing.T) {
	drainer := &countingDrainer{}
	job := NewSyncJob(drainer)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx, 5*time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	settled := drainer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, drainer.calls.Load())
	job.Stop()
}
