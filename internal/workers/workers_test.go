package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingWorker struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (w *blockingWorker) Run(ctx context.Context) {
	w.started.Store(true)
	<-ctx.Done()
	w.stopped.Store(true)
}

func TestWorkers_RunAndWait(t *testing.T) {
	first := &blockingWorker{}
	second := &blockingWorker{}
	ws := New(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	ws.Run(ctx)

	assert.Eventually(t, func() bool {
		return first.started.Load() && second.started.Load()
	}, 2*time.Second, time.Millisecond)

	cancel()
	ws.Wait()

	assert.True(t, first.stopped.Load())
	assert.True(t, second.stopped.Load())
}

func TestWorkers_EmptyAggregate(t *testing.T) {
	ws := New()
	ws.Run(context.Background())
	ws.Wait()
}
