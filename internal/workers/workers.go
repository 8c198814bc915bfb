package workers

import (
	"context"
	"sync"
	"time"

	"github.com/woodshedapp/woodshed/internal/netmon"
	"github.com/woodshedapp/woodshed/internal/service"
)

// Workers runs a set of background workers and waits for all of them to
// exit on shutdown.
type Workers struct {
	workers []Worker
	wg      sync.WaitGroup
}

// New aggregates the given workers.
func New(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

// Run launches every worker on its own goroutine and returns immediately.
func (w *Workers) Run(ctx context.Context) {
	for _, worker := range w.workers {
		w.wg.Add(1)
		go func(worker Worker) {
			defer w.wg.Done()
			worker.Run(ctx)
		}(worker)
	}
}

// Wait blocks until every worker has exited.
func (w *Workers) Wait() {
	w.wg.Wait()
}

type probeWorker struct {
	monitor  *netmon.Monitor
	interval time.Duration
}

// NewProbeWorker wraps the connectivity monitor's polling loop as a Worker.
func NewProbeWorker(monitor *netmon.Monitor, interval time.Duration) Worker {
	return &probeWorker{monitor: monitor, interval: interval}
}

func (p *probeWorker) Run(ctx context.Context) {
	p.monitor.Run(ctx, p.interval)
}

type syncWorker struct {
	job      service.Job
	interval time.Duration
}

// NewSyncWorker wraps the periodic sync job as a Worker.
func NewSyncWorker(job service.Job, interval time.Duration) Worker {
	return &syncWorker{job: job, interval: interval}
}

func (s *syncWorker) Run(ctx context.Context) {
	s.job.Start(ctx, s.interval)
	<-ctx.Done()
	s.job.Stop()
}
