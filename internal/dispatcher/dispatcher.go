// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"sync"

	"github.com/dangvonguyen/research-agent/internal/orchestrator"
)

// Dispatcher runs a pool of workers that consume the shared job queue.
type Dispatcher struct {
	workers []*orchestrator.Worker
}

// New creates a Dispatcher.
func New(workers []*orchestrator.Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *orchestrator.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
