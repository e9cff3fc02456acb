// Package runs dispatches pipeline runs onto a bounded worker pool and keeps
// the cancellation handle of every running import.
package runs

import (
	"context"
	"fmt"
	"sync"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"

	"golang.org/x/sync/semaphore"
)

// Run is the unit of work the registry executes.
type Run func(ctx context.Context)

// Registry owns the worker pool. Each dispatched run occupies one pool slot
// until it finishes; independent runs execute fully in parallel.
type Registry struct {
	pool *semaphore.Weighted

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRegistry creates a Registry with the configured pool size.
func NewRegistry() *Registry {
	size := int64(util.GetEnvNumeric("RUN_POOL_SIZE", 4))
	if size < 1 {
		size = 1
	}
	return &Registry{
		pool:   semaphore.NewWeighted(size),
		active: make(map[string]context.CancelFunc),
	}
}

// Dispatch schedules the run under the given upload id and returns
// immediately. The run starts once a pool slot is free. Dispatching an
// upload that is already running is an error.
func (r *Registry) Dispatch(uploadID string, run Run) error {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if _, ok := r.active[uploadID]; ok {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("upload %s is already running", uploadID)
	}
	r.active[uploadID] = cancel
	r.mu.Unlock()

	go func() {
		defer r.remove(uploadID)
		defer cancel()

		if err := r.pool.Acquire(ctx, 1); err != nil {
			logger.Info("run cancelled before start", "upload", uploadID)
			return
		}
		defer r.pool.Release(1)

		run(ctx)
	}()

	return nil
}

// Cancel revokes the run of the given upload. Cancellation is best effort:
// it stops further stages but does not roll back external state the run has
// already written.
func (r *Registry) Cancel(uploadID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[uploadID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	return true
}

// Active reports whether the upload currently has a run.
func (r *Registry) Active(uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[uploadID]
	return ok
}

func (r *Registry) remove(uploadID string) {
	r.mu.Lock()
	delete(r.active, uploadID)
	r.mu.Unlock()
}
