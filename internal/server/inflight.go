package server

import (
	"context"
	"sync"
)

// inflight counts running dispatches. Once closed it admits no new work, so
// acquire never races with the wait in Shutdown.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// acquire registers one unit of work. It returns false after close.
func (f *inflight) acquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) release() {
	f.wg.Done()
}

// closeAndWait stops admitting work and waits for running work to finish.
// It returns false if ctx ends first.
func (f *inflight) closeAndWait(ctx context.Context) bool {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
