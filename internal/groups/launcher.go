package groups

import (
	"context"
	"sync"
)

// Launcher runs background sync tasks handed over by the read path. Launch
// reports false when the task was not accepted.
type Launcher interface {
	Launch(task func(ctx context.Context)) bool
}

// AsyncLauncher runs each task in its own goroutine under a long-lived
// context, so tasks outlive the refresh call that started them
type AsyncLauncher struct {
	ctx context.Context
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewAsyncLauncher creates a launcher whose tasks are cancelled with ctx
func NewAsyncLauncher(ctx context.Context) *AsyncLauncher {
	return &AsyncLauncher{ctx: ctx}
}

// Launch starts task without waiting for it. Tasks are refused once Wait
// has been called or the launcher context is done.
func (l *AsyncLauncher) Launch(task func(ctx context.Context)) bool {
	l.mu.Lock()
	if l.closed || l.ctx.Err() != nil {
		l.mu.Unlock()
		return false
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		task(l.ctx)
	}()
	return true
}

// Wait stops accepting tasks and blocks until every launched task has returned
func (l *AsyncLauncher) Wait() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
}

// InlineLauncher runs tasks synchronously on the caller's goroutine
type InlineLauncher struct{}

// Launch runs task to completion
func (InlineLauncher) Launch(task func(ctx context.Context)) bool {
	task(context.Background())
	return true
}
