package bridge

import (
	"context"
	"sync"
	"time"
)

// minWatchGap bounds how often a watcher may poll, whatever its interval.
const minWatchGap = 10 * time.Millisecond

// Task is a handle on background work that reports back through a bridge.
type Task struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stop cancels the task's context. Work already running finishes its current
// step; use Wait when a clean drain is required (e.g. in tests).
func (t *Task) Stop() {
	t.cancel()
}

// Wait blocks until the task's goroutine has exited.
func (t *Task) Wait() {
	t.wg.Wait()
}

// Go runs fn on its own goroutine and posts done(result, err) back to the
// loop goroutine when fn returns. fn receives ctx and is expected to honour
// its deadline; the completion is posted whether fn succeeded, failed or was
// cancelled.
func Go[T any](ctx context.Context, b *Bridge, source string, fn func(context.Context) (T, error), done func(T, error) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		result, err := fn(ctx)
		b.Post(Request{
			Source: source,
			Label:  "done",
			Run: func() error {
				if done == nil {
					return nil
				}
				return done(result, err)
			},
		})
	}()
	return t
}

// Watch polls fetch immediately and then every interval until ctx ends or
// the task is stopped, posting deliver(result, err) for each poll. Results
// from one watcher reach the loop in the order they were fetched.
func Watch[T any](ctx context.Context, b *Bridge, source string, interval time.Duration, fetch func(context.Context) (T, error), deliver func(T, error) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel}
	gap := newThrottle(minWatchGap)

	emit := func() bool {
		if !gap.wait(ctx) {
			return false
		}
		result, err := fetch(ctx)
		if ctx.Err() != nil {
			return false
		}
		b.Post(Request{
			Source: source,
			Label:  "poll",
			Run: func() error {
				if deliver == nil {
					return nil
				}
				return deliver(result, err)
			},
		})
		return true
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if !emit() {
			return
		}
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return t
}
