package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
)

func TestDrainRunsInSubmissionOrder(t *testing.T) {
	b := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		b.PostFunc("test", func() { got = append(got, i) })
	}
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d", b.Pending())
	}
}

func TestItemsPostedDuringDrainWaitForNextPass(t *testing.T) {
	b := New()
	var got []string
	b.PostFunc("outer", func() {
		got = append(got, "first")
		b.PostFunc("inner", func() { got = append(got, "nested") })
	})
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"first"}, got); diff != "" {
		t.Fatalf("expected nested item to be deferred (-want +got):\n%s", diff)
	}
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "nested"}, got); diff != "" {
		t.Fatalf("expected nested item on second pass (-want +got):\n%s", diff)
	}
}

func TestConcurrentSourcesKeepPerSourceOrder(t *testing.T) {
	b := New()
	const sources, perSource = 4, 200
	seen := make(map[string][]int)
	var g errgroup.Group
	for s := 0; s < sources; s++ {
		name := fmt.Sprintf("src-%d", s)
		g.Go(func() error {
			for i := 0; i < perSource; i++ {
				i := i
				b.PostFunc(name, func() { seen[name] = append(seen[name], i) })
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	total := func() int {
		n := 0
		for _, v := range seen {
			n += len(v)
		}
		return n
	}
	deadline := time.After(5 * time.Second)
	for finished := false; !finished || b.Pending() > 0; {
		select {
		case <-done:
			finished = true
		case <-b.Wake():
		case <-deadline:
			t.Fatalf("timed out with %d items run", total())
		}
		if err := b.DrainOnce(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if total() != sources*perSource {
		t.Fatalf("expected %d items, got %d", sources*perSource, total())
	}
	for name, values := range seen {
		for i, v := range values {
			if v != i {
				t.Fatalf("source %s ran item %d at position %d", name, v, i)
			}
		}
	}
}

func TestFailingItemStopsPassAndRequeuesRest(t *testing.T) {
	b := New()
	boom := errors.New("boom")
	var got []string
	b.PostFunc("a", func() { got = append(got, "a") })
	b.Post(Request{Source: "b", Label: "explode", Run: func() error {
		got = append(got, "b")
		return boom
	}})
	b.PostFunc("c", func() { got = append(got, "c") })

	err := b.DrainOnce()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Fatalf("unexpected run order (-want +got):\n%s", diff)
	}
	if b.Pending() != 1 {
		t.Fatalf("expected the remaining item to be requeued, got %d", b.Pending())
	}
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("expected each item exactly once (-want +got):\n%s", diff)
	}
}

func TestNestedDrainKeepsSubmissionOrder(t *testing.T) {
	b := New()
	var got []int
	b.PostFunc("w", func() {
		got = append(got, 1)
		b.PostFunc("w", func() { got = append(got, 3) })
		// a nested run loop drains while this item is still executing
		if err := b.DrainOnce(); err != nil {
			t.Errorf("nested drain: %v", err)
		}
	})
	b.PostFunc("w", func() { got = append(got, 2) })

	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d", b.Pending())
	}
}

func TestPanickingItemLeavesRestQueued(t *testing.T) {
	b := New()
	var got []string
	b.PostFunc("a", func() { panic("boom") })
	b.PostFunc("b", func() { got = append(got, "b") })
	b.PostFunc("c", func() { got = append(got, "c") })

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected the panic to propagate, got %v", r)
			}
		}()
		_ = b.DrainOnce()
	}()
	if b.Pending() != 2 {
		t.Fatalf("expected 2 items still queued, got %d", b.Pending())
	}
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, got); diff != "" {
		t.Fatalf("unexpected run order (-want +got):\n%s", diff)
	}
}

func TestPostSignalsWake(t *testing.T) {
	b := New()
	b.PostFunc("x", func() {})
	b.PostFunc("x", func() {})
	select {
	case <-b.Wake():
	default:
		t.Fatalf("expected a wake signal after posting")
	}
	select {
	case <-b.Wake():
		t.Fatalf("expected wake signals to coalesce")
	default:
	}
}

func TestCloseDiscardsQueuedAndLaterItems(t *testing.T) {
	b := New()
	ran := false
	b.PostFunc("x", func() { ran = true })
	b.PostFunc("x", func() { ran = true })
	if n := b.Close(); n != 2 {
		t.Fatalf("expected 2 discarded, got %d", n)
	}
	b.PostFunc("x", func() { ran = true })
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatalf("expected discarded items not to run")
	}
	if !b.Closed() || b.Close() != 0 {
		t.Fatalf("expected Close to be idempotent")
	}
}

func TestGoPostsCompletionThroughBridge(t *testing.T) {
	b := New()
	var mu sync.Mutex
	ranOnLoop := false
	task := Go(context.Background(), b, "fetch", func(ctx context.Context) (int, error) {
		return 42, nil
	}, func(v int, err error) error {
		mu.Lock()
		defer mu.Unlock()
		ranOnLoop = v == 42 && err == nil
		return nil
	})
	task.Wait()

	mu.Lock()
	early := ranOnLoop
	mu.Unlock()
	if early {
		t.Fatalf("expected completion to wait for a drain")
	}
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ranOnLoop {
		t.Fatalf("expected completion to run during the drain")
	}
}

func TestGoReportsTimeout(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	var got error
	task := Go(ctx, b, "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, func(_ string, err error) error {
		got = err
		return nil
	})
	task.Wait()
	if err := b.DrainOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", got)
	}
}

func TestWatchDeliversInFetchOrder(t *testing.T) {
	b := New()
	var mu sync.Mutex
	n := 0
	var got []int
	task := Watch(context.Background(), b, "clock", 5*time.Millisecond, func(ctx context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return n, nil
	}, func(v int, err error) error {
		got = append(got, v)
		return err
	})

	deadline := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case <-b.Wake():
		case <-deadline:
			t.Fatalf("timed out waiting for polls, got %v", got)
		}
		if err := b.DrainOnce(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	task.Stop()
	task.Wait()
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("expected deliveries in fetch order, got %v", got)
		}
	}
}
