package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gate blocks jobs until released and tracks concurrency.
type gate struct {
	release chan struct{}
	started chan string

	mu      sync.Mutex
	current int
	peak    int
}

func newGate(buffer int) *gate {
	return &gate{
		release: make(chan struct{}),
		started: make(chan string, buffer),
	}
}

func (g *gate) job(name string, err error) Job {
	return Job{
		Name: name,
		Run: func(ctx context.Context) error {
			g.mu.Lock()
			g.current++
			if g.current > g.peak {
				g.peak = g.current
			}
			g.mu.Unlock()

			g.started <- name

			select {
			case <-g.release:
			case <-ctx.Done():
				return ctx.Err()
			}

			g.mu.Lock()
			g.current--
			g.mu.Unlock()
			return err
		},
	}
}

func (g *gate) peakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

// TestQueue_EagerAdmission checks that exactly ceiling jobs start at once.
func TestQueue_EagerAdmission(t *testing.T) {
	g := newGate(5)
	q := New(Config{Ceiling: 3})
	for i := 0; i < 5; i++ {
		q.Append(g.job(fmt.Sprintf("job-%d", i), nil))
	}

	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		<-g.started
	}
	if got := q.InFlight(); got != 3 {
		t.Errorf("InFlight() = %d, want 3", got)
	}
	if got := q.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	close(g.release)
	waitIdle(t, q)

	if got := q.MaxInFlight(); got != 3 {
		t.Errorf("MaxInFlight() = %d, want 3", got)
	}
	if stats := q.Stats(); stats != (Stats{Total: 5, Completed: 5}) {
		t.Errorf("Stats() = %+v, want {5 5 0}", stats)
	}
}

// TestQueue_CeilingInvariant runs many short jobs and checks the peak.
func TestQueue_CeilingInvariant(t *testing.T) {
	var current, peak int32
	q := New(Config{Ceiling: 2})
	for i := 0; i < 10; i++ {
		q.Append(Job{
			Name: fmt.Sprintf("page-%d", i),
			Run: func(ctx context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			},
		})
	}

	q.Start(context.Background())
	waitIdle(t, q)

	if stats := q.Stats(); stats != (Stats{Total: 10, Completed: 10, Failed: 0}) {
		t.Errorf("Stats() = %+v, want {10 10 0}", stats)
	}
	if got := q.MaxInFlight(); got != 2 {
		t.Errorf("MaxInFlight() = %d, want 2", got)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("observed concurrency = %d, exceeds ceiling 2", got)
	}
}

// TestQueue_FailureIsolation checks that failures and panics don't stop the batch.
func TestQueue_FailureIsolation(t *testing.T) {
	q := New(Config{Ceiling: 2})
	var ran int32
	for i := 0; i < 6; i++ {
		i := i
		q.Append(Job{
			Name: fmt.Sprintf("job-%d", i),
			Run: func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				switch i {
				case 1:
					return errors.New("backend said no")
				case 4:
					panic("boom")
				}
				return nil
			},
		})
	}

	q.Start(context.Background())
	waitIdle(t, q)

	stats := q.Stats()
	if stats.Completed != 4 || stats.Failed != 2 {
		t.Errorf("Stats() = %+v, want 4 completed 2 failed", stats)
	}
	if stats.Completed+stats.Failed != stats.Total {
		t.Errorf("Completed+Failed = %d, want Total %d", stats.Completed+stats.Failed, stats.Total)
	}
	if atomic.LoadInt32(&ran) != 6 {
		t.Errorf("ran = %d, want 6", ran)
	}
}

// TestQueue_SerialFIFO checks ceiling 1 runs jobs one at a time in order.
func TestQueue_SerialFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	q := New(Config{Ceiling: 1})
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("job-%d", i)
		q.Append(Job{Name: name, Run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			return nil
		}})
	}

	q.Start(context.Background())
	waitIdle(t, q)

	for i, name := range order {
		if want := fmt.Sprintf("job-%d", i); name != want {
			t.Fatalf("order[%d] = %s, want %s (order=%v)", i, name, want, order)
		}
	}
	if q.MaxInFlight() != 1 {
		t.Errorf("MaxInFlight() = %d, want 1", q.MaxInFlight())
	}
}

func TestQueue_CeilingClamp(t *testing.T) {
	for _, c := range []int{0, -3} {
		if got := New(Config{Ceiling: c}).Ceiling(); got != 1 {
			t.Errorf("New(Ceiling: %d).Ceiling() = %d, want 1", c, got)
		}
	}
}

// TestQueue_Stop checks pending jobs are dropped but in-flight ones finish.
func TestQueue_Stop(t *testing.T) {
	g := newGate(5)
	q := New(Config{Ceiling: 2})
	for i := 0; i < 5; i++ {
		q.Append(g.job(fmt.Sprintf("job-%d", i), nil))
	}
	q.Start(context.Background())
	<-g.started
	<-g.started

	q.Stop()

	if q.Active() {
		t.Error("Active() = true after Stop")
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", q.Pending())
	}
	if q.InFlight() != 2 {
		t.Errorf("InFlight() = %d after Stop, want 2", q.InFlight())
	}

	close(g.release)
	waitIdle(t, q)

	stats := q.Stats()
	if stats.Total != 5 || stats.Completed != 2 || stats.Failed != 0 {
		t.Errorf("Stats() = %+v, want {5 2 0}", stats)
	}
	select {
	case name := <-g.started:
		t.Errorf("job %s started after Stop", name)
	default:
	}
}

// TestQueue_AppendWhileActive checks late appends are admitted and counted.
func TestQueue_AppendWhileActive(t *testing.T) {
	g := newGate(4)
	q := New(Config{Ceiling: 2})
	q.Append(g.job("a", nil))
	q.Start(context.Background())
	<-g.started

	q.Append(g.job("b", nil))
	<-g.started
	q.Append(g.job("c", nil))

	if q.InFlight() != 2 || q.Pending() != 1 {
		t.Errorf("InFlight=%d Pending=%d, want 2 and 1", q.InFlight(), q.Pending())
	}

	close(g.release)
	waitIdle(t, q)
	if stats := q.Stats(); stats != (Stats{Total: 3, Completed: 3}) {
		t.Errorf("Stats() = %+v, want {3 3 0}", stats)
	}
}

func TestQueue_AppendBeforeStartDoesNotRun(t *testing.T) {
	var ran int32
	q := New(Config{Ceiling: 2})
	q.Append(Job{Name: "x", Run: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}})

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("job ran before Start")
	}
	if q.Stats().Total != 1 {
		t.Errorf("Total = %d, want 1", q.Stats().Total)
	}
}

func TestQueue_WaitIdle(t *testing.T) {
	t.Run("empty queue is idle", func(t *testing.T) {
		q := New(Config{Ceiling: 1})
		if err := q.WaitIdle(context.Background()); err != nil {
			t.Errorf("WaitIdle() error = %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		g := newGate(1)
		defer close(g.release)
		q := New(Config{Ceiling: 1})
		q.Append(g.job("slow", nil))
		q.Start(context.Background())
		<-g.started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := q.WaitIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitIdle() error = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("start context cancellation fails in-flight jobs", func(t *testing.T) {
		g := newGate(3)
		q := New(Config{Ceiling: 3})
		for i := 0; i < 3; i++ {
			q.Append(g.job(fmt.Sprintf("job-%d", i), nil))
		}
		ctx, cancel := context.WithCancel(context.Background())
		q.Start(ctx)
		for i := 0; i < 3; i++ {
			<-g.started
		}
		cancel()
		waitIdle(t, q)

		if stats := q.Stats(); stats.Failed != 3 {
			t.Errorf("Stats() = %+v, want 3 failed", stats)
		}
	})
}

func TestQueue_StartResetsStats(t *testing.T) {
	q := New(Config{Ceiling: 2})
	q.Append(Job{Name: "a", Run: func(ctx context.Context) error { return errors.New("x") }})
	q.Start(context.Background())
	waitIdle(t, q)
	if q.Stats().Failed != 1 {
		t.Fatalf("Failed = %d, want 1", q.Stats().Failed)
	}

	q.Append(Job{Name: "b", Run: func(ctx context.Context) error { return nil }})
	waitIdle(t, q)

	q.Start(context.Background())
	if stats := q.Stats(); stats.Failed != 0 || stats.Total != 0 {
		t.Errorf("Stats() after restart = %+v, want zeroed", stats)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
}

func (o *recordingObserver) JobStarted(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, name)
}

func (o *recordingObserver) JobFinished(name string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]error)
	}
	o.finished[name] = err
}

func TestQueue_Observer(t *testing.T) {
	obs := &recordingObserver{}
	q := New(Config{Ceiling: 2, Observer: obs})
	q.Append(Job{Name: "ok", Run: func(ctx context.Context) error { return nil }})
	q.Append(Job{Name: "bad", Run: func(ctx context.Context) error { return errors.New("nope") }})
	q.Start(context.Background())
	waitIdle(t, q)

	waitFor(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.finished) == 2
	})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.started) != 2 {
		t.Errorf("started = %v, want 2 entries", obs.started)
	}
	if obs.finished["ok"] != nil {
		t.Errorf("ok finished with %v", obs.finished["ok"])
	}
	if obs.finished["bad"] == nil {
		t.Error("bad finished without error")
	}
}

func TestQueue_PeakWithGate(t *testing.T) {
	g := newGate(4)
	q := New(Config{Ceiling: 4})
	for i := 0; i < 4; i++ {
		q.Append(g.job(fmt.Sprintf("job-%d", i), nil))
	}
	q.Start(context.Background())
	for i := 0; i < 4; i++ {
		<-g.started
	}
	close(g.release)
	waitIdle(t, q)
	if g.peakConcurrency() != 4 {
		t.Errorf("peak = %d, want 4", g.peakConcurrency())
	}
}
