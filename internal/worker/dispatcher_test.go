package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsEveryJob(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 3, QueueSize: 32}, nil)
	defer d.Stop()

	var (
		wg    sync.WaitGroup
		count atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := d.Submit(Job{Name: "count", Fn: func() {
			defer wg.Done()
			count.Add(1)
		}})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	waitTimeout(t, &wg, 5*time.Second)
	if got := count.Load(); got != 20 {
		t.Fatalf("expected 20 jobs to run, got %d", got)
	}
}

func TestDispatcherJobOrderSingleWorker(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)
	defer d.Stop()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		if err := d.Submit(Job{Fn: func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitTimeout(t, &wg, 5*time.Second)
	for i, v := range order {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", order)
		}
	}
}

func TestDispatcherBusyWhenQueueFull(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := d.Submit(Job{Fn: func() {
		close(started)
		<-release
	}}); err != nil {
		t.Fatalf("submit blocking job: %v", err)
	}
	<-started

	// The run loop holds one job while waiting for the busy worker, the queue holds another.
	var busy bool
	for i := 0; i < 3; i++ {
		if err := d.Submit(Job{Fn: func() {}}); err == ErrDispatcherBusy {
			busy = true
			break
		}
	}
	if !busy {
		t.Fatalf("expected ErrDispatcherBusy once the queue is full")
	}

	close(release)
	d.Stop()
	if err := d.Submit(Job{Fn: func() {}}); err != ErrDispatcherStopped {
		t.Fatalf("expected ErrDispatcherStopped after Stop, got %v", err)
	}
}

func TestDispatcherSurvivesPanickingJob(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)
	defer d.Stop()

	if err := d.Submit(Job{Name: "boom", Fn: func() { panic("boom") }}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done := make(chan struct{})
	if err := d.Submit(Job{Fn: func() { close(done) }}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not recover from panic")
	}
}

func TestPoolReapsIdleWorkersDownToMinimum(t *testing.T) {
	p := newWorkerPool(1, 3, time.Millisecond, nil)
	defer p.shutdown()
	p.warm()
	p.warm()
	p.warm()

	time.Sleep(20 * time.Millisecond)
	p.reapIdle()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if live, _ := p.counts(); live == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	live, _ := p.counts()
	t.Fatalf("expected pool to shrink to 1 worker, got %d", live)
}

func TestDispatcherStatsReportsWarmWorkers(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 2, MaxWorkers: 4, QueueSize: 4}, nil)
	defer d.Stop()

	running, idle, queued := d.Stats()
	if running != 2 || idle != 2 || queued != 0 {
		t.Fatalf("Stats() = %d, %d, %d; want 2, 2, 0", running, idle, queued)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out waiting for jobs")
	}
}
