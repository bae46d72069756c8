package worker

import (
	"log/slog"
	"sync"
	"time"
)

const defaultWorkerIdle = 30 * time.Second

// slot is the pool's bookkeeping for one worker goroutine.
type slot struct {
	id        int
	jobs      chan Job
	idleSince time.Time
	parked    bool // waiting in the parked queue
	retired   bool // told to stop or already gone
}

// workerPool grows between minSize and maxSize workers. Idle workers are
// parked in FIFO order; those idle longer than idleTTL are reaped down to minSize.
type workerPool struct {
	mu      sync.Mutex
	ready   *sync.Cond
	parked  []*slot
	slots   map[chan Job]*slot
	minSize int
	maxSize int
	live    int
	seq     int
	idleTTL time.Duration
	stopped bool
	done    chan struct{}
	logger  *slog.Logger
}

func newWorkerPool(minSize, maxSize int, idleTTL time.Duration, logger *slog.Logger) *workerPool {
	if idleTTL <= 0 {
		idleTTL = defaultWorkerIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxSize = max(maxSize, minSize, 1)
	p := &workerPool{
		slots:   make(map[chan Job]*slot),
		minSize: minSize,
		maxSize: maxSize,
		idleTTL: idleTTL,
		done:    make(chan struct{}),
		logger:  logger,
	}
	p.ready = sync.NewCond(&p.mu)
	go p.reapLoop()
	return p
}

// registerLocked creates a worker and its slot. The caller holds p.mu and
// starts the worker once the lock is released.
func (p *workerPool) registerLocked() (*Worker, *slot) {
	p.seq++
	w := NewWorker(p.seq, p, p.logger)
	s := &slot{id: p.seq, jobs: w.jobChannel}
	p.slots[s.jobs] = s
	p.live++
	return w, s
}

// warm starts one extra worker and parks it right away.
func (p *workerPool) warm() {
	p.mu.Lock()
	if p.stopped || p.live >= p.maxSize {
		p.mu.Unlock()
		return
	}
	w, s := p.registerLocked()
	p.parkLocked(s)
	p.mu.Unlock()
	w.Start()
}

// checkout returns the job channel of a worker ready for one job. It blocks
// while the pool is at capacity and returns nil once the pool is shut down.
func (p *workerPool) checkout() chan Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.stopped {
		if s := p.unparkLocked(); s != nil {
			return s.jobs
		}
		if p.live < p.maxSize {
			w, s := p.registerLocked()
			w.Start()
			return s.jobs
		}
		p.ready.Wait()
	}
	return nil
}

// checkin parks a worker after its job. It reports false when the pool is
// shutting down and the worker should exit.
func (p *workerPool) checkin(jobs chan Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if s, ok := p.slots[jobs]; ok && !s.retired && !s.parked {
		p.parkLocked(s)
		p.ready.Signal()
	}
	return true
}

func (p *workerPool) parkLocked(s *slot) {
	s.parked = true
	s.idleSince = time.Now()
	p.parked = append(p.parked, s)
}

// unparkLocked pops the longest-parked live worker.
func (p *workerPool) unparkLocked() *slot {
	for len(p.parked) > 0 {
		s := p.parked[0]
		p.parked[0] = nil
		p.parked = p.parked[1:]
		if !s.retired {
			s.parked = false
			return s
		}
	}
	return nil
}

// drop forgets a worker that has exited. Workers stopped by the pool were
// already forgotten, so this is a no-op for them.
func (p *workerPool) drop(jobs chan Job) {
	p.mu.Lock()
	if s, ok := p.slots[jobs]; ok {
		p.forgetLocked(s)
	}
	p.mu.Unlock()
	p.ready.Broadcast()
}

func (p *workerPool) forgetLocked(s *slot) {
	s.retired = true
	s.parked = false
	delete(p.slots, s.jobs)
	p.live--
}

func (p *workerPool) counts() (live, parked int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, len(p.parked)
}

func (p *workerPool) reapLoop() {
	ticker := time.NewTicker(p.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

// reapIdle stops parked workers idle for a full idleTTL while more than
// minSize are alive.
func (p *workerPool) reapIdle() {
	cutoff := time.Now().Add(-p.idleTTL)

	p.mu.Lock()
	surplus := p.live - p.minSize
	var victims []*slot
	kept := make([]*slot, 0, len(p.parked))
	for _, s := range p.parked {
		switch {
		case s.retired:
		case surplus > 0 && !s.idleSince.After(cutoff):
			p.forgetLocked(s)
			victims = append(victims, s)
			surplus--
		default:
			kept = append(kept, s)
		}
	}
	p.parked = kept
	p.mu.Unlock()

	for _, s := range victims {
		debugLog(p.logger, "retiring idle worker", "worker", s.id)
		s.jobs <- Job{Type: Stop}
	}
}

// shutdown stops parked workers and wakes callers blocked in checkout.
// Busy workers exit when they check back in.
func (p *workerPool) shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.done)
	victims := p.parked
	p.parked = nil
	for _, s := range victims {
		p.forgetLocked(s)
	}
	p.mu.Unlock()
	p.ready.Broadcast()

	for _, s := range victims {
		s.jobs <- Job{Type: Stop}
	}
}
