package worker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDispatcherBusy is returned when the job queue is full.
var ErrDispatcherBusy = errors.New("dispatcher busy")

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

// Dispatcher feeds queued jobs to a dynamically sized worker pool in FIFO order.
type Dispatcher struct {
	pool     *workerPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	logger   *slog.Logger

	mu      sync.RWMutex
	stopped bool
	quit    chan struct{}
	done    chan struct{}
}

func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		pool:     newWorkerPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, logger),
		JobQueue: make(chan Job, queueSize),
		logger:   logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Warm up workers so the first requests do not pay for spawning.
	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.warm()
	}

	go d.run()
	return d
}

// Submit enqueues a job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	if job.Type != Run {
		return errors.New("only run jobs can be submitted")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case job := <-d.JobQueue:
			if !d.dispatch(job) {
				return
			}
		case <-d.quit:
			return
		}
	}
}

// dispatch hands one job to an idle worker, waiting for one if necessary.
func (d *Dispatcher) dispatch(job Job) bool {
	workerChan := d.pool.checkout()
	if workerChan == nil {
		return false
	}
	debugLog(d.logger, "dispatcher assigned job", "job", job.Name)
	workerChan <- job
	return true
}

// Stop drains queued jobs, then stops the workers. Jobs already running finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	for {
		select {
		case job := <-d.JobQueue:
			if !d.dispatch(job) {
				d.finish()
				return
			}
		default:
			d.finish()
			return
		}
	}
}

func (d *Dispatcher) finish() {
	close(d.quit)
	<-d.done
	d.pool.shutdown()
}

// Stats reports the current worker count, idle workers and queued jobs.
func (d *Dispatcher) Stats() (running, idle, queued int) {
	running, idle = d.pool.counts()
	return running, idle, len(d.JobQueue)
}
