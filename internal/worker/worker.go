package worker

import (
	"fmt"
	"log/slog"
)

// JobType distinguishes real work from control messages sent to a worker.
type JobType int

const (
	Run JobType = iota
	Stop
)

// Job is one unit of work. Fn runs on a pool goroutine; callers that need a
// result capture their own channel in the closure.
type Job struct {
	Type JobType
	Name string
	Fn   func()
}

type Worker struct {
	id         int
	pool       *workerPool
	jobChannel chan Job
	logger     *slog.Logger
}

func NewWorker(id int, pool *workerPool, logger *slog.Logger) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
		logger:     logger,
	}
}

func (w *Worker) Start() {
	go func() {
		defer w.pool.drop(w.jobChannel)
		for job := range w.jobChannel {
			if job.Type == Stop {
				return
			}
			w.execute(job)
			if !w.pool.checkin(w.jobChannel) {
				return
			}
		}
	}()
}

// execute keeps a panicking job from taking the worker goroutine down with it.
func (w *Worker) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker job panicked", "worker", w.id, "job", job.Name, "panic", fmt.Sprint(r))
		}
	}()
	debugLog(w.logger, "worker picked job", "worker", w.id, "job", job.Name)
	if job.Fn != nil {
		job.Fn()
	}
}
