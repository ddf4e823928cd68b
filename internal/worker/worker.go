package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// Job is a unit of background work. Jobs sharing a Key run in submission
// order and keys are served round-robin.
type Job struct {
	Key  string
	Name string
	Run  func(ctx context.Context) error
	// Done, when set, receives the result of Run.
	Done func(err error)

	stop bool
}

func (job Job) finish(err error) {
	if job.Done != nil {
		job.Done(err)
	}
}

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
			job := <-w.jobChannel
			if job.stop {
				debugLog("worker stopped", "worker", w.id)
				w.pool.retire(w.jobChannel)
				return
			}
			w.exec(job)
		}
	}()
}

func (w *Worker) exec(job Job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
			slog.Error("background job panicked", "job", job.Name, "key", job.Key, "panic", r)
		}
		job.finish(err)
	}()
	err = job.Run(w.pool.ctx)
	if err != nil {
		debugLog("job failed", "job", job.Name, "key", job.Key, "worker", w.id, "error", err)
	}
}
