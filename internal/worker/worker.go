package worker

import "context"

type JobType int

const (
	Run JobType = iota
	Stop
)

// Job is one unit of work bound to a session.
type Job struct {
	Type      JobType
	SessionID int64
	ctx       context.Context
	fn        func(ctx context.Context)
	done      chan error
}

type Worker struct {
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool) *Worker {
	return &Worker{
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

// Start runs jobs until the worker receives Stop or the pool refuses it back.
func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.execute(job)
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}

func (w *Worker) execute(job Job) {
	// the caller stopped waiting while the job was queued
	if err := job.ctx.Err(); err != nil {
		job.done <- err
		return
	}
	job.fn(job.ctx)
	job.done <- nil
}
