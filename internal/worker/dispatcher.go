// Package worker bounds how many replies are generated at once and shares the
// workers fairly between sessions.
package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrDispatcherBusy is returned when the pending job queue is full.
	ErrDispatcherBusy = errors.New("dispatcher queue is full")
	// ErrDispatcherClosed is returned for jobs submitted or pending at Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

const DefaultQueueSize = 64

// Config sizes the worker pool.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher runs jobs on a bounded pool, taking one job per session in turn.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	logger   zerolog.Logger

	mu        sync.Mutex
	queues    map[int64]*sessionQueue // job queue for each session
	ready     *list.List              // round-robin queue of session IDs
	positions map[int64]*list.Element

	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout),
		JobQueue:  make(chan Job, cfg.QueueSize),
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		queues:    make(map[int64]*sessionQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		quit:      make(chan struct{}),
	}
	d.pool.warmUp()

	go d.run()
	return d
}

// Do runs fn on a worker and waits for it. It fails fast with ErrDispatcherBusy
// when the queue is full and returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Do(ctx context.Context, sessionID int64, fn func(ctx context.Context)) error {
	select {
	case <-d.quit:
		return ErrDispatcherClosed
	default:
	}
	job := Job{Type: Run, SessionID: sessionID, ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case d.JobQueue <- job:
	default:
		return ErrDispatcherBusy
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and fails the ones still pending.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the session in the front of the queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.failQueued()
				return
			}
			continue
		}
		// if we have a new job, enqueue it and its session
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.SessionID

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[sessionID] = d.ready.PushBack(sessionID)
}

// nextJob pops the oldest job of the session at the front of the queue and
// moves that session to the back.
func (d *Dispatcher) nextJob() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	sessionID := elem.Value.(int64)
	q := d.queues[sessionID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// last job of the session, it leaves the queue
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
		delete(d.queues, sessionID)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}

func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.nextJob()
	if !ok {
		return false
	}
	workerChan, ok := d.pool.acquire()
	if !ok {
		job.done <- ErrDispatcherClosed
		return true
	}
	d.logger.Debug().Int64("session_id", job.SessionID).Msg("job assigned to worker")
	workerChan <- job
	return true
}

func (d *Dispatcher) failQueued() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for sessionID, q := range d.queues {
		for _, job := range q.jobs {
			job.done <- ErrDispatcherClosed
		}
		delete(d.queues, sessionID)
	}
	d.ready.Init()
	d.positions = make(map[int64]*list.Element)
	for {
		select {
		case job := <-d.JobQueue:
			job.done <- ErrDispatcherClosed
		default:
			return
		}
	}
}
