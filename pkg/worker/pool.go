// Package worker provides an asynchronous worker pool for recording finished
// sessions: each job is saved with the configured storage.Driver and then
// announced on the configured eventstream.Publisher.
//
// The pool keeps storage and publishing off the interactive path, so a slow
// database or broker never stalls a streaming reply.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/docweave/weave/pkg/eventstream"
	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *storage.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for session records.
	Driver storage.Driver

	// Publisher announces stored sessions. Optional.
	Publisher eventstream.Publisher

	// Backend is reported as the event source.
	Backend string

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// JobTimeout bounds the storage and publish calls of one job.
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes record jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
	source eventstream.EventSource

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	host, _ := os.Hostname()
	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		source: eventstream.EventSource{Host: host, Backend: c.Backend},
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Record snapshots s and enqueues it. The snapshot is taken immediately, so
// the session may keep changing after Record returns.
func (p *Pool) Record(s session.Recordable) bool {
	rec, err := storage.NewRecord(s)
	if err != nil {
		p.logger.Error("session not recorded", "error", err)
		return false
	}
	return p.Enqueue(Job{Record: rec})
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.Record.ID,
			"kind", job.Record.Kind,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session_id", job.Record.ID,
			"kind", job.Record.Kind,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain. It
// must not be called concurrently with Enqueue.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the record and, when a publisher is configured, emits a
// completed event for it. A failed save skips the event.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	if err := p.config.Driver.Save(ctx, job.Record); err != nil {
		p.logger.Error("session storage failed",
			"session_id", job.Record.ID,
			"error", err,
		)
		return
	}

	p.logger.Info("session stored",
		"session_id", job.Record.ID,
		"kind", job.Record.Kind,
		"state", job.Record.State,
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewSessionEvent(p.source, job.Record.Summary)
	if err := p.config.Publisher.PublishSession(ctx, event); err != nil {
		p.logger.Warn("session event not published",
			"session_id", job.Record.ID,
			"error", err,
		)
	}
}
