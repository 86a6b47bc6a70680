package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrPoolClosed is returned when submitting to a pool that has been stopped.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job is a unit of work executed by the pool.
type Job func(ctx context.Context) error

type keyedJob struct {
	key string
	run Job
}

// Config holds configuration options for the pool.
type Config struct {
	// WorkerCount is the number of partitions, each served by one goroutine.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// QueueSize is the buffer of each partition. Submit blocks while the
	// partition for its key is full.
	QueueSize int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   64,
	}
}

// KeyedPool hashes each job's key onto one of WorkerCount partitions. A
// partition is served by a single goroutine, so jobs for one key never run
// concurrently and always run in the order they were submitted.
type KeyedPool struct {
	queues []chan keyedJob
	wg     sync.WaitGroup

	// mu guards closed against concurrent Submit and Stop.
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// errorHandler is called when a job returns an error.
	// If nil, errors are only logged.
	errorHandler func(key string, err error)
}

// NewKeyedPool creates a pool. Call Start before submitting work.
func NewKeyedPool(config Config, logger *slog.Logger) *KeyedPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	queueSize := config.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}

	queues := make([]chan keyedJob, workerCount)
	for i := range queues {
		queues[i] = make(chan keyedJob, queueSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KeyedPool{
		queues: queues,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "keyed_worker_pool"),
	}
}

// SetErrorHandler sets a handler for job failures. It must be called before Start.
func (p *KeyedPool) SetErrorHandler(handler func(key string, err error)) {
	p.errorHandler = handler
}

// Start launches one goroutine per partition.
func (p *KeyedPool) Start() {
	for i, q := range p.queues {
		p.wg.Add(1)
		go p.worker(i, q)
	}
	p.logger.Info("worker pool started", "worker_count", len(p.queues))
}

// Partition returns the partition index key maps to.
func (p *KeyedPool) Partition(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.queues)))
}

// Submit queues job under key. It blocks while the key's partition is full
// and returns ctx.Err() if ctx ends first.
func (p *KeyedPool) Submit(ctx context.Context, key string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queues[p.Partition(key)] <- keyedJob{key: key, run: job}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Pending returns the number of queued jobs across all partitions.
func (p *KeyedPool) Pending() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// Stop refuses new work and waits for queued jobs to drain. If ctx ends
// first, the context passed to running jobs is cancelled and Stop waits for
// the workers to exit.
func (p *KeyedPool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("drain deadline reached, cancelling in-flight jobs", "pending", p.Pending())
		p.cancel()
		<-done
	}
	p.cancel()
	p.logger.Info("worker pool stopped")
}

func (p *KeyedPool) worker(id int, queue <-chan keyedJob) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	for job := range queue {
		if p.ctx.Err() != nil {
			continue
		}
		if err := job.run(p.ctx); err != nil {
			p.logger.Error("job failed", "worker_id", id, "key", job.key, "error", err)
			if p.errorHandler != nil {
				p.errorHandler(job.key, err)
			}
		}
	}
	p.logger.Debug("queue closed, stopping worker", "worker_id", id)
}
