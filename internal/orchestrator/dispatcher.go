package orchestrator

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/auto-reply/internal/logging"
)

var (
	// ErrQueueFull is returned when the worker owning a key has no room.
	ErrQueueFull = errors.New("dispatcher queue full")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("dispatcher stopped")
)

// Job is one unit of background work. It runs with its own context.
type Job func(ctx context.Context)

type task struct {
	key string
	job Job
}

// Dispatcher runs jobs on a fixed set of workers. Jobs sharing a key always
// land on the same worker, so they run one at a time in submission order;
// jobs with different keys run in parallel.
type Dispatcher struct {
	queues  []chan task
	timeout time.Duration
	log     *logrus.Entry

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	base    context.Context
	cancel  context.CancelFunc
}

// NewDispatcher starts workers goroutines with a queue of queueSize each.
// A positive timeout bounds every job.
func NewDispatcher(workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queues:  make([]chan task, workers),
		timeout: timeout,
		log:     logging.WithComponent("dispatcher"),
		base:    base,
		cancel:  cancel,
	}
	for i := range d.queues {
		d.queues[i] = make(chan task, queueSize)
		d.wg.Add(1)
		go d.work(d.queues[i])
	}
	return d
}

func (d *Dispatcher) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Submit queues job under key without blocking.
func (d *Dispatcher) Submit(key string, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queues[d.shard(key)] <- task{key: key, job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) work(queue <-chan task) {
	defer d.wg.Done()
	for t := range queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("key", t.key).Errorf("job panicked: %v", r)
		}
	}()
	t.job(ctx)
}

// Stop refuses new jobs and waits for queued ones to finish. When ctx ends
// first, running jobs are cancelled and Stop returns ctx.Err().
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
