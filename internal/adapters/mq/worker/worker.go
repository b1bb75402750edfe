package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/okian/courtside/internal/adapters/mq/queue"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultLanes          = 8
	defaultQueueSize      = 1024
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// ErrStopped is returned by Submit once the pool is shutting down.
var ErrStopped = errors.New("write lanes stopped")

// Queue defines how workers receive commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker drains one lane.
type Worker interface {
	// Run processes commands until the queue is closed and drained or ctx ends.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker applies the commands of one lane, one at a time.
type InMemoryWorker struct {
	queue Queue
	name  string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue: q,
		name:  "worker",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop. It ends once the queue is closed and drained;
// cancelling ctx does not abandon queued commands.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for c := range w.queue.Dequeue(ctx) {
		w.process(c)
	}
}

// Shutdown waits for the worker to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process applies c unless its caller already gave up.
func (w *InMemoryWorker) process(c queue.Command) { //nolint:gocritic // hugeParam: Command is passed by value over the channel
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		c.Reply <- queue.Result{Err: err}
		return
	}

	start := time.Now()
	v, err := c.Apply(ctx)
	metrics.RecordLaneApply(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		w.logger.Debug(ctx, "write failed",
			logger.String("op", c.Op),
			logger.String("user_id", c.UserID),
			logger.Error(err),
		)
	}
	c.Reply <- queue.Result{Value: v, Err: err}
}

// Pool owns N lanes. A user's commands always go to the same lane, so they
// run in submission order and never concurrently.
type Pool struct {
	lanes     int
	queueSize int

	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker

	mu      sync.RWMutex
	started bool
	stopped bool
	stopCh  chan struct{}

	logger logger.Logger
}

// NewPool creates a pool with configuration options.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		lanes:     defaultLanes,
		queueSize: defaultQueueSize,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("write-lanes")
	}

	p.queues = make([]*queue.InMemoryQueue, p.lanes)
	p.workers = make([]*InMemoryWorker, p.lanes)
	for i := 0; i < p.lanes; i++ {
		name := "lane-" + strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.queueSize), queue.WithName(name))
		p.workers[i] = NewInMemoryWorker(p.queues[i], WithName(name), WithLogger(p.logger.Named(name)))
	}
	metrics.UpdateLaneCount(p.lanes)
	return p
}

// Lanes returns the number of lanes.
func (p *Pool) Lanes() int { return p.lanes }

// Start runs every lane's worker.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
	p.logger.Info(ctx, "write lanes started", logger.Int("lanes", p.lanes), logger.Int("queue_size", p.queueSize))
}

// LaneFor returns the lane index that owns userID.
func (p *Pool) LaneFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(p.lanes))
}

// Submit runs apply on the user's lane and waits for its result.
func (p *Pool) Submit(ctx context.Context, userID, op string, apply func(ctx context.Context) (any, error)) (any, error) {
	p.mu.RLock()
	if p.stopped || !p.started {
		p.mu.RUnlock()
		metrics.RecordLaneRejected()
		return nil, ErrStopped
	}
	c := queue.NewCommand(ctx, userID, op, apply)
	err := p.queues[p.LaneFor(userID)].Enqueue(ctx, c)
	p.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	select {
	case r := <-c.Reply:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth returns the number of queued commands across lanes.
func (p *Pool) Depth(ctx context.Context) int {
	total := 0
	for _, q := range p.queues {
		total += q.Len(ctx)
	}
	return total
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Depth(ctx)
		}
	}
}

// Shutdown stops accepting commands, lets every lane drain and waits for the
// workers up to poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	for _, q := range p.queues {
		_ = q.Close()
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "lane shutdown timed out", logger.Int("lane", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
