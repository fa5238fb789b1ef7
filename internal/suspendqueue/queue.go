// Package suspendqueue throttles suspension work. Jobs pass a rate limiter
// and a concurrency semaphore, run through the coordinator, and a job the
// coordinator dispatched to a tab agent holds its slot until the agent
// reports back, the placeholder loads, or the job times out.
package suspendqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"pkt.systems/pslog"
	"pkt.systems/tabnap/internal/logx"
	"pkt.systems/tabnap/schema"
)

// Processor runs one suspension.
type Processor interface {
	ProcessSuspension(ctx context.Context, tabID schema.TabID, forceLevel int) (schema.SuspendOutcome, error)
}

// Driver moves tabs directly when the agent cannot.
type Driver interface {
	NavigateTab(ctx context.Context, id schema.TabID, url string) error
	DiscardTab(ctx context.Context, id schema.TabID) error
}

// Options configures a Queue.
type Options struct {
	Concurrency   int
	RatePerSecond float64
	Burst         int
	JobTimeout    time.Duration
	Logger        pslog.Logger
}

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobDispatched
)

type job struct {
	tabID      schema.TabID
	forceLevel int
	state      jobState
	cancel     context.CancelFunc
	done       chan struct{}
	doneOnce   sync.Once
}

func (j *job) finish() {
	j.doneOnce.Do(func() { close(j.done) })
}

// Stats reports queue occupancy.
type Stats struct {
	Queued     int `json:"queued"`
	Running    int `json:"running"`
	Dispatched int `json:"dispatched"`
}

// Queue implements the coordinator suspend queue.
type Queue struct {
	driver  Driver
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	timeout time.Duration
	log     pslog.Logger

	root   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	procMu sync.RWMutex
	proc   Processor

	mu   sync.Mutex
	jobs map[schema.TabID]*job
}

// New constructs a queue. SetProcessor must be called before jobs run.
func New(driver Driver, opts Options) (*Queue, error) {
	if driver == nil {
		return nil, errors.New("suspend queue driver is required")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	root, stop := context.WithCancel(pslog.ContextWithLogger(context.Background(), logger))
	return &Queue{
		driver:  driver,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		timeout: opts.JobTimeout,
		log:     logger,
		root:    root,
		stop:    stop,
		jobs:    make(map[schema.TabID]*job),
	}, nil
}

// SetProcessor wires the coordinator.
func (q *Queue) SetProcessor(p Processor) {
	q.procMu.Lock()
	q.proc = p
	q.procMu.Unlock()
}

// Queue schedules a suspension. A tab already queued keeps one job with the
// lowest force level requested.
func (q *Queue) Queue(ctx context.Context, tab schema.Tab, forceLevel int) {
	q.mu.Lock()
	if existing, ok := q.jobs[tab.ID]; ok {
		if existing.state == jobQueued && forceLevel < existing.forceLevel {
			existing.forceLevel = forceLevel
		}
		q.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(q.root)
	jobCtx = pslog.ContextWithLogger(jobCtx, pslog.Ctx(ctx))
	jobCtx = logx.ContextWithTab(logx.CopyContextFields(jobCtx, ctx), tab.ID)
	j := &job{tabID: tab.ID, forceLevel: forceLevel, cancel: cancel, done: make(chan struct{})}
	q.jobs[tab.ID] = j
	q.wg.Add(1)
	q.mu.Unlock()

	logx.WithTab(ctx, tab.ID).Trace("suspend queue job added", "force_level", forceLevel)
	go q.run(jobCtx, j)
}

// Unqueue cancels the tab's job unless the coordinator is processing it.
func (q *Queue) Unqueue(ctx context.Context, tab schema.Tab) {
	q.mu.Lock()
	j, ok := q.jobs[tab.ID]
	running := ok && j.state == jobRunning
	q.mu.Unlock()
	if !ok || running {
		return
	}
	j.cancel()
	j.finish()
	logx.WithTab(ctx, tab.ID).Trace("suspend queue job cancelled")
}

// Execute completes a dispatched job once the agent reported its preview.
func (q *Queue) Execute(ctx context.Context, tab schema.Tab) {
	q.complete(ctx, tab.ID, "suspend queue job executed")
}

// MarkSuspended completes the job of a tab whose placeholder loaded.
func (q *Queue) MarkSuspended(ctx context.Context, tab schema.Tab) {
	q.complete(ctx, tab.ID, "suspend queue job marked suspended")
}

func (q *Queue) complete(ctx context.Context, tabID schema.TabID, msg string) {
	q.mu.Lock()
	j, ok := q.jobs[tabID]
	q.mu.Unlock()
	if !ok {
		return
	}
	j.finish()
	logx.WithTab(ctx, tabID).Trace(msg)
}

// ForceSuspend navigates the tab straight to its placeholder url.
func (q *Queue) ForceSuspend(ctx context.Context, tab schema.Tab, suspendedURL string) {
	log := logx.WithTab(ctx, tab.ID)
	if err := q.driver.NavigateTab(ctx, tab.ID, suspendedURL); err != nil {
		log.Warn("suspend queue force suspend failed", "err", err)
		return
	}
	log.Debug("suspend queue force suspended")
}

// ForceDiscard discards the tab.
func (q *Queue) ForceDiscard(ctx context.Context, tab schema.Tab) {
	log := logx.WithTab(ctx, tab.ID)
	if err := q.driver.DiscardTab(ctx, tab.ID); err != nil {
		log.Warn("suspend queue discard failed", "err", err)
		return
	}
	log.Debug("suspend queue discarded")
}

// Stats returns current occupancy.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, j := range q.jobs {
		switch j.state {
		case jobQueued:
			s.Queued++
		case jobRunning:
			s.Running++
		case jobDispatched:
			s.Dispatched++
		}
	}
	return s
}

// Close cancels every job and waits for workers to exit.
func (q *Queue) Close() {
	q.stop()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, j *job) {
	defer q.wg.Done()
	defer q.remove(j)
	log := pslog.Ctx(ctx)

	if err := q.limiter.Wait(ctx); err != nil {
		return
	}
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer q.sem.Release(1)

	q.mu.Lock()
	if ctx.Err() != nil {
		q.mu.Unlock()
		return
	}
	j.state = jobRunning
	forceLevel := j.forceLevel
	q.mu.Unlock()

	q.procMu.RLock()
	proc := q.proc
	q.procMu.RUnlock()
	if proc == nil {
		log.Warn("suspend queue has no processor")
		return
	}
	outcome, err := proc.ProcessSuspension(ctx, j.tabID, forceLevel)
	if err != nil {
		log.Debug("suspend queue job failed", "err", err)
		return
	}
	if outcome != schema.SuspendDispatched {
		log.Trace("suspend queue job done", "outcome", outcome)
		return
	}

	q.mu.Lock()
	j.state = jobDispatched
	q.mu.Unlock()
	timer := time.NewTimer(q.timeout)
	defer timer.Stop()
	select {
	case <-j.done:
		log.Trace("suspend queue job done", "outcome", outcome)
	case <-timer.C:
		log.Debug("suspend queue job timed out", "timeout", q.timeout)
	case <-ctx.Done():
	}
}

func (q *Queue) remove(j *job) {
	j.cancel()
	q.mu.Lock()
	if current, ok := q.jobs[j.tabID]; ok && current == j {
		delete(q.jobs, j.tabID)
	}
	q.mu.Unlock()
}
