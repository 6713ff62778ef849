package executor

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/observability"
)

// Common executor errors.
var (
	ErrWaitTimeout = stderrors.New("executor: no slot available within max wait")
)

// DefaultMaxConcurrent is the capacity used when none is configured.
const DefaultMaxConcurrent = 20

// Config configures an executor.
type Config struct {
	// Name identifies this executor for metrics/logging.
	Name string
	// MaxConcurrent is the number of tasks that may run at once.
	MaxConcurrent int
	// MaxWait bounds how long a submitter waits for a slot. 0 waits until the context ends.
	MaxWait time.Duration
	// OnReject is called when a submitter gives up waiting.
	OnReject func(name string)
	// OnAcquire is called when a slot is taken.
	OnAcquire func(name string)
	// OnRelease is called when a slot is returned.
	OnRelease func(name string)
	// Metrics, when set, tracks busy slots.
	Metrics *observability.PipeMetrics
	// Logger reports rejected submissions. Defaults to a no-op logger.
	Logger *logger.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// Executor is a fixed-capacity pool of task slots.
// Slots are a channel semaphore; tasks run on their own goroutines.
type Executor struct {
	config Config
	sem    chan struct{}
}

// New creates an executor.
func New(config Config) *Executor {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	return &Executor{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting until one is free, MaxWait elapses or ctx ends.
func (e *Executor) Acquire(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		if e.config.OnReject != nil {
			e.config.OnReject(e.config.Name)
		}
		e.config.Logger.Warn("executor slot not acquired", logger.Fields(
			"executor", e.config.Name,
			logger.FieldError, err.Error(),
		))
		return err
	}
	if e.config.OnAcquire != nil {
		e.config.OnAcquire(e.config.Name)
	}
	e.config.Metrics.ExecutorAcquired(ctx, e.config.Name)
	return nil
}

func (e *Executor) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Try immediate acquire
	select {
	case e.sem <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if e.config.MaxWait > 0 {
		timer := time.NewTimer(e.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-timeout:
		return ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (e *Executor) Release() {
	<-e.sem
	if e.config.OnRelease != nil {
		e.config.OnRelease(e.config.Name)
	}
	e.config.Metrics.ExecutorReleased(context.Background(), e.config.Name)
}

// Execute runs fn on the calling goroutine while holding a slot.
func (e *Executor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.Acquire(ctx); err != nil {
		return err
	}
	defer e.Release()
	return fn(ctx)
}

// Available returns the number of free slots.
func (e *Executor) Available() int {
	return e.config.MaxConcurrent - len(e.sem)
}

// InUse returns the number of slots currently held.
func (e *Executor) InUse() int {
	return len(e.sem)
}

// MaxConcurrent returns the capacity.
func (e *Executor) MaxConcurrent() int {
	return e.config.MaxConcurrent
}

// Name returns the executor name.
func (e *Executor) Name() string {
	return e.config.Name
}

// Group is one phase of work submitted to an Executor. The first failing
// task cancels the context passed to every other task of the group.
type Group struct {
	exec *Executor
	eg   *errgroup.Group
	ctx  context.Context
}

// NewGroup starts a group whose tasks observe a context derived from ctx.
func (e *Executor) NewGroup(ctx context.Context) *Group {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{exec: e, eg: eg, ctx: gctx}
}

// Context returns the group context. It is cancelled when a task fails,
// when the parent ends, or once Wait returns.
func (g *Group) Context() context.Context { return g.ctx }

// Submit blocks until a slot is free, then runs fn on a new goroutine.
// The slot is returned after fn has returned. Submit fails without running
// fn if the group context ends first.
func (g *Group) Submit(fn func(ctx context.Context) error) error {
	if err := g.exec.Acquire(g.ctx); err != nil {
		return err
	}
	g.eg.Go(func() error {
		defer g.exec.Release()
		return fn(g.ctx)
	})
	return nil
}

// Wait blocks until every submitted task has returned and reports the
// first task error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
