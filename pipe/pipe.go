package pipe

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/iterpipe/aggregator"
	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/executor"
	"github.com/kbukum/iterpipe/iterator"
	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/observability"
	"github.com/kbukum/iterpipe/scope"
	"github.com/kbukum/iterpipe/sender"
)

// DefaultName names a Pipe in logs, spans and metrics unless WithName is used.
const DefaultName = "iterating-pipe"

// Scope requesters used for deferred close.
const (
	itemRequester   = "iteratingPipeItem"
	resultRequester = "iteratingPipeResult"
)

// Pipe splits an input message into elements, dispatches them to a sender
// in blocks, sequentially or in parallel, and aggregates the results in
// element order. A Pipe holds no run state and may run concurrently.
type Pipe struct {
	name       string
	splitter   iterator.Splitter[*message.Message]
	dispatcher *sender.Dispatcher
	config     Config
	stop       func(result string) bool
	log        *logger.Logger
	metrics    *observability.PipeMetrics
	exec       *executor.Executor
	hook       func(from, to State)
}

// Option configures a Pipe.
type Option func(*Pipe)

// WithStopCondition ends the run successfully after the first result for
// which fn returns true. That result is the last aggregated entry.
func WithStopCondition(fn func(result string) bool) Option {
	return func(p *Pipe) { p.stop = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipe) { p.log = l }
}

// WithMetrics records item, block and error counts.
func WithMetrics(m *observability.PipeMetrics) Option {
	return func(p *Pipe) { p.metrics = m }
}

// WithExecutor shares exec for parallel dispatch. Its capacity replaces
// MaxChildThreads.
func WithExecutor(exec *executor.Executor) Option {
	return func(p *Pipe) { p.exec = exec }
}

// WithTransitionHook observes every state transition of every run.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(p *Pipe) { p.hook = fn }
}

// WithName names the pipe.
func WithName(name string) Option {
	return func(p *Pipe) { p.name = name }
}

// New creates a Pipe. It fails with a CONFIGURATION_ERROR when a
// collaborator is missing or the configuration is invalid.
func New(splitter iterator.Splitter[*message.Message], d *sender.Dispatcher, cfg Config, opts ...Option) (*Pipe, error) {
	if splitter == nil {
		return nil, errors.Configuration("splitter", "a splitter is required")
	}
	if !d.Valid() {
		return nil, errors.Configuration("sender", "a simple or block-enabled sender is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipe{
		name:       DefaultName,
		splitter:   splitter,
		dispatcher: d,
		config:     cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get(logger.ComponentPipe)
	}
	if p.exec == nil && cfg.Parallel {
		p.exec = executor.New(executor.Config{
			Name:          p.name,
			MaxConcurrent: cfg.MaxChildThreads,
			Metrics:       p.metrics,
			Logger:        p.log,
		})
	}
	return p, nil
}

// Name returns the pipe name.
func (p *Pipe) Name() string { return p.name }

// Config returns the effective configuration.
func (p *Pipe) Config() Config { return p.config }

// Run processes input. Element and result messages are scheduled for close
// on sc. On failure the returned Result is in state ERROR and carries the
// results that precede the failed item; the error names that item.
func (p *Pipe) Run(ctx context.Context, input *message.Message, sc *scope.Scope) (*Result, error) {
	if sc == nil {
		return nil, errors.Configuration("scope", "a scope is required")
	}

	r := &run{
		pipe:  p,
		id:    uuid.New().String(),
		sc:    sc,
		agg:   aggregator.New(p.config.aggregatorOptions()),
		state: StateInit,
	}
	ctx = logger.ContextWithRunID(ctx, r.id)
	rc := observability.NewRunContext(p.name, r.id, p.metrics)
	ctx, span := rc.StartRunSpan(ctx)
	r.log = p.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldSender, p.dispatcher.Name(),
	))

	res, err := r.execute(ctx, input)
	rc.EndRun(ctx, span, res.Forward, res.Count, err)

	fields := logger.MergeWithDuration(logger.Fields(
		logger.FieldState, res.State.String(),
		logger.FieldCount, res.Count,
	), rc.Duration())
	if err != nil {
		r.log.WithError(err).Warn("run failed", fields)
		return res, err
	}
	fields[logger.FieldForward] = res.Forward
	r.log.Info("run completed", fields)
	return res, nil
}

// run is the state of one invocation.
type run struct {
	pipe  *Pipe
	id    string
	sc    *scope.Scope
	agg   *aggregator.Aggregator
	log   *logger.Logger
	state State

	stopped bool

	mu      sync.Mutex
	cleanup []error
}

func (r *run) transition(to State) {
	from := r.state
	if from == to {
		return
	}
	r.state = to
	r.log.Debug("state transition", logger.Fields(logger.FieldState, to.String(), "from", from.String()))
	if r.pipe.hook != nil {
		r.pipe.hook(from, to)
	}
}

func (r *run) setItemNo(n int) {
	if key := r.pipe.config.ItemNoSessionKey; key != "" {
		r.sc.Set(key, n)
	}
}

func (r *run) execute(ctx context.Context, input *message.Message) (*Result, error) {
	r.transition(StateIterating)
	r.setItemNo(0)

	it, err := r.pipe.splitter.Iterate(ctx, input, r.sc)
	if err != nil {
		return r.fail(iterationError("cannot create iterator", err))
	}
	if it == nil {
		return r.finish(ForwardSuccess)
	}
	if r.pipe.config.RemoveDuplicates {
		it = iterator.Distinct(it, (*message.Message).AsText, r.dropDuplicate)
	}

	reader := iterator.NewBlockReader(it, r.pipe.config.BlockSize, r.pipe.config.MaxItems)
	err = r.dispatchAll(ctx, reader)
	if closeErr := reader.Close(); closeErr != nil {
		r.addCleanup(errors.Resource("iterator", closeErr))
	}
	if err = r.conclude(err); err != nil {
		return r.fail(err)
	}

	forward := ForwardSuccess
	switch {
	case r.stopped:
		forward = ForwardStopConditionMet
	case reader.Truncated():
		forward = ForwardMaxItemsReached
	}
	return r.finish(forward)
}

// dropDuplicate closes an element skipped by the duplicate filter.
func (r *run) dropDuplicate(m *message.Message) {
	if err := m.Close(); err != nil {
		r.addCleanup(errors.Resource("skipped element", err))
	}
}

func (r *run) finish(forward string) (*Result, error) {
	r.transition(StateAggregating)
	msg, err := r.agg.Render()
	if err != nil {
		return r.fail(err)
	}
	r.transition(StateDone)
	return &Result{
		Message: msg,
		Forward: forward,
		Count:   r.agg.Len(),
		State:   StateDone,
	}, nil
}

func (r *run) fail(err error) (*Result, error) {
	r.transition(StateError)
	partial := r.agg.Partial()
	return &Result{
		Count:   len(partial),
		State:   StateError,
		Partial: partial,
	}, err
}

func (r *run) addCleanup(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanup = append(r.cleanup, err)
}

// conclude attaches cleanup failures to primary. Without a primary error
// the first cleanup failure is reported.
func (r *run) conclude(primary error) error {
	r.mu.Lock()
	cleanup := r.cleanup
	r.mu.Unlock()
	if len(cleanup) == 0 {
		return primary
	}
	if primary == nil {
		primary, cleanup = cleanup[0], cleanup[1:]
		if len(cleanup) == 0 {
			return primary
		}
	}
	for _, err := range cleanup {
		r.log.WithError(err).Warn("cleanup failed after run error")
	}
	appErr, ok := errors.AsAppError(primary)
	if !ok {
		return primary
	}
	cp := *appErr
	cp.Suppressed = append(slices.Clone(appErr.Suppressed), cleanup...)
	return &cp
}

func iterationError(reason string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.Iteration(reason, err)
}

func requester(prefix string, index int) string {
	return prefix + strconv.Itoa(index)
}
