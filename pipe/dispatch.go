package pipe

import (
	"context"
	stderrors "errors"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/iterator"
	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/observability"
	"github.com/kbukum/iterpipe/sender"
)

type block = iterator.Block[*message.Message]

// dispatchAll pulls blocks until the reader is exhausted, a dispatch fails
// or the stop condition is met. The iterator stays on this goroutine.
func (r *run) dispatchAll(ctx context.Context, reader *iterator.BlockReader[*message.Message]) error {
	cfg := r.pipe.config
	mode := StateDispatchingSequential
	phase := ctx
	if cfg.Parallel {
		mode = StateDispatchingParallel
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			phase, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
	}

	for {
		b, ok, err := reader.Next(ctx)
		if err != nil {
			r.discard(b)
			return iterationError("cannot read next element", err)
		}
		if !ok {
			return nil
		}
		r.transition(mode)
		r.agg.Reserve(b.Index + b.Len() - 1)
		for i, m := range b.Items {
			if err := m.ScheduleCloseOn(r.sc, requester(itemRequester, b.Index+i)); err != nil {
				r.addCleanup(err)
			}
		}
		r.pipe.metrics.RecordBlock(ctx, r.pipe.name, b.Len())
		r.log.Debug("dispatching block", logger.Fields(
			logger.FieldBlock, b.Index,
			logger.FieldBlockSize, b.Len(),
			logger.FieldMode, mode.String(),
		))

		bctx, span := observability.StartSpan(ctx, observability.SpanBlock)
		observability.SetSpanAttribute(bctx, observability.AttrBlock, b.Index)
		observability.SetSpanAttribute(bctx, observability.AttrBlockSize, b.Len())
		var stop bool
		if cfg.Parallel {
			stop, err = r.dispatchParallel(bctx, trace.ContextWithSpan(phase, span), b)
		} else {
			stop, err = r.dispatchSequential(bctx, b)
		}
		if err != nil {
			observability.SetSpanError(bctx, err)
		}
		span.End()
		if err != nil {
			return err
		}
		if stop {
			r.stopped = true
			return nil
		}
	}
}

// discard closes the elements of a block that will not be dispatched.
func (r *run) discard(b block) {
	for i, m := range b.Items {
		if err := m.Close(); err != nil {
			r.addCleanup(errors.Resource(requester(itemRequester, b.Index+i), err))
		}
	}
}

// dispatchSequential sends the elements of b in order on this goroutine.
func (r *run) dispatchSequential(ctx context.Context, b block) (bool, error) {
	h, err := r.openBlock(ctx, b)
	if err != nil {
		return false, err
	}

	stop, err := func() (bool, error) {
		for i, m := range b.Items {
			idx := b.Index + i
			if ctxErr := ctx.Err(); ctxErr != nil {
				fail := errors.Dispatch(idx, ctxErr)
				r.agg.Fail(idx, fail)
				return false, fail
			}
			r.setItemNo(idx)
			if err := r.unit(ctx, idx, m, h, nil); err != nil {
				if !errors.IsAppError(err) {
					fail := errors.Dispatch(idx, err)
					r.agg.Fail(idx, fail)
					return false, fail
				}
				return false, err
			}
			if r.stopAt(idx) {
				return true, nil
			}
		}
		return false, nil
	}()

	return stop, r.closeBlock(ctx, b, h, err)
}

// dispatchParallel submits one unit per element of b to the executor and
// waits for every started unit before the block is closed. A failing unit
// cancels its siblings; the failure with the lowest index is reported.
func (r *run) dispatchParallel(ctx, phase context.Context, b block) (bool, error) {
	if err := phase.Err(); err != nil {
		return false, r.phaseError(ctx, phase, b.Index, nil)
	}
	h, err := r.openBlock(phase, b)
	if err != nil {
		return false, err
	}
	var mu *sync.Mutex
	if r.pipe.dispatcher.Kind() == sender.KindBlockEnabled && !r.pipe.dispatcher.ConcurrentHandle() {
		mu = &sync.Mutex{}
	}

	g := r.pipe.exec.NewGroup(phase)
	var submitErr error
	for i, m := range b.Items {
		m := m
		idx := b.Index + i
		r.setItemNo(idx)
		if err := g.Submit(func(gctx context.Context) error {
			return r.unit(gctx, idx, m, h, mu)
		}); err != nil {
			submitErr = err
			break
		}
	}
	waitErr := g.Wait()

	// A stop match ahead of the first failure ends the run as it would have
	// sequentially: later outcomes are truncated away.
	stop := r.stopInBlock(b)
	if !stop {
		if err = r.agg.Err(); err == nil && (submitErr != nil || waitErr != nil) {
			err = r.phaseError(ctx, phase, b.Index, stderrors.Join(submitErr, waitErr))
		}
	}
	if err == nil && ctx.Err() == nil && stderrors.Is(phase.Err(), context.DeadlineExceeded) {
		err = errors.Timeout(b.Index+b.Len()-1, r.pipe.config.Timeout)
	}
	if err = r.closeBlock(ctx, b, h, err); err != nil {
		return false, err
	}
	return stop, nil
}

// stopInBlock walks b in index order up to the first element without a
// successful result and applies the stop condition.
func (r *run) stopInBlock(b block) bool {
	if r.pipe.stop == nil {
		return false
	}
	for i := range b.Items {
		idx := b.Index + i
		if _, ok := r.agg.Result(idx); !ok {
			return false
		}
		if r.stopAt(idx) {
			return true
		}
	}
	return false
}

// phaseError explains an aborted parallel block that recorded no item failure.
func (r *run) phaseError(ctx, phase context.Context, first int, cause error) error {
	idx := r.agg.FirstUnfilled()
	if idx == 0 {
		idx = first
	}
	switch {
	case ctx.Err() != nil:
		return errors.Dispatch(idx, ctx.Err())
	case stderrors.Is(phase.Err(), context.DeadlineExceeded):
		return errors.Timeout(idx, r.pipe.config.Timeout)
	default:
		return errors.Dispatch(idx, cause)
	}
}

// unit dispatches one element and stores its outcome in the aggregator.
// A context error raised after ctx ended is left unrecorded: it is the
// consequence of a sibling failure or of the phase deadline.
func (r *run) unit(ctx context.Context, idx int, m *message.Message, h sender.Handle, mu *sync.Mutex) error {
	var input string
	if r.pipe.config.AddInputToResult {
		s, err := m.AsText()
		if err != nil {
			return r.failItem(ctx, idx, errors.Dispatch(idx, err))
		}
		input = s
	}

	out, err := r.send(sender.ContextWithItem(ctx, idx), m, h, mu)
	if err != nil {
		if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
			return err
		}
		return r.failItem(ctx, idx, errors.Dispatch(idx, err))
	}

	var result string
	if out != nil {
		if err := out.ScheduleCloseOn(r.sc, requester(resultRequester, idx)); err != nil {
			r.addCleanup(err)
		}
		if result, err = out.AsText(); err != nil {
			return r.failItem(ctx, idx, errors.Dispatch(idx, err))
		}
	}

	cfg := r.pipe.config
	switch {
	case cfg.TimeoutOnResult != "" && result == cfg.TimeoutOnResult:
		return r.failItem(ctx, idx, errors.SentinelResult(idx, errors.ErrCodeTimeout, result))
	case cfg.ExceptionOnResult != "" && result == cfg.ExceptionOnResult:
		return r.failItem(ctx, idx, errors.SentinelResult(idx, errors.ErrCodeDispatch, result))
	}

	if err := r.agg.Complete(idx, input, result); err != nil {
		return err
	}
	r.pipe.metrics.RecordItem(ctx, r.pipe.name, observability.StatusOK)
	r.log.Debug("item dispatched", logger.Fields(logger.FieldItem, idx))
	return nil
}

func (r *run) failItem(ctx context.Context, idx int, err *errors.AppError) error {
	r.agg.Fail(idx, err)
	r.pipe.metrics.RecordItem(ctx, r.pipe.name, observability.StatusError)
	r.log.Debug("item failed", logger.Fields(logger.FieldItem, idx, logger.FieldError, err.Error()))
	return err
}

func (r *run) send(ctx context.Context, m *message.Message, h sender.Handle, mu *sync.Mutex) (*message.Message, error) {
	d := r.pipe.dispatcher
	if d.Kind() == sender.KindSimple {
		return d.Simple().Send(ctx, m, r.sc)
	}
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	return d.BlockEnabled().SendInBlock(ctx, h, m, r.sc)
}

func (r *run) openBlock(ctx context.Context, b block) (sender.Handle, error) {
	if r.pipe.dispatcher.Kind() != sender.KindBlockEnabled {
		return nil, nil
	}
	h, err := r.pipe.dispatcher.BlockEnabled().OpenBlock(ctx, r.sc)
	if err != nil {
		fail := errors.BlockDispatch(b.Index, "open", err)
		r.agg.Fail(b.Index, fail)
		return nil, fail
	}
	return h, nil
}

// closeBlock closes an open block handle even when ctx has ended. A close
// failure is reported only when no earlier error exists.
func (r *run) closeBlock(ctx context.Context, b block, h sender.Handle, primary error) error {
	if r.pipe.dispatcher.Kind() != sender.KindBlockEnabled {
		return primary
	}
	err := r.pipe.dispatcher.BlockEnabled().CloseBlock(context.WithoutCancel(ctx), h, r.sc)
	if err == nil {
		return primary
	}
	closeErr := errors.Resource("block", err).WithDetail(errors.DetailItem, b.Index)
	if primary == nil {
		return closeErr
	}
	r.addCleanup(closeErr)
	return primary
}

// stopAt truncates the aggregation after idx when its result meets the
// stop condition.
func (r *run) stopAt(idx int) bool {
	if r.pipe.stop == nil {
		return false
	}
	result, ok := r.agg.Result(idx)
	if !ok || !r.pipe.stop(result) {
		return false
	}
	r.agg.Truncate(idx)
	r.log.Debug("stop condition met", logger.Fields(logger.FieldItem, idx))
	return true
}
