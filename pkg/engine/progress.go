package engine

import (
	"context"

	"github.com/chuang453/batch-process/pkg/logging"
)

// ProgressEvent is one tick of run progress. TotalSteps is fixed for the
// whole run, computed by a dry pass before anything executes.
type ProgressEvent struct {
	CurrentStep int
	TotalSteps  int
	Path        string
	Status      string
}

// ProgressFunc receives progress events. Sinks are best effort: a panic
// inside the sink is recovered and the run continues without it.
type ProgressFunc func(ProgressEvent)

// CancelFunc is polled between units of work. Returning true stops the
// run at the next poll point; work already started is not interrupted.
type CancelFunc func() bool

// FromContext adapts a context.Context into a cancellation predicate
func FromContext(ctx context.Context) CancelFunc {
	return func() bool {
		return ctx.Err() != nil
	}
}

// reporter tracks the step counter and shields the engine from sink
// failures.
type reporter struct {
	sink  ProgressFunc
	total int
	step  int
}

func newReporter(sink ProgressFunc, total int) *reporter {
	return &reporter{sink: sink, total: total}
}

// emit advances the counter and delivers one event
func (r *reporter) emit(path, status string) {
	r.step++
	if r.sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger := logging.GetLogger("engine.progress")
			logger.Warn().Interface("panic", rec).Msg("progress sink panicked, disabling")
			r.sink = nil
		}
	}()
	r.sink(ProgressEvent{
		CurrentStep: r.step,
		TotalSteps:  r.total,
		Path:        path,
		Status:      status,
	})
}
