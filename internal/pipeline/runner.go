// Package pipeline runs "load and run" requests off the caller's goroutine
// and applies only the newest outcome.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/observability"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/tabular"
)

var ErrRunnerClosed = errors.New("pipeline runner is closed")

// Outcome is the result of one run. On failure Frame is empty, never partial.
type Outcome struct {
	Generation  uint64
	Request     query.Request
	Frame       *tabular.Frame
	Duration    time.Duration
	StagedBytes int64
	Err         error
}

func (o Outcome) Failed() bool { return o.Err != nil }

type Runner struct {
	engine query.Engine
	logger *slog.Logger

	generation atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool

	applyMu sync.Mutex
	wg      sync.WaitGroup
}

func NewRunner(engine query.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Runner{engine: engine, logger: logger}
}

// Run executes request on the calling goroutine.
func (r *Runner) Run(ctx context.Context, request query.Request) Outcome {
	return r.execute(ctx, 0, request)
}

// Submit starts request in the background and returns its generation. Any
// run still in flight is cancelled and its outcome is never passed to apply.
// apply is called at most once, and never with an outcome older than one it
// has already received.
func (r *Runner) Submit(ctx context.Context, request query.Request, apply func(Outcome)) uint64 {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if apply != nil {
			apply(failed(0, request, ErrRunnerClosed))
		}
		return 0
	}
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	generation := r.generation.Add(1)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		outcome := r.execute(runCtx, generation, request)

		r.applyMu.Lock()
		defer r.applyMu.Unlock()
		if generation != r.generation.Load() {
			observability.IncrementPipelineSuperseded()
			r.logger.Debug("pipeline outcome discarded",
				slog.Uint64("generation", generation),
				slog.Uint64("current", r.generation.Load()),
			)
			return
		}
		if apply != nil {
			apply(outcome)
		}
	}()
	return generation
}

// Current returns the generation of the most recent Submit.
func (r *Runner) Current() uint64 {
	return r.generation.Load()
}

// Wait blocks until every submitted run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels the in-flight run, waits for it and rejects later submits.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.generation.Add(1)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, generation uint64, request query.Request) Outcome {
	if r.engine == nil {
		return failed(generation, request, apperrors.Newf(apperrors.ErrConnection, "run pipeline", "query engine is required"))
	}

	result, err := r.engine.Execute(ctx, request)
	if err != nil {
		observability.IncrementPipelineRun("error")
		observability.IncrementPipelineError(apperrors.KindOf(err))
		r.logger.DebugContext(ctx, "pipeline run failed",
			slog.Uint64("generation", generation),
			slog.String("relation", request.Source.Relation),
			slog.String("error_kind", apperrors.KindOf(err)),
			slog.String("error", err.Error()),
		)
		return failed(generation, request, err)
	}

	frame := result.Frame
	if frame == nil {
		frame = tabular.Empty()
	}
	observability.IncrementPipelineRun("ok")
	return Outcome{
		Generation:  generation,
		Request:     request,
		Frame:       frame,
		Duration:    result.Duration,
		StagedBytes: result.StagedBytes,
	}
}

func failed(generation uint64, request query.Request, err error) Outcome {
	return Outcome{Generation: generation, Request: request, Frame: tabular.Empty(), Err: err}
}
