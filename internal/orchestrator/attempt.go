package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/engine"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/observability"
	"github.com/google/uuid"
)

type attemptState int

const (
	stateRequesting attemptState = iota
	statePolling
	stateSucceeded
	stateFailed
	stateTimedOut
)

func (s attemptState) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case statePolling:
		return "polling"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("attemptState(%d)", int(s))
	}
}

const cancelTimeout = 10 * time.Second

// attempt asks the engine for the structure of one seed.
//
//	requesting -> succeeded | polling | failed
//	polling    -> succeeded | polling | timed_out | failed
//	failed     -> requesting, after RetryDelay, while tries remain
//
// MaxRetries bounds the number of requests. Only transient engine errors
// are retried. timed_out is entered when polling outlasts PollTimeout; it
// cancels the run on the engine and ends the attempt without retrying.
func (o *Orchestrator) attempt(ctx context.Context, uid uuid.UUID, seed int) (engine.Result, error) {
	var (
		state     = stateRequesting
		tries     int
		pollStart time.Time
		resp      engine.Response
		lastErr   error
	)

	for {
		switch state {
		case stateRequesting:
			tries++
			var err error
			resp, err = o.Engine.Run(ctx, uid, seed)
			state, lastErr = o.next(ctx, resp, err)
			if state == statePolling {
				pollStart = o.now()
			}

		case statePolling:
			if o.now().Sub(pollStart) >= o.settings.PollTimeout {
				lastErr = ErrPollTimeout
				state = stateTimedOut
				continue
			}
			if err := o.sleep(ctx, o.settings.PollInterval); err != nil {
				return engine.Result{}, err
			}
			var err error
			resp, err = o.Engine.Status(ctx, uid, seed)
			state, lastErr = o.next(ctx, resp, err)

		case stateSucceeded:
			o.Metrics.RecordAttempt(ctx, observability.AttemptSucceeded)
			return resp.Result, nil

		case stateFailed:
			o.Metrics.RecordAttempt(ctx, observability.AttemptFailed)
			slog.Warn("engine attempt failed", "job_uid", uid, "seed", seed,
				"attempt", tries, "max_retries", o.settings.MaxRetries, "error", lastErr)
			if err := ctx.Err(); err != nil {
				return engine.Result{}, err
			}
			if !engine.IsTransient(lastErr) {
				return engine.Result{}, fmt.Errorf("seed %d: %w", seed, lastErr)
			}
			if tries >= o.settings.MaxRetries {
				return engine.Result{}, fmt.Errorf("%w after %d tries: %w", ErrRetriesExhausted, tries, lastErr)
			}
			if err := o.sleep(ctx, o.settings.RetryDelay); err != nil {
				return engine.Result{}, err
			}
			state = stateRequesting

		case stateTimedOut:
			o.Metrics.RecordAttempt(ctx, observability.AttemptTimedOut)
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
			if err := o.Engine.Cancel(cctx, uid); err != nil {
				slog.Warn("engine cancel failed", "job_uid", uid, "seed", seed, "error", err)
			}
			cancel()
			return engine.Result{}, fmt.Errorf("seed %d: %w", seed, lastErr)
		}
	}
}

// next maps an engine reply to the following state.
func (o *Orchestrator) next(ctx context.Context, resp engine.Response, err error) (attemptState, error) {
	switch {
	case err == nil && resp.Done:
		return stateSucceeded, nil
	case err == nil:
		return statePolling, nil
	case ctx.Err() != nil:
		return stateFailed, ctx.Err()
	default:
		return stateFailed, err
	}
}
