// Package orchestrator drives the ordered fallback chain of query strategies.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/observability"
	"github.com/n0madic/go-agentquery/internal/stream"
)

// DefaultBackoff is the pause between a failed strategy and the next one.
const DefaultBackoff = 100 * time.Millisecond

var (
	// ErrBackendUnavailable means no CLI was found and HTTP fallback is disabled.
	ErrBackendUnavailable = errors.New("no CLI executable found and API fallback is disabled")
	// ErrCancelled is returned when the caller stops or supersedes the query.
	ErrCancelled = errors.New("request cancelled")
	// ErrNoStrategies is returned by Run when given an empty chain.
	ErrNoStrategies = errors.New("no query strategies available")
)

// Strategy is one way of serving a query. Run emits text and thinking events
// in production order and returns nil when the response is complete. An
// in-band error reported by the backend is emitted as an error event before
// Run returns; it commits the chain like any other event.
type Strategy interface {
	Name() string
	Run(ctx context.Context, emit func(stream.Event)) error
}

// Outcome is the terminal state of one attempt.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded-with-events"
	OutcomeFailedBefore Outcome = "failed-before-events"
	OutcomeFailedAfter  Outcome = "failed-after-events"
)

// Attempt records the execution of one strategy.
type Attempt struct {
	Strategy string
	Started  time.Time
	Outcome  Outcome
	Events   int
	Err      error
}

// Orchestrator runs strategies strictly one after another. It commits to
// the first strategy that emits an event; earlier strategies that fail
// without emitting are skipped after Backoff.
type Orchestrator struct {
	Backoff time.Duration
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// OnAttempt, when set, receives every finished attempt.
	OnAttempt func(Attempt)
}

// New creates an orchestrator. A negative backoff selects DefaultBackoff.
func New(backoff time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{Backoff: backoff, Logger: logger, Metrics: metrics}
}

// Run executes strategies until one completes or all fail. It returns nil
// after a completed strategy, ErrCancelled when ctx ends, the committed
// strategy's error when it fails after emitting, and otherwise the last
// pre-emission failure. Done events from strategies are dropped; an error
// event is not forwarded but is returned as a *stream.ProtocolError.
func (o *Orchestrator) Run(ctx context.Context, strategies []Strategy, emit func(stream.Event)) error {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if len(strategies) == 0 {
		return ErrNoStrategies
	}

	var lastErr error
	for i, s := range strategies {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if i > 0 && o.Backoff > 0 {
			t := time.NewTimer(o.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ErrCancelled
			case <-t.C:
			}
		}

		att := Attempt{Strategy: s.Name(), Started: time.Now()}
		log.Debug("orchestrator.attempt", zap.String("strategy", att.Strategy), zap.Int("index", i), zap.Int("of", len(strategies)))

		var inband *stream.ProtocolError
		err := s.Run(ctx, func(ev stream.Event) {
			if inband != nil {
				return
			}
			switch ev.Type {
			case stream.EventDone:
				return
			case stream.EventError:
				inband = &stream.ProtocolError{Message: ev.Error}
				att.Events++
				return
			}
			att.Events++
			emit(ev)
		})
		if err == nil && inband != nil {
			err = inband
		}
		att.Err = err

		switch {
		case err == nil:
			att.Outcome = OutcomeSucceeded
		case att.Events > 0:
			att.Outcome = OutcomeFailedAfter
		default:
			att.Outcome = OutcomeFailedBefore
		}
		o.finish(log, att)

		if ctx.Err() != nil {
			return ErrCancelled
		}
		if err == nil {
			return nil
		}
		if att.Events > 0 {
			return err
		}
		lastErr = err
	}
	log.Warn("orchestrator.exhausted", zap.Int("strategies", len(strategies)), zap.Error(lastErr))
	return lastErr
}

func (o *Orchestrator) finish(log *zap.Logger, att Attempt) {
	elapsed := time.Since(att.Started)
	fields := []zap.Field{
		zap.String("strategy", att.Strategy),
		zap.String("outcome", string(att.Outcome)),
		zap.Int("events", att.Events),
		zap.Duration("elapsed", elapsed),
	}
	if att.Err != nil {
		log.Info("orchestrator.attempt_failed", append(fields, zap.Error(att.Err))...)
	} else {
		log.Debug("orchestrator.attempt_done", fields...)
	}
	o.Metrics.RecordAttempt(att.Strategy, string(att.Outcome), elapsed)
	if o.OnAttempt != nil {
		o.OnAttempt(att)
	}
}
