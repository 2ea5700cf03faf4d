// Package retry wraps a model.Model with exponential backoff. The runner never
// retries a failed model call; wrap the model with this package instead.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
)

// Options configure the retry policy.
type Options struct {
	MaxRetries          uint64
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	RandomizationFactor float64
	// Retryable decides whether an error is transient. Context errors are
	// never retried.
	Retryable func(err error) bool
	Logger    logging.Logger
}

// Model retries failed generations of the wrapped model.
//
// Partial chunks of an attempt are held back until the attempt succeeds, so
// a consumer never sees the output of a failed attempt.
type Model struct {
	next model.Model
	opts Options
}

// New wraps next.
func New(next model.Model, optFns ...func(o *Options)) *Model {
	opts := Options{
		MaxRetries:          3,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		RandomizationFactor: 0.5,
		Retryable:           func(error) bool { return true },
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{next: next, opts: opts}
}

func (m *Model) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.InitialInterval
	b.MaxInterval = m.opts.MaxInterval
	b.MaxElapsedTime = m.opts.MaxElapsedTime
	b.RandomizationFactor = m.opts.RandomizationFactor
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, m.opts.MaxRetries), ctx)
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var (
			partials []model.Response
			final    model.Response
			attempt  int
		)

		op := func() error {
			attempt++
			partials = partials[:0]
			resp, err := model.Collect(ctx, m.next, req, func(r model.Response) {
				partials = append(partials, r)
			})
			if err == nil {
				final = resp
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !m.opts.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		notify := func(err error, wait time.Duration) {
			m.opts.Logger.Warn("model.retry", "model", m.next.Info().Name, "attempt", attempt, "wait", wait, "error", err.Error())
		}

		if err := backoff.RetryNotify(op, m.backoff(ctx), notify); err != nil {
			errCh <- err
			return
		}

		for _, p := range partials {
			out <- p
		}
		out <- final
	}()

	return out, errCh
}

// Info returns the wrapped model's info.
func (m *Model) Info() model.Info { return m.next.Info() }
