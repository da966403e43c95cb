// Package fetch runs one network-bound acquisition per target through a
// fixed-size worker pool with per-attempt deadlines and retry.
package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bullionwatch/bullion-snapshot-service/pkg/retry"
)

// FailureKind classifies a target's terminal failure.
type FailureKind string

const (
	FailNone      FailureKind = ""
	FailTimeout   FailureKind = "timeout"
	FailTransport FailureKind = "transport_error"
	FailServer    FailureKind = "server_error"
)

// Config controls pool size and per-target retry behavior.
type Config struct {
	// Concurrency is the exact number of workers pulling from the queue.
	Concurrency int
	// Timeout bounds a single attempt; expiry cancels that attempt only.
	Timeout time.Duration
	// Retries is the number of re-attempts after the first failure.
	Retries int
	// Backoff is the initial retry delay; the delay grows with the attempt.
	Backoff time.Duration
	// Classify maps a terminal error onto a FailureKind. Optional; timeouts
	// are always recognized, everything else defaults to transport_error.
	Classify func(error) FailureKind
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// Result is the outcome for one target: a value or a typed failure.
type Result[T, R any] struct {
	Target  T
	Value   R
	Err     error
	Failure FailureKind
}

// Failed reports whether the target terminally failed.
func (r Result[T, R]) Failed() bool {
	return r.Err != nil
}

// Run fetches every target with exactly cfg.Concurrency workers and returns
// one Result per target. Order is not guaranteed. A target's failure never
// aborts the batch; workers share no mutable state, each collects into its
// own slice and the slices are merged after join.
func Run[T, R any](ctx context.Context, targets []T, cfg Config, fn func(context.Context, T) (R, error)) []Result[T, R] {
	cfg = cfg.normalized()

	jobs := make(chan T)
	perWorker := make([][]Result[T, R], cfg.Concurrency)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for target := range jobs {
				perWorker[w] = append(perWorker[w], fetchOne(ctx, target, cfg, fn))
			}
		}(w)
	}

	for _, t := range targets {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	results := make([]Result[T, R], 0, len(targets))
	for _, rs := range perWorker {
		results = append(results, rs...)
	}
	return results
}

func fetchOne[T, R any](ctx context.Context, target T, cfg Config, fn func(context.Context, T) (R, error)) Result[T, R] {
	rcfg := retry.Config{
		MaxRetries:     cfg.Retries,
		InitialBackoff: cfg.Backoff,
		MaxBackoff:     cfg.Backoff * 16,
		Multiplier:     2.0,
		Jitter:         0.1,
	}

	value, err := retry.DoWithResult(ctx, rcfg, func(ctx context.Context) (R, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		v, err := fn(attemptCtx, target)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// the attempt timed out but the batch is still live
			return v, retry.NewRetryableError(err)
		}
		return v, err
	})

	res := Result[T, R]{Target: target, Value: value, Err: err}
	if err != nil {
		res.Failure = classify(err, cfg.Classify)
	}
	return res
}

func classify(err error, custom func(error) FailureKind) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	if custom != nil {
		if kind := custom(err); kind != FailNone {
			return kind
		}
	}
	return FailTransport
}
