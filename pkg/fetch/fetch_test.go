package fetch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullionwatch/bullion-snapshot-service/pkg/fetch"
	"github.com/bullionwatch/bullion-snapshot-service/pkg/retry"
)

func fastConfig(concurrency int) fetch.Config {
	return fetch.Config{
		Concurrency: concurrency,
		Timeout:     time.Second,
		Retries:     0,
		Backoff:     time.Millisecond,
	}
}

func TestRun_AllTargetsSucceed(t *testing.T) {
	targets := []string{"a", "b", "c", "d", "e"}

	results := fetch.Run(context.Background(), targets, fastConfig(3), func(ctx context.Context, t string) (string, error) {
		return t + "!", nil
	})

	require.Len(t, results, len(targets))
	seen := map[string]string{}
	for _, r := range results {
		assert.False(t, r.Failed())
		seen[r.Target] = r.Value
	}
	assert.Equal(t, map[string]string{"a": "a!", "b": "b!", "c": "c!", "d": "d!", "e": "e!"}, seen)
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	var inFlight, peak int64
	targets := make([]int, 20)

	fetch.Run(context.Background(), targets, fastConfig(3), func(ctx context.Context, _ int) (int, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return 0, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.GreaterOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestRun_OneFailureDoesNotAbortBatch(t *testing.T) {
	targets := []string{"ok1", "bad", "ok2"}

	results := fetch.Run(context.Background(), targets, fastConfig(2), func(ctx context.Context, t string) (string, error) {
		if t == "bad" {
			return "", errors.New("boom")
		}
		return t, nil
	})

	require.Len(t, results, 3)
	var failed, ok int
	for _, r := range results {
		if r.Failed() {
			failed++
			assert.Equal(t, "bad", r.Target)
			assert.Equal(t, fetch.FailTransport, r.Failure)
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, ok)
}

func TestRun_RetriesRetryableFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := map[string]int{}

	cfg := fastConfig(1)
	cfg.Retries = 2

	results := fetch.Run(context.Background(), []string{"flaky"}, cfg, func(ctx context.Context, t string) (string, error) {
		mu.Lock()
		attempts[t]++
		n := attempts[t]
		mu.Unlock()
		if n < 3 {
			return "", retry.NewRetryableError(errors.New("transient"))
		}
		return "recovered", nil
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Failed())
	assert.Equal(t, "recovered", results[0].Value)
	assert.Equal(t, 3, attempts["flaky"])
}

func TestRun_AttemptTimeoutIsRetriedAndClassified(t *testing.T) {
	var attempts int64

	cfg := fetch.Config{
		Concurrency: 1,
		Timeout:     10 * time.Millisecond,
		Retries:     1,
		Backoff:     time.Millisecond,
	}

	results := fetch.Run(context.Background(), []int{1}, cfg, func(ctx context.Context, _ int) (int, error) {
		atomic.AddInt64(&attempts, 1)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
	assert.Equal(t, fetch.FailTimeout, results[0].Failure)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts)) // initial + 1 retry
}

func TestRun_CustomClassifier(t *testing.T) {
	errServer := errors.New("upstream 5xx")

	cfg := fastConfig(1)
	cfg.Classify = func(err error) fetch.FailureKind {
		if errors.Is(err, errServer) {
			return fetch.FailServer
		}
		return fetch.FailNone
	}

	results := fetch.Run(context.Background(), []string{"x"}, cfg, func(ctx context.Context, _ string) (int, error) {
		return 0, errServer
	})

	require.Len(t, results, 1)
	assert.Equal(t, fetch.FailServer, results[0].Failure)
}
