package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithMaxRetries(t *testing.T) {
	t.Run("NotEnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(3)
		err := WithMaxRetries(
			context.Background(),
			func() (err error) {
				_, err = retryable.Run()
				return err
			},
			2,
		)
		require.Error(t, err)
	})
	t.Run("EnoughRetry", func(t *testing.T) {
		retryable := newMockRetryableFn(2)
		var res bool
		err := WithMaxRetries(
			context.Background(),
			func() (err error) {
				res, err = retryable.Run()
				return err
			},
			2,
		)
		require.NoError(t, err)
		require.True(t, res)
	})
}

func TestWithMaxRetriesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	start := time.Now()
	err := WithMaxRetries(ctx, func() error {
		calls++
		return errors.New("unavailable")
	}, 10)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
	require.Less(t, time.Since(start), time.Second)
}

var errPending = errors.New("pending")

func isPending(err error) bool { return errors.Is(err, errPending) }

func TestPollWithContext(t *testing.T) {
	fast := PollConfig{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	t.Run("Ready", func(t *testing.T) {
		retryable := newMockRetryableFn(3)
		err := PollWithContext(context.Background(), fast, func(context.Context) error {
			if ok, _ := retryable.Run(); ok {
				return nil
			}
			return errPending
		}, isPending, zap.NewNop(), "polling")
		require.NoError(t, err)
	})
	t.Run("Permanent", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := PollWithContext(context.Background(), fast, func(context.Context) error {
			calls++
			return boom
		}, isPending, nil, "")
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})
	t.Run("Timeout", func(t *testing.T) {
		cfg := fast
		cfg.Timeout = 20 * time.Millisecond
		err := PollWithContext(context.Background(), cfg, func(context.Context) error {
			return errPending
		}, isPending, nil, "")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := PollWithContext(ctx, fast, func(context.Context) error {
			return errPending
		}, isPending, nil, "")
		require.ErrorIs(t, err, context.Canceled)
	})
}

type mockRetryableFn struct {
	counter uint64
	trigger uint64
}

func newMockRetryableFn(trigger uint64) mockRetryableFn {
	return mockRetryableFn{
		counter: 0,
		trigger: trigger,
	}
}

func (m *mockRetryableFn) Run() (bool, error) {
	if m.counter == m.trigger {
		return true, nil
	}
	m.counter++
	return false, errors.New("error")
}
