package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithMaxRetriesLog runs the operation until it succeeds, max retries has been reached or
// ctx is done. It uses exponential back off.
// It optionally logs information if logger is set.
func WithMaxRetriesLog(
	ctx context.Context,
	operation backoff.Operation,
	max uint64,
	logger *zap.Logger,
	msg string,
	fields ...zapcore.Field,
) error {
	attempt := uint(1)
	expBackOff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), max), ctx)
	notify := func(err error, duration time.Duration) {
		if logger == nil {
			return
		}
		fields := append(fields, zap.Uint("attempt", attempt), zap.Error(err), zap.Duration("backoff", duration))
		logger.Warn(msg, fields...)
		attempt++
	}
	err := backoff.RetryNotify(operation, expBackOff, notify)
	if err != nil && logger != nil {
		fields := append(fields, zap.Uint64("attempts", uint64(attempt)), zap.Error(err))
		logger.Error(msg, fields...)
	}
	return err
}

// WithMaxRetries runs the operation until it succeeds, max retries has been reached or
// ctx is done. It uses exponential back off.
func WithMaxRetries(ctx context.Context, operation backoff.Operation, max uint64) error {
	return WithMaxRetriesLog(ctx, operation, max, nil, "")
}

// PollConfig bounds a poll loop. Zero values fall back to the defaults below.
type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

const (
	DefaultPollInitialInterval = 500 * time.Millisecond
	DefaultPollMaxInterval     = 15 * time.Second
)

// PollWithContext runs operation until it succeeds, returns an error that is not pending,
// or ctx is done. pending reports whether an error means "not available yet".
func PollWithContext(
	ctx context.Context,
	cfg PollConfig,
	operation func(ctx context.Context) error,
	pending func(error) bool,
	logger *zap.Logger,
	msg string,
	fields ...zapcore.Field,
) error {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = DefaultPollInitialInterval
	if cfg.InitialInterval > 0 {
		expBackOff.InitialInterval = cfg.InitialInterval
	}
	expBackOff.MaxInterval = DefaultPollMaxInterval
	if cfg.MaxInterval > 0 {
		expBackOff.MaxInterval = cfg.MaxInterval
	}
	expBackOff.MaxElapsedTime = 0

	attempt := uint(1)
	op := func() error {
		err := operation(ctx)
		if err == nil || pending(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, duration time.Duration) {
		if logger != nil {
			logger.Debug(msg, append(fields, zap.Uint("attempt", attempt), zap.Error(err), zap.Duration("backoff", duration))...)
		}
		attempt++
	}

	return backoff.RetryNotify(op, backoff.WithContext(expBackOff, ctx), notify)
}
