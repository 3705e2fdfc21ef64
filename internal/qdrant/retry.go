package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// call runs op under the request timeout, retrying transient gRPC
// failures with jittered exponential backoff.
func call[T any](ctx context.Context, c *GRPCClient, name string, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	tries := uint(1)
	if c.cfg.RetryAttempts > 0 {
		tries += uint(c.cfg.RetryAttempts)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	policy.MaxInterval = 10 * c.cfg.RetryInterval

	attempts := 0
	start := time.Now()
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx)
		var limited *qdrant.QdrantResourceExhaustedError
		switch {
		case err == nil:
		case errors.As(err, &limited):
			return v, fmt.Errorf("%w: %w", err, backoff.RetryAfter(limited.RetryAfterS))
		case !retryable(err):
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug(ctx, "qdrant call failed, retrying",
				zap.String("op", name),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	switch {
	case err != nil && attempts > 1:
		c.logger.Warn(ctx, "qdrant call failed after retries",
			zap.String("op", name),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	case err == nil && attempts > 1:
		c.logger.Info(ctx, "qdrant call recovered",
			zap.String("op", name),
			zap.Int("attempts", attempts))
	}
	return res, err
}

// retryable reports whether a gRPC error is worth another attempt.
func retryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	}
	return false
}
