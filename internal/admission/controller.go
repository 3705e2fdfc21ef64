// Package admission bounds the bytes held by in-flight inserts.
//
// A Controller admits an insert of size s only while the bytes of all
// admitted, unreleased inserts plus s stay strictly below the budget.
// Waiters are served in arrival order, every wait is bounded by a timeout
// and by the caller's context, and a request that can never fit is
// refused at once.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
)

// Config holds admission limits.
type Config struct {
	// Budget is the exclusive upper bound on in-flight insert bytes.
	// Must be greater than 1.
	Budget int64

	// WaitTimeout bounds how long Acquire blocks. 0 waits until the
	// caller's context is done.
	WaitTimeout time.Duration

	// BytesPerSec throttles admitted ingest bytes. 0 disables throttling.
	BytesPerSec int64
}

// Controller admits inserts against a byte budget.
type Controller struct {
	cfg Config

	// Capacity budget-1 makes "budget - size > 0" the admission predicate.
	sem  *semaphore.Weighted
	used atomic.Int64

	limiter *rate.Limiter
	logger  *logging.Logger
}

// New creates a controller.
func New(cfg Config, logger *logging.Logger) (*Controller, error) {
	if cfg.Budget <= 1 {
		return nil, fmt.Errorf("admission budget must be greater than 1, got %d", cfg.Budget)
	}
	if cfg.WaitTimeout < 0 {
		return nil, fmt.Errorf("admission wait timeout must not be negative, got %s", cfg.WaitTimeout)
	}
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	c := &Controller{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.Budget - 1),
		logger: logger.Named("admission"),
	}
	if cfg.BytesPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), int(cfg.Budget))
	}
	return c, nil
}

// Acquire blocks until size bytes fit in the budget. It fails with a
// ResourceExhausted error when size can never fit or the wait timeout
// elapses, and with a cancellation error when ctx is done first.
func (c *Controller) Acquire(ctx context.Context, id string, size int64) error {
	if size <= 0 {
		return nil
	}
	if size >= c.cfg.Budget {
		Rejections.WithLabelValues(reasonOversized).Inc()
		c.logger.Warn(ctx, "insert exceeds admission budget",
			zap.String("request.id", id),
			zap.Int64("request_size", size),
			zap.Int64("total_size", c.cfg.Budget))
		return errdefs.ResourceExhausted("insert of %d bytes exceeds the %d byte budget", size, c.cfg.Budget)
	}

	c.logger.Trace(ctx, "admission requested",
		zap.String("request.id", id),
		zap.Int64("request_size", size),
		zap.Int64("remain_size", c.Remaining()),
		zap.Int64("total_size", c.cfg.Budget))

	if !c.sem.TryAcquire(size) {
		if err := c.wait(ctx, id, size); err != nil {
			return err
		}
	}
	c.admitted(size)

	if c.limiter != nil {
		if err := c.limiter.WaitN(ctx, int(size)); err != nil {
			c.Release(id, size)
			if ctx.Err() != nil {
				Rejections.WithLabelValues(reasonCancelled).Inc()
				return errdefs.Cancelled(ctx)
			}
			return errdefs.ResourceExhausted("ingest throttle: %v", err)
		}
	}

	c.logger.Debug(ctx, "admission granted",
		zap.String("request.id", id),
		zap.Int64("request_size", size),
		zap.Int64("remain_size", c.Remaining()))
	return nil
}

func (c *Controller) wait(ctx context.Context, id string, size int64) error {
	waitCtx := ctx
	if c.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()
	}

	Waiters.Inc()
	start := time.Now()
	err := c.sem.Acquire(waitCtx, size)
	WaitDuration.Observe(time.Since(start).Seconds())
	Waiters.Dec()
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		Rejections.WithLabelValues(reasonCancelled).Inc()
		c.logger.Debug(ctx, "admission wait cancelled", zap.String("request.id", id))
		return errdefs.Cancelled(ctx)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		Rejections.WithLabelValues(reasonTimeout).Inc()
		c.logger.Warn(ctx, "admission wait timed out",
			zap.String("request.id", id),
			zap.Int64("request_size", size),
			zap.Duration("timeout", c.cfg.WaitTimeout))
		return errdefs.ResourceExhausted("insert of %d bytes not admitted within %s", size, c.cfg.WaitTimeout)
	}
	return fmt.Errorf("admission wait: %w", err)
}

// AcquireTimeout is Acquire with an explicit timeout and no caller
// context. It reports whether size was admitted.
func (c *Controller) AcquireTimeout(size int64, d time.Duration) bool {
	if size <= 0 {
		return true
	}
	if size >= c.cfg.Budget {
		Rejections.WithLabelValues(reasonOversized).Inc()
		return false
	}
	if c.sem.TryAcquire(size) {
		c.admitted(size)
		return true
	}
	if d <= 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	Waiters.Inc()
	err := c.sem.Acquire(ctx, size)
	Waiters.Dec()
	if err != nil {
		Rejections.WithLabelValues(reasonTimeout).Inc()
		return false
	}
	c.admitted(size)
	return true
}

// TryAcquire admits size without waiting.
func (c *Controller) TryAcquire(size int64) bool {
	if size <= 0 {
		return true
	}
	if size >= c.cfg.Budget || !c.sem.TryAcquire(size) {
		return false
	}
	c.admitted(size)
	return true
}

// Release returns size bytes to the budget. It must pair with a
// successful acquisition of the same size.
func (c *Controller) Release(id string, size int64) {
	if size <= 0 {
		return
	}
	c.sem.Release(size)
	c.used.Add(-size)
	InFlightBytes.Sub(float64(size))
	c.logger.Trace(context.Background(), "admission released",
		zap.String("request.id", id),
		zap.Int64("request_size", size),
		zap.Int64("remain_size", c.Remaining()))
}

// Admit acquires size and returns the matching release func, which is
// safe to call more than once.
func (c *Controller) Admit(ctx context.Context, id string, size int64) (func(), error) {
	if err := c.Acquire(ctx, id, size); err != nil {
		return func() {}, err
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			c.Release(id, size)
		}
	}, nil
}

// InUse returns the bytes held by admitted inserts.
func (c *Controller) InUse() int64 {
	return c.used.Load()
}

// Remaining returns budget minus the bytes in use.
func (c *Controller) Remaining() int64 {
	return c.cfg.Budget - c.used.Load()
}

// Budget returns the configured budget.
func (c *Controller) Budget() int64 {
	return c.cfg.Budget
}

func (c *Controller) admitted(size int64) {
	c.used.Add(size)
	InFlightBytes.Add(float64(size))
}
