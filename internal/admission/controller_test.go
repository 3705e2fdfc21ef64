package admission

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg, logging.NewTestLogger().Logger)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Budget: 1}, nil)
	assert.Error(t, err)

	_, err = New(Config{Budget: 0}, nil)
	assert.Error(t, err)

	_, err = New(Config{Budget: 10, WaitTimeout: -time.Second}, nil)
	assert.Error(t, err)

	c, err := New(Config{Budget: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Budget())
	assert.Equal(t, int64(2), c.Remaining())
}

func TestAcquire_StrictBudget(t *testing.T) {
	c := newController(t, Config{Budget: 100, WaitTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx, "a", 60))
	require.NoError(t, c.Acquire(ctx, "b", 39))
	assert.Equal(t, int64(99), c.InUse())
	assert.Equal(t, int64(1), c.Remaining())

	// 99 + 1 reaches the budget.
	assert.False(t, c.TryAcquire(1))

	c.Release("b", 39)
	assert.True(t, c.TryAcquire(39))
	c.Release("", 39)
	c.Release("a", 60)
	assert.Zero(t, c.InUse())
}

func TestAcquire_SizeEqualToBudgetIsRejectedImmediately(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(Config{Budget: 64, WaitTimeout: time.Hour}, tl.Logger)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Acquire(context.Background(), "big", 64) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, errdefs.ErrResourceExhausted)
		assert.Equal(t, apiv1.ErrorCodeOutOfMemory, errdefs.Code(err))
	case <-time.After(time.Second):
		t.Fatal("oversized acquire blocked")
	}
	tl.AssertLogged(t, zapcore.WarnLevel, "exceeds admission budget")

	assert.False(t, c.TryAcquire(64))
	assert.False(t, c.AcquireTimeout(100, time.Hour))
	assert.Zero(t, c.InUse())
}

func TestAcquire_NonPositiveSizeIsFree(t *testing.T) {
	c := newController(t, Config{Budget: 2})

	assert.NoError(t, c.Acquire(context.Background(), "z", 0))
	assert.NoError(t, c.Acquire(context.Background(), "n", -5))
	assert.True(t, c.TryAcquire(0))
	assert.True(t, c.AcquireTimeout(0, 0))
	c.Release("z", 0)
	assert.Zero(t, c.InUse())
}

func TestAcquire_Timeout(t *testing.T) {
	c := newController(t, Config{Budget: 10, WaitTimeout: 20 * time.Millisecond})
	require.NoError(t, c.Acquire(context.Background(), "hold", 9))

	start := time.Now()
	err := c.Acquire(context.Background(), "late", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrResourceExhausted)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, int64(9), c.InUse())
}

func TestAcquire_Cancelled(t *testing.T) {
	c := newController(t, Config{Budget: 10})
	require.NoError(t, c.Acquire(context.Background(), "hold", 9))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Acquire(ctx, "waiter", 5) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errdefs.ErrCancelled)
		assert.Equal(t, apiv1.ErrorCodeConnectFailed, errdefs.Code(err))
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire did not return")
	}
	assert.Equal(t, int64(9), c.InUse())
}

func TestAcquire_ReleaseWakesWaiter(t *testing.T) {
	c := newController(t, Config{Budget: 10, WaitTimeout: time.Second})
	require.NoError(t, c.Acquire(context.Background(), "hold", 9))

	done := make(chan error, 1)
	go func() { done <- c.Acquire(context.Background(), "waiter", 5) }()

	time.Sleep(10 * time.Millisecond)
	c.Release("hold", 9)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, int64(5), c.InUse())
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by release")
	}
}

func TestAcquire_ConcurrentNeverExceedsBudget(t *testing.T) {
	const budget = 1000
	c := newController(t, Config{Budget: budget, WaitTimeout: 5 * time.Second})

	var inUse, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 20; j++ {
				size := rng.Int63n(budget-1) + 1
				release, err := c.Admit(context.Background(), "w", size)
				if !assert.NoError(t, err) {
					return
				}
				now := inUse.Add(size)
				for {
					p := peak.Load()
					if now <= p || peak.CompareAndSwap(p, now) {
						break
					}
				}
				assert.Less(t, now, int64(budget))
				time.Sleep(time.Microsecond * time.Duration(rng.Intn(200)))
				inUse.Add(-size)
				release()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Less(t, peak.Load(), int64(budget))
	assert.Zero(t, c.InUse())
}

func TestAdmit_ReleaseIsIdempotent(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(Config{Budget: 10}, tl.Logger)
	require.NoError(t, err)

	release, err := c.Admit(context.Background(), "a", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.InUse())

	release()
	release()
	assert.Zero(t, c.InUse())
	tl.AssertField(t, "admission released", "request.id", "a")
	assert.Len(t, tl.All(), 3, "requested, granted and one release")

	release, err = c.Admit(context.Background(), "b", 10)
	assert.Error(t, err)
	assert.NotPanics(t, release)
	assert.Zero(t, c.InUse())
}

func TestAcquireTimeout(t *testing.T) {
	c := newController(t, Config{Budget: 10})

	assert.True(t, c.AcquireTimeout(9, 0))
	assert.False(t, c.AcquireTimeout(1, 0))
	assert.False(t, c.AcquireTimeout(1, 10*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Release("", 9)
	}()
	assert.True(t, c.AcquireTimeout(5, time.Second))
	assert.Equal(t, int64(5), c.InUse())
}

func TestAcquire_ThrottleFailureReleasesBudget(t *testing.T) {
	c := newController(t, Config{Budget: 100, BytesPerSec: 1})

	// Drain most of the token bucket.
	require.NoError(t, c.Acquire(context.Background(), "first", 60))
	c.Release("first", 60)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Acquire(ctx, "second", 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrResourceExhausted)
	assert.Zero(t, c.InUse())
}
