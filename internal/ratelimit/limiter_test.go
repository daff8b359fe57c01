package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *testClock, *MemoryStore) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	l, err := New("signin", cfg, store, WithClock(clock.Now))
	require.NoError(t, err)
	return l, clock, store
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New("x", Config{MaxAttempts: 0, Window: time.Minute, BlockDuration: time.Minute}, NewMemoryStore())
	assert.Error(t, err)

	_, err = New("x", SignIn, nil)
	assert.Error(t, err)
}

func TestCheck_CountsDownThenBlocks(t *testing.T) {
	l, _, _ := newTestLimiter(t, SignIn)
	ctx := context.Background()

	for _, want := range []int{4, 3, 2, 1, 0} {
		res, err := l.Check(ctx, "ada@uni.edu")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, want, res.RemainingAttempts)
	}

	res, err := l.Check(ctx, "ada@uni.edu")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 15*60, res.RetryAfter)
	assert.Equal(t, "Too many attempts. Please try again in 15 minutes.", res.Message)
}

func TestCheck_BlockedKeyStaysBlocked(t *testing.T) {
	l, clock, _ := newTestLimiter(t, SignIn)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(10 * time.Minute)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5*60, res.RetryAfter)
}

func TestCheck_AfterBlockAndWindowExpire(t *testing.T) {
	l, clock, _ := newTestLimiter(t, SignIn)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(15*time.Minute + time.Second)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.RemainingAttempts)
}

func TestCheck_ExpiredBlockInsideWindowReblocks(t *testing.T) {
	// Password reset locks for 30m inside a 60m window.
	l, clock, _ := newTestLimiter(t, PasswordReset)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(31 * time.Minute)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*60, res.RetryAfter)
}

func TestCheck_WindowExpiryResetsCount(t *testing.T) {
	l, clock, _ := newTestLimiter(t, SignUp)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(61 * time.Minute)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.RemainingAttempts)
}

func TestCheck_KeysAreNormalised(t *testing.T) {
	l, _, _ := newTestLimiter(t, SignIn)
	ctx := context.Background()

	_, err := l.Check(ctx, "Ada@Uni.EDU ")
	require.NoError(t, err)
	res, err := l.Check(ctx, "ada@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, 3, res.RemainingAttempts)
}

func TestReset(t *testing.T) {
	l, _, _ := newTestLimiter(t, SignIn)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "k")
		require.NoError(t, err)
	}

	require.NoError(t, l.Reset(ctx, "k"))

	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, SignIn.MaxAttempts-1, res.RemainingAttempts)
}

func TestCleanup(t *testing.T) {
	l, clock, store := newTestLimiter(t, PasswordReset)
	ctx := context.Background()

	// "locked" gets blocked; "stale" just ages out.
	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "locked")
		require.NoError(t, err)
	}
	_, err := l.Check(ctx, "stale")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = l.Check(ctx, "locked")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = l.Check(ctx, "fresh")
	require.NoError(t, err)

	n, err := l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, store.Len())

	res, err := l.Check(ctx, "locked")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCleanup_OnlyTouchesOwnPrefix(t *testing.T) {
	clock := &testClock{now: time.Now()}
	store := NewMemoryStore()
	a, err := New("a", SignIn, store, WithClock(clock.Now))
	require.NoError(t, err)
	b, err := New("b", SignUp, store, WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.Check(ctx, "k")
	require.NoError(t, err)
	_, err = b.Check(ctx, "k")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	n, err := a.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestHumanWait(t *testing.T) {
	assert.Equal(t, "1 second", humanWait(1))
	assert.Equal(t, "45 seconds", humanWait(45))
	assert.Equal(t, "1 minute", humanWait(60))
	assert.Equal(t, "2 minutes", humanWait(61))
}
