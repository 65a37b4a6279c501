package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reward-giveaway-backend/internal/common/errors"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "user:42:validate:12345:daily", Key("user:42", "validate", "12345", "daily"))
	assert.Equal(t, "draw", Key("draw"))
}

func TestAcquireRelease(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	guard, err := m.Acquire(context.Background(), "op")
	require.NoError(t, err)
	assert.True(t, m.InFlight("op"))

	guard.Release()
	assert.False(t, m.InFlight("op"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	guard, err := m.Acquire(context.Background(), "op")
	require.NoError(t, err)
	guard.Release()
	guard.Release()

	// A double release must not free a lock the next caller now holds.
	next, err := m.Acquire(context.Background(), "op")
	require.NoError(t, err)
	guard.Release()
	assert.True(t, m.InFlight("op"))
	next.Release()
}

func TestAcquireTimesOutOnHeldKey(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 200 * time.Millisecond, StaleAfter: time.Minute})
	defer m.Close()

	guard, err := m.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer guard.Release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), "busy")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockTimeout, apperrors.CodeOf(err))
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestMutualExclusion(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 5 * time.Second, StaleAfter: time.Minute})
	defer m.Close()

	const goroutines = 50
	var inSection int32
	var maxSeen int32
	var mu sync.Mutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard, err := m.Acquire(context.Background(), "shared")
			if err != nil {
				return
			}
			defer guard.Release()

			mu.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			counter++
			inSection--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, goroutines, counter)
	assert.False(t, m.InFlight("shared"))
}

func TestStaleHolderIsReaped(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 2 * time.Second, StaleAfter: 150 * time.Millisecond})
	defer m.Close()

	// Simulate a crashed holder that never releases.
	_, err := m.Acquire(context.Background(), "stuck")
	require.NoError(t, err)

	guard, err := m.Acquire(context.Background(), "stuck")
	require.NoError(t, err)
	guard.Release()
}

func TestInFlightDiscardsStaleHolder(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 2 * time.Second, StaleAfter: 100 * time.Millisecond})
	defer m.Close()

	// A holder that never releases must not pin the key for callers that only
	// check InFlight and never enter Acquire's wait loop.
	_, err := m.Acquire(context.Background(), "abandoned")
	require.NoError(t, err)
	assert.True(t, m.InFlight("abandoned"))

	time.Sleep(150 * time.Millisecond)
	assert.False(t, m.InFlight("abandoned"))

	guard, err := m.Acquire(context.Background(), "abandoned")
	require.NoError(t, err)
	assert.True(t, m.InFlight("abandoned"))
	guard.Release()
}

func TestReapedHolderCannotReleaseSuccessor(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 2 * time.Second, StaleAfter: 100 * time.Millisecond})
	defer m.Close()

	stale, err := m.Acquire(context.Background(), "op")
	require.NoError(t, err)

	// Wait until the holder is past the staleness threshold, then let a new
	// acquirer take over.
	time.Sleep(150 * time.Millisecond)
	next, err := m.Acquire(context.Background(), "op")
	require.NoError(t, err)

	// The stale guard's release must be a no-op against the new holder.
	stale.Release()
	assert.True(t, m.InFlight("op"))
	next.Release()
	assert.False(t, m.InFlight("op"))
}

func TestAcquireRespectsContext(t *testing.T) {
	m := NewManager(Options{AcquireTimeout: 5 * time.Second, StaleAfter: time.Minute})
	defer m.Close()

	guard, err := m.Acquire(context.Background(), "held")
	require.NoError(t, err)
	defer guard.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "held")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockTimeout, apperrors.CodeOf(err))
}

func TestActiveOperations(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	g1, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	g2, err := m.Acquire(context.Background(), "b")
	require.NoError(t, err)

	ops := m.ActiveOperations()
	assert.ElementsMatch(t, []string{"a", "b"}, ops)

	g1.Release()
	g2.Release()
	assert.Empty(t, m.ActiveOperations())
}

func TestIsRateLimited(t *testing.T) {
	m := NewManager(Options{DebounceWindow: 100 * time.Millisecond})
	defer m.Close()

	assert.False(t, m.IsRateLimited(7))
	assert.True(t, m.IsRateLimited(7))

	time.Sleep(120 * time.Millisecond)
	assert.False(t, m.IsRateLimited(7))

	// Independent users do not interfere.
	assert.False(t, m.IsRateLimited(8))
}

func TestCleanupStale(t *testing.T) {
	m := NewManager(Options{DebounceWindow: time.Millisecond})
	defer m.Close()

	m.IsRateLimited(1)
	m.IsRateLimited(2)
	time.Sleep(20 * time.Millisecond)
	m.IsRateLimited(3)

	purged := m.CleanupStale(10 * time.Millisecond)
	assert.Equal(t, 2, purged)
	assert.Equal(t, 0, m.CleanupStale(10*time.Millisecond))
}
