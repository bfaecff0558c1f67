package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := New("acct-1", 3, time.Minute, nil)

	for i := 0; i < 3; i++ {
		assert.False(t, b.Open(), "breaker must stay closed before the threshold")
		err := b.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	assert.True(t, b.Open())
	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SuccessClearsFailureCount(t *testing.T) {
	b := New("acct-1", 3, time.Minute, nil)

	require.Error(t, b.Execute(func() error { return errBoom }))
	require.Error(t, b.Execute(func() error { return errBoom }))
	require.NoError(t, b.Execute(func() error { return nil }))

	// counter restarted: two more failures must not trip a threshold of three
	require.Error(t, b.Execute(func() error { return errBoom }))
	require.Error(t, b.Execute(func() error { return errBoom }))
	assert.False(t, b.Open())
}

func TestBreaker_ManualReset(t *testing.T) {
	b := New("acct-1", 1, time.Hour, nil)

	require.Error(t, b.Execute(func() error { return errBoom }))
	require.True(t, b.Open())

	b.Reset()
	assert.False(t, b.Open())

	calls := 0
	require.NoError(t, b.Execute(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
}

func TestBreaker_ResetConcurrentWithExecute(t *testing.T) {
	b := New("acct-1", 2, time.Minute, nil)

	// operator reset racing the tick loop; run with -race
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = b.Execute(func() error { return errBoom })
			_ = b.Open()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Reset()
		}
	}()
	wg.Wait()

	b.Reset()
	assert.False(t, b.Open())
	require.NoError(t, b.Execute(func() error { return nil }))
}

func TestBreaker_RecoversAfterWindow(t *testing.T) {
	b := New("acct-1", 1, 50*time.Millisecond, nil)

	require.Error(t, b.Execute(func() error { return errBoom }))
	require.True(t, b.Open())

	time.Sleep(80 * time.Millisecond)

	// half-open probe succeeds and closes the circuit
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.False(t, b.Open())
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("acct-1", 0, 0, nil)
	assert.Equal(t, uint32(DefaultFailureThreshold), b.threshold)
	assert.Equal(t, DefaultResetWindow, b.window)
}
