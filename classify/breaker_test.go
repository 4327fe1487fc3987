package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(5, 2, time.Minute)
	for i := 0; i < 4; i++ {
		require.True(t, b.CanRequest())
		b.RecordFailure()
		require.Equal(t, StateClosed, b.State())
	}
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.False(t, b.CanRequest())
}

func TestCircuitBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	b := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.CanRequest())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	require.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.CanRequest())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
}

func TestCircuitBreakerResetReturnsToClosed(t *testing.T) {
	b := NewCircuitBreaker(1, 2, time.Minute)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	b.Reset()
	require.Equal(t, StateClosed, b.State())
	require.True(t, b.CanRequest())
}
