package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("embedder", 3, time.Minute)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	// Given: a breaker with a threshold of 3 failures
	cb := NewCircuitBreaker("embedder", 3, time.Minute)
	boom := errors.New("backend down")

	// When: the backend fails 3 times
	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	// Then: the circuit is open and requests fail fast
	assert.Equal(t, StateOpen, cb.State())
	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("embedder", 3, time.Minute)
	boom := errors.New("backend down")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	require.Equal(t, 2, cb.Failures())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	// Given: an open breaker with a short reset timeout
	cb := NewCircuitBreaker("embedder", 1, 10*time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses and a probe succeeds
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))

	// Then: the circuit closes again
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("embedder", 1, 10*time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("down") })

	time.Sleep(20 * time.Millisecond)
	err := cb.Execute(func() error { return errors.New("still down") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitExecute_ReturnsResult(t *testing.T) {
	cb := NewCircuitBreaker("embedder", 3, time.Minute)

	vec, err := CircuitExecute(cb, func() ([]float32, error) {
		return []float32{1, 2, 3}, nil
	})

	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestCircuitExecute_OpenReturnsErrCircuitOpen(t *testing.T) {
	cb := NewCircuitBreaker("embedder", 1, time.Minute)
	_ = cb.Execute(func() error { return errors.New("down") })

	_, err := CircuitExecute(cb, func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
