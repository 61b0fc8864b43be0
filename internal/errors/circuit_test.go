package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 2 failures
	cb := NewCircuitBreaker("dense", WithMaxFailures(2))
	fail := func() error { return errors.New("down") }

	// When: two calls fail
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	// Then: the circuit is open and fails fast
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	// Given: an open breaker and a controllable clock
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("sparse",
		WithMaxFailures(1),
		WithResetTimeout(time.Second),
		WithClock(func() time.Time { return now }))
	_ = cb.Execute(func() error { return errors.New("down") })
	assert.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses
	now = now.Add(2 * time.Second)

	// Then: the breaker is half-open and a success closes it
	assert.Equal(t, StateHalfOpen, cb.State())
	v, err := CircuitExecute(cb, func() (int, error) { return 7, nil })
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("sparse",
		WithMaxFailures(3),
		WithResetTimeout(time.Second),
		WithClock(func() time.Time { return now }))
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	now = now.Add(2 * time.Second)

	_ = cb.Execute(func() error { return errors.New("still down") })

	assert.Equal(t, StateOpen, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
