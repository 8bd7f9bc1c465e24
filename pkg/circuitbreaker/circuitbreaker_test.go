package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.True(t, cb.Open())

	// Calls are rejected without running the function.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)
}

func TestCircuitBreakerRecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: time.Millisecond})

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.True(t, cb.Open())

	time.Sleep(5 * time.Millisecond)

	// Half-open probe succeeds and closes the breaker.
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.False(t, cb.Open())
}

func TestCircuitBreakerResetsFailureCountOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errors.New("boom") })

	// One failure since the last success is below the threshold.
	assert.False(t, cb.Open())
}
