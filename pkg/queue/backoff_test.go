package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pgtask/pkg/queue"
)

func TestDefaultBackoff(t *testing.T) {
	t.Parallel()

	backoff := queue.DefaultBackoff()

	// attempt n waits 2^n seconds
	for attempt, want := range map[int]time.Duration{
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		10: 1024 * time.Second,
		20: time.Hour,
	} {
		assert.Equal(t, want, backoff.NextInterval(attempt), "attempt %d", attempt)
	}

	assert.Equal(t, 8*time.Second, queue.BaseRunnable{}.Backoff(3))
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	t.Run("zero value", func(t *testing.T) {
		t.Parallel()

		var b queue.ExponentialBackoff
		assert.Equal(t, time.Second, b.NextInterval(1))
		assert.Equal(t, 16*time.Second, b.NextInterval(5))
		assert.Equal(t, time.Duration(0), b.NextInterval(0))
		assert.Equal(t, time.Duration(0), b.NextInterval(-3))
	})

	t.Run("capped", func(t *testing.T) {
		t.Parallel()

		b := queue.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      3,
		}
		assert.Equal(t, 1500*time.Millisecond, b.NextInterval(2))
		assert.Equal(t, 4500*time.Millisecond, b.NextInterval(3))
		assert.Equal(t, 5*time.Second, b.NextInterval(4))
	})

	t.Run("jitter stays in range", func(t *testing.T) {
		t.Parallel()

		b := queue.ExponentialBackoff{InitialInterval: time.Second, JitterFactor: 0.5}
		for range 20 {
			d := b.NextInterval(3)
			assert.GreaterOrEqual(t, d, 2*time.Second)
			assert.LessOrEqual(t, d, 6*time.Second)
		}
	})
}

func TestLinearBackoff(t *testing.T) {
	t.Parallel()

	var zero queue.LinearBackoff
	assert.Equal(t, 30*time.Second, zero.NextInterval(1))
	assert.Equal(t, 90*time.Second, zero.NextInterval(3))

	capped := queue.LinearBackoff{Interval: time.Minute, MaxInterval: 3 * time.Minute}
	assert.Equal(t, 2*time.Minute, capped.NextInterval(2))
	assert.Equal(t, 3*time.Minute, capped.NextInterval(10))
	assert.Equal(t, time.Duration(0), capped.NextInterval(0))
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := queue.FixedBackoff{Interval: 10 * time.Second}
	assert.Equal(t, 10*time.Second, b.NextInterval(1))
	assert.Equal(t, 10*time.Second, b.NextInterval(100))
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
}
