package link

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(3, 10*time.Second)
	b.now = func() time.Time { return now }
	fail := errors.New("x")

	t.Run("未达阈值保持闭合", func(t *testing.T) {
		b.Record(fail)
		b.Record(fail)
		assert.NoError(t, b.Allow())
		assert.Equal(t, BreakerClosed, b.State())
	})

	t.Run("成功清零失败计数", func(t *testing.T) {
		b.Record(nil)
		b.Record(fail)
		b.Record(fail)
		assert.Equal(t, BreakerClosed, b.State())
	})

	t.Run("达到阈值熔断", func(t *testing.T) {
		b.Record(fail)
		assert.Equal(t, BreakerOpen, b.State())
		assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
		assert.Equal(t, int64(1), b.Trips())
	})

	t.Run("冷却后半开，试探失败再次熔断", func(t *testing.T) {
		now = now.Add(11 * time.Second)
		assert.NoError(t, b.Allow())
		assert.Equal(t, BreakerHalfOpen, b.State())
		b.Record(fail)
		assert.Equal(t, BreakerOpen, b.State())
		assert.Equal(t, int64(2), b.Trips())
	})

	t.Run("试探成功恢复", func(t *testing.T) {
		now = now.Add(11 * time.Second)
		assert.NoError(t, b.Allow())
		b.Record(nil)
		assert.Equal(t, BreakerClosed, b.State())
	})
}

func TestBreaker_Abandon(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, 10*time.Second)
	b.now = func() time.Time { return now }

	b.Abandon()
	assert.Equal(t, BreakerClosed, b.State())

	b.Record(errors.New("x"))
	now = now.Add(11 * time.Second)
	assert.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.Abandon()
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, int64(1), b.Trips())
	// 冷却已过，可立即再次试探
	assert.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
}

func TestBreaker_Disabled(t *testing.T) {
	b := NewBreaker(0, 0)
	for i := 0; i < 100; i++ {
		b.Record(errors.New("x"))
	}
	assert.NoError(t, b.Allow())
	assert.Equal(t, "closed", b.State().String())
}
