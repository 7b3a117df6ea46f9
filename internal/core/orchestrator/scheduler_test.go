package orchestrator

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_FiresOncePerInterval(t *testing.T) {
	clk := clock.NewMock()
	s := NewScheduler(clk, 5*time.Minute)

	assert.False(t, s.Poll())
	clk.Add(4*time.Minute + 59*time.Second)
	assert.False(t, s.Poll())

	clk.Add(time.Second)
	assert.True(t, s.Poll())
	assert.False(t, s.Poll(), "同一时刻只触发一次")
	assert.Equal(t, clk.Now().Add(5*time.Minute), s.Deadline())

	t.Log("✅ 定时器按间隔触发测试通过")
}

func TestScheduler_NoCatchUp(t *testing.T) {
	clk := clock.NewMock()
	s := NewScheduler(clk, 5*time.Minute)

	// 循环被耽搁了两个半间隔
	clk.Add(12*time.Minute + 30*time.Second)
	fired := clk.Now()
	assert.True(t, s.Poll())
	assert.False(t, s.Poll())
	assert.Equal(t, fired.Add(5*time.Minute), s.Deadline(), "从触发时刻向后重置")

	clk.Add(4 * time.Minute)
	assert.False(t, s.Poll())
	clk.Add(time.Minute)
	assert.True(t, s.Poll())

	t.Log("✅ 定时器不补发测试通过")
}

func TestScheduler_Monotonic(t *testing.T) {
	clk := clock.NewMock()
	interval := 5 * time.Minute
	s := NewScheduler(clk, interval)

	var fires []time.Time
	for i := 0; i < 200; i++ {
		clk.Add(37 * time.Second)
		if s.Poll() {
			fires = append(fires, clk.Now())
		}
	}

	assert.NotEmpty(t, fires)
	for i := 1; i < len(fires); i++ {
		assert.GreaterOrEqual(t, fires[i].Sub(fires[i-1]), interval, "两次触发间隔不小于配置间隔")
	}
	assert.True(t, s.Deadline().After(clk.Now()))

	t.Log("✅ 定时器单调性测试通过")
}

func TestScheduler_Defaults(t *testing.T) {
	s := NewScheduler(nil, 0)
	assert.Equal(t, DefaultBootstrapInterval, s.Interval())

	t.Log("✅ 定时器默认值测试通过")
}
