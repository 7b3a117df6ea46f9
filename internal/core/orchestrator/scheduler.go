package orchestrator

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultBootstrapInterval 默认重新引导间隔
const DefaultBootstrapInterval = 5 * time.Minute

// Scheduler 维护定时器
//
// 单一的循环截止时间，由事件循环非阻塞轮询。到期后从当前时刻重新计时，
// 循环被耽搁时不补发。
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	deadline time.Time
}

// NewScheduler 创建定时器，首次到期在 interval 之后
func NewScheduler(clk clock.Clock, interval time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultBootstrapInterval
	}
	return &Scheduler{
		clock:    clk,
		interval: interval,
		deadline: clk.Now().Add(interval),
	}
}

// Poll 检查是否到期；到期时重置截止时间并返回 true
func (s *Scheduler) Poll() bool {
	now := s.clock.Now()
	if now.Before(s.deadline) {
		return false
	}
	s.deadline = now.Add(s.interval)
	return true
}

// Deadline 返回下一次到期时间
func (s *Scheduler) Deadline() time.Time {
	return s.deadline
}

// Interval 返回间隔
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
