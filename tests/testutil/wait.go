package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// WaitForCondition 等待条件满足或超时
//
// 参数：
//   - t: 测试对象
//   - timeout: 超时时间
//   - interval: 检查间隔
//   - condition: 条件函数，返回 true 表示条件满足
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即检查一次
	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查
//
// 使用默认间隔 100ms。
//
// 示例:
//
//	testutil.Eventually(t, 10*time.Second, func() bool {
//	    return h.IsConnected(peer)
//	}, "应该建立连接")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 100*time.Millisecond, condition, msg)
}

// Sleep 等待指定时间（用于测试中的简单延迟）
func Sleep(d time.Duration) {
	time.Sleep(d)
}

// WaitEvent 从事件流中等待指定类型的事件，其他事件被跳过
//
// 示例:
//
//	ev := testutil.WaitEvent[identify.Received](t, events, 5*time.Second)
func WaitEvent[T types.Event](t *testing.T, events <-chan types.Event, timeout time.Duration) T {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				var zero T
				t.Fatalf("事件流已关闭，未收到 %T", zero)
				return zero
			}
			if e, ok := ev.(T); ok {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("等待事件 %T 超时", zero)
			return zero
		}
	}
}
