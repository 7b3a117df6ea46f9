package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// DefaultBufSize 默认事件缓冲区大小
const DefaultBufSize = 64

// ErrEmitterClosed 发射器已关闭
var ErrEmitterClosed = errors.New("eventbus: emitter closed")

// 确保实现了接口
var _ types.EventSource = (*Emitter)(nil)

// ============================================================================
// Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	mu   sync.RWMutex
	out  chan types.Event
	done chan struct{}

	emitted   atomic.Uint64
	active    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	// Post 队列，由单个协程按序写入 out
	qmu     sync.Mutex
	queue   []types.Event
	pumping bool
}

// NewEmitter 创建事件发射器
func NewEmitter(bufSize int) *Emitter {
	if bufSize < 0 {
		bufSize = 0
	}
	return &Emitter{
		out:  make(chan types.Event, bufSize),
		done: make(chan struct{}),
	}
}

// Events 返回事件通道
//
// 事件流是惰性的：首次调用 Events 之前发射的事件被丢弃。
// 通道只在 Close 之后关闭。
func (e *Emitter) Events() <-chan types.Event {
	e.active.Store(true)
	return e.out
}

// Emit 发射事件，阻塞直到被缓冲或发射器关闭
func (e *Emitter) Emit(ev types.Event) error {
	return e.EmitContext(context.Background(), ev)
}

// EmitContext 发射事件，ctx 取消时放弃
func (e *Emitter) EmitContext(ctx context.Context, ev types.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if !e.active.Load() {
		return nil
	}

	select {
	case e.out <- ev:
		e.emitted.Add(1)
		return nil
	case <-e.done:
		return ErrEmitterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post 将事件追加到有序队列后立即返回
//
// 同一发射器上 Post 的事件按调用顺序交付，与 Emit 的事件之间不保证顺序。
// 可在持锁或事件循环内调用：队列无上限，由后台协程以 Emit 的语义逐个写出。
func (e *Emitter) Post(ev types.Event) {
	if e.closed.Load() || !e.active.Load() {
		return
	}
	e.qmu.Lock()
	e.queue = append(e.queue, ev)
	if !e.pumping {
		e.pumping = true
		go e.pump()
	}
	e.qmu.Unlock()
}

// pump 依次写出队列中的事件，队列为空或发射器关闭时退出
func (e *Emitter) pump() {
	for {
		e.qmu.Lock()
		if len(e.queue) == 0 {
			e.pumping = false
			e.qmu.Unlock()
			return
		}
		ev := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		if err := e.Emit(ev); err != nil {
			e.qmu.Lock()
			e.queue = nil
			e.pumping = false
			e.qmu.Unlock()
			return
		}
	}
}

// Pending 返回 Post 队列中尚未写出的事件数
func (e *Emitter) Pending() int {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return len(e.queue)
}

// Active 是否已有订阅者
func (e *Emitter) Active() bool {
	return e.active.Load()
}

// Emitted 返回已交付的事件数
func (e *Emitter) Emitted() uint64 {
	return e.emitted.Load()
}

// Close 关闭发射器
//
// 关闭后：
//  1. 阻塞中的 Emit 返回 ErrEmitterClosed
//  2. 事件通道被关闭（已缓冲的事件仍可读出）
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)

		e.mu.Lock()
		close(e.out)
		e.mu.Unlock()
	})
	return nil
}
