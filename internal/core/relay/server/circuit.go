package server

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// copyBufSize 转发缓冲区大小
const copyBufSize = 32 * 1024

// circuit 活跃电路
type circuit struct {
	id      uuid.UUID
	srcPeer types.PeerID
	dstPeer types.PeerID
	src     pkgif.Stream
	dst     pkgif.Stream

	bytes     atomic.Int64
	resetOnce sync.Once

	mu    sync.Mutex
	cause error
}

func newCircuit(src, dst types.PeerID, srcStream pkgif.Stream) *circuit {
	return &circuit{
		id:      uuid.New(),
		srcPeer: src,
		dstPeer: dst,
		src:     srcStream,
	}
}

// reset 中断两端的流
//
// 先把截止时间拨到当前，唤醒阻塞在 Read 上的转发协程。
func (c *circuit) reset() {
	c.resetOnce.Do(func() {
		now := time.Now()
		for _, st := range []pkgif.Stream{c.src, c.dst} {
			if st == nil {
				continue
			}
			_ = st.SetDeadline(now)
			_ = st.Reset()
		}
	})
}

// abort 记录首个错误并中断电路
func (c *circuit) abort(err error) error {
	c.mu.Lock()
	if c.cause == nil {
		c.cause = err
	}
	c.mu.Unlock()
	c.reset()
	return err
}

func (c *circuit) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// splice 双向转发直到两端关闭或触达限制
//
// 任一方向出错时中断整个电路，返回第一个错误；正常关闭返回 nil。
func (c *circuit) splice(cfg Config, now time.Time) error {
	deadline := now.Add(cfg.CircuitDuration)
	_ = c.src.SetDeadline(deadline)
	_ = c.dst.SetDeadline(deadline)

	var limiter *rate.Limiter
	if cfg.BandwidthLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BandwidthLimit), copyBufSize)
	}

	var g errgroup.Group
	g.Go(func() error { return c.pipe(c.dst, c.src, cfg.CircuitBytes, limiter) })
	g.Go(func() error { return c.pipe(c.src, c.dst, cfg.CircuitBytes, limiter) })
	if err := g.Wait(); err != nil {
		if cause := c.err(); cause != nil {
			return cause
		}
		return c.abort(err)
	}
	_ = c.src.Close()
	_ = c.dst.Close()
	return nil
}

// pipe 单向转发，src 读到 EOF 后半关闭 dst
func (c *circuit) pipe(dst, src pkgif.Stream, limit int64, limiter *rate.Limiter) error {
	buf := make([]byte, copyBufSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if total+int64(n) > limit {
				return c.abort(ErrCircuitBytesExceeded)
			}
			if limiter != nil {
				if err := limiter.WaitN(context.Background(), n); err != nil {
					return c.abort(err)
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return c.abort(classify(err))
			}
			total += int64(n)
			c.bytes.Add(int64(n))
		}
		if rerr == io.EOF {
			return dst.Close()
		}
		if rerr != nil {
			return c.abort(classify(rerr))
		}
	}
}

// classify 将超时映射为持续时间超限
func classify(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrCircuitDurationExceeded
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrCircuitDurationExceeded
	}
	return err
}
