package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	tec "github.com/jbenet/go-temp-err-catcher"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// acceptQueueSize 已升级、等待 Accept 的连接队列长度
const acceptQueueSize = 16

// 确保实现了接口
var _ pkgif.Listener = (*Listener)(nil)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener TCP 监听器
//
// 后台循环接受原始连接，每个连接在独立 goroutine 中升级，
// 升级失败的连接被丢弃，不影响监听器。
type Listener struct {
	listener  net.Listener
	addr      types.Multiaddr
	transport *Transport

	ctx    context.Context
	cancel context.CancelFunc

	incoming chan pkgif.Connection
	errCh    chan error

	wg     sync.WaitGroup
	closed atomic.Bool
}

// newListener 创建监听器并启动接受循环
func newListener(nl net.Listener, t *Transport) *Listener {
	addr, _ := types.FromNetAddr(nl.Addr())
	ctx, cancel := context.WithCancel(context.Background())

	l := &Listener{
		listener:  nl,
		addr:      addr,
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
		incoming:  make(chan pkgif.Connection, acceptQueueSize),
		errCh:     make(chan error, 1),
	}

	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

// acceptLoop 接受原始连接
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	var catcher tec.TempErrCatcher
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			if !l.closed.Load() {
				log.Debug("TCP 接受连接失败", "addr", l.addr, "error", err)
			}
			l.errCh <- err
			return
		}
		catcher.Reset()
		setNoDelay(conn)

		l.wg.Add(1)
		go l.upgrade(conn)
	}
}

// upgrade 升级单个入站连接
func (l *Listener) upgrade(conn net.Conn) {
	defer l.wg.Done()

	// 监听器关闭时中断进行中的握手
	stop := context.AfterFunc(l.ctx, func() { conn.Close() })
	defer stop()

	remote, _ := types.FromNetAddr(conn.RemoteAddr())
	c, err := l.transport.upgrader.Upgrade(l.ctx, conn, pkgif.DirInbound, types.EmptyPeerID, remote)
	if err != nil {
		log.Debug("入站连接升级失败", "remote", remote, "error", err)
		return
	}

	select {
	case l.incoming <- c:
	case <-l.ctx.Done():
		c.Close()
	}
}

// Accept 接受已升级的连接
func (l *Listener) Accept() (pkgif.Connection, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.ctx.Done():
		return nil, ErrListenerClosed
	case err := <-l.errCh:
		l.errCh <- err
		// 等待中的已升级连接优先交付
		select {
		case c := <-l.incoming:
			return c, nil
		default:
		}
		return nil, err
	}
}

// Multiaddr 返回实际监听地址
func (l *Listener) Multiaddr() types.Multiaddr {
	return l.addr
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	err := l.listener.Close()
	l.wg.Wait()
	l.transport.removeListener(l)

	// 丢弃未被接受的连接
	for {
		select {
		case c := <-l.incoming:
			c.Close()
		default:
			return err
		}
	}
}
