package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("transport/tcp")

// 确保实现了接口
var _ pkgif.Transport = (*Transport)(nil)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	localPeer   types.PeerID
	upgrader    *upgrader.Upgrader
	dialTimeout time.Duration
	keepAlive   time.Duration

	listeners   map[*Listener]struct{}
	listenersMu sync.Mutex

	closed atomic.Bool
}

// New 创建 TCP 传输
func New(localPeer types.PeerID, up *upgrader.Upgrader, dialTimeout, keepAlive time.Duration) *Transport {
	return &Transport{
		localPeer:   localPeer,
		upgrader:    up,
		dialTimeout: dialTimeout,
		keepAlive:   keepAlive,
		listeners:   make(map[*Listener]struct{}),
	}
}

// CanDial 检查是否可以拨号到指定地址
func (t *Transport) CanDial(addr types.Multiaddr) bool {
	if t.closed.Load() || addr.IsRelay() {
		return false
	}
	_, ok := addr.ValueForProtocol(types.ProtoTCP)
	return ok
}

// CanListen 检查是否可以监听指定地址
func (t *Transport) CanListen(addr types.Multiaddr) bool {
	return t.CanDial(addr) && addr.IP() != nil
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, raddr types.Multiaddr, peer types.PeerID) (pkgif.Connection, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	network, hostport, err := raddr.HostPort()
	if err != nil || !t.CanDial(raddr) {
		return nil, fmt.Errorf("%w: %s", ErrNotTCPAddr, raddr)
	}

	dialer := &net.Dialer{
		Timeout:   t.dialTimeout,
		KeepAlive: t.keepAlive,
	}
	conn, err := dialer.DialContext(ctx, network, hostport)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", raddr, err)
	}
	setNoDelay(conn)

	return t.upgrader.Upgrade(ctx, conn, pkgif.DirOutbound, peer, raddr.WithoutPeerID())
}

// Listen 监听入站连接
func (t *Transport) Listen(laddr types.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	network, hostport, err := laddr.HostPort()
	if err != nil || !t.CanListen(laddr) {
		return nil, fmt.Errorf("%w: %s", ErrNotTCPAddr, laddr)
	}

	lc := net.ListenConfig{KeepAlive: t.keepAlive}
	nl, err := lc.Listen(context.Background(), network, hostport)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}

	l := newListener(nl, t)

	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	log.Debug("TCP 监听已启动", "addr", l.Multiaddr())
	return l, nil
}

// removeListener 移除监听器记录
func (t *Transport) removeListener(l *Listener) {
	t.listenersMu.Lock()
	delete(t.listeners, l)
	t.listenersMu.Unlock()
}

// Close 关闭传输层及其所有监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	ls := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenersMu.Unlock()

	var lastErr error
	for _, l := range ls {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// setNoDelay 启用 TCP_NODELAY
func setNoDelay(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
}
