package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("transport/quic")

// 确保实现了接口
var _ pkgif.Transport = (*Transport)(nil)

// Transport QUIC 传输
type Transport struct {
	mu sync.Mutex

	identity  *identity.Identity
	serverTLS *tls.Config
	config    *quic.Config

	// dialTransport 出站拨号使用的 quic.Transport（优先复用监听 socket）
	dialTransport *quic.Transport
	dialConn      *net.UDPConn
	ownsDialConn  bool

	listeners map[*Listener]struct{}
	closed    bool
}

// New 创建 QUIC 传输
func New(id *identity.Identity) (*Transport, error) {
	serverTLS, err := id.TLSConfig(protocolids.QUICALPN, types.EmptyPeerID)
	if err != nil {
		return nil, fmt.Errorf("server tls config: %w", err)
	}

	return &Transport{
		identity:  id,
		serverTLS: serverTLS,
		config: &quic.Config{
			// 保活使连接在空闲时不被关闭
			MaxIdleTimeout:        30 * time.Second,
			KeepAlivePeriod:       15 * time.Second,
			MaxIncomingStreams:    1024,
			MaxIncomingUniStreams: -1,
		},
		listeners: make(map[*Listener]struct{}),
	}, nil
}

// CanDial 检查是否支持拨号
func (t *Transport) CanDial(addr types.Multiaddr) bool {
	return addr.IsQUIC() && !addr.IsRelay()
}

// CanListen 检查是否支持监听
func (t *Transport) CanListen(addr types.Multiaddr) bool {
	return t.CanDial(addr) && addr.IP() != nil
}

// Dial 拨号连接
func (t *Transport) Dial(ctx context.Context, raddr types.Multiaddr, peer types.PeerID) (pkgif.Connection, error) {
	if !t.CanDial(raddr) {
		return nil, fmt.Errorf("%w: %s", ErrNotQUICAddr, raddr)
	}
	network, hostport, err := raddr.HostPort()
	if err != nil {
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", raddr, err)
	}

	qt, err := t.transportForDial()
	if err != nil {
		return nil, err
	}

	tlsConf, err := t.identity.TLSConfig(protocolids.QUICALPN, peer)
	if err != nil {
		return nil, err
	}

	qconn, err := qt.Dial(ctx, udpAddr, tlsConf, t.config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", raddr, err)
	}

	c, err := newConnection(qconn, t.identity.PeerID(), raddr.WithoutPeerID(), pkgif.DirOutbound)
	if err != nil {
		_ = qconn.CloseWithError(0, "")
		return nil, err
	}
	return c, nil
}

// transportForDial 返回拨号使用的 quic.Transport
func (t *Transport) transportForDial() (*quic.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if t.dialTransport != nil {
		return t.dialTransport, nil
	}

	// 尚未监听时使用随机端口
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("listen udp for dial: %w", err)
	}
	t.dialConn = conn
	t.dialTransport = &quic.Transport{Conn: conn}
	t.ownsDialConn = true
	return t.dialTransport, nil
}

// Listen 监听地址
func (t *Transport) Listen(laddr types.Multiaddr) (pkgif.Listener, error) {
	if !t.CanListen(laddr) {
		return nil, fmt.Errorf("%w: %s", ErrNotQUICAddr, laddr)
	}
	network, hostport, err := laddr.HostPort()
	if err != nil {
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr(network, hostport)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}

	conn, err := net.ListenUDP(network, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", laddr, err)
	}
	qt := &quic.Transport{Conn: conn}

	ql, err := qt.Listen(t.serverTLS, t.config)
	if err != nil {
		_ = qt.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}

	// 首个监听 socket 接管拨号
	if t.dialTransport == nil || t.ownsDialConn {
		if t.ownsDialConn {
			_ = t.dialTransport.Close()
			_ = t.dialConn.Close()
		}
		t.dialTransport = qt
		t.dialConn = conn
		t.ownsDialConn = false
	}

	l := newListener(ql, qt, conn, t)
	t.listeners[l] = struct{}{}

	log.Debug("QUIC 监听已启动", "addr", l.Multiaddr())
	return l, nil
}

// removeListener 移除监听器记录
func (t *Transport) removeListener(l *Listener) {
	t.mu.Lock()
	delete(t.listeners, l)
	if t.dialTransport == l.transport {
		t.dialTransport = nil
		t.dialConn = nil
	}
	t.mu.Unlock()
}

// Close 关闭传输
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	ls := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	ownsDial := t.ownsDialConn
	dialTransport, dialConn := t.dialTransport, t.dialConn
	t.mu.Unlock()

	for _, l := range ls {
		l.Close()
	}
	if ownsDial && dialTransport != nil {
		_ = dialTransport.Close()
		_ = dialConn.Close()
	}
	return nil
}
