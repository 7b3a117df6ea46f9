package quic

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// 确保实现了接口
var _ pkgif.Listener = (*Listener)(nil)

// Listener QUIC 监听器
type Listener struct {
	quicListener *quic.Listener
	transport    *quic.Transport
	udpConn      *net.UDPConn
	owner        *Transport
	addr         types.Multiaddr

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// newListener 创建监听器
func newListener(ql *quic.Listener, qt *quic.Transport, conn *net.UDPConn, owner *Transport) *Listener {
	addr, _ := types.FromNetAddr(conn.LocalAddr())
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		quicListener: ql,
		transport:    qt,
		udpConn:      conn,
		owner:        owner,
		addr:         addr,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Accept 接受连接
//
// 对端证书无法派生 PeerID 的连接被关闭并跳过。
func (l *Listener) Accept() (pkgif.Connection, error) {
	for {
		qconn, err := l.quicListener.Accept(l.ctx)
		if err != nil {
			if l.closed.Load() {
				return nil, ErrListenerClosed
			}
			return nil, err
		}

		remote, _ := types.FromNetAddr(qconn.RemoteAddr())
		c, err := newConnection(qconn, l.owner.identity.PeerID(), remote, pkgif.DirInbound)
		if err != nil {
			log.Debug("QUIC 入站连接身份无效", "remote", remote, "error", err)
			_ = qconn.CloseWithError(0, "")
			continue
		}
		return c, nil
	}
}

// Multiaddr 返回监听地址
func (l *Listener) Multiaddr() types.Multiaddr {
	return l.addr
}

// Close 关闭监听器及其 socket
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	err := l.quicListener.Close()
	_ = l.transport.Close()
	_ = l.udpConn.Close()
	l.owner.removeListener(l)
	return err
}
