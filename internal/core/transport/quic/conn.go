package quic

import (
	"context"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// 确保实现了接口
var _ pkgif.Connection = (*Connection)(nil)

// Connection QUIC 连接
type Connection struct {
	quicConn   quic.Connection
	localPeer  types.PeerID
	remotePeer types.PeerID
	localAddr  types.Multiaddr
	remoteAddr types.Multiaddr
	direction  pkgif.Direction
}

// newConnection 包装 QUIC 连接，对端身份从 TLS 证书派生
func newConnection(qconn quic.Connection, local types.PeerID, remoteAddr types.Multiaddr, dir pkgif.Direction) (*Connection, error) {
	certs := qconn.ConnectionState().TLS.PeerCertificates
	if len(certs) == 0 {
		return nil, identity.ErrNoPeerCertificate
	}
	remote, err := identity.PeerIDFromCertificate(certs[0])
	if err != nil {
		return nil, fmt.Errorf("remote certificate: %w", err)
	}

	localAddr, _ := types.FromNetAddr(qconn.LocalAddr())
	return &Connection{
		quicConn:   qconn,
		localPeer:  local,
		remotePeer: remote,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		direction:  dir,
	}, nil
}

// LocalPeer 返回本地节点 ID
func (c *Connection) LocalPeer() types.PeerID { return c.localPeer }

// LocalMultiaddr 返回本地多地址
func (c *Connection) LocalMultiaddr() types.Multiaddr { return c.localAddr }

// RemotePeer 返回远端节点 ID
func (c *Connection) RemotePeer() types.PeerID { return c.remotePeer }

// RemoteMultiaddr 返回远端多地址
func (c *Connection) RemoteMultiaddr() types.Multiaddr { return c.remoteAddr }

// Direction 返回连接方向
func (c *Connection) Direction() pkgif.Direction { return c.direction }

// NewStream 创建新流
func (c *Connection) NewStream(ctx context.Context) (pkgif.Stream, error) {
	s, err := c.quicConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

// AcceptStream 接受对方创建的流
func (c *Connection) AcceptStream(ctx context.Context) (pkgif.Stream, error) {
	s, err := c.quicConn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

// IsClosed 检查连接是否已关闭
func (c *Connection) IsClosed() bool {
	return c.quicConn.Context().Err() != nil
}

// Close 关闭连接
func (c *Connection) Close() error {
	return c.quicConn.CloseWithError(0, "")
}

// stream QUIC 流
type stream struct {
	quic.Stream
}

// Reset 双向取消流
func (s *stream) Reset() error {
	s.Stream.CancelRead(0)
	s.Stream.CancelWrite(0)
	return nil
}
