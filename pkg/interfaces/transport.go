package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向字符串
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Stream 多路复用流
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// Reset 异常终止流（双向）
	Reset() error

	// SetDeadline 设置读写截止时间
	SetDeadline(t time.Time) error
}

// Connection 已完成安全握手与多路复用的连接
type Connection interface {
	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// LocalMultiaddr 返回本地多地址
	LocalMultiaddr() types.Multiaddr

	// RemotePeer 返回远端节点 ID（握手认证后的身份）
	RemotePeer() types.PeerID

	// RemoteMultiaddr 返回远端多地址
	RemoteMultiaddr() types.Multiaddr

	// Direction 返回连接方向
	Direction() Direction

	// NewStream 在此连接上创建新流
	NewStream(ctx context.Context) (Stream, error)

	// AcceptStream 接受对方创建的流
	AcceptStream(ctx context.Context) (Stream, error)

	// IsClosed 检查连接是否已关闭
	IsClosed() bool

	// Close 关闭连接
	Close() error
}

// Listener 监听器
type Listener interface {
	// Accept 接受新连接（阻塞直到有连接或监听器关闭）
	Accept() (Connection, error)

	// Multiaddr 返回实际监听地址
	Multiaddr() types.Multiaddr

	// Close 关闭监听器
	Close() error
}

// Transport 传输层
type Transport interface {
	// Dial 拨号连接到指定地址，peer 非空时校验对端身份
	Dial(ctx context.Context, raddr types.Multiaddr, peer types.PeerID) (Connection, error)

	// CanDial 检查是否支持拨号到指定地址
	CanDial(addr types.Multiaddr) bool

	// CanListen 检查是否支持监听指定地址
	CanListen(addr types.Multiaddr) bool

	// Listen 在指定地址监听
	Listen(laddr types.Multiaddr) (Listener, error)

	// Close 关闭传输
	Close() error
}
