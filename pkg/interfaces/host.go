package interfaces

import (
	"context"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// StreamHandler 入站流处理函数
//
// 处理函数负责关闭流。
type StreamHandler func(s Stream, conn Connection)

// Notifiee 连接事件订阅者
type Notifiee interface {
	// Connected 新连接建立
	Connected(conn Connection)

	// Disconnected 连接关闭
	Disconnected(conn Connection)

	// ListenAddrsChanged 监听地址变化
	ListenAddrsChanged(addrs []types.Multiaddr)
}

// NotifyBundle 以函数字段实现 Notifiee，未设置的回调被忽略
type NotifyBundle struct {
	ConnectedF          func(Connection)
	DisconnectedF       func(Connection)
	ListenAddrsChangedF func([]types.Multiaddr)
}

var _ Notifiee = (*NotifyBundle)(nil)

// Connected 实现 Notifiee
func (nb *NotifyBundle) Connected(c Connection) {
	if nb.ConnectedF != nil {
		nb.ConnectedF(c)
	}
}

// Disconnected 实现 Notifiee
func (nb *NotifyBundle) Disconnected(c Connection) {
	if nb.DisconnectedF != nil {
		nb.DisconnectedF(c)
	}
}

// ListenAddrsChanged 实现 Notifiee
func (nb *NotifyBundle) ListenAddrsChanged(addrs []types.Multiaddr) {
	if nb.ListenAddrsChangedF != nil {
		nb.ListenAddrsChangedF(addrs)
	}
}

// Host 协议模块看到的节点视图
type Host interface {
	// ID 返回本地节点 ID
	ID() types.PeerID

	// ListenAddrs 返回实际监听地址
	ListenAddrs() []types.Multiaddr

	// Addrs 返回对外通告的地址（监听地址 + 已确认的外部地址）
	Addrs() []types.Multiaddr

	// AddExternalAddr 登记一个已确认的外部地址
	AddExternalAddr(addr types.Multiaddr)

	// Connect 确保与 peer 存在连接，addrs 会先写入地址簿
	Connect(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) error

	// NewStream 打开到 peer 的流，按顺序协商 protos 中的第一个可用协议
	NewStream(ctx context.Context, peer types.PeerID, protos ...types.ProtocolID) (Stream, types.ProtocolID, error)

	// SetStreamHandler 注册入站协议处理函数
	SetStreamHandler(proto types.ProtocolID, handler StreamHandler)

	// RemoveStreamHandler 移除入站协议处理函数
	RemoveStreamHandler(proto types.ProtocolID)

	// Protocols 返回本地支持的协议
	Protocols() []types.ProtocolID

	// Peerstore 返回节点信息存储
	Peerstore() Peerstore

	// ConnsToPeer 返回到 peer 的所有连接
	ConnsToPeer(peer types.PeerID) []Connection

	// Peers 返回当前已连接的节点
	Peers() []types.PeerID

	// IsConnected 检查是否与 peer 存在连接
	IsConnected(peer types.PeerID) bool

	// ClosePeer 关闭与 peer 的所有连接
	ClosePeer(peer types.PeerID) error

	// Notify 订阅连接事件
	Notify(n Notifiee)

	// StopNotify 取消订阅
	StopNotify(n Notifiee)
}
