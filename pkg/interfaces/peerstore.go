package interfaces

import (
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Peerstore 节点信息存储（地址簿 + 协议簿）
type Peerstore interface {
	// AddAddrs 添加地址，已有地址取较长的 TTL
	AddAddrs(peer types.PeerID, addrs []types.Multiaddr, ttl time.Duration)

	// SetAddrs 设置地址 TTL，ttl 为 0 时删除
	SetAddrs(peer types.PeerID, addrs []types.Multiaddr, ttl time.Duration)

	// Addrs 返回未过期的地址
	Addrs(peer types.PeerID) []types.Multiaddr

	// ClearAddrs 清空地址
	ClearAddrs(peer types.PeerID)

	// PeersWithAddrs 返回拥有地址的节点
	PeersWithAddrs() []types.PeerID

	// SetProtocols 覆盖节点支持的协议
	SetProtocols(peer types.PeerID, protos ...types.ProtocolID)

	// Protocols 返回节点支持的协议
	Protocols(peer types.PeerID) []types.ProtocolID

	// SupportsProtocol 检查节点是否支持指定协议
	SupportsProtocol(peer types.PeerID, proto types.ProtocolID) bool

	// RemovePeer 删除节点的全部信息
	RemovePeer(peer types.PeerID)
}
