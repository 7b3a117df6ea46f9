package swarm

import (
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleName 事件来源模块名
const ModuleName = "swarm"

// ConnectionEstablished 连接建立
type ConnectionEstablished struct {
	Peer      types.PeerID
	Addr      types.Multiaddr
	Direction pkgif.Direction
	// NumEstablished 建立后与该节点的连接数
	NumEstablished int
}

// ConnectionClosed 连接关闭
type ConnectionClosed struct {
	Peer      types.PeerID
	Addr      types.Multiaddr
	Direction pkgif.Direction
	// NumRemaining 关闭后与该节点剩余的连接数
	NumRemaining int
}

// Dialing 开始拨号
type Dialing struct {
	Peer types.PeerID
}

// OutgoingConnectionError 出站拨号失败
type OutgoingConnectionError struct {
	Peer types.PeerID
	Err  error
}

// IncomingConnectionError 入站连接被拒绝
type IncomingConnectionError struct {
	Addr types.Multiaddr
	Err  error
}

// NewListenAddr 新的监听地址
type NewListenAddr struct {
	Addr types.Multiaddr
}

// ListenerClosed 监听器关闭
type ListenerClosed struct {
	Addr types.Multiaddr
	Err  error
}

func (ConnectionEstablished) Module() string   { return ModuleName }
func (ConnectionClosed) Module() string        { return ModuleName }
func (Dialing) Module() string                 { return ModuleName }
func (OutgoingConnectionError) Module() string { return ModuleName }
func (IncomingConnectionError) Module() string { return ModuleName }
func (NewListenAddr) Module() string           { return ModuleName }
func (ListenerClosed) Module() string          { return ModuleName }
