package identify

import "github.com/dep2p/go-bootnode/pkg/types"

// ModuleName 事件来源模块名
const ModuleName = "identify"

// Received 收到对端身份信息（请求结果或推送）
type Received struct {
	Peer types.PeerID
	Info *Info
}

// Sent 已向对端发送身份信息
type Sent struct {
	Peer types.PeerID
}

// Pushed 已向对端推送身份更新
type Pushed struct {
	Peer types.PeerID
}

// Error 身份交换失败
type Error struct {
	Peer types.PeerID
	Err  error
}

func (Received) Module() string { return ModuleName }
func (Sent) Module() string     { return ModuleName }
func (Pushed) Module() string   { return ModuleName }
func (Error) Module() string    { return ModuleName }
