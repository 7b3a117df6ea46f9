package autonat

import (
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleName 事件来源模块名
const ModuleName = "autonat"

// Status 可达性状态
type Status int

const (
	StatusUnknown Status = iota
	StatusPublic
	StatusPrivate
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusPublic:
		return "public"
	case StatusPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// OutboundProbeRequest 已向 Peer 发出探测请求
type OutboundProbeRequest struct {
	Peer types.PeerID
}

// OutboundProbeResponse Peer 成功回拨到 Addr
type OutboundProbeResponse struct {
	Peer types.PeerID
	Addr types.Multiaddr
}

// OutboundProbeError 出站探测失败
//
// 没有可用服务端时 Peer 为 nil。
type OutboundProbeError struct {
	Peer *types.PeerID
	Err  error
}

// InboundProbeRequest 收到 Peer 的回拨请求
type InboundProbeRequest struct {
	Peer types.PeerID
}

// InboundProbeResponse 已成功回拨 Peer
type InboundProbeResponse struct {
	Peer types.PeerID
	Addr types.Multiaddr
}

// InboundProbeError 入站探测失败
type InboundProbeError struct {
	Peer types.PeerID
	Err  error
}

// StatusChanged 可达性状态变化
type StatusChanged struct {
	Old Status
	New Status
}

func (OutboundProbeRequest) Module() string  { return ModuleName }
func (OutboundProbeResponse) Module() string { return ModuleName }
func (OutboundProbeError) Module() string    { return ModuleName }
func (InboundProbeRequest) Module() string   { return ModuleName }
func (InboundProbeResponse) Module() string  { return ModuleName }
func (InboundProbeError) Module() string     { return ModuleName }
func (StatusChanged) Module() string         { return ModuleName }
