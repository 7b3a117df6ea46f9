package server

import (
	"github.com/google/uuid"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleName 事件来源模块名
const ModuleName = "relay"

// ReservationReqAccepted 预留请求被接受
type ReservationReqAccepted struct {
	Src types.PeerID
	// Renewed 是否为续约
	Renewed bool
}

// ReservationReqDenied 预留请求被拒绝
type ReservationReqDenied struct {
	Src    types.PeerID
	Status Status
}

// ReservationTimedOut 预留到期未续约
type ReservationTimedOut struct {
	Src types.PeerID
}

// ReservationClosed 预留方断开，预留被移除
type ReservationClosed struct {
	Src types.PeerID
}

// CircuitReqDenied 电路请求被拒绝
type CircuitReqDenied struct {
	Src    types.PeerID
	Dst    types.PeerID
	Status Status
}

// CircuitReqOutboundConnectFailed 无法打开到目标的 STOP 流
type CircuitReqOutboundConnectFailed struct {
	Src types.PeerID
	Dst types.PeerID
	Err error
}

// CircuitReqAccepted 电路已建立
type CircuitReqAccepted struct {
	ID  uuid.UUID
	Src types.PeerID
	Dst types.PeerID
}

// CircuitClosed 电路关闭，正常结束时 Err 为 nil
type CircuitClosed struct {
	ID  uuid.UUID
	Src types.PeerID
	Dst types.PeerID
	// Bytes 双向共转发的字节数
	Bytes int64
	Err   error
}

func (ReservationReqAccepted) Module() string          { return ModuleName }
func (ReservationReqDenied) Module() string            { return ModuleName }
func (ReservationTimedOut) Module() string             { return ModuleName }
func (ReservationClosed) Module() string               { return ModuleName }
func (CircuitReqDenied) Module() string                { return ModuleName }
func (CircuitReqOutboundConnectFailed) Module() string { return ModuleName }
func (CircuitReqAccepted) Module() string              { return ModuleName }
func (CircuitClosed) Module() string                   { return ModuleName }
