package server

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// MessageType 消息类型
//
// hop 与 stop 协议的枚举取值不同，编码时分别映射。
type MessageType int

const (
	MessageReserve MessageType = iota
	MessageConnect
	MessageStatus

	messageUnknown MessageType = -1
)

// String 返回消息类型名称
func (t MessageType) String() string {
	switch t {
	case MessageReserve:
		return "RESERVE"
	case MessageConnect:
		return "CONNECT"
	case MessageStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// hop: RESERVE=0 CONNECT=1 STATUS=2；stop: CONNECT=0 STATUS=1
func (t MessageType) hopWire() uint64 { return uint64(t) }

func hopTypeFromWire(v uint64) MessageType {
	if v > uint64(MessageStatus) {
		return messageUnknown
	}
	return MessageType(v)
}

func (t MessageType) stopWire() uint64 {
	if t == MessageStatus {
		return 1
	}
	return 0
}

func stopTypeFromWire(v uint64) MessageType {
	switch v {
	case 0:
		return MessageConnect
	case 1:
		return MessageStatus
	default:
		return messageUnknown
	}
}

// Status 响应状态码
type Status int

const (
	StatusOK                    Status = 100
	StatusReservationRefused    Status = 200
	StatusResourceLimitExceeded Status = 201
	StatusPermissionDenied      Status = 202
	StatusConnectionFailed      Status = 203
	StatusNoReservation         Status = 204
	StatusMalformedMessage      Status = 400
	StatusUnexpectedMessage     Status = 401
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusReservationRefused:
		return "RESERVATION_REFUSED"
	case StatusResourceLimitExceeded:
		return "RESOURCE_LIMIT_EXCEEDED"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	case StatusConnectionFailed:
		return "CONNECTION_FAILED"
	case StatusNoReservation:
		return "NO_RESERVATION"
	case StatusMalformedMessage:
		return "MALFORMED_MESSAGE"
	case StatusUnexpectedMessage:
		return "UNEXPECTED_MESSAGE"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// ============================================================================
//                              子消息
// ============================================================================

// PeerInfo 节点信息
type PeerInfo struct {
	ID    types.PeerID
	Addrs []types.Multiaddr
}

func (p *PeerInfo) MarshalProto() []byte {
	b := wire.AppendBytes(nil, 1, p.ID.Bytes())
	for _, a := range types.MultiaddrsToBytes(p.Addrs) {
		b = wire.AppendBytes(b, 2, a)
	}
	return b
}

func (p *PeerInfo) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			// 非法 ID 保持为空，由调用方回复 MALFORMED_MESSAGE
			if id, err := types.PeerIDFromBytes(f.Bytes); err == nil {
				p.ID = id
			}
		case 2:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				p.Addrs = append(p.Addrs, a)
			}
		}
		return nil
	})
}

// ReservationInfo 预留信息
type ReservationInfo struct {
	// Expire 过期时间（Unix 秒）
	Expire int64
	Addrs  []types.Multiaddr
}

func (r *ReservationInfo) MarshalProto() []byte {
	b := wire.AppendVarint(nil, 1, uint64(r.Expire))
	for _, a := range types.MultiaddrsToBytes(r.Addrs) {
		b = wire.AppendBytes(b, 2, a)
	}
	return b
}

func (r *ReservationInfo) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			r.Expire = int64(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				r.Addrs = append(r.Addrs, a)
			}
		}
		return nil
	})
}

// Limit 电路限制
type Limit struct {
	// Duration 最长持续秒数
	Duration uint32
	// Data 每个方向最多转发的字节数
	Data int64
}

func (l *Limit) MarshalProto() []byte {
	var b []byte
	if l.Duration > 0 {
		b = wire.AppendVarint(b, 1, uint64(l.Duration))
	}
	if l.Data > 0 {
		b = wire.AppendVarint(b, 2, uint64(l.Data))
	}
	return b
}

func (l *Limit) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		switch f.Num {
		case 1:
			l.Duration = uint32(f.Varint)
		case 2:
			l.Data = int64(f.Varint)
		}
		return nil
	})
}

// ============================================================================
//                              hop / stop 消息
// ============================================================================

// HopMessage hop 协议消息
type HopMessage struct {
	Type        MessageType
	Peer        *PeerInfo
	Reservation *ReservationInfo
	Limit       *Limit
	Status      Status
}

// MarshalProto 编码为 circuit v2 HopMessage
func (m *HopMessage) MarshalProto() []byte {
	b := wire.AppendVarint(nil, 1, m.Type.hopWire())
	if m.Peer != nil {
		b = wire.AppendMessage(b, 2, m.Peer)
	}
	if m.Reservation != nil {
		b = wire.AppendMessage(b, 3, m.Reservation)
	}
	if m.Limit != nil {
		b = wire.AppendMessage(b, 4, m.Limit)
	}
	if m.Status != 0 {
		b = wire.AppendVarint(b, 5, uint64(m.Status))
	}
	return b
}

// UnmarshalProto 解码 circuit v2 HopMessage
func (m *HopMessage) UnmarshalProto(data []byte) error {
	m.Type = messageUnknown
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = hopTypeFromWire(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer = &PeerInfo{}
			return m.Peer.UnmarshalProto(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Reservation = &ReservationInfo{}
			return m.Reservation.UnmarshalProto(f.Bytes)
		case f.Num == 4 && f.Type == protowire.BytesType:
			m.Limit = &Limit{}
			return m.Limit.UnmarshalProto(f.Bytes)
		case f.Num == 5 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return nil
	})
}

// StopMessage stop 协议消息
type StopMessage struct {
	Type   MessageType
	Peer   *PeerInfo
	Limit  *Limit
	Status Status
}

// MarshalProto 编码为 circuit v2 StopMessage
func (m *StopMessage) MarshalProto() []byte {
	b := wire.AppendVarint(nil, 1, m.Type.stopWire())
	if m.Peer != nil {
		b = wire.AppendMessage(b, 2, m.Peer)
	}
	if m.Limit != nil {
		b = wire.AppendMessage(b, 3, m.Limit)
	}
	if m.Status != 0 {
		b = wire.AppendVarint(b, 4, uint64(m.Status))
	}
	return b
}

// UnmarshalProto 解码 circuit v2 StopMessage
func (m *StopMessage) UnmarshalProto(data []byte) error {
	m.Type = messageUnknown
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = stopTypeFromWire(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer = &PeerInfo{}
			return m.Peer.UnmarshalProto(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Limit = &Limit{}
			return m.Limit.UnmarshalProto(f.Bytes)
		case f.Num == 4 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return nil
	})
}
