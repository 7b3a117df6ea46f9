package autonat

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// MessageType 消息类型
type MessageType int32

const (
	MessageDial         MessageType = 0
	MessageDialResponse MessageType = 1

	messageUnknown MessageType = -1
)

func (t MessageType) String() string {
	switch t {
	case MessageDial:
		return "DIAL"
	case MessageDialResponse:
		return "DIAL_RESPONSE"
	default:
		return fmt.Sprintf("MessageType(%d)", int32(t))
	}
}

// ResponseStatus 回拨结果
type ResponseStatus int32

const (
	StatusOK            ResponseStatus = 0
	StatusDialError     ResponseStatus = 100
	StatusDialRefused   ResponseStatus = 101
	StatusBadRequest    ResponseStatus = 200
	StatusInternalError ResponseStatus = 300
)

func (s ResponseStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDialError:
		return "E_DIAL_ERROR"
	case StatusDialRefused:
		return "E_DIAL_REFUSED"
	case StatusBadRequest:
		return "E_BAD_REQUEST"
	case StatusInternalError:
		return "E_INTERNAL_ERROR"
	default:
		return fmt.Sprintf("ResponseStatus(%d)", int32(s))
	}
}

// 字段号
const (
	fieldType         protowire.Number = 1
	fieldDial         protowire.Number = 2
	fieldDialResponse protowire.Number = 3

	fieldDialPeer protowire.Number = 1

	fieldPeerID    protowire.Number = 1
	fieldPeerAddrs protowire.Number = 2

	fieldRespStatus     protowire.Number = 1
	fieldRespStatusText protowire.Number = 2
	fieldRespAddr       protowire.Number = 3
)

// ============================================================================
//                              DIAL
// ============================================================================

// DialRequest 回拨请求
type DialRequest struct {
	Peer  types.PeerID
	Addrs []types.Multiaddr
}

// peerInfo 编码为 Message.PeerInfo
func (d *DialRequest) peerInfo() []byte {
	b := wire.AppendBytes(nil, fieldPeerID, d.Peer.Bytes())
	for _, a := range types.MultiaddrsToBytes(d.Addrs) {
		b = wire.AppendBytes(b, fieldPeerAddrs, a)
	}
	return b
}

// MarshalProto 编码为 Message.Dial
func (d *DialRequest) MarshalProto() []byte {
	b := protowire.AppendTag(nil, fieldDialPeer, protowire.BytesType)
	return protowire.AppendBytes(b, d.peerInfo())
}

// UnmarshalProto 解码 Message.Dial
func (d *DialRequest) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		if f.Num != fieldDialPeer || f.Type != protowire.BytesType {
			return nil
		}
		return wire.RangeFields(f.Bytes, func(pf wire.Field) error {
			if pf.Type != protowire.BytesType {
				return nil
			}
			switch pf.Num {
			case fieldPeerID:
				if id, err := types.PeerIDFromBytes(pf.Bytes); err == nil {
					d.Peer = id
				}
			case fieldPeerAddrs:
				if a, err := types.MultiaddrFromBytes(pf.Bytes); err == nil {
					d.Addrs = append(d.Addrs, a)
				}
			}
			return nil
		})
	})
}

// ============================================================================
//                              DIAL_RESPONSE
// ============================================================================

// DialResponse 回拨响应
type DialResponse struct {
	Status     ResponseStatus
	StatusText string
	Addr       types.Multiaddr
}

// MarshalProto 编码为 Message.DialResponse
func (r *DialResponse) MarshalProto() []byte {
	b := wire.AppendVarint(nil, fieldRespStatus, uint64(r.Status))
	b = wire.AppendString(b, fieldRespStatusText, r.StatusText)
	if !r.Addr.IsEmpty() {
		if a, err := r.Addr.Bytes(); err == nil {
			b = wire.AppendBytes(b, fieldRespAddr, a)
		}
	}
	return b
}

// UnmarshalProto 解码 Message.DialResponse
func (r *DialResponse) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == fieldRespStatus && f.Type == protowire.VarintType:
			r.Status = ResponseStatus(int32(f.Varint))
		case f.Num == fieldRespStatusText && f.Type == protowire.BytesType:
			r.StatusText = string(f.Bytes)
		case f.Num == fieldRespAddr && f.Type == protowire.BytesType:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				r.Addr = a
			}
		}
		return nil
	})
}

// ============================================================================
//                              Message
// ============================================================================

// Message AutoNAT 消息
type Message struct {
	Type         MessageType
	Dial         *DialRequest
	DialResponse *DialResponse
}

// MarshalProto 编码为 autonat.pb Message
func (m *Message) MarshalProto() []byte {
	b := wire.AppendVarint(nil, fieldType, uint64(m.Type))
	if m.Dial != nil {
		b = wire.AppendMessage(b, fieldDial, m.Dial)
	}
	if m.DialResponse != nil {
		b = wire.AppendMessage(b, fieldDialResponse, m.DialResponse)
	}
	return b
}

// UnmarshalProto 解码 autonat.pb Message
//
// 缺少 type 字段时 Type 为 messageUnknown。
func (m *Message) UnmarshalProto(data []byte) error {
	m.Type = messageUnknown
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == fieldType && f.Type == protowire.VarintType:
			m.Type = MessageType(int32(f.Varint))
		case f.Num == fieldDial && f.Type == protowire.BytesType:
			m.Dial = &DialRequest{}
			return m.Dial.UnmarshalProto(f.Bytes)
		case f.Num == fieldDialResponse && f.Type == protowire.BytesType:
			m.DialResponse = &DialResponse{}
			return m.DialResponse.UnmarshalProto(f.Bytes)
		}
		return nil
	})
}
