package kademlia

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// MessageType 消息类型
type MessageType int32

const (
	MessagePutValue     MessageType = 0
	MessageGetValue     MessageType = 1
	MessageAddProvider  MessageType = 2
	MessageGetProviders MessageType = 3
	// MessageFindNode 查找最近节点，唯一支持的请求
	MessageFindNode MessageType = 4
	MessagePing     MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MessagePutValue:
		return "PUT_VALUE"
	case MessageGetValue:
		return "GET_VALUE"
	case MessageAddProvider:
		return "ADD_PROVIDER"
	case MessageGetProviders:
		return "GET_PROVIDERS"
	case MessageFindNode:
		return "FIND_NODE"
	case MessagePing:
		return "PING"
	default:
		return fmt.Sprintf("MessageType(%d)", int32(t))
	}
}

// ConnectionType 发送方与该节点的连接状态
type ConnectionType int32

const (
	NotConnected  ConnectionType = 0
	Connected     ConnectionType = 1
	CanConnect    ConnectionType = 2
	CannotConnect ConnectionType = 3
)

// 字段号
const (
	fieldType        protowire.Number = 1
	fieldKey         protowire.Number = 2
	fieldCloserPeers protowire.Number = 8

	fieldPeerID         protowire.Number = 1
	fieldPeerAddrs      protowire.Number = 2
	fieldPeerConnection protowire.Number = 3
)

// PeerInfo 消息中携带的节点信息
type PeerInfo struct {
	ID         types.PeerID
	Addrs      []types.Multiaddr
	Connection ConnectionType
}

// MarshalProto 编码为 Message.Peer
func (p *PeerInfo) MarshalProto() []byte {
	b := wire.AppendBytes(nil, fieldPeerID, p.ID.Bytes())
	for _, a := range types.MultiaddrsToBytes(p.Addrs) {
		b = wire.AppendBytes(b, fieldPeerAddrs, a)
	}
	if p.Connection != NotConnected {
		b = wire.AppendVarint(b, fieldPeerConnection, uint64(p.Connection))
	}
	return b
}

// UnmarshalProto 解码 Message.Peer
//
// ID 非法时保持为空，由调用方丢弃；无法识别的地址被跳过。
func (p *PeerInfo) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == fieldPeerID && f.Type == protowire.BytesType:
			if id, err := types.PeerIDFromBytes(f.Bytes); err == nil {
				p.ID = id
			}
		case f.Num == fieldPeerAddrs && f.Type == protowire.BytesType:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				p.Addrs = append(p.Addrs, a)
			}
		case f.Num == fieldPeerConnection && f.Type == protowire.VarintType:
			p.Connection = ConnectionType(f.Varint)
		}
		return nil
	})
}

// Message 请求与响应共用的消息结构
//
// 只处理 type、key 与 closerPeers；record、providerPeers 等字段被忽略。
type Message struct {
	Type        MessageType
	Key         []byte
	CloserPeers []PeerInfo
}

// MarshalProto 编码为 dht.pb Message
func (m *Message) MarshalProto() []byte {
	var b []byte
	if m.Type != MessagePutValue {
		b = wire.AppendVarint(b, fieldType, uint64(m.Type))
	}
	b = wire.AppendBytes(b, fieldKey, m.Key)
	for i := range m.CloserPeers {
		b = wire.AppendMessage(b, fieldCloserPeers, &m.CloserPeers[i])
	}
	return b
}

// UnmarshalProto 解码 dht.pb Message
func (m *Message) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		switch {
		case f.Num == fieldType && f.Type == protowire.VarintType:
			m.Type = MessageType(f.Varint)
		case f.Num == fieldKey && f.Type == protowire.BytesType:
			m.Key = wire.Clone(f.Bytes)
		case f.Num == fieldCloserPeers && f.Type == protowire.BytesType:
			var p PeerInfo
			if err := p.UnmarshalProto(f.Bytes); err != nil {
				return err
			}
			m.CloserPeers = append(m.CloserPeers, p)
		}
		return nil
	})
}

// validate 校验请求
func (m *Message) validate() error {
	if m.Type != MessageFindNode || len(m.Key) == 0 {
		return ErrInvalidMessage
	}
	return nil
}
