package identify

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Info 节点身份信息
type Info struct {
	// ProtocolVersion 协议版本
	ProtocolVersion string

	// AgentVersion 代理版本
	AgentVersion string

	// PublicKey 公钥（protobuf 编码）
	PublicKey []byte

	// ListenAddrs 监听地址列表
	ListenAddrs []types.Multiaddr

	// ObservedAddr 对端看到的接收方地址
	ObservedAddr types.Multiaddr

	// Protocols 支持的协议列表
	Protocols []types.ProtocolID
}

// Identify 消息字段号
const (
	fieldPublicKey       protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldObservedAddr    protowire.Number = 4
	fieldProtocolVersion protowire.Number = 5
	fieldAgentVersion    protowire.Number = 6
)

// MarshalProto 编码为 Identify 消息
func (i *Info) MarshalProto() []byte {
	var b []byte
	b = wire.AppendString(b, fieldProtocolVersion, i.ProtocolVersion)
	b = wire.AppendString(b, fieldAgentVersion, i.AgentVersion)
	b = wire.AppendBytes(b, fieldPublicKey, i.PublicKey)
	for _, a := range types.MultiaddrsToBytes(i.ListenAddrs) {
		b = wire.AppendBytes(b, fieldListenAddrs, a)
	}
	if i.ObservedAddr != "" {
		if a, err := i.ObservedAddr.Bytes(); err == nil {
			b = wire.AppendBytes(b, fieldObservedAddr, a)
		}
	}
	for _, p := range i.Protocols {
		b = wire.AppendString(b, fieldProtocols, string(p))
	}
	return b
}

// UnmarshalProto 解码 Identify 消息
//
// 合并到已有字段上，重复字段追加，与分段发送的身份信息兼容。
// 无法识别的地址被丢弃；签名节点记录（字段 8）不解析。
func (i *Info) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case fieldProtocolVersion:
			i.ProtocolVersion = string(f.Bytes)
		case fieldAgentVersion:
			i.AgentVersion = string(f.Bytes)
		case fieldPublicKey:
			i.PublicKey = wire.Clone(f.Bytes)
		case fieldListenAddrs:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				i.ListenAddrs = append(i.ListenAddrs, a)
			}
		case fieldObservedAddr:
			if a, err := types.MultiaddrFromBytes(f.Bytes); err == nil {
				i.ObservedAddr = a
			}
		case fieldProtocols:
			i.Protocols = append(i.Protocols, types.ProtocolID(f.Bytes))
		}
		return nil
	})
}

// verify 校验公钥与 peer 匹配
//
// 未携带公钥的信息不做校验。
func (i *Info) verify(peer types.PeerID) error {
	if len(i.PublicKey) == 0 {
		return nil
	}
	pub, err := identity.UnmarshalPublicKey(i.PublicKey)
	if err != nil {
		return err
	}
	if !identity.MatchesPeerID(pub, peer) {
		return ErrPublicKeyMismatch
	}
	return nil
}

// sanitize 丢弃无法解析的地址与空协议
func (i *Info) sanitize() {
	addrs := i.ListenAddrs[:0]
	for _, a := range i.ListenAddrs {
		parsed, err := types.ParseMultiaddr(string(a))
		if err != nil {
			continue
		}
		addrs = append(addrs, parsed.WithoutPeerID())
	}
	i.ListenAddrs = addrs

	if i.ObservedAddr != "" {
		if _, err := types.ParseMultiaddr(string(i.ObservedAddr)); err != nil {
			i.ObservedAddr = ""
		}
	}

	protos := i.Protocols[:0]
	for _, p := range i.Protocols {
		if p != "" {
			protos = append(protos, p)
		}
	}
	i.Protocols = protos
}
