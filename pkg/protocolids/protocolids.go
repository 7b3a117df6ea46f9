// Package protocolids 定义引导节点使用的全部协议 ID
//
// 这是协议 ID 的唯一真源，各模块通过引用此包获取协议常量。
// 协议名与 libp2p 网络保持一致，便于被现有节点识别。
package protocolids

import "github.com/dep2p/go-bootnode/pkg/types"

// ============================================================================
// 身份交换
// ============================================================================

// Identify 身份交换协议
const Identify types.ProtocolID = "/ipfs/id/1.0.0"

// IdentifyPush 身份推送协议，监听地址变化时主动推送
const IdentifyPush types.ProtocolID = "/ipfs/id/push/1.0.0"

// IdentifyProtocolVersion 身份交换中通告的协议版本
const IdentifyProtocolVersion = "/ipsn/1.0.0"

// Version 引导节点版本
const Version = "0.1.0"

// AgentVersion 身份交换中通告的代理版本
const AgentVersion = "go-bootnode/" + Version

// ============================================================================
// 发现
// ============================================================================

// Kademlia Kademlia DHT 协议
//
// 身份交换结果只有在对端声明支持此协议时才会写入发现表。
const Kademlia types.ProtocolID = "/ipfs/kad/1.0.0"

// ============================================================================
// NAT 与存活
// ============================================================================

// AutoNAT NAT 可达性探测协议
const AutoNAT types.ProtocolID = "/libp2p/autonat/1.0.0"

// Ping 存活检测协议
const Ping types.ProtocolID = "/ipfs/ping/1.0.0"

// ============================================================================
// 中继
// ============================================================================

// RelayHop 中继 HOP 协议（预留、连接请求）
const RelayHop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/hop"

// RelayStop 中继 STOP 协议（中继 → 目标节点）
const RelayStop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/stop"

// ============================================================================
// 传输协商
// ============================================================================

// Noise Noise 安全通道协商 ID
const Noise types.ProtocolID = "/noise"

// Yamux yamux 多路复用协商 ID
const Yamux types.ProtocolID = "/yamux/1.0.0"

// QUICALPN QUIC TLS ALPN
const QUICALPN = "libp2p"

// All 返回本节点注册的全部应用层协议
func All() []types.ProtocolID {
	return []types.ProtocolID{
		Identify,
		IdentifyPush,
		Kademlia,
		AutoNAT,
		Ping,
		RelayHop,
	}
}
