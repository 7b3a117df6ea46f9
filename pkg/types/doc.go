// Package types 定义引导节点的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - peerid.go     - PeerID（multihash 的 Base58 文本）
//   - multiaddr.go  - Multiaddr 多地址类型
//   - protocol.go   - ProtocolID
//   - events.go     - Event 接口（编排器边界上的事件联合类型）
//   - errors.go     - 公共错误定义
//
// # PeerID 格式
//
// PeerID 兼容 libp2p 的文本格式：
//   - Qm...        sha2-256 multihash（旧式 RSA 身份、引导种子节点）
//   - 12D3KooW...  identity multihash（内嵌 Ed25519 公钥）
package types
