// Package autonat 实现 AutoNAT 可达性探测
//
// 客户端在启动延迟后，定期请求已连接且支持 /libp2p/autonat/1.0.0 的节点
// 回拨本节点的通告地址，根据结果维护可达性状态（Unknown/Public/Private）。
// 状态切换需要累积置信度：与当前状态一致的结果提升置信度，
// 不一致的结果先消耗置信度，置信度为 0 时才切换。
//
// 服务端为其他节点执行回拨：只拨与观测地址同 IP 的公网地址，
// 每个节点受周期节流（过期 LRU），整体受速率限制。
//
// 事件：
//   - OutboundProbeRequest / OutboundProbeResponse / OutboundProbeError
//   - InboundProbeRequest / InboundProbeResponse / InboundProbeError
//   - StatusChanged
package autonat
