// Package kademlia 实现 Kademlia 路由表与节点发现
//
// 路由表按 sha256(PeerID) 的 XOR 距离分为 256 个 K 桶（k=20）。
// 桶满时新节点进入替换缓存，AddAddress 返回 Pending；
// 桶内节点连续查询失败后被驱逐，替换缓存中的节点补位。
//
// 查询：
//   - GetClosestPeers 以 α 个并发 FIND_NODE 迭代逼近目标
//   - Bootstrap 先查找自身，再对每个非空桶随机取键刷新；
//     每一步发出一个 OutboundQueryProgressed 事件，最后一步 Step.Last 为 true
//
// 服务端模式下回应 FIND_NODE 请求，并发出 InboundRequest 事件。
package kademlia
