// Package swarm 实现连接群管理
//
// swarm 是引导节点网络层的底层引擎，持有所有传输与多路复用连接：
//
//   - 监听：按配置地址在各传输上监听，全部成功或全部回滚
//   - 拨号：同一节点的并发拨号合并为一次；/dnsaddr 地址先解析；
//     多个地址并行拨号，取第一个成功的连接
//   - 连接池：每个连接有独立的入站流循环，循环结束即视为连接关闭
//   - 通知：Notifiee 回调与事件流（ConnectionEstablished 等）
//
// 协议协商与地址通告不在本包内，由 host 包在其之上完成。
//
// 使用示例：
//
//	s, err := swarm.New(localID, ps, transports, swarm.WithResolver(r))
//	if err := s.Listen(addrs...); err != nil { ... }
//	conn, err := s.DialPeer(ctx, peer)
package swarm
