// Package upgrader 把原始 TCP 连接升级为安全的多路复用连接
//
// 升级流程：
//
//	net.Conn ──mss(/noise)──▶ Noise XX ──mss(/yamux/1.0.0)──▶ yamux 会话
//
// 两次协商都通过 multistream-select 完成；出站方为发起者（客户端）。
// QUIC 连接自带 TLS 1.3 与流多路复用，不经过升级器。
package upgrader
