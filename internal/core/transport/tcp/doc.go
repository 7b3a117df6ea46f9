// Package tcp 提供基于 TCP 的传输层实现
//
// TCP 不提供原生安全与多路复用，入站与出站连接都经过 upgrader
// 协商 noise 与 yamux。所有连接启用 TCP_NODELAY。
package tcp
