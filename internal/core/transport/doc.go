// Package transport 汇集引导节点启用的传输
//
// 同一端口同时提供两种传输：
//   - TCP：noise 安全通道 + yamux 多路复用，启用 TCP_NODELAY
//   - QUIC v1：TLS 1.3 + 原生多路复用
//
// 两种传输都实现 pkg/interfaces.Transport，由 swarm 按地址选择。
package transport
