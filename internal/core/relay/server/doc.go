// Package server 实现中继服务端
//
// server 按 circuit relay v2 的方式为 NAT 后的节点提供预留与电路转发，
// hop 与 stop 协议上的消息为长度前缀 JSON。
//
// # 预留
//
//   - RESERVE 请求建立或续约预留，续约时 ReservationReqAccepted.Renewed 为 true
//   - 预留数受总量与单 IP 限制
//   - 预留到期未续约时发出 ReservationTimedOut；预留方断开时发出 ReservationClosed
//
// # 电路
//
//   - CONNECT 要求目标持有预留，受总电路数与单预留并发数限制
//   - 服务端向目标打开 STOP 流，成功后双向转发
//   - 转发受持续时间与字节数限制，可选带宽限速
//   - 电路以 uuid 标识，结束时发出 CircuitClosed
package server
