// Package testutil 提供测试辅助工具
package testutil

import "time"

// 测试数据固件
//
// 提供测试中常用的常量值，确保测试一致性。

const (
	// DefaultTestProtocol 默认测试协议 ID
	//
	// 用于流协商测试的协议标识。
	DefaultTestProtocol = "/test/echo/1.0.0"

	// LoopbackTCP 本地 TCP 监听地址
	LoopbackTCP = "/ip4/127.0.0.1/tcp/0"

	// LoopbackQUIC 本地 QUIC 监听地址
	LoopbackQUIC = "/ip4/127.0.0.1/udp/0/quic-v1"

	// DefaultTimeout 测试默认超时
	DefaultTimeout = 10 * time.Second
)
