package dnsaddr

import "errors"

var (
	// ErrNotDNSAddr 不是 /dnsaddr 地址
	ErrNotDNSAddr = errors.New("dnsaddr: not a dnsaddr multiaddr")

	// ErrMaxDepthExceeded 超过最大递归深度
	ErrMaxDepthExceeded = errors.New("dnsaddr: max recursion depth exceeded")

	// ErrNoRecordsFound 未找到记录
	ErrNoRecordsFound = errors.New("dnsaddr: no records found")

	// ErrNoServers 没有可用的 DNS 服务器
	ErrNoServers = errors.New("dnsaddr: no dns servers")
)
