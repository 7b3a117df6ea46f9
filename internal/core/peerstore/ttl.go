package peerstore

import (
	"math"
	"time"
)

// 地址 TTL 常量
const (
	// PermanentAddrTTL 永久地址（种子节点）
	PermanentAddrTTL = time.Duration(math.MaxInt64 - 1)

	// ConnectedAddrTTL 连接成功的地址
	ConnectedAddrTTL = 30 * time.Minute

	// RecentlyConnectedAddrTTL 连接断开后保留的地址
	RecentlyConnectedAddrTTL = 15 * time.Minute

	// DiscoveredAddrTTL Kademlia 发现的地址
	DiscoveredAddrTTL = 10 * time.Minute

	// TempAddrTTL 临时地址
	TempAddrTTL = 2 * time.Minute
)
