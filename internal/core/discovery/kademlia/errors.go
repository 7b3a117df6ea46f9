package kademlia

import "errors"

var (
	// ErrNoKnownPeers 路由表为空
	ErrNoKnownPeers = errors.New("kademlia: no known peers")

	// ErrBootstrapInProgress 已有引导查询在进行中
	ErrBootstrapInProgress = errors.New("kademlia: bootstrap already in progress")

	// ErrInvalidMessage 无效消息
	ErrInvalidMessage = errors.New("kademlia: invalid message")

	// ErrNoPeersResponded 查询中没有节点成功响应
	ErrNoPeersResponded = errors.New("kademlia: no peers responded")

	// ErrClosed 服务已停止
	ErrClosed = errors.New("kademlia: closed")
)
