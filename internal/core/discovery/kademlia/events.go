package kademlia

import (
	"fmt"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleName 事件来源模块名
const ModuleName = "kademlia"

// QueryID 查询标识
type QueryID uint64

// String 返回查询标识文本
func (id QueryID) String() string {
	return fmt.Sprintf("QueryId(%d)", uint64(id))
}

// ProgressStep 查询进度
type ProgressStep struct {
	// Count 第几步，从 1 开始
	Count int
	// Last 是否为最后一步
	Last bool
}

// QueryResult 查询结果
type QueryResult interface {
	fmt.Stringer
	isQueryResult()
}

// BootstrapResult 引导查询的单步结果
type BootstrapResult struct {
	// Peer 本步查找的目标节点
	Peer types.PeerID
	// NumRemaining 剩余步数
	NumRemaining int
	Err          error
}

func (BootstrapResult) isQueryResult() {}

func (r BootstrapResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("Bootstrap(Err(%v))", r.Err)
	}
	return fmt.Sprintf("Bootstrap(Ok { peer: %s, num_remaining: %d })", r.Peer, r.NumRemaining)
}

// GetClosestPeersResult 最近节点查询结果
type GetClosestPeersResult struct {
	Key   []byte
	Peers []types.PeerID
	Err   error
}

func (GetClosestPeersResult) isQueryResult() {}

func (r GetClosestPeersResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("GetClosestPeers(Err(%v))", r.Err)
	}
	return fmt.Sprintf("GetClosestPeers(Ok { peers: %d })", len(r.Peers))
}

// OutboundQueryProgressed 出站查询进度
type OutboundQueryProgressed struct {
	ID     QueryID
	Result QueryResult
	Step   ProgressStep
}

// RoutingUpdated 路由表更新
type RoutingUpdated struct {
	Peer      types.PeerID
	Addrs     []types.Multiaddr
	IsNewPeer bool
	Bucket    int
}

// InboundRequest 入站请求
type InboundRequest struct {
	Peer    types.PeerID
	Request MessageType
}

// UnroutablePeer 无地址可路由的节点
type UnroutablePeer struct {
	Peer types.PeerID
}

func (OutboundQueryProgressed) Module() string { return ModuleName }
func (RoutingUpdated) Module() string          { return ModuleName }
func (InboundRequest) Module() string          { return ModuleName }
func (UnroutablePeer) Module() string          { return ModuleName }
