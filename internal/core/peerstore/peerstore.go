package peerstore

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// 确保实现了接口
var _ pkgif.Peerstore = (*Peerstore)(nil)

// expiringAddr 带过期时间的地址
type expiringAddr struct {
	expires time.Time
}

// Peerstore 节点信息存储
type Peerstore struct {
	mu sync.RWMutex

	clock     clock.Clock
	addrs     map[types.PeerID]map[types.Multiaddr]*expiringAddr
	protocols map[types.PeerID][]types.ProtocolID
}

// New 创建节点信息存储
func New() *Peerstore {
	return NewWithClock(clock.New())
}

// NewWithClock 使用指定时钟创建（用于测试）
func NewWithClock(clk clock.Clock) *Peerstore {
	return &Peerstore{
		clock:     clk,
		addrs:     make(map[types.PeerID]map[types.Multiaddr]*expiringAddr),
		protocols: make(map[types.PeerID][]types.ProtocolID),
	}
}

// ============================================================================
//                              地址簿
// ============================================================================

// expiry 计算过期时间，PermanentAddrTTL 不参与加法以免溢出
func (ps *Peerstore) expiry(ttl time.Duration) time.Time {
	if ttl >= PermanentAddrTTL {
		return time.Unix(1<<62, 0)
	}
	return ps.clock.Now().Add(ttl)
}

// AddAddrs 添加地址，已有地址取较长的 TTL
func (ps *Peerstore) AddAddrs(peer types.PeerID, addrs []types.Multiaddr, ttl time.Duration) {
	if peer.IsEmpty() || ttl <= 0 {
		return
	}
	exp := ps.expiry(ttl)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	book := ps.addrs[peer]
	if book == nil {
		book = make(map[types.Multiaddr]*expiringAddr)
		ps.addrs[peer] = book
	}
	for _, a := range addrs {
		a = a.WithoutPeerID()
		if a.IsEmpty() {
			continue
		}
		if e, ok := book[a]; ok {
			if exp.After(e.expires) {
				e.expires = exp
			}
			continue
		}
		book[a] = &expiringAddr{expires: exp}
	}
	if len(book) == 0 {
		delete(ps.addrs, peer)
	}
}

// SetAddrs 设置地址 TTL，ttl 为 0 时删除
func (ps *Peerstore) SetAddrs(peer types.PeerID, addrs []types.Multiaddr, ttl time.Duration) {
	if peer.IsEmpty() {
		return
	}
	exp := ps.expiry(ttl)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	book := ps.addrs[peer]
	if book == nil {
		if ttl <= 0 {
			return
		}
		book = make(map[types.Multiaddr]*expiringAddr)
		ps.addrs[peer] = book
	}
	for _, a := range addrs {
		a = a.WithoutPeerID()
		if ttl <= 0 {
			delete(book, a)
			continue
		}
		book[a] = &expiringAddr{expires: exp}
	}
	if len(book) == 0 {
		delete(ps.addrs, peer)
	}
}

// Addrs 返回未过期的地址（按字典序）
func (ps *Peerstore) Addrs(peer types.PeerID) []types.Multiaddr {
	now := ps.clock.Now()

	ps.mu.Lock()
	defer ps.mu.Unlock()

	book := ps.addrs[peer]
	out := make([]types.Multiaddr, 0, len(book))
	for a, e := range book {
		if !e.expires.After(now) {
			delete(book, a)
			continue
		}
		out = append(out, a)
	}
	if book != nil && len(book) == 0 {
		delete(ps.addrs, peer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClearAddrs 清空地址
func (ps *Peerstore) ClearAddrs(peer types.PeerID) {
	ps.mu.Lock()
	delete(ps.addrs, peer)
	ps.mu.Unlock()
}

// PeersWithAddrs 返回拥有地址的节点
func (ps *Peerstore) PeersWithAddrs() []types.PeerID {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]types.PeerID, 0, len(ps.addrs))
	for p := range ps.addrs {
		out = append(out, p)
	}
	return out
}

// ============================================================================
//                              协议簿
// ============================================================================

// SetProtocols 覆盖节点支持的协议
func (ps *Peerstore) SetProtocols(peer types.PeerID, protos ...types.ProtocolID) {
	if peer.IsEmpty() {
		return
	}
	ps.mu.Lock()
	ps.protocols[peer] = append([]types.ProtocolID{}, protos...)
	ps.mu.Unlock()
}

// Protocols 返回节点支持的协议（副本）
func (ps *Peerstore) Protocols(peer types.PeerID) []types.ProtocolID {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	protos := ps.protocols[peer]
	if protos == nil {
		return nil
	}
	return append([]types.ProtocolID{}, protos...)
}

// SupportsProtocol 检查节点是否支持指定协议
func (ps *Peerstore) SupportsProtocol(peer types.PeerID, proto types.ProtocolID) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return types.ContainsProtocol(ps.protocols[peer], proto)
}

// RemovePeer 删除节点的全部信息
func (ps *Peerstore) RemovePeer(peer types.PeerID) {
	ps.mu.Lock()
	delete(ps.addrs, peer)
	delete(ps.protocols, peer)
	ps.mu.Unlock()
}
