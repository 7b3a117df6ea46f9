package kademlia

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              常量定义
// ============================================================================

const (
	// DefaultBucketSize K 桶大小
	DefaultBucketSize = 20

	// DefaultMaxFailures 连续失败多少次后驱逐
	DefaultMaxFailures = 3
)

// RoutingUpdate 地址登记结果
type RoutingUpdate int

const (
	// Failed 无法登记（本节点或空地址）
	Failed RoutingUpdate = iota
	// Added 新节点加入路由表
	Added
	// Updated 已有节点的地址更新
	Updated
	// Pending 目标桶已满，进入替换缓存
	Pending
)

// String 返回结果名称
func (u RoutingUpdate) String() string {
	switch u {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Pending:
		return "pending"
	default:
		return "failed"
	}
}

// ============================================================================
//                              路由表节点
// ============================================================================

// Entry 路由表节点
type Entry struct {
	Peer      types.PeerID
	Key       Key
	Addrs     []types.Multiaddr
	LastSeen  time.Time
	FailCount int
}

func (e *Entry) clone() Entry {
	c := *e
	c.Addrs = append([]types.Multiaddr(nil), e.Addrs...)
	return c
}

// mergeAddrs 合并地址，返回是否有新地址
func (e *Entry) mergeAddrs(addrs []types.Multiaddr) bool {
	added := false
	for _, a := range addrs {
		dup := false
		for _, existing := range e.Addrs {
			if existing == a {
				dup = true
				break
			}
		}
		if !dup {
			e.Addrs = append(e.Addrs, a)
			added = true
		}
	}
	return added
}

// ============================================================================
//                              K 桶
// ============================================================================

// bucket K 桶，最近活跃的节点在前
type bucket struct {
	entries      []*Entry
	replacements []*Entry
}

func (b *bucket) find(p types.PeerID) (int, *Entry) {
	for i, e := range b.entries {
		if e.Peer == p {
			return i, e
		}
	}
	return -1, nil
}

func (b *bucket) findReplacement(p types.PeerID) (int, *Entry) {
	for i, e := range b.replacements {
		if e.Peer == p {
			return i, e
		}
	}
	return -1, nil
}

// moveToFront 将节点移动到列表前端
func (b *bucket) moveToFront(i int) {
	e := b.entries[i]
	copy(b.entries[1:i+1], b.entries[:i])
	b.entries[0] = e
}

// ============================================================================
//                              路由表
// ============================================================================

// RoutingTable K 桶路由表
type RoutingTable struct {
	mu sync.RWMutex

	local       Key
	localPeer   types.PeerID
	bucketSize  int
	maxFailures int
	clock       clock.Clock
	buckets     [KeySize]bucket
	size        int
}

// NewRoutingTable 创建路由表
func NewRoutingTable(local types.PeerID, bucketSize int, clk clock.Clock) *RoutingTable {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RoutingTable{
		local:       KeyForPeer(local),
		localPeer:   local,
		bucketSize:  bucketSize,
		maxFailures: DefaultMaxFailures,
		clock:       clk,
	}
}

// bucketIndex 返回键所在的桶
func (rt *RoutingTable) bucketIndex(k Key) int {
	cpl := rt.local.CommonPrefixLen(k)
	if cpl >= KeySize {
		cpl = KeySize - 1
	}
	return cpl
}

// Update 登记节点地址
func (rt *RoutingTable) Update(p types.PeerID, addrs []types.Multiaddr) RoutingUpdate {
	if p.IsEmpty() || p == rt.localPeer || len(addrs) == 0 {
		return Failed
	}

	k := KeyForPeer(p)
	now := rt.clock.Now()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[rt.bucketIndex(k)]
	if i, e := b.find(p); e != nil {
		e.mergeAddrs(addrs)
		e.LastSeen = now
		e.FailCount = 0
		b.moveToFront(i)
		return Updated
	}

	if len(b.entries) < rt.bucketSize {
		e := &Entry{Peer: p, Key: k, LastSeen: now}
		e.mergeAddrs(addrs)
		b.entries = append(b.entries, nil)
		copy(b.entries[1:], b.entries)
		b.entries[0] = e
		rt.size++
		return Added
	}

	// 桶已满，放入替换缓存
	if _, e := b.findReplacement(p); e != nil {
		e.mergeAddrs(addrs)
		e.LastSeen = now
		return Pending
	}
	e := &Entry{Peer: p, Key: k, LastSeen: now}
	e.mergeAddrs(addrs)
	b.replacements = append([]*Entry{e}, b.replacements...)
	if len(b.replacements) > rt.bucketSize {
		b.replacements = b.replacements[:rt.bucketSize]
	}
	return Pending
}

// MarkSuccess 记录一次成功的查询
func (rt *RoutingTable) MarkSuccess(p types.PeerID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[rt.bucketIndex(KeyForPeer(p))]
	if i, e := b.find(p); e != nil {
		e.FailCount = 0
		e.LastSeen = rt.clock.Now()
		b.moveToFront(i)
	}
}

// MarkFailure 记录一次失败的查询，返回节点是否被驱逐
func (rt *RoutingTable) MarkFailure(p types.PeerID) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[rt.bucketIndex(KeyForPeer(p))]
	i, e := b.find(p)
	if e == nil {
		return false
	}
	e.FailCount++
	if e.FailCount < rt.maxFailures {
		return false
	}
	rt.removeAt(b, i)
	return true
}

// Remove 移除节点
func (rt *RoutingTable) Remove(p types.PeerID) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[rt.bucketIndex(KeyForPeer(p))]
	if i, e := b.find(p); e != nil {
		rt.removeAt(b, i)
		return true
	}
	if i, e := b.findReplacement(p); e != nil {
		b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)
		return true
	}
	return false
}

// removeAt 移除节点并从替换缓存补位
func (rt *RoutingTable) removeAt(b *bucket, i int) {
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	rt.size--
	if len(b.replacements) > 0 {
		r := b.replacements[0]
		b.replacements = b.replacements[1:]
		b.entries = append(b.entries, r)
		rt.size++
	}
}

// Find 返回节点信息
func (rt *RoutingTable) Find(p types.PeerID) (Entry, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	b := &rt.buckets[rt.bucketIndex(KeyForPeer(p))]
	if _, e := b.find(p); e != nil {
		return e.clone(), true
	}
	return Entry{}, false
}

// Size 返回路由表中的节点数
func (rt *RoutingTable) Size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.size
}

// NearestPeers 返回离 target 最近的 n 个节点
func (rt *RoutingTable) NearestPeers(target Key, n int) []Entry {
	rt.mu.RLock()
	all := make([]Entry, 0, rt.size)
	for i := range rt.buckets {
		for _, e := range rt.buckets[i].entries {
			all = append(all, e.clone())
		}
	}
	rt.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return closer(all[i].Key, all[j].Key, target)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// NonEmptyBuckets 返回非空桶的下标（升序）
func (rt *RoutingTable) NonEmptyBuckets() []int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var out []int
	for i := range rt.buckets {
		if len(rt.buckets[i].entries) > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Peers 返回路由表中的全部节点
func (rt *RoutingTable) Peers() []types.PeerID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make([]types.PeerID, 0, rt.size)
	for i := range rt.buckets {
		for _, e := range rt.buckets[i].entries {
			out = append(out, e.Peer)
		}
	}
	return out
}
