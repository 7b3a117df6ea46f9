package orchestrator

import (
	"sort"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// TableEntry 发现表条目
type TableEntry struct {
	Peer  types.PeerID
	Addrs []types.Multiaddr
}

// Table 编排器视角的发现表
//
// 记录已提交给 Kademlia 的节点地址，按节点标识去重。非并发安全，只由事件循环访问。
type Table struct {
	entries map[types.PeerID]*TableEntry
}

// NewTable 创建空发现表
func NewTable() *Table {
	return &Table{entries: make(map[types.PeerID]*TableEntry)}
}

// Add 登记地址，返回是否为新地址
func (t *Table) Add(peer types.PeerID, addr types.Multiaddr) bool {
	e, ok := t.entries[peer]
	if !ok {
		e = &TableEntry{Peer: peer}
		t.entries[peer] = e
	}
	for _, a := range e.Addrs {
		if a == addr {
			return false
		}
	}
	e.Addrs = append(e.Addrs, addr)
	return true
}

// Get 返回条目副本
func (t *Table) Get(peer types.PeerID) (TableEntry, bool) {
	e, ok := t.entries[peer]
	if !ok {
		return TableEntry{}, false
	}
	return TableEntry{Peer: e.Peer, Addrs: append([]types.Multiaddr(nil), e.Addrs...)}, true
}

// Len 返回条目数
func (t *Table) Len() int {
	return len(t.entries)
}

// Peers 返回所有节点，按标识排序
func (t *Table) Peers() []types.PeerID {
	out := make([]types.PeerID, 0, len(t.entries))
	for p := range t.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
