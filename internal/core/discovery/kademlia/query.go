package kademlia

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// candidateState 候选节点状态
type candidateState int

const (
	stateUnqueried candidateState = iota
	stateWaiting
	stateSucceeded
	stateFailed
)

type candidate struct {
	entry Entry
	state candidateState
}

// queryState 一次迭代查找的状态
type queryState struct {
	mu         sync.Mutex
	target     Key
	k          int
	candidates map[types.PeerID]*candidate
}

func newQueryState(target Key, k int, seeds []Entry) *queryState {
	q := &queryState{
		target:     target,
		k:          k,
		candidates: make(map[types.PeerID]*candidate, len(seeds)),
	}
	for _, e := range seeds {
		q.candidates[e.Peer] = &candidate{entry: e}
	}
	return q
}

// sorted 返回未失败的候选，按距离升序
func (q *queryState) sorted() []*candidate {
	out := make([]*candidate, 0, len(q.candidates))
	for _, c := range q.candidates {
		if c.state != stateFailed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return closer(out[i].entry.Key, out[j].entry.Key, q.target)
	})
	return out
}

// nextBatch 从最近的 k 个候选中取出至多 n 个未查询节点
//
// 最近的 k 个候选全部查询完毕时返回空。
func (q *queryState) nextBatch(n int) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []Entry
	for i, c := range q.sorted() {
		if i >= q.k || len(batch) >= n {
			break
		}
		if c.state == stateUnqueried {
			c.state = stateWaiting
			batch = append(batch, c.entry)
		}
	}
	return batch
}

// record 记录一次查询结果
func (q *queryState) record(p types.PeerID, found []Entry, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.candidates[p]
	if !ok {
		return
	}
	if err != nil {
		c.state = stateFailed
		return
	}
	c.state = stateSucceeded
	for _, e := range found {
		if _, seen := q.candidates[e.Peer]; !seen {
			q.candidates[e.Peer] = &candidate{entry: e}
		}
	}
}

// result 返回最近的 k 个成功响应的节点
func (q *queryState) result() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Entry
	for _, c := range q.sorted() {
		if c.state != stateSucceeded {
			continue
		}
		out = append(out, c.entry)
		if len(out) == q.k {
			break
		}
	}
	return out
}

// lookup 迭代查找离 sha256(key) 最近的 k 个节点
//
// 每轮并发查询 alpha 个节点；响应成功的节点写入路由表，失败的节点累计失败次数。
func (d *DHT) lookup(ctx context.Context, key []byte) ([]Entry, error) {
	target := KeyForBytes(key)
	seeds := d.table.NearestPeers(target, d.cfg.BucketSize)
	if len(seeds) == 0 {
		return nil, ErrNoKnownPeers
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()

	q := newQueryState(target, d.cfg.BucketSize, seeds)
	for {
		batch := q.nextBatch(d.cfg.Alpha)
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		for _, e := range batch {
			e := e
			g.Go(func() error {
				peers, err := d.queryPeer(ctx, e, key)
				q.record(e.Peer, peers, err)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	found := q.result()
	if len(found) == 0 {
		if err := d.ctx.Err(); err != nil {
			return nil, ErrClosed
		}
		return nil, ErrNoPeersResponded
	}
	return found, nil
}

// queryPeer 查询单个节点并更新路由表
func (d *DHT) queryPeer(ctx context.Context, e Entry, key []byte) ([]Entry, error) {
	infos, err := d.findNode(ctx, e, key)
	if err != nil {
		if d.table.MarkFailure(e.Peer) {
			log.Debug("节点连续失败，移出路由表", "peer", e.Peer.ShortString())
		}
		log.Debug("FIND_NODE 失败", "peer", e.Peer.ShortString(), "error", err)
		return nil, err
	}

	d.addAddresses(e.Peer, e.Addrs)
	d.table.MarkSuccess(e.Peer)

	local := d.host.ID()
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.ID.IsEmpty() || info.ID == local {
			continue
		}
		if len(info.Addrs) == 0 {
			d.emit(UnroutablePeer{Peer: info.ID})
			continue
		}
		out = append(out, Entry{Peer: info.ID, Key: KeyForPeer(info.ID), Addrs: info.Addrs})
	}
	return out, nil
}
