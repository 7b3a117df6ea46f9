package swarm

import (
	"context"
	"fmt"

	"github.com/dep2p/go-bootnode/internal/core/peerstore"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// activeDial 进行中的拨号，同一节点的并发调用共享结果
type activeDial struct {
	done chan struct{}
	conn pkgif.Connection
	err  error
}

// Connect 确保与 peer 存在连接
//
// addrs 以临时 TTL 写入地址簿后再拨号。
func (s *Swarm) Connect(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) error {
	if peer == s.local {
		return ErrDialToSelf
	}
	if len(addrs) > 0 {
		s.peerstore.AddAddrs(peer, addrs, peerstore.TempAddrTTL)
	}
	_, err := s.DialPeer(ctx, peer)
	return err
}

// DialPeer 返回到 peer 的连接，必要时拨号
func (s *Swarm) DialPeer(ctx context.Context, peer types.PeerID) (pkgif.Connection, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}
	if peer == s.local {
		return nil, ErrDialToSelf
	}
	if c := s.bestConn(peer); c != nil {
		return c, nil
	}

	s.dialsMu.Lock()
	if d, ok := s.dials[peer]; ok {
		s.dialsMu.Unlock()
		select {
		case <-d.done:
			return d.conn, d.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d := &activeDial{done: make(chan struct{})}
	s.dials[peer] = d
	s.dialsMu.Unlock()

	d.conn, d.err = s.dial(ctx, peer)

	s.dialsMu.Lock()
	delete(s.dials, peer)
	s.dialsMu.Unlock()
	close(d.done)

	return d.conn, d.err
}

// PendingDials 返回进行中的拨号数
func (s *Swarm) PendingDials() int {
	s.dialsMu.Lock()
	defer s.dialsMu.Unlock()
	return len(s.dials)
}

// dial 解析地址并并行拨号
func (s *Swarm) dial(ctx context.Context, peer types.PeerID) (pkgif.Connection, error) {
	s.emit(Dialing{Peer: peer})

	ctx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	addrs := s.dialableAddrs(ctx, peer)
	if len(addrs) == 0 {
		err := &DialError{Peer: peer, Errors: []error{ErrNoAddresses}}
		s.emit(OutgoingConnectionError{Peer: peer, Err: err})
		return nil, err
	}

	conn, err := s.dialWorker(ctx, peer, addrs)
	if err != nil {
		log.Debug("拨号失败", "peer", peer.ShortString(), "addrs", len(addrs), "error", err)
		s.emit(OutgoingConnectionError{Peer: peer, Err: err})
		return nil, err
	}

	if err := s.addConn(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// dialableAddrs 展开 /dnsaddr 并过滤无传输可拨的地址
func (s *Swarm) dialableAddrs(ctx context.Context, peer types.PeerID) []types.Multiaddr {
	seen := make(map[types.Multiaddr]struct{})
	var out []types.Multiaddr

	add := func(a types.Multiaddr) {
		a = a.WithoutPeerID()
		if _, ok := seen[a]; ok {
			return
		}
		if s.transportFor(a) == nil {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	for _, a := range s.peerstore.Addrs(peer) {
		if !a.IsDNSAddr() {
			add(a)
			continue
		}
		if s.resolver == nil {
			continue
		}
		resolved, err := s.resolver.Resolve(ctx, a.WithPeerID(peer))
		if err != nil {
			log.Debug("解析 dnsaddr 失败", "addr", a, "peer", peer.ShortString(), "error", err)
			continue
		}
		for _, r := range resolved {
			add(r)
		}
	}
	return out
}

// transportFor 返回能拨号该地址的传输
func (s *Swarm) transportFor(addr types.Multiaddr) pkgif.Transport {
	for _, t := range s.transports {
		if t.CanDial(addr) {
			return t
		}
	}
	return nil
}

type dialResult struct {
	conn pkgif.Connection
	addr types.Multiaddr
	err  error
}

// dialWorker 并行拨号所有地址，返回第一个成功的连接
//
// 其余拨号被取消，迟到的成功连接被关闭。
func (s *Swarm) dialWorker(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) (pkgif.Connection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, len(addrs))
	for _, addr := range addrs {
		go func(addr types.Multiaddr) {
			t := s.transportFor(addr)
			conn, err := t.Dial(ctx, addr, peer)
			results <- dialResult{conn: conn, addr: addr, err: err}
		}(addr)
	}

	var errs []error
	var winner pkgif.Connection
	for range addrs {
		r := <-results
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.addr, r.err))
			continue
		}
		if winner != nil {
			r.conn.Close()
			continue
		}
		winner = r.conn
		cancel()
	}

	if winner != nil {
		return winner, nil
	}
	return nil, &DialError{Peer: peer, Errors: errs}
}
