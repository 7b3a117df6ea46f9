package swarm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	"github.com/dep2p/go-bootnode/internal/core/peerstore"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("core/swarm")

// DefaultDialTimeout 默认拨号超时
const DefaultDialTimeout = 15 * time.Second

// Resolver 地址解析器
//
// 用于在拨号前展开 /dnsaddr 地址。
type Resolver interface {
	Resolve(ctx context.Context, maddr types.Multiaddr) ([]types.Multiaddr, error)
}

// Option Swarm 选项
type Option func(*Swarm) error

// WithResolver 设置 /dnsaddr 解析器
func WithResolver(r Resolver) Option {
	return func(s *Swarm) error {
		s.resolver = r
		return nil
	}
}

// WithDialTimeout 设置拨号超时
func WithDialTimeout(d time.Duration) Option {
	return func(s *Swarm) error {
		if d <= 0 {
			return errors.New("dial timeout must be positive")
		}
		s.dialTimeout = d
		return nil
	}
}

// Swarm 连接群管理
type Swarm struct {
	local       types.PeerID
	peerstore   pkgif.Peerstore
	transports  []pkgif.Transport
	resolver    Resolver
	dialTimeout time.Duration
	emitter     *eventbus.Emitter

	mu        sync.RWMutex
	conns     map[types.PeerID][]pkgif.Connection
	listeners []pkgif.Listener
	notifiees map[pkgif.Notifiee]struct{}
	handler   pkgif.StreamHandler

	dialsMu sync.Mutex
	dials   map[types.PeerID]*activeDial

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New 创建 Swarm
func New(local types.PeerID, ps pkgif.Peerstore, transports []pkgif.Transport, opts ...Option) (*Swarm, error) {
	if local.IsEmpty() {
		return nil, errors.New("local peer cannot be empty")
	}
	if ps == nil {
		ps = peerstore.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm{
		local:       local,
		peerstore:   ps,
		transports:  transports,
		dialTimeout: DefaultDialTimeout,
		emitter:     eventbus.NewEmitter(eventbus.DefaultBufSize),
		conns:       make(map[types.PeerID][]pkgif.Connection),
		notifiees:   make(map[pkgif.Notifiee]struct{}),
		dials:       make(map[types.PeerID]*activeDial),
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// LocalPeer 返回本地节点 ID
func (s *Swarm) LocalPeer() types.PeerID {
	return s.local
}

// Peerstore 返回地址簿
func (s *Swarm) Peerstore() pkgif.Peerstore {
	return s.peerstore
}

// Events 返回 swarm 事件流
func (s *Swarm) Events() <-chan types.Event {
	return s.emitter.Events()
}

// SetStreamHandler 设置入站流处理函数
//
// 未设置时入站流被直接重置。
func (s *Swarm) SetStreamHandler(h pkgif.StreamHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Peers 返回所有已连接的节点 ID
func (s *Swarm) Peers() []types.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]types.PeerID, 0, len(s.conns))
	for p := range s.conns {
		peers = append(peers, p)
	}
	return peers
}

// Conns 返回所有活跃连接
func (s *Swarm) Conns() []pkgif.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []pkgif.Connection
	for _, cs := range s.conns {
		conns = append(conns, cs...)
	}
	return conns
}

// ConnsToPeer 返回到指定节点的所有连接
func (s *Swarm) ConnsToPeer(peer types.PeerID) []pkgif.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.conns[peer]
	if len(cs) == 0 {
		return nil
	}
	out := make([]pkgif.Connection, len(cs))
	copy(out, cs)
	return out
}

// IsConnected 检查是否与 peer 存在连接
func (s *Swarm) IsConnected(peer types.PeerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[peer]) > 0
}

// bestConn 返回到 peer 的一个可用连接
func (s *Swarm) bestConn(peer types.PeerID) pkgif.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns[peer] {
		if !c.IsClosed() {
			return c
		}
	}
	return nil
}

// ClosePeer 关闭与 peer 的所有连接
func (s *Swarm) ClosePeer(peer types.PeerID) error {
	var err error
	for _, c := range s.ConnsToPeer(peer) {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// ============================================================================
//                              连接池
// ============================================================================

// addConn 登记连接并启动入站流循环
func (s *Swarm) addConn(conn pkgif.Connection) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		conn.Close()
		return ErrSwarmClosed
	}
	peer := conn.RemotePeer()
	s.conns[peer] = append(s.conns[peer], conn)
	n := len(s.conns[peer])
	s.mu.Unlock()

	if conn.Direction() == pkgif.DirOutbound {
		s.peerstore.AddAddrs(peer, []types.Multiaddr{conn.RemoteMultiaddr()}, peerstore.ConnectedAddrTTL)
	}

	log.Debug("连接已建立",
		"peer", peer.ShortString(),
		"addr", conn.RemoteMultiaddr(),
		"direction", conn.Direction().String(),
		"conns", n)

	s.notifyAll(func(n pkgif.Notifiee) { n.Connected(conn) })
	s.emit(ConnectionEstablished{
		Peer:           peer,
		Addr:           conn.RemoteMultiaddr(),
		Direction:      conn.Direction(),
		NumEstablished: n,
	})

	s.wg.Add(1)
	go s.handleIncomingStreams(conn)
	return nil
}

// removeConn 移除连接
func (s *Swarm) removeConn(conn pkgif.Connection) {
	peer := conn.RemotePeer()

	s.mu.Lock()
	cs := s.conns[peer]
	found := false
	for i, c := range cs {
		if c == conn {
			cs = append(cs[:i], cs[i+1:]...)
			found = true
			break
		}
	}
	if len(cs) == 0 {
		delete(s.conns, peer)
	} else {
		s.conns[peer] = cs
	}
	remaining := len(cs)
	s.mu.Unlock()

	if !found {
		return
	}

	// 最后一个连接断开后缩短地址 TTL
	if remaining == 0 && conn.Direction() == pkgif.DirOutbound {
		s.peerstore.SetAddrs(peer, []types.Multiaddr{conn.RemoteMultiaddr()}, peerstore.RecentlyConnectedAddrTTL)
	}

	log.Debug("连接已关闭",
		"peer", peer.ShortString(),
		"addr", conn.RemoteMultiaddr(),
		"remaining", remaining)

	s.notifyAll(func(n pkgif.Notifiee) { n.Disconnected(conn) })
	s.emit(ConnectionClosed{
		Peer:         peer,
		Addr:         conn.RemoteMultiaddr(),
		Direction:    conn.Direction(),
		NumRemaining: remaining,
	})
}

// handleIncomingStreams 连接的入站流循环
//
// AcceptStream 返回错误即认为连接已关闭。
func (s *Swarm) handleIncomingStreams(conn pkgif.Connection) {
	defer s.wg.Done()
	defer s.removeConn(conn)
	defer conn.Close()

	for {
		st, err := conn.AcceptStream(s.ctx)
		if err != nil {
			return
		}

		s.mu.RLock()
		h := s.handler
		s.mu.RUnlock()

		if h == nil {
			st.Reset()
			continue
		}
		go h(st, conn)
	}
}

// ============================================================================
//                              通知
// ============================================================================

// Notify 订阅连接事件
func (s *Swarm) Notify(n pkgif.Notifiee) {
	s.mu.Lock()
	s.notifiees[n] = struct{}{}
	s.mu.Unlock()
}

// StopNotify 取消订阅
func (s *Swarm) StopNotify(n pkgif.Notifiee) {
	s.mu.Lock()
	delete(s.notifiees, n)
	s.mu.Unlock()
}

// notifyAll 同步调用所有订阅者
//
// 回调中不得阻塞。
func (s *Swarm) notifyAll(fn func(pkgif.Notifiee)) {
	s.mu.RLock()
	ns := make([]pkgif.Notifiee, 0, len(s.notifiees))
	for n := range s.notifiees {
		ns = append(ns, n)
	}
	s.mu.RUnlock()

	for _, n := range ns {
		fn(n)
	}
}

// emit 发射事件，swarm 关闭时放弃
func (s *Swarm) emit(ev types.Event) {
	if err := s.emitter.EmitContext(s.ctx, ev); err != nil && !s.closed.Load() {
		log.Debug("事件发射失败", "event", ev, "error", err)
	}
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭 Swarm
//
// 依次关闭监听器、连接与传输，等待所有后台循环退出后关闭事件流。
func (s *Swarm) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	var conns []pkgif.Connection
	for _, cs := range s.conns {
		conns = append(conns, cs...)
	}
	s.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	for _, t := range s.transports {
		err = multierr.Append(err, t.Close())
	}

	s.wg.Wait()
	s.emitter.Close()

	log.Info("swarm 已关闭")
	return err
}
