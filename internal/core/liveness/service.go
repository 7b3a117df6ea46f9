// Package liveness 提供节点存活检测服务
//
// 在 /ipfs/ping/1.0.0 上回显 32 字节负载，并周期性 Ping 每个已连接节点，
// 每次 Ping 发出一个 Result 事件。
package liveness

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

const (
	// PingPayloadSize Ping 消息大小
	PingPayloadSize = 32
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("liveness service closed")
	// ErrPayloadMismatch 回显内容不一致
	ErrPayloadMismatch = errors.New("ping payload mismatch")
)

// ============================================================================
//                              peerState 节点状态
// ============================================================================

// peerState 节点状态
type peerState struct {
	lastSeen    time.Time
	lastPingRTT time.Duration
	avgRTT      time.Duration
	failedPings int
	cancel      context.CancelFunc
}

// PeerHealth 节点存活概况
type PeerHealth struct {
	LastSeen    time.Time
	LastRTT     time.Duration
	AvgRTT      time.Duration
	FailedPings int
}

// Config 存活检测配置
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
}

// ConfigFromLiveness 由存活检测配置构造
func ConfigFromLiveness(c config.LivenessConfig) Config {
	return Config{Interval: c.Interval.Duration(), Timeout: c.Timeout.Duration()}
}

// ============================================================================
//                              Service 实现
// ============================================================================

// Service 存活检测服务
type Service struct {
	host     pkgif.Host
	cfg      Config
	clock    clock.Clock
	emitter  *eventbus.Emitter
	notifiee *pkgif.NotifyBundle

	mu    sync.Mutex
	peers map[types.PeerID]*peerState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 创建存活检测服务
func NewService(host pkgif.Host, cfg Config) *Service {
	d := ConfigFromLiveness(config.DefaultLivenessConfig())
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		host:    host,
		cfg:     cfg,
		clock:   cfg.Clock,
		emitter: eventbus.NewEmitter(eventbus.DefaultBufSize),
		peers:   make(map[types.PeerID]*peerState),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.notifiee = &pkgif.NotifyBundle{
		ConnectedF: func(c pkgif.Connection) {
			s.track(c.RemotePeer())
		},
		DisconnectedF: func(c pkgif.Connection) {
			if !s.host.IsConnected(c.RemotePeer()) {
				s.untrack(c.RemotePeer())
			}
		},
	}
	return s
}

// Events 返回 Ping 结果事件流
func (s *Service) Events() <-chan types.Event {
	return s.emitter.Events()
}

// Start 注册 Ping 处理函数并开始探测已连接节点
func (s *Service) Start() {
	s.host.SetStreamHandler(protocolids.Ping, s.handlePingStream)
	s.host.Notify(s.notifiee)
	for _, p := range s.host.Peers() {
		s.track(p)
	}
	log.Debug("liveness 服务已启动", "interval", s.cfg.Interval)
}

// Stop 停止服务
func (s *Service) Stop() {
	s.host.StopNotify(s.notifiee)
	s.host.RemoveStreamHandler(protocolids.Ping)
	s.cancel()
	s.wg.Wait()
	s.emitter.Close()
}

// ============================================================================
//                              Ping
// ============================================================================

// Ping 向节点发送一次 Ping，返回往返时间
func (s *Service) Ping(ctx context.Context, peer types.PeerID) (time.Duration, error) {
	if s.ctx.Err() != nil {
		return 0, ErrServiceClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	stream, _, err := s.host.NewStream(ctx, peer, protocolids.Ping)
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	if d, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(d)
	}

	payload := make([]byte, PingPayloadSize)
	if _, err := crand.Read(payload); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := stream.Write(payload); err != nil {
		stream.Reset()
		return 0, err
	}
	response := make([]byte, PingPayloadSize)
	if _, err := io.ReadFull(stream, response); err != nil {
		stream.Reset()
		return 0, err
	}
	rtt := time.Since(start)

	if !bytes.Equal(payload, response) {
		return 0, ErrPayloadMismatch
	}
	return rtt, nil
}

// handlePingStream 处理 Ping 流，回显直到对端关闭
func (s *Service) handlePingStream(stream pkgif.Stream, _ pkgif.Connection) {
	defer stream.Close()

	payload := make([]byte, PingPayloadSize)
	for {
		_ = stream.SetDeadline(time.Now().Add(s.cfg.Timeout))
		if _, err := io.ReadFull(stream, payload); err != nil {
			if err != io.EOF {
				log.Debug("读取 Ping payload 失败", "err", err)
			}
			return
		}
		if _, err := stream.Write(payload); err != nil {
			log.Debug("发送 Pong 响应失败", "err", err)
			return
		}
	}
}

// ============================================================================
//                              周期探测
// ============================================================================

// track 为节点启动周期 Ping，已在探测的节点忽略
func (s *Service) track(peer types.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if _, ok := s.peers[peer]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.peers[peer] = &peerState{cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pingLoop(ctx, peer)
	}()
}

// untrack 停止对节点的探测
func (s *Service) untrack(peer types.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.peers[peer]; ok {
		st.cancel()
		delete(s.peers, peer)
	}
}

// pingLoop 立即 Ping 一次，之后按间隔重复
func (s *Service) pingLoop(ctx context.Context, peer types.PeerID) {
	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.pingOnce(ctx, peer)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) pingOnce(ctx context.Context, peer types.PeerID) {
	rtt, err := s.Ping(ctx, peer)
	if ctx.Err() != nil {
		return
	}
	s.record(peer, rtt, err)
	if err != nil {
		log.Debug("Ping 失败", "peer", peer.ShortString(), "error", err)
	}
	if err := s.emitter.EmitContext(ctx, Result{Peer: peer, RTT: rtt, Err: err}); err != nil && ctx.Err() == nil {
		log.Debug("事件发射失败", "error", err)
	}
}

// record 更新节点状态
func (s *Service) record(peer types.PeerID, rtt time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.peers[peer]
	if !ok {
		return
	}
	if err != nil {
		st.failedPings++
		return
	}
	st.lastSeen = s.clock.Now()
	st.lastPingRTT = rtt
	st.failedPings = 0
	if st.avgRTT == 0 {
		st.avgRTT = rtt
	} else {
		st.avgRTT = (st.avgRTT*7 + rtt) / 8 // 指数移动平均
	}
}

// PeerHealth 返回节点存活概况
func (s *Service) PeerHealth(peer types.PeerID) (PeerHealth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.peers[peer]
	if !ok {
		return PeerHealth{}, false
	}
	return PeerHealth{
		LastSeen:    st.lastSeen,
		LastRTT:     st.lastPingRTT,
		AvgRTT:      st.avgRTT,
		FailedPings: st.failedPings,
	}, true
}

// TrackedPeers 返回正在探测的节点数
func (s *Service) TrackedPeers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}
