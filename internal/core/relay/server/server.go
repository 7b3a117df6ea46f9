package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("relay/server")

const (
	// MaxMessageSize 消息最大长度
	MaxMessageSize = 4 * 1024

	// StreamTimeout 握手阶段的流超时
	StreamTimeout = time.Minute
)

// ============================================================================
//                              配置
// ============================================================================

// Config 中继服务端配置
type Config struct {
	MaxReservations      int
	MaxReservationsPerIP int
	MaxCircuits          int
	MaxCircuitsPerPeer   int
	ReservationTTL       time.Duration
	CircuitDuration      time.Duration
	CircuitBytes         int64
	BandwidthLimit       int64
	ConnectTimeout       time.Duration
	Clock                clock.Clock
}

// ConfigFromRelay 由中继配置构造
func ConfigFromRelay(c config.RelayConfig) Config {
	return Config{
		MaxReservations:      c.MaxReservations,
		MaxReservationsPerIP: c.MaxReservationsPerIP,
		MaxCircuits:          c.MaxCircuits,
		MaxCircuitsPerPeer:   c.MaxCircuitsPerPeer,
		ReservationTTL:       c.ReservationTTL.Duration(),
		CircuitDuration:      c.CircuitDuration.Duration(),
		CircuitBytes:         c.CircuitBytes,
		BandwidthLimit:       c.BandwidthLimit,
		ConnectTimeout:       c.ConnectTimeout.Duration(),
	}
}

// limit 返回通告给客户端的电路限制
func (c Config) limit() *Limit {
	return &Limit{Duration: uint32(c.CircuitDuration / time.Second), Data: c.CircuitBytes}
}

// ============================================================================
//                              Server
// ============================================================================

// reservation 预留状态
type reservation struct {
	peer     types.PeerID
	ip       string
	expire   time.Time
	circuits int
	timer    *clock.Timer
	// gen 每次续约递增，过期回调据此丢弃旧定时器
	gen uint64
	// announced 已发出 ReservationReqAccepted
	announced bool
}

// Server 中继服务器
type Server struct {
	host     pkgif.Host
	cfg      Config
	clock    clock.Clock
	emitter  *eventbus.Emitter
	notifiee *pkgif.NotifyBundle

	mu           sync.Mutex
	reservations map[types.PeerID]*reservation
	circuits     map[uuid.UUID]*circuit

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建中继服务器
func NewServer(host pkgif.Host, cfg Config) *Server {
	d := ConfigFromRelay(config.DefaultRelayConfig())
	if cfg.MaxReservations <= 0 {
		cfg.MaxReservations = d.MaxReservations
	}
	if cfg.MaxReservationsPerIP <= 0 {
		cfg.MaxReservationsPerIP = d.MaxReservationsPerIP
	}
	if cfg.MaxCircuits <= 0 {
		cfg.MaxCircuits = d.MaxCircuits
	}
	if cfg.MaxCircuitsPerPeer <= 0 {
		cfg.MaxCircuitsPerPeer = d.MaxCircuitsPerPeer
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = d.ReservationTTL
	}
	if cfg.CircuitDuration <= 0 {
		cfg.CircuitDuration = d.CircuitDuration
	}
	if cfg.CircuitBytes <= 0 {
		cfg.CircuitBytes = d.CircuitBytes
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		host:         host,
		cfg:          cfg,
		clock:        cfg.Clock,
		emitter:      eventbus.NewEmitter(eventbus.DefaultBufSize),
		reservations: make(map[types.PeerID]*reservation),
		circuits:     make(map[uuid.UUID]*circuit),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.notifiee = &pkgif.NotifyBundle{
		DisconnectedF: func(c pkgif.Connection) {
			if !s.host.IsConnected(c.RemotePeer()) {
				s.dropReservation(c.RemotePeer())
			}
		},
	}
	return s
}

// Events 返回中继事件流
func (s *Server) Events() <-chan types.Event {
	return s.emitter.Events()
}

// Start 注册 hop 协议
func (s *Server) Start() {
	s.host.SetStreamHandler(protocolids.RelayHop, s.handleHop)
	s.host.Notify(s.notifiee)
	log.Debug("中继服务已启动",
		"max_reservations", s.cfg.MaxReservations,
		"max_circuits", s.cfg.MaxCircuits)
}

// Stop 停止服务，关闭所有电路
func (s *Server) Stop() {
	s.host.StopNotify(s.notifiee)
	s.host.RemoveStreamHandler(protocolids.RelayHop)
	s.cancel()

	s.mu.Lock()
	for _, r := range s.reservations {
		r.timer.Stop()
	}
	s.reservations = make(map[types.PeerID]*reservation)
	for _, c := range s.circuits {
		_ = c.abort(ErrServerClosed)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.emitter.Close()
}

func (s *Server) spawn(fn func()) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// emit 按调用顺序投递事件，不阻塞
//
// 预留的生命周期事件在 s.mu 内投递，事件顺序与状态变化顺序一致。
func (s *Server) emit(ev types.Event) {
	if s.ctx.Err() != nil {
		return
	}
	s.emitter.Post(ev)
}

// Stats 中继统计
type Stats struct {
	Reservations int
	Circuits     int
}

// Stats 返回当前预留与电路数
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Reservations: len(s.reservations), Circuits: len(s.circuits)}
}

// ============================================================================
//                              hop 协议
// ============================================================================

// handleHop 处理 hop 流
func (s *Server) handleHop(st pkgif.Stream, conn pkgif.Connection) {
	_ = st.SetDeadline(time.Now().Add(StreamTimeout))

	var msg HopMessage
	if err := wire.ReadProto(st, MaxMessageSize, &msg); err != nil {
		log.Debug("读取 hop 消息失败", "peer", conn.RemotePeer().ShortString(), "error", err)
		st.Reset()
		return
	}

	switch msg.Type {
	case MessageReserve:
		defer st.Close()
		s.handleReserve(st, conn)
	case MessageConnect:
		// 成功时流由电路接管
		s.handleConnect(st, conn, &msg)
	default:
		defer st.Close()
		s.writeHopStatus(st, StatusUnexpectedMessage)
	}
}

func (s *Server) writeHopStatus(st pkgif.Stream, status Status) {
	if err := wire.WriteProto(st, &HopMessage{Type: MessageStatus, Status: status}); err != nil {
		log.Debug("发送 hop 状态失败", "status", status, "error", err)
	}
}

// ============================================================================
//                              预留
// ============================================================================

// handleReserve 建立或续约预留
func (s *Server) handleReserve(st pkgif.Stream, conn pkgif.Connection) {
	peer := conn.RemotePeer()

	if conn.RemoteMultiaddr().IsRelay() {
		s.denyReservation(st, peer, StatusPermissionDenied)
		return
	}

	ip := ""
	if addr := conn.RemoteMultiaddr().IP(); addr != nil {
		ip = addr.String()
	}

	s.mu.Lock()
	r, exists := s.reservations[peer]
	if !exists {
		if status := s.admitReservationLocked(ip); status != StatusOK {
			s.mu.Unlock()
			s.denyReservation(st, peer, status)
			return
		}
		r = &reservation{peer: peer, ip: ip}
		s.reservations[peer] = r
	}
	r.expire = s.clock.Now().Add(s.cfg.ReservationTTL)
	s.armLocked(r)
	expire := r.expire
	s.mu.Unlock()

	resp := &HopMessage{
		Type:   MessageStatus,
		Status: StatusOK,
		Reservation: &ReservationInfo{
			Expire: expire.Unix(),
			Addrs:  s.relayAddrs(),
		},
		Limit: s.cfg.limit(),
	}
	if err := wire.WriteProto(st, resp); err != nil {
		log.Debug("发送预留响应失败", "peer", peer.ShortString(), "error", err)
		if !exists {
			s.removeReservation(peer)
		}
		return
	}

	// 响应发出期间预留可能已过期或随断开移除，此时不再宣告
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.reservations[peer]; !ok || cur != r {
		log.Debug("预留在响应前已移除", "peer", peer.ShortString())
		return
	}
	renewed := r.announced
	r.announced = true
	log.Debug("预留成功", "peer", peer.ShortString(), "renewed", renewed, "expire", expire)
	s.emit(ReservationReqAccepted{Src: peer, Renewed: renewed})
}

// admitReservationLocked 检查新预留的总量与单 IP 限制
func (s *Server) admitReservationLocked(ip string) Status {
	if len(s.reservations) >= s.cfg.MaxReservations {
		return StatusReservationRefused
	}
	if ip == "" {
		return StatusOK
	}
	n := 0
	for _, r := range s.reservations {
		if r.ip == ip {
			n++
		}
	}
	if n >= s.cfg.MaxReservationsPerIP {
		return StatusResourceLimitExceeded
	}
	return StatusOK
}

func (s *Server) denyReservation(st pkgif.Stream, peer types.PeerID, status Status) {
	log.Debug("预留被拒绝", "peer", peer.ShortString(), "status", status)
	s.writeHopStatus(st, status)
	s.emit(ReservationReqDenied{Src: peer, Status: status})
}

// armLocked 为预留（重新）设置过期定时器
func (s *Server) armLocked(r *reservation) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	peer := r.peer
	r.timer = s.clock.AfterFunc(s.cfg.ReservationTTL, func() {
		s.expireReservation(peer, gen)
	})
}

// expireReservation 移除到期未续约的预留
func (s *Server) expireReservation(peer types.PeerID, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[peer]
	if !ok || r.gen != gen {
		return
	}
	delete(s.reservations, peer)

	log.Debug("预留已过期", "peer", peer.ShortString())
	if r.announced {
		s.emit(ReservationTimedOut{Src: peer})
	}
}

// removeReservation 移除预留并投递 ReservationClosed，返回是否存在
//
// 从未宣告过的预留静默移除。
func (s *Server) removeReservation(peer types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[peer]
	if !ok {
		return false
	}
	r.timer.Stop()
	delete(s.reservations, peer)
	if r.announced {
		s.emit(ReservationClosed{Src: peer})
	}
	return true
}

// dropReservation 预留方断开后移除预留
func (s *Server) dropReservation(peer types.PeerID) {
	if s.removeReservation(peer) {
		log.Debug("预留方已断开", "peer", peer.ShortString())
	}
}

// relayAddrs 返回预留响应中通告的中继地址
//
// 形如 <addr>/p2p/<relay>，客户端自行追加 /p2p-circuit。
func (s *Server) relayAddrs() []types.Multiaddr {
	self := s.host.ID()
	var out []types.Multiaddr
	for _, a := range s.host.Addrs() {
		if a.IsRelay() {
			continue
		}
		out = append(out, a.WithPeerID(self))
	}
	return out
}

// ============================================================================
//                              电路
// ============================================================================

// handleConnect 为 src 建立到 dst 的电路
func (s *Server) handleConnect(st pkgif.Stream, conn pkgif.Connection, msg *HopMessage) {
	src := conn.RemotePeer()
	if msg.Peer == nil || msg.Peer.ID.Validate() != nil {
		s.writeHopStatus(st, StatusMalformedMessage)
		st.Close()
		return
	}
	dst := msg.Peer.ID

	if conn.RemoteMultiaddr().IsRelay() {
		s.denyCircuit(st, src, dst, StatusPermissionDenied)
		return
	}

	// 占用电路名额
	s.mu.Lock()
	r, ok := s.reservations[dst]
	var status Status
	switch {
	case !ok:
		status = StatusNoReservation
	case len(s.circuits) >= s.cfg.MaxCircuits:
		status = StatusResourceLimitExceeded
	case r.circuits >= s.cfg.MaxCircuitsPerPeer:
		status = StatusResourceLimitExceeded
	default:
		status = StatusOK
		r.circuits++
	}
	c := newCircuit(src, dst, st)
	if status == StatusOK {
		s.circuits[c.id] = c
	}
	s.mu.Unlock()

	if status != StatusOK {
		s.denyCircuit(st, src, dst, status)
		return
	}

	dstStream, err := s.openStop(src, dst)
	if err != nil {
		log.Debug("连接目标失败", "src", src.ShortString(), "dst", dst.ShortString(), "error", err)
		s.releaseCircuit(c)
		s.writeHopStatus(st, StatusConnectionFailed)
		st.Close()
		s.emit(CircuitReqOutboundConnectFailed{Src: src, Dst: dst, Err: err})
		return
	}
	c.dst = dstStream

	if err := wire.WriteProto(st, &HopMessage{Type: MessageStatus, Status: StatusOK, Limit: s.cfg.limit()}); err != nil {
		log.Debug("发送电路响应失败", "src", src.ShortString(), "error", err)
		s.releaseCircuit(c)
		c.reset()
		return
	}

	log.Debug("电路已建立", "id", c.id, "src", src.ShortString(), "dst", dst.ShortString())
	s.emit(CircuitReqAccepted{ID: c.id, Src: src, Dst: dst})

	s.spawn(func() {
		err := c.splice(s.cfg, time.Now())
		s.releaseCircuit(c)
		n := c.bytes.Load()
		log.Debug("电路关闭", "id", c.id, "bytes", n, "error", err)
		s.emit(CircuitClosed{ID: c.id, Src: src, Dst: dst, Bytes: n, Err: err})
	})
}

func (s *Server) denyCircuit(st pkgif.Stream, src, dst types.PeerID, status Status) {
	log.Debug("电路请求被拒绝", "src", src.ShortString(), "dst", dst.ShortString(), "status", status)
	s.writeHopStatus(st, status)
	st.Close()
	s.emit(CircuitReqDenied{Src: src, Dst: dst, Status: status})
}

// releaseCircuit 归还电路名额
func (s *Server) releaseCircuit(c *circuit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circuits[c.id]; !ok {
		return
	}
	delete(s.circuits, c.id)
	if r, ok := s.reservations[c.dstPeer]; ok && r.circuits > 0 {
		r.circuits--
	}
}

// openStop 打开到 dst 的 STOP 流并完成握手
func (s *Server) openStop(src, dst types.PeerID) (pkgif.Stream, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	defer cancel()

	st, _, err := s.host.NewStream(ctx, dst, protocolids.RelayStop)
	if err != nil {
		return nil, err
	}
	if d, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(d)
	}

	req := &StopMessage{Type: MessageConnect, Peer: &PeerInfo{ID: src}, Limit: s.cfg.limit()}
	if err := wire.WriteProto(st, req); err != nil {
		st.Reset()
		return nil, err
	}

	var resp StopMessage
	if err := wire.ReadProto(st, MaxMessageSize, &resp); err != nil {
		st.Reset()
		return nil, err
	}
	if resp.Type != MessageStatus {
		st.Reset()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, resp.Type)
	}
	if resp.Status != StatusOK {
		st.Reset()
		return nil, &StatusError{Status: resp.Status}
	}
	_ = st.SetDeadline(time.Time{})
	return st, nil
}
