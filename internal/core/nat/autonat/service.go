package autonat

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("nat/autonat")

const (
	// MaxMessageSize 消息最大长度
	MaxMessageSize = 4 * 1024

	// StreamTimeout 单次探测的流超时
	StreamTimeout = 60 * time.Second

	// maxThrottledPeers 节流缓存容量
	maxThrottledPeers = 1024
)

// Config AutoNAT 配置
type Config struct {
	EnableService      bool
	BootDelay          time.Duration
	RetryInterval      time.Duration
	RefreshInterval    time.Duration
	MaxServers         int
	ConfidenceMax      int
	ThrottlePeerPeriod time.Duration
	ThrottleGlobalRate float64
	DialTimeout        time.Duration

	// AllowPrivateAddrs 允许回拨私有地址（用于本地测试）
	AllowPrivateAddrs bool

	Clock clock.Clock
}

// ConfigFromNAT 由 NAT 配置构造
func ConfigFromNAT(c config.NATConfig) Config {
	return Config{
		EnableService:      c.EnableService,
		BootDelay:          c.BootDelay.Duration(),
		RetryInterval:      c.RetryInterval.Duration(),
		RefreshInterval:    c.RefreshInterval.Duration(),
		MaxServers:         c.MaxServers,
		ConfidenceMax:      c.ConfidenceMax,
		ThrottlePeerPeriod: c.ThrottlePeerPeriod.Duration(),
		ThrottleGlobalRate: c.ThrottleGlobalRate,
		DialTimeout:        c.DialTimeout.Duration(),
	}
}

// Service AutoNAT 客户端与服务端
type Service struct {
	host    pkgif.Host
	dialer  Dialer
	cfg     Config
	clock   clock.Clock
	emitter *eventbus.Emitter

	mu         sync.RWMutex
	status     Status
	confidence int
	publicAddr types.Multiaddr

	// 服务端节流
	throttle *expirable.LRU[types.PeerID, struct{}]
	limiter  *rate.Limiter

	probeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建 AutoNAT 服务
func New(host pkgif.Host, dialer Dialer, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.MaxServers <= 0 {
		cfg.MaxServers = 3
	}
	if cfg.ConfidenceMax <= 0 {
		cfg.ConfidenceMax = 3
	}
	if cfg.ThrottleGlobalRate <= 0 {
		cfg.ThrottleGlobalRate = 1
	}
	burst := int(cfg.ThrottleGlobalRate)
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		host:     host,
		dialer:   dialer,
		cfg:      cfg,
		clock:    cfg.Clock,
		emitter:  eventbus.NewEmitter(eventbus.DefaultBufSize),
		status:   StatusUnknown,
		throttle: expirable.NewLRU[types.PeerID, struct{}](maxThrottledPeers, nil, cfg.ThrottlePeerPeriod),
		limiter:  rate.NewLimiter(rate.Limit(cfg.ThrottleGlobalRate), burst),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events 返回 AutoNAT 事件流
func (s *Service) Events() <-chan types.Event {
	return s.emitter.Events()
}

// Start 启动探测循环，按配置注册服务端
func (s *Service) Start() {
	if s.cfg.EnableService {
		s.host.SetStreamHandler(protocolids.AutoNAT, s.handleDial)
	}
	s.spawn(s.run)
	log.Debug("autonat 已启动", "server", s.cfg.EnableService, "boot_delay", s.cfg.BootDelay)
}

// Stop 停止服务并关闭事件流
func (s *Service) Stop() {
	if s.cfg.EnableService {
		s.host.RemoveStreamHandler(protocolids.AutoNAT)
	}
	s.cancel()
	s.wg.Wait()
	s.emitter.Close()
}

func (s *Service) spawn(fn func()) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Service) emit(ev types.Event) {
	if err := s.emitter.EmitContext(s.ctx, ev); err != nil && s.ctx.Err() == nil {
		log.Debug("事件发射失败", "error", err)
	}
}

// ============================================================================
//                              状态
// ============================================================================

// Status 返回当前可达性状态
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Confidence 返回当前置信度
func (s *Service) Confidence() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confidence
}

// PublicAddr 返回最近一次确认的公网地址
func (s *Service) PublicAddr() types.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicAddr
}

// recordResult 根据一次确定的探测结果更新状态
func (s *Service) recordResult(reachable bool, addr types.Multiaddr) {
	observed := StatusPrivate
	if reachable {
		observed = StatusPublic
	}

	s.mu.Lock()
	old := s.status
	switch {
	case old == observed:
		if s.confidence < s.cfg.ConfidenceMax {
			s.confidence++
		}
	case old == StatusUnknown || s.confidence == 0:
		s.status = observed
		s.confidence = 0
	default:
		s.confidence--
	}
	if s.status == StatusPublic && reachable {
		s.publicAddr = addr
	}
	if s.status == StatusPrivate {
		s.publicAddr = ""
	}
	current := s.status
	s.mu.Unlock()

	if reachable && current == StatusPublic && !addr.IsEmpty() {
		s.host.AddExternalAddr(addr)
	}
	if current != old {
		log.Info("可达性状态变化", "old", old, "new", current)
		s.emit(StatusChanged{Old: old, New: current})
	}
}

// nextInterval 状态未确认时按重试间隔探测，否则按刷新间隔
func (s *Service) nextInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == StatusUnknown || s.confidence < s.cfg.ConfidenceMax {
		return s.cfg.RetryInterval
	}
	return s.cfg.RefreshInterval
}

// ============================================================================
//                              客户端
// ============================================================================

// run 探测循环
func (s *Service) run() {
	timer := s.clock.Timer(s.cfg.BootDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.Probe(s.ctx)
			timer.Reset(s.nextInterval())
		}
	}
}

// Probe 执行一轮探测，依次请求至多 MaxServers 个服务端
func (s *Service) Probe(ctx context.Context) {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	servers := s.servers()
	if len(servers) == 0 {
		s.emit(OutboundProbeError{Err: ErrNoServer})
		return
	}

	for _, p := range servers {
		if ctx.Err() != nil {
			return
		}
		s.probePeer(ctx, p)
	}
}

// servers 返回已连接且支持 AutoNAT 的节点（随机顺序）
func (s *Service) servers() []types.PeerID {
	ps := s.host.Peerstore()
	var out []types.PeerID
	for _, p := range s.host.Peers() {
		if ps.SupportsProtocol(p, protocolids.AutoNAT) {
			out = append(out, p)
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > s.cfg.MaxServers {
		out = out[:s.cfg.MaxServers]
	}
	return out
}

// probePeer 请求 p 回拨并记录结果
func (s *Service) probePeer(ctx context.Context, p types.PeerID) {
	s.emit(OutboundProbeRequest{Peer: p})

	resp, err := s.requestDialBack(ctx, p)
	if err != nil {
		s.probeFailed(p, err)
		return
	}

	switch resp.Status {
	case StatusOK:
		s.emit(OutboundProbeResponse{Peer: p, Addr: resp.Addr})
		s.recordResult(true, resp.Addr)
	case StatusDialError:
		s.probeFailed(p, &ResponseError{Status: resp.Status, Text: resp.StatusText})
		s.recordResult(false, "")
	default:
		// 拒绝或请求错误不说明可达性
		s.probeFailed(p, &ResponseError{Status: resp.Status, Text: resp.StatusText})
	}
}

func (s *Service) probeFailed(p types.PeerID, err error) {
	log.Debug("探测失败", "peer", p.ShortString(), "error", err)
	s.emit(OutboundProbeError{Peer: &p, Err: err})
}

// requestDialBack 发送 DIAL 请求并读取响应
func (s *Service) requestDialBack(ctx context.Context, p types.PeerID) (*DialResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)
	defer cancel()

	st, _, err := s.host.NewStream(ctx, p, protocolids.AutoNAT)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if d, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(d)
	}

	var addrs []types.Multiaddr
	for _, a := range s.host.Addrs() {
		if !a.IsRelay() {
			addrs = append(addrs, a)
		}
	}
	req := &Message{
		Type: MessageDial,
		Dial: &DialRequest{Peer: s.host.ID(), Addrs: addrs},
	}
	if err := wire.WriteProto(st, req); err != nil {
		st.Reset()
		return nil, err
	}

	var msg Message
	if err := wire.ReadProto(st, MaxMessageSize, &msg); err != nil {
		st.Reset()
		return nil, err
	}
	if msg.Type != MessageDialResponse || msg.DialResponse == nil {
		return nil, fmt.Errorf("%w: unexpected message %s", ErrBadRequest, msg.Type)
	}
	return msg.DialResponse, nil
}
