package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-bootnode/internal/core/swarm"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("core/host")

// DefaultNegotiationTimeout 默认协议协商超时
const DefaultNegotiationTimeout = 10 * time.Second

// 确保实现了接口
var _ pkgif.Host = (*Host)(nil)

// Option Host 选项
type Option func(*Host)

// WithNegotiationTimeout 设置协议协商超时
func WithNegotiationTimeout(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.negotiationTimeout = d
		}
	}
}

// WithAddrsManagerOptions 设置地址管理选项
func WithAddrsManagerOptions(opts ...AddrsOption) Option {
	return func(h *Host) {
		h.addrsOpts = append(h.addrsOpts, opts...)
	}
}

// Host 节点视图
type Host struct {
	swarm *swarm.Swarm
	mux   *mss.MultistreamMuxer[types.ProtocolID]
	addrs *addrsManager

	negotiationTimeout time.Duration
	addrsOpts          []AddrsOption

	mu       sync.RWMutex
	handlers map[types.ProtocolID]pkgif.StreamHandler
}

// New 在 swarm 之上创建 Host
//
// 入站流由 Host 接管，不要再调用 swarm.SetStreamHandler。
func New(s *swarm.Swarm, opts ...Option) *Host {
	h := &Host{
		swarm:              s,
		mux:                mss.NewMultistreamMuxer[types.ProtocolID](),
		negotiationTimeout: DefaultNegotiationTimeout,
		handlers:           make(map[types.ProtocolID]pkgif.StreamHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.addrs = newAddrsManager(s, h.addrsOpts...)
	s.SetStreamHandler(h.handleStream)
	return h
}

// Swarm 返回底层 swarm
func (h *Host) Swarm() *swarm.Swarm {
	return h.swarm
}

// ID 返回本地节点 ID
func (h *Host) ID() types.PeerID {
	return h.swarm.LocalPeer()
}

// Peerstore 返回节点信息存储
func (h *Host) Peerstore() pkgif.Peerstore {
	return h.swarm.Peerstore()
}

// ============================================================================
//                              协议处理
// ============================================================================

// SetStreamHandler 注册入站协议处理函数
func (h *Host) SetStreamHandler(proto types.ProtocolID, handler pkgif.StreamHandler) {
	h.mu.Lock()
	h.handlers[proto] = handler
	h.mu.Unlock()
	h.mux.AddHandler(proto, nil)

	log.Debug("注册协议处理函数", "protocol", proto)
}

// RemoveStreamHandler 移除入站协议处理函数
func (h *Host) RemoveStreamHandler(proto types.ProtocolID) {
	h.mu.Lock()
	delete(h.handlers, proto)
	h.mu.Unlock()
	h.mux.RemoveHandler(proto)
}

// Protocols 返回本地支持的协议
func (h *Host) Protocols() []types.ProtocolID {
	return h.mux.Protocols()
}

// handleStream 入站流协商后分发到处理函数
func (h *Host) handleStream(st pkgif.Stream, conn pkgif.Connection) {
	if err := st.SetDeadline(time.Now().Add(h.negotiationTimeout)); err != nil {
		st.Reset()
		return
	}

	proto, _, err := h.mux.Negotiate(st)
	if err != nil {
		log.Debug("入站协议协商失败",
			"peer", conn.RemotePeer().ShortString(),
			"error", err)
		st.Reset()
		return
	}
	_ = st.SetDeadline(time.Time{})

	h.mu.RLock()
	handler := h.handlers[proto]
	h.mu.RUnlock()

	if handler == nil {
		st.Reset()
		return
	}
	handler(st, conn)
}

// NewStream 打开到 peer 的流，按顺序协商 protos 中的第一个可用协议
func (h *Host) NewStream(ctx context.Context, peer types.PeerID, protos ...types.ProtocolID) (pkgif.Stream, types.ProtocolID, error) {
	if len(protos) == 0 {
		return nil, "", ErrNoProtocols
	}

	conn, err := h.swarm.DialPeer(ctx, peer)
	if err != nil {
		return nil, "", err
	}

	st, err := conn.NewStream(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open stream: %w", err)
	}

	deadline := time.Now().Add(h.negotiationTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := st.SetDeadline(deadline); err != nil {
		st.Reset()
		return nil, "", err
	}

	proto, err := mss.SelectOneOf(protos, st)
	if err != nil {
		st.Reset()
		var notSupported mss.ErrNotSupported[types.ProtocolID]
		if errors.As(err, &notSupported) {
			return nil, "", fmt.Errorf("%w: %v", ErrProtocolNotSupported, protos)
		}
		return nil, "", fmt.Errorf("negotiate protocol: %w", err)
	}
	_ = st.SetDeadline(time.Time{})

	return st, proto, nil
}

// ============================================================================
//                              连接（委托给 swarm）
// ============================================================================

// Connect 确保与 peer 存在连接
func (h *Host) Connect(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) error {
	return h.swarm.Connect(ctx, peer, addrs)
}

// ConnsToPeer 返回到 peer 的所有连接
func (h *Host) ConnsToPeer(peer types.PeerID) []pkgif.Connection {
	return h.swarm.ConnsToPeer(peer)
}

// Peers 返回当前已连接的节点
func (h *Host) Peers() []types.PeerID {
	return h.swarm.Peers()
}

// IsConnected 检查是否与 peer 存在连接
func (h *Host) IsConnected(peer types.PeerID) bool {
	return h.swarm.IsConnected(peer)
}

// ClosePeer 关闭与 peer 的所有连接
func (h *Host) ClosePeer(peer types.PeerID) error {
	return h.swarm.ClosePeer(peer)
}

// Notify 订阅连接事件
func (h *Host) Notify(n pkgif.Notifiee) {
	h.swarm.Notify(n)
}

// StopNotify 取消订阅
func (h *Host) StopNotify(n pkgif.Notifiee) {
	h.swarm.StopNotify(n)
}

// ============================================================================
//                              地址
// ============================================================================

// ListenAddrs 返回实际监听地址（通配地址已展开）
func (h *Host) ListenAddrs() []types.Multiaddr {
	return h.addrs.ListenAddrs()
}

// Addrs 返回对外通告的地址
func (h *Host) Addrs() []types.Multiaddr {
	return h.addrs.Addrs()
}

// AddExternalAddr 登记一个已确认的外部地址
func (h *Host) AddExternalAddr(addr types.Multiaddr) {
	if h.addrs.AddExternal(addr) {
		log.Info("确认外部地址", "addr", addr)
	}
}

// RecordObservedAddr 记录 observer 看到的本节点地址
func (h *Host) RecordObservedAddr(observed types.Multiaddr, observer types.PeerID) {
	h.addrs.RecordObserved(observed, observer)
}

// ObservedAddrs 返回已启用的观测地址
func (h *Host) ObservedAddrs() []types.Multiaddr {
	return h.addrs.ObservedAddrs()
}
