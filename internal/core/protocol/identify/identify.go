package identify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/eventbus"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/peerstore"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("protocol/identify")

// 常量定义
const (
	// Timeout 单次身份交换超时
	Timeout = 30 * time.Second

	// MaxMessageSize 单条身份消息最大长度
	MaxMessageSize = 8 * 1024

	// MaxMessages 一次身份交换最多读取的消息条数
	MaxMessages = 10
)

// ObservedAddrRecorder 接收观测地址的 host
type ObservedAddrRecorder interface {
	RecordObservedAddr(observed types.Multiaddr, observer types.PeerID)
}

// Service Identify 服务
type Service struct {
	host     pkgif.Host
	identity *identity.Identity
	emitter  *eventbus.Emitter
	notifiee *pkgif.NotifyBundle

	mu       sync.Mutex
	inflight map[pkgif.Connection]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 创建 Identify 服务
func NewService(host pkgif.Host, id *identity.Identity) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		host:     host,
		identity: id,
		emitter:  eventbus.NewEmitter(eventbus.DefaultBufSize),
		inflight: make(map[pkgif.Connection]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.notifiee = &pkgif.NotifyBundle{
		ConnectedF: func(c pkgif.Connection) {
			s.spawn(func() { s.identifyConn(c) })
		},
		ListenAddrsChangedF: func([]types.Multiaddr) {
			s.spawn(s.pushAll)
		},
	}
	return s
}

// Events 返回身份交换事件流
func (s *Service) Events() <-chan types.Event {
	return s.emitter.Events()
}

// Start 注册协议处理函数并订阅连接事件
func (s *Service) Start() {
	s.host.SetStreamHandler(protocolids.Identify, s.handleIdentify)
	s.host.SetStreamHandler(protocolids.IdentifyPush, s.handlePush)
	s.host.Notify(s.notifiee)

	// 启动前已建立的连接
	for _, p := range s.host.Peers() {
		for _, c := range s.host.ConnsToPeer(p) {
			c := c
			s.spawn(func() { s.identifyConn(c) })
		}
	}
	log.Debug("identify 服务已启动")
}

// Stop 停止服务并关闭事件流
func (s *Service) Stop() {
	s.host.StopNotify(s.notifiee)
	s.host.RemoveStreamHandler(protocolids.Identify)
	s.host.RemoveStreamHandler(protocolids.IdentifyPush)
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

// ============================================================================
//                              服务端
// ============================================================================

// localInfo 构造本节点身份信息
func (s *Service) localInfo(conn pkgif.Connection) *Info {
	info := &Info{
		ProtocolVersion: protocolids.IdentifyProtocolVersion,
		AgentVersion:    protocolids.AgentVersion,
		PublicKey:       s.identity.MarshalPublicKey(),
		ListenAddrs:     s.host.Addrs(),
		Protocols:       s.host.Protocols(),
	}
	if conn != nil {
		info.ObservedAddr = conn.RemoteMultiaddr()
	}
	return info
}

// handleIdentify 回应身份请求
func (s *Service) handleIdentify(st pkgif.Stream, conn pkgif.Connection) {
	defer st.Close()
	_ = st.SetDeadline(time.Now().Add(Timeout))

	peer := conn.RemotePeer()
	if err := wire.WriteProto(st, s.localInfo(conn)); err != nil {
		log.Debug("发送身份信息失败", "peer", peer.ShortString(), "error", err)
		s.emit(Error{Peer: peer, Err: err})
		return
	}
	s.emit(Sent{Peer: peer})
}

// handlePush 接收对端推送
func (s *Service) handlePush(st pkgif.Stream, conn pkgif.Connection) {
	defer st.Close()
	_ = st.SetDeadline(time.Now().Add(Timeout))

	peer := conn.RemotePeer()
	info, err := s.readInfo(st, peer)
	if err != nil {
		s.emit(Error{Peer: peer, Err: err})
		st.Reset()
		return
	}
	s.consume(peer, info)
}

// ============================================================================
//                              客户端
// ============================================================================

// Identify 向 peer 请求身份信息并写入地址簿与协议簿
func (s *Service) Identify(ctx context.Context, peer types.PeerID) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	st, _, err := s.host.NewStream(ctx, peer, protocolids.Identify)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if d, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(d)
	}

	info, err := s.readInfo(st, peer)
	if err != nil {
		st.Reset()
		return nil, err
	}

	s.consume(peer, info)
	return info, nil
}

// identifyConn 对新连接执行一次身份交换
func (s *Service) identifyConn(conn pkgif.Connection) {
	s.mu.Lock()
	if _, ok := s.inflight[conn]; ok {
		s.mu.Unlock()
		return
	}
	s.inflight[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, conn)
		s.mu.Unlock()
	}()

	peer := conn.RemotePeer()
	if _, err := s.Identify(s.ctx, peer); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		log.Debug("身份交换失败", "peer", peer.ShortString(), "error", err)
		s.emit(Error{Peer: peer, Err: err})
	}
}

// readInfo 读取并校验身份信息
//
// 对端可能把身份信息拆成多条消息发送，读到 EOF 为止逐条合并。
func (s *Service) readInfo(st pkgif.Stream, peer types.PeerID) (*Info, error) {
	var info Info
	if err := wire.ReadProto(st, MaxMessageSize, &info); err != nil {
		return nil, fmt.Errorf("read identify message: %w", err)
	}
	for n := 1; n < MaxMessages; n++ {
		data, err := wire.ReadMsg(st, MaxMessageSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read identify message: %w", err)
		}
		if err := info.UnmarshalProto(data); err != nil {
			return nil, fmt.Errorf("read identify message: %w", err)
		}
	}
	if err := info.verify(peer); err != nil {
		return nil, err
	}
	info.sanitize()
	return &info, nil
}

// consume 记录身份信息并发出 Received 事件
func (s *Service) consume(peer types.PeerID, info *Info) {
	ps := s.host.Peerstore()
	if len(info.ListenAddrs) > 0 {
		ps.AddAddrs(peer, info.ListenAddrs, peerstore.ConnectedAddrTTL)
	}
	ps.SetProtocols(peer, info.Protocols...)

	if info.ObservedAddr != "" {
		if rec, ok := s.host.(ObservedAddrRecorder); ok {
			rec.RecordObservedAddr(info.ObservedAddr, peer)
		}
	}

	log.Debug("收到身份信息",
		"peer", peer.ShortString(),
		"agent", info.AgentVersion,
		"addrs", len(info.ListenAddrs),
		"protocols", len(info.Protocols))

	s.emit(Received{Peer: peer, Info: info})
}

// ============================================================================
//                              推送
// ============================================================================

// pushAll 向所有支持推送的已连接节点推送身份更新
func (s *Service) pushAll() {
	for _, p := range s.host.Peers() {
		if !s.host.Peerstore().SupportsProtocol(p, protocolids.IdentifyPush) {
			continue
		}
		p := p
		s.spawn(func() {
			if err := s.Push(s.ctx, p); err != nil && s.ctx.Err() == nil {
				log.Debug("推送身份失败", "peer", p.ShortString(), "error", err)
				s.emit(Error{Peer: p, Err: err})
			}
		})
	}
}

// Push 向 peer 推送本节点身份信息
func (s *Service) Push(ctx context.Context, peer types.PeerID) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	st, _, err := s.host.NewStream(ctx, peer, protocolids.IdentifyPush)
	if err != nil {
		return err
	}
	defer st.Close()
	if d, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(d)
	}

	var conn pkgif.Connection
	if cs := s.host.ConnsToPeer(peer); len(cs) > 0 {
		conn = cs[0]
	}
	if err := wire.WriteProto(st, s.localInfo(conn)); err != nil {
		st.Reset()
		return err
	}
	s.emit(Pushed{Peer: peer})
	return nil
}

func (s *Service) emit(ev types.Event) {
	if err := s.emitter.EmitContext(s.ctx, ev); err != nil && s.ctx.Err() == nil {
		log.Debug("事件发射失败", "error", err)
	}
}
