package autonat

import (
	"context"
	"time"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              服务端
// ============================================================================

// handleDial 处理回拨请求
func (s *Service) handleDial(st pkgif.Stream, conn pkgif.Connection) {
	defer st.Close()
	_ = st.SetDeadline(time.Now().Add(StreamTimeout))

	peer := conn.RemotePeer()

	var msg Message
	if err := wire.ReadProto(st, MaxMessageSize, &msg); err != nil {
		log.Debug("读取探测请求失败", "peer", peer.ShortString(), "error", err)
		s.emit(InboundProbeError{Peer: peer, Err: err})
		st.Reset()
		return
	}
	s.emit(InboundProbeRequest{Peer: peer})

	resp := s.serveDial(peer, conn.RemoteMultiaddr(), &msg)
	if err := wire.WriteProto(st, &Message{Type: MessageDialResponse, DialResponse: resp}); err != nil {
		log.Debug("发送探测响应失败", "peer", peer.ShortString(), "error", err)
		st.Reset()
	}
}

// serveDial 校验请求、节流并执行回拨
func (s *Service) serveDial(peer types.PeerID, observed types.Multiaddr, msg *Message) *DialResponse {
	if msg.Type != MessageDial || msg.Dial == nil || msg.Dial.Peer != peer {
		s.emit(InboundProbeError{Peer: peer, Err: ErrBadRequest})
		return &DialResponse{Status: StatusBadRequest, StatusText: "invalid dial request"}
	}

	addrs := s.dialableAddrs(msg.Dial.Addrs, observed)
	if len(addrs) == 0 {
		s.emit(InboundProbeError{Peer: peer, Err: ErrNoDialableAddrs})
		return &DialResponse{Status: StatusDialRefused, StatusText: "no dialable addresses"}
	}

	if s.throttle.Contains(peer) {
		s.emit(InboundProbeError{Peer: peer, Err: ErrDialRefused})
		return &DialResponse{Status: StatusDialRefused, StatusText: "too many dials"}
	}
	if !s.limiter.AllowN(s.clock.Now(), 1) {
		s.emit(InboundProbeError{Peer: peer, Err: ErrDialRefused})
		return &DialResponse{Status: StatusDialRefused, StatusText: "global rate limit"}
	}
	s.throttle.Add(peer, struct{}{})

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	defer cancel()

	addr, err := s.dialer.DialBack(ctx, peer, addrs)
	if err != nil {
		log.Debug("回拨失败", "peer", peer.ShortString(), "error", err)
		s.emit(InboundProbeError{Peer: peer, Err: err})
		return &DialResponse{Status: StatusDialError, StatusText: "dial failed"}
	}

	s.emit(InboundProbeResponse{Peer: peer, Addr: addr})
	return &DialResponse{Status: StatusOK, Addr: addr}
}

// dialableAddrs 过滤出可回拨的地址
//
// 只保留与观测地址同 IP 的地址，非测试场景下只保留公网地址。
func (s *Service) dialableAddrs(addrs []types.Multiaddr, observed types.Multiaddr) []types.Multiaddr {
	obsIP := observed.IP()

	seen := make(map[types.Multiaddr]struct{}, len(addrs))
	var out []types.Multiaddr
	for _, a := range addrs {
		a = a.WithoutPeerID()
		if a.IsRelay() {
			continue
		}
		ip := a.IP()
		if ip == nil {
			continue
		}
		if !s.cfg.AllowPrivateAddrs && !a.IsPublic() {
			continue
		}
		if obsIP != nil && !ip.Equal(obsIP) {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
