package swarm

import (
	"errors"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Listen 在所有地址上监听
//
// 任一地址失败时关闭本次已打开的监听器并返回 *BindError。
func (s *Swarm) Listen(addrs ...types.Multiaddr) error {
	if s.closed.Load() {
		return ErrSwarmClosed
	}
	if len(addrs) == 0 {
		return ErrNoListenAddrs
	}

	opened := make([]pkgif.Listener, 0, len(addrs))
	for _, addr := range addrs {
		l, err := s.listenOn(addr)
		if err != nil {
			var closeErr error
			for _, o := range opened {
				closeErr = multierr.Append(closeErr, o.Close())
			}
			if closeErr != nil {
				log.Debug("回滚监听器失败", "error", closeErr)
			}
			return &BindError{Addr: addr, Err: err}
		}
		opened = append(opened, l)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		for _, l := range opened {
			l.Close()
		}
		return ErrSwarmClosed
	}
	s.listeners = append(s.listeners, opened...)
	s.mu.Unlock()

	for _, l := range opened {
		log.Info("开始监听", "addr", l.Multiaddr())
		s.emit(NewListenAddr{Addr: l.Multiaddr()})

		s.wg.Add(1)
		go s.acceptLoop(l)
	}

	s.notifyListenAddrs()
	return nil
}

// listenOn 选择第一个能监听该地址的传输
func (s *Swarm) listenOn(addr types.Multiaddr) (pkgif.Listener, error) {
	for _, t := range s.transports {
		if t.CanListen(addr) {
			return t.Listen(addr)
		}
	}
	return nil, ErrNoTransport
}

// ListenAddrs 返回实际监听地址
func (s *Swarm) ListenAddrs() []types.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]types.Multiaddr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.Multiaddr())
	}
	return addrs
}

// acceptLoop 接受入站连接
func (s *Swarm) acceptLoop(l pkgif.Listener) {
	defer s.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.removeListener(l)
			if s.closed.Load() {
				return
			}
			log.Warn("监听器已关闭", "addr", l.Multiaddr(), "error", err)
			s.emit(ListenerClosed{Addr: l.Multiaddr(), Err: err})
			s.notifyListenAddrs()
			return
		}

		if conn.RemotePeer() == s.local {
			conn.Close()
			s.emit(IncomingConnectionError{Addr: conn.RemoteMultiaddr(), Err: ErrDialToSelf})
			continue
		}

		if err := s.addConn(conn); err != nil {
			if errors.Is(err, ErrSwarmClosed) {
				return
			}
			s.emit(IncomingConnectionError{Addr: conn.RemoteMultiaddr(), Err: err})
		}
	}
}

// removeListener 从监听器列表中移除
func (s *Swarm) removeListener(l pkgif.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.listeners {
		if o == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notifyListenAddrs 通知监听地址变化
func (s *Swarm) notifyListenAddrs() {
	addrs := s.ListenAddrs()
	s.notifyAll(func(n pkgif.Notifiee) { n.ListenAddrsChanged(addrs) })
}
