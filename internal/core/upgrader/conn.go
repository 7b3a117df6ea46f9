package upgrader

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/yamux"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// 确保实现了接口
var _ pkgif.Connection = (*Conn)(nil)

// Conn 基于 yamux 会话的连接
type Conn struct {
	session *yamux.Session

	localPeer  types.PeerID
	remotePeer types.PeerID
	localAddr  types.Multiaddr
	remoteAddr types.Multiaddr
	direction  pkgif.Direction
}

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() types.PeerID { return c.localPeer }

// LocalMultiaddr 返回本地多地址
func (c *Conn) LocalMultiaddr() types.Multiaddr { return c.localAddr }

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() types.PeerID { return c.remotePeer }

// RemoteMultiaddr 返回远端多地址
func (c *Conn) RemoteMultiaddr() types.Multiaddr { return c.remoteAddr }

// Direction 返回连接方向
func (c *Conn) Direction() pkgif.Direction { return c.direction }

// NewStream 创建新流
func (c *Conn) NewStream(ctx context.Context) (pkgif.Stream, error) {
	if c.session.IsClosed() {
		return nil, ErrConnClosed
	}

	type result struct {
		s   *yamux.Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.session.OpenStream()
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		return &stream{Stream: r.s}, nil
	case <-ctx.Done():
		// 打开中的流在完成后立即关闭
		go func() {
			if r := <-ch; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// AcceptStream 接受对方创建的流
func (c *Conn) AcceptStream(ctx context.Context) (pkgif.Stream, error) {
	s, err := c.session.AcceptStreamWithContext(ctx)
	if err != nil {
		if errors.Is(err, yamux.ErrSessionShutdown) {
			return nil, ErrConnClosed
		}
		return nil, err
	}
	return &stream{Stream: s}, nil
}

// IsClosed 检查连接是否已关闭
func (c *Conn) IsClosed() bool {
	return c.session.IsClosed()
}

// Close 关闭连接
func (c *Conn) Close() error {
	return c.session.Close()
}

// stream yamux 流
type stream struct {
	*yamux.Stream
}

// Reset 异常终止流
//
// hashicorp/yamux 不区分 reset 与 close，这里直接关闭。
func (s *stream) Reset() error {
	return s.Stream.Close()
}
