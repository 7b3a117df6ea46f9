package upgrader

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

type upgradeResult struct {
	conn *Conn
	err  error
}

// upgradePair 在 TCP 回环上升级一对连接
func upgradePair(t *testing.T, client, server *identity.Identity, expected types.PeerID) (*Conn, *Conn, error, error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cu, err := New(client, DefaultConfig())
	require.NoError(t, err)
	su, err := New(server, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan upgradeResult, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			done <- upgradeResult{nil, err}
			return
		}
		c, err := su.Upgrade(ctx, raw, pkgif.DirInbound, types.EmptyPeerID, "")
		done <- upgradeResult{c, err}
	}()

	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	cc, cerr := cu.Upgrade(ctx, raw, pkgif.DirOutbound, expected, "")
	res := <-done

	t.Cleanup(func() {
		if cc != nil {
			cc.Close()
		}
		if res.conn != nil {
			res.conn.Close()
		}
	})
	return cc, res.conn, cerr, res.err
}

func TestUpgrade_StreamEcho(t *testing.T) {
	client, _ := identity.Generate()
	server, _ := identity.Generate()

	cc, sc, cerr, serr := upgradePair(t, client, server, server.PeerID())
	require.NoError(t, cerr)
	require.NoError(t, serr)

	assert.Equal(t, server.PeerID(), cc.RemotePeer())
	assert.Equal(t, client.PeerID(), sc.RemotePeer())
	assert.Equal(t, pkgif.DirOutbound, cc.Direction())
	assert.Equal(t, pkgif.DirInbound, sc.Direction())
	assert.False(t, cc.LocalMultiaddr().IsEmpty())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		s, err := sc.AcceptStream(ctx)
		if err != nil {
			return
		}
		defer s.Close()
		_, _ = io.Copy(s, io.LimitReader(s, 5))
	}()

	s, err := cc.NewStream(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	t.Log("✅ 连接升级与流回显测试通过")
}

func TestUpgrade_OutboundRequiresPeer(t *testing.T) {
	id, _ := identity.Generate()
	u, err := New(id, DefaultConfig())
	require.NoError(t, err)

	a, b := net.Pipe()
	defer b.Close()
	_, err = u.Upgrade(context.Background(), a, pkgif.DirOutbound, types.EmptyPeerID, "")
	assert.ErrorIs(t, err, ErrNoPeerID)

	t.Log("✅ 出站缺少 PeerID 测试通过")
}

func TestUpgrade_WrongPeer(t *testing.T) {
	client, _ := identity.Generate()
	server, _ := identity.Generate()
	other, _ := identity.Generate()

	_, _, cerr, _ := upgradePair(t, client, server, other.PeerID())
	assert.ErrorIs(t, cerr, noise.ErrPeerIDMismatch)

	t.Log("✅ 对端身份不符测试通过")
}

func TestNew_NilIdentity(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilIdentity)
}
