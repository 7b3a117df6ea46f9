package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

func newTestTransport(t *testing.T) (*Transport, *identity.Identity) {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	up, err := upgrader.New(id, upgrader.DefaultConfig())
	require.NoError(t, err)
	tr := New(id.PeerID(), up, 5*time.Second, 30*time.Second)
	t.Cleanup(func() { tr.Close() })
	return tr, id
}

func TestTransport_CanDial(t *testing.T) {
	tr, _ := newTestTransport(t)

	assert.True(t, tr.CanDial("/ip4/1.2.3.4/tcp/4001"))
	assert.True(t, tr.CanDial("/dns4/example.com/tcp/4001"))
	assert.False(t, tr.CanDial("/ip4/1.2.3.4/udp/4001/quic-v1"))
	assert.False(t, tr.CanDial("/dnsaddr/bootstrap.libp2p.io"))
	assert.False(t, tr.CanListen("/dns4/example.com/tcp/4001"))

	t.Log("✅ TCP 地址判定测试通过")
}

func TestTransport_DialListen(t *testing.T) {
	server, serverID := newTestTransport(t)
	client, clientID := newTestTransport(t)

	l, err := server.Listen("/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)
	defer l.Close()

	port, ok := l.Multiaddr().ValueForProtocol(types.ProtoTCP)
	require.True(t, ok)
	assert.NotEqual(t, "0", port)

	accepted := make(chan pkgif.Connection, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Dial(ctx, l.Multiaddr(), serverID.PeerID())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, serverID.PeerID(), conn.RemotePeer())

	var sconn pkgif.Connection
	select {
	case sconn = <-accepted:
	case <-ctx.Done():
		t.Fatal("等待入站连接超时")
	}
	defer sconn.Close()
	assert.Equal(t, clientID.PeerID(), sconn.RemotePeer())

	go func() {
		s, err := sconn.AcceptStream(ctx)
		if err != nil {
			return
		}
		defer s.Close()
		_, _ = io.Copy(s, io.LimitReader(s, 4))
	}()

	s, err := conn.NewStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	t.Log("✅ TCP 拨号与监听测试通过")
}

func TestListener_CloseUnblocksAccept(t *testing.T) {
	tr, _ := newTestTransport(t)
	l, err := tr.Listen("/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		errCh <- err
	}()

	require.NoError(t, l.Close())
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Accept 未返回")
	}

	t.Log("✅ 监听器关闭测试通过")
}

func TestTransport_ClosedRejects(t *testing.T) {
	tr, _ := newTestTransport(t)
	require.NoError(t, tr.Close())

	_, err := tr.Listen("/ip4/127.0.0.1/tcp/0")
	assert.ErrorIs(t, err, ErrTransportClosed)
	_, err = tr.Dial(context.Background(), "/ip4/127.0.0.1/tcp/1", "")
	assert.ErrorIs(t, err, ErrTransportClosed)

	t.Log("✅ 关闭后拒绝测试通过")
}
