package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

func newNode(t *testing.T, clk clock.Clock) (*host.Host, *Service) {
	t.Helper()
	h := testutil.NewTestHost(t).Start()
	svc := NewService(h, Config{Interval: 15 * time.Second, Timeout: 5 * time.Second, Clock: clk})
	svc.Start()
	t.Cleanup(svc.Stop)
	return h, svc
}

func TestLiveness_Ping(t *testing.T) {
	server, _ := newNode(t, clock.NewMock())
	client, clientSvc := newNode(t, clock.NewMock())
	testutil.ConnectHosts(t, client, server)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.DefaultTimeout)
	defer cancel()

	rtt, err := clientSvc.Ping(ctx, server.ID())
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	t.Log("✅ Ping 测试通过")
}

func TestLiveness_PeriodicResults(t *testing.T) {
	clk := clock.NewMock()
	server, _ := newNode(t, clk)
	client, clientSvc := newNode(t, clk)
	events := clientSvc.Events()

	testutil.ConnectHosts(t, client, server)

	// 连接建立后立即 Ping 一次
	ev := testutil.WaitEvent[Result](t, events, testutil.DefaultTimeout)
	assert.Equal(t, server.ID(), ev.Peer)
	assert.NoError(t, ev.Err)
	assert.Greater(t, ev.RTT, time.Duration(0))

	health, ok := clientSvc.PeerHealth(server.ID())
	require.True(t, ok)
	assert.Equal(t, ev.RTT, health.LastRTT)
	assert.Zero(t, health.FailedPings)

	// 到达间隔后再次 Ping
	clk.Add(15 * time.Second)
	ev = testutil.WaitEvent[Result](t, events, testutil.DefaultTimeout)
	assert.Equal(t, server.ID(), ev.Peer)
	assert.NoError(t, ev.Err)

	t.Log("✅ 周期 Ping 测试通过")
}

func TestLiveness_UnsupportedPeer(t *testing.T) {
	server := testutil.NewTestHost(t).Start()
	client, clientSvc := newNode(t, clock.NewMock())
	events := clientSvc.Events()

	testutil.ConnectHosts(t, client, server)

	ev := testutil.WaitEvent[Result](t, events, testutil.DefaultTimeout)
	assert.Equal(t, server.ID(), ev.Peer)
	assert.ErrorIs(t, ev.Err, host.ErrProtocolNotSupported)

	health, ok := clientSvc.PeerHealth(server.ID())
	require.True(t, ok)
	assert.Equal(t, 1, health.FailedPings)

	t.Log("✅ 不支持 Ping 的节点测试通过")
}

func TestLiveness_StopsOnDisconnect(t *testing.T) {
	server, _ := newNode(t, clock.NewMock())
	client, clientSvc := newNode(t, clock.NewMock())
	events := clientSvc.Events()

	testutil.ConnectHosts(t, client, server)
	testutil.WaitEvent[Result](t, events, testutil.DefaultTimeout)
	assert.Equal(t, 1, clientSvc.TrackedPeers())

	require.NoError(t, client.ClosePeer(server.ID()))
	testutil.Eventually(t, testutil.DefaultTimeout, func() bool {
		return clientSvc.TrackedPeers() == 0
	}, "断开后应停止探测")

	t.Log("✅ 断开停止探测测试通过")
}

func TestLiveness_ClosedService(t *testing.T) {
	h := testutil.NewTestHost(t).Start()
	svc := NewService(h, Config{})
	svc.Start()
	svc.Stop()

	_, err := svc.Ping(context.Background(), h.ID())
	assert.ErrorIs(t, err, ErrServiceClosed)

	t.Log("✅ 关闭后 Ping 测试通过")
}
