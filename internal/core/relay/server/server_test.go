package server

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

// ============================================================================
//                              测试辅助
// ============================================================================

func newRelay(t *testing.T, cfg Config) (*host.Host, *Server) {
	t.Helper()
	h := testutil.NewTestHost(t).Start()
	srv := NewServer(h, cfg)
	srv.Start()
	t.Cleanup(srv.Stop)
	return h, srv
}

// newClient 创建连接到中继的节点
func newClient(t *testing.T, relay *host.Host) *host.Host {
	t.Helper()
	h := testutil.NewTestHost(t).Start()
	testutil.ConnectHosts(t, h, relay)
	return h
}

// hop 发送一条 hop 请求并读取响应，返回的流由调用方处理
func hop(t *testing.T, h *host.Host, relay types.PeerID, req *HopMessage) (pkgif.Stream, HopMessage) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testutil.DefaultTimeout)
	defer cancel()

	st, _, err := h.NewStream(ctx, relay, protocolids.RelayHop)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, wire.WriteProto(st, req))
	var resp HopMessage
	require.NoError(t, wire.ReadProto(st, MaxMessageSize, &resp))
	require.Equal(t, MessageStatus, resp.Type)
	return st, resp
}

func reserve(t *testing.T, h *host.Host, relay types.PeerID) HopMessage {
	t.Helper()
	st, resp := hop(t, h, relay, &HopMessage{Type: MessageReserve})
	st.Close()
	return resp
}

func connect(t *testing.T, h *host.Host, relay, dst types.PeerID) (pkgif.Stream, HopMessage) {
	t.Helper()
	return hop(t, h, relay, &HopMessage{Type: MessageConnect, Peer: &PeerInfo{ID: dst}})
}

// serveStop 让 h 作为目标端接受电路，并回显收到的数据
func serveStop(h *host.Host) {
	h.SetStreamHandler(protocolids.RelayStop, func(st pkgif.Stream, _ pkgif.Connection) {
		defer st.Close()

		var req StopMessage
		if err := wire.ReadProto(st, MaxMessageSize, &req); err != nil || req.Type != MessageConnect {
			st.Reset()
			return
		}
		if err := wire.WriteProto(st, &StopMessage{Type: MessageStatus, Status: StatusOK}); err != nil {
			return
		}
		_, _ = io.Copy(st, st)
	})
}

func randomPeer(t *testing.T) types.PeerID {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id.PeerID()
}

// ============================================================================
//                              预留
// ============================================================================

func TestServer_Reservation(t *testing.T) {
	relay, srv := newRelay(t, Config{CircuitBytes: 1 << 20})
	events := srv.Events()
	client := newClient(t, relay)

	resp := reserve(t, client, relay.ID())
	require.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Reservation)
	assert.Greater(t, resp.Reservation.Expire, time.Now().Unix())
	require.NotEmpty(t, resp.Reservation.Addrs)
	for _, a := range resp.Reservation.Addrs {
		id, ok := a.PeerID()
		assert.True(t, ok, "中继地址应带 /p2p/<relay>: %s", a)
		assert.Equal(t, relay.ID(), id)
		assert.False(t, a.IsRelay())
	}
	require.NotNil(t, resp.Limit)
	assert.Equal(t, int64(1<<20), resp.Limit.Data)

	ev := testutil.WaitEvent[ReservationReqAccepted](t, events, testutil.DefaultTimeout)
	assert.Equal(t, client.ID(), ev.Src)
	assert.False(t, ev.Renewed)

	// 续约
	resp = reserve(t, client, relay.ID())
	require.Equal(t, StatusOK, resp.Status)
	ev = testutil.WaitEvent[ReservationReqAccepted](t, events, testutil.DefaultTimeout)
	assert.True(t, ev.Renewed)

	assert.Equal(t, 1, srv.Stats().Reservations)

	t.Log("✅ 预留与续约测试通过")
}

func TestServer_ReservationLimit(t *testing.T) {
	relay, srv := newRelay(t, Config{MaxReservations: 1})
	events := srv.Events()

	first := newClient(t, relay)
	second := newClient(t, relay)

	require.Equal(t, StatusOK, reserve(t, first, relay.ID()).Status)
	assert.Equal(t, StatusReservationRefused, reserve(t, second, relay.ID()).Status)

	ev := testutil.WaitEvent[ReservationReqDenied](t, events, testutil.DefaultTimeout)
	assert.Equal(t, second.ID(), ev.Src)
	assert.Equal(t, StatusReservationRefused, ev.Status)

	t.Log("✅ 预留总量限制测试通过")
}

func TestServer_ReservationPerIPLimit(t *testing.T) {
	relay, srv := newRelay(t, Config{MaxReservationsPerIP: 1})
	events := srv.Events()

	// 测试节点都来自 127.0.0.1
	first := newClient(t, relay)
	second := newClient(t, relay)

	require.Equal(t, StatusOK, reserve(t, first, relay.ID()).Status)
	assert.Equal(t, StatusResourceLimitExceeded, reserve(t, second, relay.ID()).Status)

	ev := testutil.WaitEvent[ReservationReqDenied](t, events, testutil.DefaultTimeout)
	assert.Equal(t, second.ID(), ev.Src)
	assert.Equal(t, StatusResourceLimitExceeded, ev.Status)

	// 已有预留的节点续约不受限制
	assert.Equal(t, StatusOK, reserve(t, first, relay.ID()).Status)

	t.Log("✅ 单 IP 预留限制测试通过")
}

func TestServer_ReservationTimeout(t *testing.T) {
	clk := clock.NewMock()
	relay, srv := newRelay(t, Config{ReservationTTL: time.Hour, Clock: clk})
	events := srv.Events()
	client := newClient(t, relay)

	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	testutil.WaitEvent[ReservationReqAccepted](t, events, testutil.DefaultTimeout)

	// 续约后旧定时器失效
	clk.Add(30 * time.Minute)
	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	clk.Add(40 * time.Minute)
	assert.Equal(t, 1, srv.Stats().Reservations)

	clk.Add(20 * time.Minute)
	ev := testutil.WaitEvent[ReservationTimedOut](t, events, testutil.DefaultTimeout)
	assert.Equal(t, client.ID(), ev.Src)
	assert.Equal(t, 0, srv.Stats().Reservations)

	t.Log("✅ 预留过期测试通过")
}

// nextEvent 按顺序读取下一个事件
func nextEvent(t *testing.T, events <-chan types.Event) types.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "事件流已关闭")
		return ev
	case <-time.After(testutil.DefaultTimeout):
		t.Fatal("等待事件超时")
		return nil
	}
}

func TestServer_ReservationEventOrder(t *testing.T) {
	clk := clock.NewMock()
	relay, srv := newRelay(t, Config{ReservationTTL: time.Hour, Clock: clk})
	events := srv.Events()
	client := newClient(t, relay)
	p := client.ID()

	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	assert.Equal(t, ReservationReqAccepted{Src: p}, nextEvent(t, events))

	// 过期后立即重新预留，再续约
	clk.Add(time.Hour)
	assert.Equal(t, ReservationTimedOut{Src: p}, nextEvent(t, events))
	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	assert.Equal(t, ReservationReqAccepted{Src: p}, nextEvent(t, events))
	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	assert.Equal(t, ReservationReqAccepted{Src: p, Renewed: true}, nextEvent(t, events))

	// 断开重连后重新预留
	require.NoError(t, client.ClosePeer(relay.ID()))
	assert.Equal(t, ReservationClosed{Src: p}, nextEvent(t, events))
	testutil.ConnectHosts(t, client, relay)
	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	assert.Equal(t, ReservationReqAccepted{Src: p}, nextEvent(t, events))

	assert.Equal(t, 1, srv.Stats().Reservations)

	t.Log("✅ 预留事件顺序测试通过")
}

func TestServer_ReservationClosedOnDisconnect(t *testing.T) {
	relay, srv := newRelay(t, Config{})
	events := srv.Events()
	client := newClient(t, relay)

	require.Equal(t, StatusOK, reserve(t, client, relay.ID()).Status)
	testutil.WaitEvent[ReservationReqAccepted](t, events, testutil.DefaultTimeout)
	require.NoError(t, client.ClosePeer(relay.ID()))

	ev := testutil.WaitEvent[ReservationClosed](t, events, testutil.DefaultTimeout)
	assert.Equal(t, client.ID(), ev.Src)
	assert.Equal(t, 0, srv.Stats().Reservations)

	t.Log("✅ 断开移除预留测试通过")
}

// ============================================================================
//                              电路
// ============================================================================

func TestServer_Circuit(t *testing.T) {
	relay, srv := newRelay(t, Config{})
	events := srv.Events()

	dst := newClient(t, relay)
	serveStop(dst)
	require.Equal(t, StatusOK, reserve(t, dst, relay.ID()).Status)

	src := newClient(t, relay)
	st, resp := connect(t, src, relay.ID(), dst.ID())
	require.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Limit)

	accepted := testutil.WaitEvent[CircuitReqAccepted](t, events, testutil.DefaultTimeout)
	assert.Equal(t, src.ID(), accepted.Src)
	assert.Equal(t, dst.ID(), accepted.Dst)
	assert.Equal(t, 1, srv.Stats().Circuits)

	msg := []byte("hello through relay")
	_, err := st.Write(msg)
	require.NoError(t, err)
	require.NoError(t, st.SetDeadline(time.Now().Add(testutil.DefaultTimeout)))
	echo := make([]byte, len(msg))
	_, err = io.ReadFull(st, echo)
	require.NoError(t, err)
	assert.Equal(t, msg, echo)

	require.NoError(t, st.Close())
	closed := testutil.WaitEvent[CircuitClosed](t, events, testutil.DefaultTimeout)
	assert.Equal(t, accepted.ID, closed.ID)
	assert.Equal(t, int64(2*len(msg)), closed.Bytes)
	assert.NoError(t, closed.Err)
	testutil.Eventually(t, testutil.DefaultTimeout, func() bool {
		return srv.Stats().Circuits == 0
	}, "电路关闭后应归还名额")

	t.Log("✅ 电路转发测试通过")
}

func TestServer_CircuitBytesLimit(t *testing.T) {
	relay, srv := newRelay(t, Config{CircuitBytes: 16})
	events := srv.Events()

	dst := newClient(t, relay)
	serveStop(dst)
	require.Equal(t, StatusOK, reserve(t, dst, relay.ID()).Status)

	src := newClient(t, relay)
	st, resp := connect(t, src, relay.ID(), dst.ID())
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, int64(16), resp.Limit.Data)

	_, err := st.Write(bytes.Repeat([]byte{0x42}, 64))
	require.NoError(t, err)

	closed := testutil.WaitEvent[CircuitClosed](t, events, testutil.DefaultTimeout)
	assert.ErrorIs(t, closed.Err, ErrCircuitBytesExceeded)

	t.Log("✅ 电路字节限制测试通过")
}

func TestServer_CircuitPerPeerLimit(t *testing.T) {
	relay, srv := newRelay(t, Config{MaxCircuitsPerPeer: 1})
	events := srv.Events()

	dst := newClient(t, relay)
	serveStop(dst)
	require.Equal(t, StatusOK, reserve(t, dst, relay.ID()).Status)

	src := newClient(t, relay)
	_, resp := connect(t, src, relay.ID(), dst.ID())
	require.Equal(t, StatusOK, resp.Status)

	_, resp = connect(t, src, relay.ID(), dst.ID())
	assert.Equal(t, StatusResourceLimitExceeded, resp.Status)

	ev := testutil.WaitEvent[CircuitReqDenied](t, events, testutil.DefaultTimeout)
	assert.Equal(t, src.ID(), ev.Src)
	assert.Equal(t, dst.ID(), ev.Dst)
	assert.Equal(t, StatusResourceLimitExceeded, ev.Status)

	t.Log("✅ 单节点电路限制测试通过")
}

func TestServer_CircuitNoReservation(t *testing.T) {
	relay, srv := newRelay(t, Config{})
	events := srv.Events()
	src := newClient(t, relay)
	target := randomPeer(t)

	_, resp := connect(t, src, relay.ID(), target)
	assert.Equal(t, StatusNoReservation, resp.Status)

	ev := testutil.WaitEvent[CircuitReqDenied](t, events, testutil.DefaultTimeout)
	assert.Equal(t, target, ev.Dst)
	assert.Equal(t, StatusNoReservation, ev.Status)

	t.Log("✅ 无预留拒绝测试通过")
}

func TestServer_CircuitConnectFailed(t *testing.T) {
	relay, srv := newRelay(t, Config{})
	events := srv.Events()

	// 目标节点不支持 stop 协议
	dst := newClient(t, relay)
	require.Equal(t, StatusOK, reserve(t, dst, relay.ID()).Status)

	src := newClient(t, relay)
	_, resp := connect(t, src, relay.ID(), dst.ID())
	assert.Equal(t, StatusConnectionFailed, resp.Status)

	ev := testutil.WaitEvent[CircuitReqOutboundConnectFailed](t, events, testutil.DefaultTimeout)
	assert.Equal(t, src.ID(), ev.Src)
	assert.Equal(t, dst.ID(), ev.Dst)
	assert.ErrorIs(t, ev.Err, host.ErrProtocolNotSupported)
	assert.Equal(t, 0, srv.Stats().Circuits)

	t.Log("✅ 连接目标失败测试通过")
}

func TestServer_BadHopMessages(t *testing.T) {
	relay, _ := newRelay(t, Config{})
	client := newClient(t, relay)

	_, resp := hop(t, client, relay.ID(), &HopMessage{Type: MessageConnect})
	assert.Equal(t, StatusMalformedMessage, resp.Status)

	_, resp = hop(t, client, relay.ID(), &HopMessage{Type: MessageStatus})
	assert.Equal(t, StatusUnexpectedMessage, resp.Status)

	t.Log("✅ 异常 hop 消息测试通过")
}

func TestServer_StopResetsCircuits(t *testing.T) {
	relay := testutil.NewTestHost(t).Start()
	srv := NewServer(relay, Config{})
	srv.Start()

	dst := newClient(t, relay)
	serveStop(dst)
	require.Equal(t, StatusOK, reserve(t, dst, relay.ID()).Status)

	src := newClient(t, relay)
	st, resp := connect(t, src, relay.ID(), dst.ID())
	require.Equal(t, StatusOK, resp.Status)
	testutil.Eventually(t, testutil.DefaultTimeout, func() bool {
		return srv.Stats().Circuits == 1
	}, "电路应已建立")

	srv.Stop()
	assert.Equal(t, Stats{}, srv.Stats())

	require.NoError(t, st.SetDeadline(time.Now().Add(testutil.DefaultTimeout)))
	_, err := st.Read(make([]byte, 1))
	assert.Error(t, err)

	t.Log("✅ 停止时关闭电路测试通过")
}
