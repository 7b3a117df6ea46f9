package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/discovery/kademlia"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/nat/autonat"
	"github.com/dep2p/go-bootnode/internal/core/protocol/identify"
	relay "github.com/dep2p/go-bootnode/internal/core/relay/server"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// fakeDiscovery 记录编排器发出的命令
type fakeDiscovery struct {
	mu         sync.Mutex
	added      map[types.PeerID][]types.Multiaddr
	addCalls   int
	bootstraps int
	inProgress bool
	err        error
	nextID     kademlia.QueryID
	// rejected 中的节点返回 Failed
	rejected map[types.PeerID]bool
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{added: make(map[types.PeerID][]types.Multiaddr)}
}

func (d *fakeDiscovery) AddAddress(peer types.PeerID, addr types.Multiaddr) kademlia.RoutingUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addCalls++
	if d.rejected[peer] {
		return kademlia.Failed
	}
	u := kademlia.Added
	if _, ok := d.added[peer]; ok {
		u = kademlia.Updated
	}
	d.added[peer] = append(d.added[peer], addr)
	return u
}

// Bootstrap 首次调用后进入进行中状态，直到 finish 被调用
func (d *fakeDiscovery) Bootstrap() (kademlia.QueryID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bootstraps++
	if d.err != nil {
		return 0, d.err
	}
	if d.inProgress {
		return d.nextID, kademlia.ErrBootstrapInProgress
	}
	d.nextID++
	d.inProgress = true
	return d.nextID, nil
}

func (d *fakeDiscovery) finish() {
	d.mu.Lock()
	d.inProgress = false
	d.mu.Unlock()
}

func (d *fakeDiscovery) counts() (adds, bootstraps int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addCalls, d.bootstraps
}

func (d *fakeDiscovery) addrs(peer types.PeerID) []types.Multiaddr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.Multiaddr(nil), d.added[peer]...)
}

// marker 用于确认之前的事件已处理完毕
type marker struct{}

func (marker) Module() string { return "test" }

// unknownEvent 编排器不认识的事件
type unknownEvent struct{ N int }

func (unknownEvent) Module() string { return "future" }

type harness struct {
	t        *testing.T
	o        *Orchestrator
	disc     *fakeDiscovery
	rec      *logger.Recorder
	clk      *clock.Mock
	events   chan types.Event
	cancel   context.CancelFunc
	done     chan error
	finished bool
}

func newHarness(t *testing.T, seeds []Seed) *harness {
	t.Helper()

	l, rec := logger.NewRecorder()
	h := &harness{
		t:      t,
		disc:   newFakeDiscovery(),
		rec:    rec,
		clk:    clock.NewMock(),
		events: make(chan types.Event),
	}
	h.o = New(h.disc, []Source{{Name: "test", Events: h.events}}, Config{
		BootstrapInterval: 5 * time.Minute,
		Seeds:             seeds,
		Clock:             h.clk,
		Logger:            l,
		Metrics:           metrics.New(),
	})
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.o.Run(ctx) }()
	h.t.Cleanup(func() {
		if !h.finished {
			h.stop()
		}
	})
}

func (h *harness) send(evs ...types.Event) {
	h.t.Helper()
	for _, ev := range evs {
		select {
		case h.events <- ev:
		case err := <-h.done:
			h.t.Fatalf("事件循环已退出: %v", err)
		case <-time.After(testutil.DefaultTimeout):
			h.t.Fatalf("发送事件超时: %T", ev)
		}
	}
}

// flush 等待已发送的事件全部处理完
//
// 第二个标记被取走时，循环必然已处理完第一个标记之前的所有事件。
func (h *harness) flush() {
	h.t.Helper()
	h.send(marker{}, marker{})
}

// stop 停止循环；之后可以安全读取 Table 与 Circuits
func (h *harness) stop() {
	h.t.Helper()
	h.finished = true
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(h.t, err)
	case <-time.After(testutil.DefaultTimeout):
		h.t.Fatal("事件循环未退出")
	}
}

func (h *harness) running() bool {
	select {
	case err := <-h.done:
		h.done <- err
		return false
	default:
		return true
	}
}

// entries 返回指定消息的日志
func entries(rec *logger.Recorder, msg string) []logger.Entry {
	var out []logger.Entry
	for _, e := range rec.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// ============================================================================
//                              启动
// ============================================================================

func TestOrchestrator_SeedsThenBootstrap(t *testing.T) {
	p1 := types.PeerID("P1")
	addr := types.Multiaddr("/dnsaddr/example")

	h := newHarness(t, []Seed{{Peer: p1, Addr: addr}})
	h.start()

	// 未发送任何事件，首次引导只能发生在第一次阻塞等待之前
	testutil.Eventually(t, testutil.DefaultTimeout, func() bool {
		_, b := h.disc.counts()
		return b == 1
	}, "启动时应发起一次引导")
	assert.Equal(t, []types.Multiaddr{addr}, h.disc.addrs(p1))

	h.stop()

	table := h.o.Table()
	require.Equal(t, 1, table.Len())
	entry, ok := table.Get(p1)
	require.True(t, ok)
	assert.Equal(t, []types.Multiaddr{addr}, entry.Addrs)

	_, b := h.disc.counts()
	assert.Equal(t, 1, b)

	t.Log("✅ 种子节点与首次引导测试通过")
}

// ============================================================================
//                              身份交换 → 发现表
// ============================================================================

func TestOrchestrator_LearnsAddrsFromIdentify(t *testing.T) {
	p2 := types.PeerID("P2")
	a := types.Multiaddr("/ip4/10.0.0.1/tcp/4001")
	b := types.Multiaddr("/ip4/10.0.0.1/udp/4001/quic-v1")

	h := newHarness(t, nil)
	h.start()

	h.send(identify.Received{Peer: p2, Info: &identify.Info{
		ListenAddrs: []types.Multiaddr{a, b},
		Protocols:   []types.ProtocolID{protocolids.Identify, protocolids.Kademlia},
	}})
	// 不支持 Kademlia 的同一节点不改变条目
	h.send(identify.Received{Peer: p2, Info: &identify.Info{
		ListenAddrs: []types.Multiaddr{"/ip4/10.0.0.2/tcp/1"},
	}})
	h.flush()

	assert.Equal(t, []types.Multiaddr{a, b}, h.disc.addrs(p2))
	h.stop()

	require.Equal(t, 1, h.o.Table().Len())
	entry, ok := h.o.Table().Get(p2)
	require.True(t, ok)
	assert.ElementsMatch(t, []types.Multiaddr{a, b}, entry.Addrs)

	t.Log("✅ 身份交换登记地址测试通过")
}

func TestOrchestrator_RejectedAddrNotInTable(t *testing.T) {
	bad, good := types.PeerID("BAD"), types.PeerID("GOOD")

	h := newHarness(t, nil)
	h.disc.rejected = map[types.PeerID]bool{bad: true}
	h.start()

	h.send(
		identify.Received{Peer: bad, Info: &identify.Info{
			ListenAddrs: []types.Multiaddr{"/ip4/10.0.0.1/tcp/4001"},
			Protocols:   []types.ProtocolID{protocolids.Kademlia},
		}},
		identify.Received{Peer: good, Info: &identify.Info{
			ListenAddrs: []types.Multiaddr{"/ip4/10.0.0.2/tcp/4001/p2p/GOOD"},
			Protocols:   []types.ProtocolID{protocolids.Kademlia},
		}},
	)
	h.flush()
	h.stop()

	adds, _ := h.disc.counts()
	assert.Equal(t, 2, adds)

	table := h.o.Table()
	_, ok := table.Get(bad)
	assert.False(t, ok)
	require.Equal(t, 1, table.Len())

	// 发现表只保存不带 /p2p 后缀的地址
	entry, ok := table.Get(good)
	require.True(t, ok)
	assert.Equal(t, []types.Multiaddr{"/ip4/10.0.0.2/tcp/4001"}, entry.Addrs)

	t.Log("✅ 登记失败地址不入表测试通过")
}

func TestOrchestrator_AddressGating(t *testing.T) {
	cases := []struct {
		name      string
		protocols []types.ProtocolID
		want      int
	}{
		{"空协议集", nil, 0},
		{"不含 Kademlia", []types.ProtocolID{protocolids.Identify, protocolids.Ping}, 0},
		{"相近但不同的协议", []types.ProtocolID{"/ipfs/kad/2.0.0", "/ipfs/lan/kad/1.0.0"}, 0},
		{"含 Kademlia", []types.ProtocolID{protocolids.Ping, protocolids.Kademlia}, 3},
	}

	addrs := []types.Multiaddr{"/ip4/1.1.1.1/tcp/1", "/ip4/1.1.1.1/tcp/2", "/ip4/1.1.1.1/tcp/3"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.start()

			h.send(identify.Received{Peer: "PX", Info: &identify.Info{ListenAddrs: addrs, Protocols: tc.protocols}})
			h.send(identify.Received{Peer: "PY"})
			h.flush()

			adds, _ := h.disc.counts()
			assert.Equal(t, tc.want, adds)
			h.stop()
			assert.Equal(t, tc.want > 0, h.o.Table().Len() == 1)
		})
	}

	t.Log("✅ 地址登记门控测试通过")
}

// ============================================================================
//                              引导
// ============================================================================

// runBootstraps 在进行中的引导上叠加 n 次定时引导
func runBootstraps(t *testing.T, n int, overlapping bool) (*Table, int) {
	t.Helper()

	seeds := []Seed{{Peer: "S1", Addr: "/dnsaddr/example"}, {Peer: "S2", Addr: "/dnsaddr/example"}}
	h := newHarness(t, seeds)
	h.start()

	info := &identify.Info{ListenAddrs: []types.Multiaddr{"/ip4/2.2.2.2/tcp/1"}, Protocols: []types.ProtocolID{protocolids.Kademlia}}
	for i := 0; i < n; i++ {
		if !overlapping {
			h.disc.finish()
		}
		h.clk.Add(5 * time.Minute)
		h.send(identify.Received{Peer: "P", Info: info})
		h.flush()
	}
	h.stop()

	_, b := h.disc.counts()
	return h.o.Table(), b
}

func TestOrchestrator_IdempotentBootstrap(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		overlapped, b1 := runBootstraps(t, n, true)
		serial, b2 := runBootstraps(t, n, false)

		assert.Equal(t, n+1, b1)
		assert.Equal(t, n+1, b2)
		assert.Equal(t, serial.Peers(), overlapped.Peers())
		for _, p := range serial.Peers() {
			a, _ := serial.Get(p)
			b, _ := overlapped.Get(p)
			assert.Equal(t, a, b)
		}
	}

	t.Log("✅ 引导幂等测试通过")
}

func TestOrchestrator_BootstrapErrorsSwallowed(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.err = kademlia.ErrNoKnownPeers
	h.start()

	h.clk.Add(5 * time.Minute)
	h.send(unknownEvent{N: 1})
	h.flush()

	h.disc.mu.Lock()
	h.disc.err = errors.New("boom")
	h.disc.mu.Unlock()
	h.clk.Add(5 * time.Minute)
	h.send(unknownEvent{N: 2})
	h.flush()

	assert.True(t, h.running())
	_, b := h.disc.counts()
	assert.Equal(t, 3, b)

	h.stop()
	assert.NotEmpty(t, entries(h.rec, "引导失败：路由表为空"))
	failed := entries(h.rec, "引导失败")
	require.Len(t, failed, 1)
	assert.Equal(t, slog.LevelDebug, failed[0].Level)

	t.Log("✅ 引导失败被吞掉测试通过")
}

func TestOrchestrator_MaintenanceTimer(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	// 未到间隔，事件不触发引导
	h.clk.Add(4 * time.Minute)
	h.send(unknownEvent{})
	h.flush()
	_, b := h.disc.counts()
	assert.Equal(t, 1, b)

	h.clk.Add(time.Minute)
	h.send(unknownEvent{})
	h.flush()
	_, b = h.disc.counts()
	assert.Equal(t, 2, b)

	// 同一时刻的后续事件不再触发
	h.send(unknownEvent{}, unknownEvent{})
	h.flush()
	_, b = h.disc.counts()
	assert.Equal(t, 2, b)

	h.stop()
	assert.Len(t, entries(h.rec, "重新引导发现表"), 1)

	t.Log("✅ 维护定时器测试通过")
}

// ============================================================================
//                              分类与上报
// ============================================================================

func TestOrchestrator_Classification(t *testing.T) {
	peer := types.PeerID("P5")
	cid := uuid.New()

	cases := []struct {
		ev    types.Event
		msg   string
		level slog.Level
	}{
		{autonat.OutboundProbeError{Err: autonat.ErrNoServer}, "AutoNAT 探测失败", slog.LevelError},
		{autonat.OutboundProbeRequest{Peer: peer}, "AutoNAT 探测请求已发出", slog.LevelInfo},
		{autonat.OutboundProbeResponse{Peer: peer, Addr: "/ip4/3.3.3.3/tcp/1"}, "AutoNAT 探测成功", slog.LevelInfo},
		{autonat.InboundProbeRequest{Peer: peer}, "其他事件", slog.LevelDebug},
		{kademlia.OutboundQueryProgressed{ID: 7, Result: kademlia.BootstrapResult{Peer: peer}}, "Kademlia 查询进度", slog.LevelInfo},
		{kademlia.RoutingUpdated{Peer: peer}, "其他事件", slog.LevelDebug},
		{relay.ReservationReqAccepted{Src: peer}, "中继预留已接受", slog.LevelInfo},
		{relay.ReservationReqAccepted{Src: peer, Renewed: true}, "中继预留已续约", slog.LevelInfo},
		{relay.ReservationTimedOut{Src: peer}, "中继预留未续约", slog.LevelWarn},
		{relay.ReservationReqDenied{Src: peer}, "中继预留被拒绝", slog.LevelWarn},
		{relay.CircuitReqAccepted{ID: cid, Src: peer, Dst: "D"}, "中继电路已建立", slog.LevelInfo},
		{relay.CircuitClosed{ID: cid, Src: peer, Dst: "D", Err: relay.ErrCircuitBytesExceeded}, "中继电路异常关闭", slog.LevelError},
		{relay.CircuitReqDenied{Src: peer, Dst: "D"}, "中继电路被拒绝", slog.LevelWarn},
		{unknownEvent{}, "其他事件", slog.LevelDebug},
	}

	h := newHarness(t, nil)
	h.start()
	for _, tc := range cases {
		h.rec.Reset()
		h.send(tc.ev)
		h.flush()

		e, ok := h.rec.Find(tc.msg)
		if assert.True(t, ok, "%T 应上报 %q", tc.ev, tc.msg) {
			assert.Equal(t, tc.level, e.Level, "%T 的上报级别", tc.ev)
		}
	}
	h.stop()

	t.Log("✅ 事件分类测试通过")
}

func TestOrchestrator_ProbeErrorWithoutPeer(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	p := types.PeerID("P6")
	h.send(
		autonat.OutboundProbeError{Err: autonat.ErrNoServer},
		autonat.OutboundProbeError{Peer: &p, Err: autonat.ErrDialRefused},
	)
	h.flush()
	h.stop()

	errs := entries(h.rec, "AutoNAT 探测失败")
	require.Len(t, errs, 2)
	assert.Equal(t, "unknown", errs[0].Attrs["peer"])
	assert.Equal(t, "P6", errs[1].Attrs["peer"])

	t.Log("✅ 无对端探测失败测试通过")
}

func TestOrchestrator_ReservationAcceptedThenRenewed(t *testing.T) {
	p3 := types.PeerID("P3")

	h := newHarness(t, nil)
	h.start()
	h.send(
		relay.ReservationReqAccepted{Src: p3, Renewed: false},
		relay.ReservationReqAccepted{Src: p3, Renewed: true},
	)
	h.flush()
	h.stop()

	var got []string
	for _, e := range h.rec.Entries() {
		if e.Attrs["src"] == p3 {
			got = append(got, e.Message)
			assert.Equal(t, slog.LevelInfo, e.Level)
		}
	}
	assert.Equal(t, []string{"中继预留已接受", "中继预留已续约"}, got)
	assert.Equal(t, StateRenewed, h.o.Circuits().Reservation(p3))
	assert.Empty(t, entries(h.rec, "中继状态转换无效"))

	t.Log("✅ 预留接受后续约测试通过")
}

func TestOrchestrator_DeniedKeepsReservation(t *testing.T) {
	p4 := types.PeerID("P4")

	h := newHarness(t, nil)
	h.start()
	h.send(
		relay.ReservationReqAccepted{Src: p4},
		relay.ReservationReqDenied{Src: p4, Status: relay.StatusResourceLimitExceeded},
		relay.ReservationTimedOut{Src: p4},
		relay.ReservationReqAccepted{Src: p4},
		relay.ReservationReqAccepted{Src: p4, Renewed: true},
	)
	h.flush()
	h.stop()

	denied := entries(h.rec, "中继预留被拒绝")
	require.Len(t, denied, 1)
	assert.Equal(t, slog.LevelWarn, denied[0].Level)
	assert.Len(t, entries(h.rec, "中继预留未续约"), 1)
	assert.Len(t, entries(h.rec, "中继预留已续约"), 1)
	assert.Empty(t, entries(h.rec, "中继状态转换无效"))
	assert.Equal(t, StateRenewed, h.o.Circuits().Reservation(p4))

	t.Log("✅ 拒绝不影响已有预留测试通过")
}

func TestOrchestrator_InvalidRelayTransition(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	id := uuid.New()
	h.send(
		relay.CircuitClosed{ID: id, Src: "S", Dst: "D"},
		relay.ReservationReqDenied{Src: "S"},
		relay.ReservationTimedOut{Src: "S"},
	)
	h.flush()
	h.stop()

	invalid := entries(h.rec, "中继状态转换无效")
	require.Len(t, invalid, 2)
	for _, e := range invalid {
		assert.Equal(t, slog.LevelDebug, e.Level)
	}
	assert.Empty(t, entries(h.rec, "中继电路已关闭"))
	assert.Empty(t, entries(h.rec, "中继预留未续约"))
	assert.Equal(t, 0, h.o.Circuits().Circuits())

	t.Log("✅ 非法中继转换测试通过")
}

// ============================================================================
//                              不停机
// ============================================================================

func TestOrchestrator_NeverHalts(t *testing.T) {
	h := newHarness(t, nil)
	h.disc.err = kademlia.ErrNoKnownPeers
	h.start()

	for i := 0; i < 500; i++ {
		var ev types.Event
		switch i % 6 {
		case 0:
			ev = unknownEvent{N: i}
		case 1:
			ev = autonat.OutboundProbeError{Err: fmt.Errorf("probe %d", i)}
		case 2:
			ev = relay.CircuitClosed{ID: uuid.New(), Err: errors.New("reset")}
		case 3:
			ev = relay.ReservationTimedOut{Src: "nobody"}
		case 4:
			ev = identify.Received{Peer: "P"}
		default:
			ev = identify.Error{Peer: "P", Err: errors.New("eof")}
		}
		if i%50 == 0 {
			h.clk.Add(5 * time.Minute)
		}
		h.send(ev)
	}
	h.flush()
	assert.True(t, h.running())
	h.stop()

	t.Log("✅ 事件循环不停机测试通过")
}

func TestOrchestrator_EventStreamClosed(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	close(h.events)

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, ErrEventStreamClosed)
	case <-time.After(testutil.DefaultTimeout):
		t.Fatal("事件流关闭后循环应退出")
	}
	h.finished = true
	h.cancel()

	t.Log("✅ 事件流关闭测试通过")
}

func TestOrchestrator_MergeMultipleSources(t *testing.T) {
	a := make(chan types.Event)
	b := make(chan types.Event)
	disc := newFakeDiscovery()
	l, _ := logger.NewRecorder()
	o := New(disc, []Source{{Name: "a", Events: a}, {Name: "b", Events: b}}, Config{Logger: l, Clock: clock.NewMock()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	info := &identify.Info{ListenAddrs: []types.Multiaddr{"/ip4/4.4.4.4/tcp/1"}, Protocols: []types.ProtocolID{protocolids.Kademlia}}
	a <- identify.Received{Peer: "PA", Info: info}
	b <- identify.Received{Peer: "PB", Info: info}

	// 一个源关闭不影响另一个
	close(a)
	b <- marker{}
	b <- marker{}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []types.PeerID{"PA", "PB"}, o.Table().Peers())

	t.Log("✅ 多事件源合并测试通过")
}
