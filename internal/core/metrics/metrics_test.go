package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-bootnode/config"
)

type testEvent struct{}

func (testEvent) Module() string { return "test" }

func TestMetrics_ObserveEvent(t *testing.T) {
	m := New()

	m.ObserveEvent(testEvent{})
	m.ObserveEvent(testEvent{})
	m.ObserveEvent(&testEvent{})

	assert.Equal(t, 3.0, promtest.ToFloat64(m.events.WithLabelValues("test", "testEvent")))
	assert.Equal(t, "testEvent", EventKind(&testEvent{}))

	t.Log("✅ 事件计数测试通过")
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.ObserveBootstrap(BootstrapStarted)
	m.ObserveBootstrap(BootstrapInProgress)
	m.ObserveBootstrap(BootstrapInProgress)
	m.SetRoutingTablePeers(7)
	m.SetRelay(2, 1)
	m.AddRelayedBytes(1024)
	m.AddRelayedBytes(-1)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.bootstrap.WithLabelValues(BootstrapStarted)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.bootstrap.WithLabelValues(BootstrapInProgress)))
	assert.Equal(t, 7.0, promtest.ToFloat64(m.routingPeers))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.relayReservations))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.relayCircuits))
	assert.Equal(t, 1024.0, promtest.ToFloat64(m.relayBytes))

	t.Log("✅ 指标设置测试通过")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvent(testEvent{})
		m.ObserveBootstrap(BootstrapFailed)
		m.SetRoutingTablePeers(1)
		m.SetRelay(1, 1)
		m.AddRelayedBytes(1)
	})

	t.Log("✅ nil 指标测试通过")
}

func TestServer_Scrape(t *testing.T) {
	m := New()
	m.ObserveEvent(testEvent{})

	srv := NewServer(m)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bootnode_events_total{kind="testEvent",module="test"} 1`)
	assert.Contains(t, string(body), "bootnode_relay_circuits 0")

	t.Log("✅ /metrics 抓取测试通过")
}

func TestModule_Enabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enable = true
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	var m *Metrics
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&m),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, m)

	t.Log("✅ 指标模块测试通过")
}
