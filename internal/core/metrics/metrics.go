package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Namespace 指标命名空间
const Namespace = "bootnode"

// 引导命令结果
const (
	BootstrapStarted      = "started"
	BootstrapInProgress   = "in_progress"
	BootstrapNoKnownPeers = "no_known_peers"
	BootstrapFailed       = "failed"
)

// Metrics 引导节点指标集合
//
// 所有方法对 nil 接收者安全，未启用指标的调用方可以直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	events            *prometheus.CounterVec
	bootstrap         *prometheus.CounterVec
	routingPeers      prometheus.Gauge
	relayReservations prometheus.Gauge
	relayCircuits     prometheus.Gauge
	relayBytes        prometheus.Counter
}

// New 创建指标集合并注册到独立的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Protocol module events processed by the orchestrator.",
		}, []string{"module", "kind"}),
		bootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bootstrap_total",
			Help:      "Bootstrap commands issued, by outcome.",
		}, []string{"outcome"}),
		routingPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "routing_table_peers",
			Help:      "Peers in the orchestrator's discovery table.",
		}),
		relayReservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "relay_reservations",
			Help:      "Active relay reservations.",
		}),
		relayCircuits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "relay_circuits",
			Help:      "Active relay circuits.",
		}),
		relayBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "relay_bytes_total",
			Help:      "Bytes forwarded through closed relay circuits.",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.bootstrap,
		m.routingPeers,
		m.relayReservations,
		m.relayCircuits,
		m.relayBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvent 按来源模块与事件类型计数
func (m *Metrics) ObserveEvent(ev types.Event) {
	if m == nil || ev == nil {
		return
	}
	m.events.WithLabelValues(ev.Module(), EventKind(ev)).Inc()
}

// ObserveBootstrap 记录一次引导命令的结果
func (m *Metrics) ObserveBootstrap(outcome string) {
	if m == nil {
		return
	}
	m.bootstrap.WithLabelValues(outcome).Inc()
}

// SetRoutingTablePeers 设置发现表大小
func (m *Metrics) SetRoutingTablePeers(n int) {
	if m == nil {
		return
	}
	m.routingPeers.Set(float64(n))
}

// SetRelay 设置中继预留与电路数
func (m *Metrics) SetRelay(reservations, circuits int) {
	if m == nil {
		return
	}
	m.relayReservations.Set(float64(reservations))
	m.relayCircuits.Set(float64(circuits))
}

// AddRelayedBytes 累加中继转发字节数
func (m *Metrics) AddRelayedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.relayBytes.Add(float64(n))
}

// EventKind 返回事件的类型名（不含包名）
func EventKind(ev types.Event) string {
	name := fmt.Sprintf("%T", ev)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
