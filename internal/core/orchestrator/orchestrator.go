package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/internal/core/discovery/kademlia"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/nat/autonat"
	"github.com/dep2p/go-bootnode/internal/core/protocol/identify"
	relay "github.com/dep2p/go-bootnode/internal/core/relay/server"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Discovery 编排器对发现表维护者的命令接口
type Discovery interface {
	// AddAddress 登记节点地址
	AddAddress(peer types.PeerID, addr types.Multiaddr) kademlia.RoutingUpdate

	// Bootstrap 开始一次全表引导
	Bootstrap() (kademlia.QueryID, error)
}

// Config 编排器配置
type Config struct {
	// BootstrapInterval 重新引导间隔
	BootstrapInterval time.Duration

	// Seeds 启动时提交的种子节点
	Seeds []Seed

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Network 返回网络概况，用于重新引导时的日志；可为空
	Network func() fmt.Stringer
}

// Orchestrator 事件编排器
type Orchestrator struct {
	discovery Discovery
	sources   []Source
	cfg       Config
	log       *slog.Logger

	sched    *Scheduler
	table    *Table
	circuits *CircuitTracker

	startOnce sync.Once
}

// New 创建编排器
func New(discovery Discovery, sources []Source, cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.BootstrapInterval <= 0 {
		cfg.BootstrapInterval = DefaultBootstrapInterval
	}
	l := cfg.Logger
	if l == nil {
		l = log
	}
	return &Orchestrator{
		discovery: discovery,
		sources:   sources,
		cfg:       cfg,
		log:       l,
		sched:     NewScheduler(cfg.Clock, cfg.BootstrapInterval),
		table:     NewTable(),
		circuits:  NewCircuitTracker(),
	}
}

// Table 返回发现表视图
//
// 只应在 Run 返回后或 Run 尚未开始时读取。
func (o *Orchestrator) Table() *Table {
	return o.table
}

// Circuits 返回中继状态跟踪器，读取约束同 Table
func (o *Orchestrator) Circuits() *CircuitTracker {
	return o.circuits
}

// ============================================================================
//                              事件循环
// ============================================================================

// Run 运行事件循环直到 ctx 取消
//
// 首次运行时先提交种子节点并发起一次引导。ctx 取消时返回 nil；
// 合并事件流在运行中关闭时返回 ErrEventStreamClosed。
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startOnce.Do(o.seed)

	events := merge(ctx, o.sources)
	for {
		if o.sched.Poll() {
			o.log.Info("重新引导发现表", "network", o.networkInfo())
			o.bootstrap()
		}

		select {
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrEventStreamClosed
			}
			o.handle(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// seed 提交种子节点并发起首次引导
func (o *Orchestrator) seed() {
	for _, s := range o.cfg.Seeds {
		o.addAddress(s.Peer, s.Addr)
	}
	o.log.Info("已载入种子节点", "count", len(o.cfg.Seeds))
	o.bootstrap()
}

// bootstrap 发起引导，失败只记录不上抛
func (o *Orchestrator) bootstrap() {
	id, err := o.discovery.Bootstrap()
	switch {
	case err == nil:
		o.cfg.Metrics.ObserveBootstrap(metrics.BootstrapStarted)
		o.log.Debug("引导已开始", "query", id)
	case errors.Is(err, kademlia.ErrBootstrapInProgress):
		o.cfg.Metrics.ObserveBootstrap(metrics.BootstrapInProgress)
		o.log.Debug("引导仍在进行", "query", id)
	case errors.Is(err, kademlia.ErrNoKnownPeers):
		o.cfg.Metrics.ObserveBootstrap(metrics.BootstrapNoKnownPeers)
		o.log.Debug("引导失败：路由表为空")
	default:
		o.cfg.Metrics.ObserveBootstrap(metrics.BootstrapFailed)
		o.log.Debug("引导失败", "err", err)
	}
}

// addAddress 提交给 Kademlia，被拒绝的地址不进入发现表
func (o *Orchestrator) addAddress(peer types.PeerID, addr types.Multiaddr) {
	u := o.discovery.AddAddress(peer, addr)
	if u == kademlia.Failed {
		o.log.Debug("地址登记失败", "peer", peer, "addr", addr)
		return
	}
	addr = addr.WithoutPeerID()
	if o.table.Add(peer, addr) {
		o.log.Debug("登记节点地址", "peer", peer, "addr", addr, "update", u)
	}
	o.cfg.Metrics.SetRoutingTablePeers(o.table.Len())
}

func (o *Orchestrator) networkInfo() string {
	if o.cfg.Network == nil {
		return ""
	}
	return o.cfg.Network().String()
}

// ============================================================================
//                              事件分类
// ============================================================================

// handle 分类并处理一个事件
func (o *Orchestrator) handle(ev types.Event) {
	o.cfg.Metrics.ObserveEvent(ev)

	switch e := ev.(type) {
	case autonat.OutboundProbeError:
		peer := "unknown"
		if e.Peer != nil {
			peer = e.Peer.String()
		}
		o.log.Error("AutoNAT 探测失败", "peer", peer, "err", e.Err)
	case autonat.OutboundProbeRequest:
		o.log.Info("AutoNAT 探测请求已发出", "peer", e.Peer)
	case autonat.OutboundProbeResponse:
		o.log.Info("AutoNAT 探测成功", "peer", e.Peer, "addr", e.Addr)

	case identify.Received:
		o.learn(e)

	case kademlia.OutboundQueryProgressed:
		o.log.Info("Kademlia 查询进度", "query", e.ID, "result", e.Result)

	case relay.ReservationReqAccepted, relay.ReservationReqDenied, relay.ReservationTimedOut,
		relay.CircuitReqAccepted, relay.CircuitReqDenied, relay.CircuitClosed, relay.ReservationClosed:
		o.handleRelay(ev)

	default:
		o.log.Debug("其他事件", "module", ev.Module(), "kind", metrics.EventKind(ev), "event", ev)
	}
}

// learn 对端支持 Kademlia 时登记其监听地址
func (o *Orchestrator) learn(e identify.Received) {
	if e.Info == nil || !types.ContainsProtocol(e.Info.Protocols, protocolids.Kademlia) {
		return
	}
	for _, addr := range e.Info.ListenAddrs {
		o.addAddress(e.Peer, addr)
	}
}

// handleRelay 推进中继状态并按级别上报
func (o *Orchestrator) handleRelay(ev types.Event) {
	_, _, err := o.circuits.Apply(ev)
	defer o.cfg.Metrics.SetRelay(o.circuits.Reservations(), o.circuits.Circuits())
	if err != nil {
		o.log.Debug("中继状态转换无效", "kind", metrics.EventKind(ev), "event", ev, "err", err)
		return
	}

	switch e := ev.(type) {
	case relay.ReservationReqAccepted:
		if e.Renewed {
			o.log.Info("中继预留已续约", "src", e.Src)
		} else {
			o.log.Info("中继预留已接受", "src", e.Src)
		}
	case relay.ReservationReqDenied:
		o.log.Warn("中继预留被拒绝", "src", e.Src, "status", e.Status)
	case relay.ReservationTimedOut:
		o.log.Warn("中继预留未续约", "src", e.Src)
	case relay.CircuitReqAccepted:
		o.log.Info("中继电路已建立", "src", e.Src, "dst", e.Dst)
	case relay.CircuitReqDenied:
		o.log.Warn("中继电路被拒绝", "src", e.Src, "dst", e.Dst, "status", e.Status)
	case relay.CircuitClosed:
		o.cfg.Metrics.AddRelayedBytes(e.Bytes)
		if e.Err != nil {
			o.log.Error("中继电路异常关闭", "src", e.Src, "dst", e.Dst, "err", e.Err)
		} else {
			o.log.Info("中继电路已关闭", "src", e.Src, "dst", e.Dst)
		}
	default:
		o.log.Debug("其他中继事件", "kind", metrics.EventKind(ev), "event", ev)
	}
}
