package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/discovery/kademlia"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/nat/autonat"
	"github.com/dep2p/go-bootnode/internal/core/protocol/identify"
	relay "github.com/dep2p/go-bootnode/internal/core/relay/server"
	"github.com/dep2p/go-bootnode/internal/core/swarm"
	"github.com/dep2p/go-bootnode/internal/util/logger"
)

var log = logger.Logger("orchestrator")

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   *host.Host
	Swarm  *swarm.Swarm

	AutoNAT  *autonat.Service
	Identify *identify.Service
	DHT      *kademlia.DHT
	Liveness *liveness.Service
	Relay    *relay.Server

	Metrics *metrics.Metrics `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Orchestrator *Orchestrator
}

// ProvideServices 创建编排器
//
// 事件流在构造时订阅，启动前发出的事件不会丢失。种子节点解析失败使启动失败。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	seeds, err := DefaultSeeds()
	if err != nil {
		return ModuleOutput{}, err
	}

	sources := []Source{
		{Name: autonat.ModuleName, Events: input.AutoNAT.Events()},
		{Name: identify.ModuleName, Events: input.Identify.Events()},
		{Name: kademlia.ModuleName, Events: input.DHT.Events()},
		{Name: liveness.ModuleName, Events: input.Liveness.Events()},
		{Name: relay.ModuleName, Events: input.Relay.Events()},
		{Name: swarm.ModuleName, Events: input.Swarm.Events()},
	}

	h := input.Host
	o := New(input.DHT, sources, Config{
		BootstrapInterval: input.Config.Discovery.BootstrapInterval.Duration(),
		Seeds:             seeds,
		Metrics:           input.Metrics,
		Network:           func() fmt.Stringer { return h.NetworkInfo() },
	})
	return ModuleOutput{Orchestrator: o}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("orchestrator",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC           fx.Lifecycle
	Shutdowner   fx.Shutdowner
	Orchestrator *Orchestrator
}

// registerLifecycle 启动时运行事件循环，停止时取消并等待其退出
//
// 循环致命退出时以退出码 1 关闭应用。
func registerLifecycle(input lifecycleInput) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)
				if err := input.Orchestrator.Run(ctx); err != nil {
					log.Error("事件循环异常退出", "err", err)
					if serr := input.Shutdowner.Shutdown(fx.ExitCode(1)); serr != nil {
						log.Error("关闭应用失败", "err", serr)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
