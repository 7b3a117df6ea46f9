package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/util/logger"
)

var log = logger.Logger("core/metrics")

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Metrics *Metrics
}

// ProvideServices 提供指标集合
func ProvideServices(_ ModuleInput) ModuleOutput {
	return ModuleOutput{Metrics: New()}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Config
	Metrics *Metrics
}

// registerLifecycle 启用时启动 /metrics 服务
func registerLifecycle(input lifecycleInput) {
	cfg := input.Config.Metrics
	if !cfg.Enable {
		return
	}

	srv := NewServer(input.Metrics)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return srv.Start(cfg.ListenAddr)
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
