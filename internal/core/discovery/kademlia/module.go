package kademlia

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ConfigFromDiscovery 由发现配置构造 DHT 配置
func ConfigFromDiscovery(c config.DiscoveryConfig) Config {
	return Config{
		BucketSize:     c.BucketSize,
		Alpha:          c.Alpha,
		RequestTimeout: c.RequestTimeout.Duration(),
		QueryTimeout:   c.QueryTimeout.Duration(),
	}
}

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   pkgif.Host
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	DHT *DHT
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	return ModuleOutput{DHT: New(input.Host, ConfigFromDiscovery(input.Config.Discovery))}
}

type lifecycleInput struct {
	fx.In

	LC  fx.Lifecycle
	DHT *DHT
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.DHT.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.DHT.Stop()
			return nil
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("kademlia",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}
