package autonat

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config     *config.Config
	Host       pkgif.Host
	Transports []pkgif.Transport
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Service *Service
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	svc := New(input.Host, NewTransportDialer(input.Transports), ConfigFromNAT(input.Config.NAT))
	return ModuleOutput{Service: svc}
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Service *Service
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Service.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Service.Stop()
			return nil
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("autonat",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}
