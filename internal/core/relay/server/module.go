package server

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   pkgif.Host
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Server 中继服务器
	Server *Server
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	return ModuleOutput{
		Server: NewServer(input.Host, ConfigFromRelay(input.Config.Relay)),
	}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("relay",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Server *Server
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Server.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Server.Stop()
			return nil
		},
	})
}
