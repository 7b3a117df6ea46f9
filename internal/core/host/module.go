package host

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/swarm"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Swarm *swarm.Swarm
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Host      *Host
	HostIface pkgif.Host
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	h := New(input.Swarm)
	return ModuleOutput{Host: h, HostIface: h}
}

// ============================================================================
//                              生命周期管理
// ============================================================================

type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Host   *Host
}

// registerLifecycle 启动时开始监听
//
// 任一地址绑定失败都使启动失败。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addrs, err := types.ParseMultiaddrs(input.Config.Transport.ListenAddrs())
			if err != nil {
				return err
			}
			if err := input.Host.Swarm().Listen(addrs...); err != nil {
				return err
			}
			log.Info("节点已启动",
				"peer", input.Host.ID(),
				"listen", types.MultiaddrsToStrings(input.Host.ListenAddrs()))
			return nil
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "host"
	// Description 模块描述
	Description = "主机模块，提供协议协商与地址管理"
)
