package swarm

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/discovery/dnsaddr"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config     *config.Config
	Identity   *identity.Identity
	Peerstore  pkgif.Peerstore
	Transports []pkgif.Transport
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Swarm *Swarm
}

// ProvideServices 创建 Swarm
//
// /dnsaddr 解析使用配置的 DNS 服务器，为空时读取系统配置。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	rcfg := dnsaddr.DefaultConfig()
	rcfg.Servers = input.Config.Discovery.DNSServers

	s, err := New(input.Identity.PeerID(), input.Peerstore, input.Transports,
		WithResolver(dnsaddr.NewResolver(rcfg)),
		WithDialTimeout(input.Config.Transport.DialTimeout.Duration()),
	)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Swarm: s}, nil
}

// ============================================================================
//                              生命周期管理
// ============================================================================

type lifecycleInput struct {
	fx.In

	LC    fx.Lifecycle
	Swarm *Swarm
}

// registerLifecycle 注册关闭钩子
//
// 监听由 host 模块在启动时发起。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Swarm.Close()
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "swarm"
	// Description 模块描述
	Description = "连接群管理模块，负责监听、拨号与连接池"
)
