package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Identity *Identity
}

// ProvideServices 提供模块服务
//
// 密钥格式错误属于配置错误，直接使 fx 启动失败。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	id, err := FromConfig(input.Config.Identity)
	if err != nil {
		return ModuleOutput{}, err
	}
	log.Info("节点身份", "peer", id.PeerID())
	return ModuleOutput{Identity: id}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "identity"
	// Description 模块描述
	Description = "节点身份模块，提供 Ed25519 密钥、PeerID 与 TLS 证书"
)
