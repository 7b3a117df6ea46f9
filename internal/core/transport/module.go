package transport

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/transport/quic"
	"github.com/dep2p/go-bootnode/internal/core/transport/tcp"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

var log = logger.Logger("core/transport")

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config   *config.Config
	Identity *identity.Identity
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Transports []pkgif.Transport
}

// ProvideServices 按配置创建传输
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	transports, err := New(input.Config.Transport, input.Identity)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Transports: transports}, nil
}

// New 按配置创建传输列表
func New(cfg config.TransportConfig, id *identity.Identity) ([]pkgif.Transport, error) {
	var transports []pkgif.Transport

	if cfg.EnableTCP {
		up, err := upgrader.New(id, upgrader.ConfigFromTransport(cfg))
		if err != nil {
			return nil, err
		}
		transports = append(transports, tcp.New(id.PeerID(), up, cfg.DialTimeout.Duration(), cfg.KeepAlive.Duration()))
		log.Debug("TCP 传输已创建")
	}

	if cfg.EnableQUIC {
		qt, err := quic.New(id)
		if err != nil {
			return nil, err
		}
		transports = append(transports, qt)
		log.Debug("QUIC 传输已创建")
	}

	return transports, nil
}

// Module 返回 fx 模块配置
//
// 传输的关闭由 swarm 负责。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideServices),
	)
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "transport"
	// Description 模块描述
	Description = "传输模块，提供 TCP（noise + yamux）与 QUIC v1 传输"
)
