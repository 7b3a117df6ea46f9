package peerstore

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("peerstore",
		fx.Provide(func() pkgif.Peerstore { return New() }),
	)
}
