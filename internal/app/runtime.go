package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
)

// Runtime 表示一个已通过 fx 组装并启动的引导节点
type Runtime struct {
	Host         *host.Host
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Metrics

	done <-chan fx.ShutdownSignal
	stop func(ctx context.Context) error
}

// Done 在应用请求关闭时返回信号
//
// 编排器事件循环异常退出时以退出码 1 请求关闭。
func (r *Runtime) Done() <-chan fx.ShutdownSignal {
	return r.done
}

// Stop 停止运行时（触发 fx 生命周期 OnStop）
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	return r.stop(ctx)
}
