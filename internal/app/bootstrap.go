// Package app 提供引导节点的应用编排层
//
// app 包负责：
// - fx 模块组装
// - 依赖注入协调
// - 生命周期管理
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
	"github.com/dep2p/go-bootnode/internal/util/logger"
)

var log = logger.Logger("app")

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
// - 校验配置
// - 组装 fx 模块
// - 管理应用生命周期
type Bootstrap struct {
	config *config.Config
	opts   Options
	fxApp  *fx.App

	host         *host.Host
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
}

// NewBootstrap 创建引导程序
func NewBootstrap(cfg *config.Config, opts ...Option) *Bootstrap {
	b := &Bootstrap{
		config: cfg,
		opts:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// New 构建未启动的 fx 应用
func New(cfg *config.Config, opts ...Option) (*fx.App, error) {
	b := NewBootstrap(cfg, opts...)
	if err := b.Build(); err != nil {
		return nil, err
	}
	return b.fxApp, nil
}

// Build 构建引导节点（不启动）
//
// 配置校验失败或依赖图不完整时返回错误。
func (b *Bootstrap) Build() error {
	if b.config == nil {
		return ErrNoConfig
	}
	if err := b.config.Validate(); err != nil {
		return err
	}

	b.fxApp = fx.New(
		fx.Options(b.setupModules()...),
		b.fxLogger(),
		fx.Populate(&b.host, &b.orchestrator, &b.metrics),
	)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("组装模块失败: %w", err)
	}
	return nil
}

// Start 构建并启动引导节点
//
// 启动超时由 Options.StartTimeout 控制。
func (b *Bootstrap) Start(ctx context.Context) (*Runtime, error) {
	if err := b.Build(); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, b.opts.StartTimeout)
	defer cancel()

	if err := b.fxApp.Start(startCtx); err != nil {
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}

	return &Runtime{
		Host:         b.host,
		Orchestrator: b.orchestrator,
		Metrics:      b.metrics,
		done:         b.fxApp.Wait(),
		stop:         b.Stop,
	}, nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, b.opts.StopTimeout)
	defer cancel()

	return b.fxApp.Stop(stopCtx)
}

// setupModules 组装所有 fx 模块
func (b *Bootstrap) setupModules() []fx.Option {
	return []fx.Option{
		// 配置（Tier 0）
		fx.Supply(b.config),

		// 基础层（Tier 1: Foundation）
		FoundationModules(),

		// 传输层（Tier 2: Transport）
		TransportModules(),

		// 协议层（Tier 3: Protocol）
		ProtocolModules(),

		// 监控层（Tier 4: Monitoring）
		MonitoringModules(),

		// 编排层（Tier 5: Orchestrator）
		OrchestratorModules(),
	}
}
