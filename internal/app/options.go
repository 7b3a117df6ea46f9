package app

import (
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// EnvFxLog 设为 1 时输出 fx 依赖注入日志
const EnvFxLog = "BOOTNODE_FX_LOG"

// Options 构建选项
type Options struct {
	// StartTimeout 启动超时
	StartTimeout time.Duration

	// StopTimeout 停止超时
	StopTimeout time.Duration

	// FxLog 输出 fx 依赖注入日志
	FxLog bool
}

// DefaultOptions 默认构建选项
func DefaultOptions() Options {
	return Options{
		StartTimeout: 30 * time.Second,
		StopTimeout:  30 * time.Second,
		FxLog:        os.Getenv(EnvFxLog) == "1",
	}
}

// Option 构建选项函数
type Option func(*Options)

// WithStartTimeout 设置启动超时
func WithStartTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StartTimeout = d
		}
	}
}

// WithStopTimeout 设置停止超时
func WithStopTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StopTimeout = d
		}
	}
}

// WithFxLog 开关 fx 依赖注入日志
func WithFxLog(enable bool) Option {
	return func(o *Options) {
		o.FxLog = enable
	}
}

// fxLogger 返回 fx 事件日志选项
//
// 默认静默，避免干扰节点日志。
func (b *Bootstrap) fxLogger() fx.Option {
	if !b.opts.FxLog {
		return fx.NopLogger
	}
	return fx.WithLogger(func() fxevent.Logger {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fxevent.NopLogger
		}
		return &fxevent.ZapLogger{Logger: l}
	})
}
