package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/config"
)

// 退出码
const (
	ExitOK      = 0
	ExitFailure = 1
)

// ExitError 应用以非零退出码请求关闭
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("app: shutdown requested with exit code %d", e.Code)
}

// ExitCode 将 Run 的返回值映射为进程退出码
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// Run 启动引导节点并阻塞到 ctx 取消或应用请求关闭
//
// ctx 取消视为正常退出，返回 nil；启动失败返回对应错误；
// 事件循环异常退出时返回 *ExitError。
//
// 示例:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	os.Exit(app.ExitCode(app.Run(ctx, cfg)))
func Run(ctx context.Context, cfg *config.Config, opts ...Option) error {
	b := NewBootstrap(cfg, opts...)
	rt, err := b.Start(ctx)
	if err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("收到停止信号，正在退出")
	case sig := <-rt.Done():
		log.Info("应用请求关闭", "code", sig.ExitCode)
		if sig.ExitCode != ExitOK {
			runErr = &ExitError{Code: sig.ExitCode}
		}
	}

	if err := rt.Stop(context.Background()); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("停止引导节点失败: %w", err))
	}
	return runErr
}
