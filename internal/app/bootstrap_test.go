package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
)

// testConfig 本地回环、系统分配端口的配置
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Transport.Port = 0
	cfg.Transport.ListenIP = "127.0.0.1"
	cfg.Transport.EnableQUIC = false
	cfg.Metrics.Enable = false
	return cfg
}

// TestModules_Graph 验证依赖图完整
func TestModules_Graph(t *testing.T) {
	b := NewBootstrap(testConfig())
	err := fx.ValidateApp(fx.Options(b.setupModules()...), fx.NopLogger)
	require.NoError(t, err)

	t.Log("✅ 依赖图完整性测试通过")
}

func TestBootstrap_NoConfig(t *testing.T) {
	err := NewBootstrap(nil).Build()
	assert.ErrorIs(t, err, ErrNoConfig)

	t.Log("✅ 缺少配置测试通过")
}

func TestNew(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	require.NotNil(t, a)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNoConfig)

	t.Log("✅ 构建 fx 应用测试通过")
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Identity.SecretKey = "not-hex"

	err := NewBootstrap(cfg).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSecretKey)

	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "identity", verr.Section)

	t.Log("✅ 非法配置测试通过")
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, 30*time.Second, o.StartTimeout)
	assert.Equal(t, 30*time.Second, o.StopTimeout)

	b := NewBootstrap(testConfig(),
		WithStartTimeout(5*time.Second),
		WithStopTimeout(0),
		WithFxLog(true),
	)
	assert.Equal(t, 5*time.Second, b.opts.StartTimeout)
	assert.Equal(t, 30*time.Second, b.opts.StopTimeout, "非正值保持默认")
	assert.True(t, b.opts.FxLog)
	assert.NotNil(t, b.fxLogger())

	t.Log("✅ 构建选项测试通过")
}

// TestBootstrap_StartStop 完整启动后停止
func TestBootstrap_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过集成测试")
	}

	b := NewBootstrap(testConfig(), WithStopTimeout(10*time.Second))
	rt, err := b.Start(context.Background())
	require.NoError(t, err)

	require.NotNil(t, rt.Host)
	require.NotNil(t, rt.Orchestrator)
	require.NotNil(t, rt.Metrics)
	assert.False(t, rt.Host.ID().IsEmpty())
	assert.NotEmpty(t, rt.Host.ListenAddrs())

	select {
	case sig := <-rt.Done():
		t.Fatalf("应用意外关闭: %v", sig)
	default:
	}

	require.NoError(t, rt.Stop(context.Background()))
	// 停止时事件循环已退出，种子节点已全部登记
	assert.Equal(t, len(orchestrator.BootnodeIdentities), rt.Orchestrator.Table().Len())

	t.Log("✅ 启动停止测试通过")
}

func TestRun(t *testing.T) {
	t.Run("启动失败", func(t *testing.T) {
		cfg := testConfig()
		cfg.Transport.EnableTCP = false

		err := Run(context.Background(), cfg)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, ExitCode(err))
	})

	t.Run("外部停止", func(t *testing.T) {
		if testing.Short() {
			t.Skip("跳过集成测试")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		err := Run(ctx, testConfig(), WithStopTimeout(10*time.Second))
		assert.NoError(t, err)
		assert.Equal(t, ExitOK, ExitCode(err))
	})

	t.Log("✅ 运行测试通过")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, 3, ExitCode(&ExitError{Code: 3}))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("wrap: %w", &ExitError{Code: 1})))

	t.Log("✅ 退出码映射测试通过")
}
