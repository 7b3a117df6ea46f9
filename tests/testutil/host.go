package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/peerstore"
	"github.com/dep2p/go-bootnode/internal/core/swarm"
	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// TestHostBuilder 测试主机构建器
//
// 使用 Builder 模式简化测试主机的创建和配置。
//
// 示例:
//
//	h := testutil.NewTestHost(t).
//		WithListenAddrs(testutil.LoopbackTCP).
//		Start()
type TestHostBuilder struct {
	t           *testing.T
	listenAddrs []types.Multiaddr
	identity    *identity.Identity
	hostOpts    []host.Option
}

// NewTestHost 创建测试主机构建器
//
// 默认只监听本地 TCP。
func NewTestHost(t *testing.T) *TestHostBuilder {
	t.Helper()
	return &TestHostBuilder{
		t:           t,
		listenAddrs: []types.Multiaddr{LoopbackTCP},
	}
}

// WithListenAddrs 设置监听地址，为空表示不监听
func (b *TestHostBuilder) WithListenAddrs(addrs ...types.Multiaddr) *TestHostBuilder {
	b.listenAddrs = addrs
	return b
}

// WithIdentity 使用指定身份
func (b *TestHostBuilder) WithIdentity(id *identity.Identity) *TestHostBuilder {
	b.identity = id
	return b
}

// WithHostOptions 追加 Host 选项
func (b *TestHostBuilder) WithHostOptions(opts ...host.Option) *TestHostBuilder {
	b.hostOpts = append(b.hostOpts, opts...)
	return b
}

// Start 创建主机并注册清理函数
func (b *TestHostBuilder) Start() *host.Host {
	b.t.Helper()

	id := b.identity
	if id == nil {
		var err error
		id, err = identity.Generate()
		require.NoError(b.t, err, "生成身份失败")
	}

	cfg := config.DefaultTransportConfig()
	transports, err := transport.New(cfg, id)
	require.NoError(b.t, err, "创建传输失败")

	s, err := swarm.New(id.PeerID(), peerstore.New(), transports)
	require.NoError(b.t, err, "创建 swarm 失败")
	b.t.Cleanup(func() { s.Close() })

	h := host.New(s, b.hostOpts...)
	if len(b.listenAddrs) > 0 {
		require.NoError(b.t, s.Listen(b.listenAddrs...), "监听失败")
	}
	return h
}

// ConnectHosts 让 a 连接到 b
func ConnectHosts(t *testing.T, a, b *host.Host) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	require.NoError(t, a.Connect(ctx, b.ID(), b.ListenAddrs()), "连接失败")
}
