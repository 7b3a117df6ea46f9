package upgrader

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-bootnode/config"
)

// Config 升级器配置
type Config struct {
	// HandshakeTimeout 协商与握手总超时
	HandshakeTimeout time.Duration

	// KeepAliveInterval yamux 保活间隔
	KeepAliveInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		KeepAliveInterval: 30 * time.Second,
	}
}

// ConfigFromTransport 从传输配置创建
func ConfigFromTransport(cfg config.TransportConfig) Config {
	out := DefaultConfig()
	if cfg.HandshakeTimeout > 0 {
		out.HandshakeTimeout = cfg.HandshakeTimeout.Duration()
	}
	if cfg.KeepAlive > 0 {
		out.KeepAliveInterval = cfg.KeepAlive.Duration()
	}
	return out
}

// yamuxConfig 返回 yamux 配置
//
// 连接空闲不超时，保活由 yamux ping 维持。
func (c Config) yamuxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.AcceptBacklog = 256
	cfg.EnableKeepAlive = true
	cfg.KeepAliveInterval = c.KeepAliveInterval
	cfg.ConnectionWriteTimeout = 10 * time.Second
	cfg.MaxStreamWindowSize = 256 * 1024
	cfg.StreamOpenTimeout = 75 * time.Second
	cfg.StreamCloseTimeout = 5 * time.Minute
	cfg.LogOutput = io.Discard
	return cfg
}
