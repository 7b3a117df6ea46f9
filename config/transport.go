package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPort 默认监听端口
const DefaultPort uint16 = 4011

// TransportConfig 传输层配置
//
// 同一端口同时监听 TCP（noise + yamux）与 UDP（QUIC v1）。
type TransportConfig struct {
	// Port 监听端口，0 表示由系统分配
	Port uint16 `json:"port"`

	// ListenIP 监听地址，默认 IPv4 通配地址
	ListenIP string `json:"listen_ip"`

	// EnableTCP 启用 TCP 监听
	EnableTCP bool `json:"enable_tcp"`

	// EnableQUIC 启用 QUIC 监听
	EnableQUIC bool `json:"enable_quic"`

	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// HandshakeTimeout 安全握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// KeepAlive 多路复用保活间隔
	KeepAlive Duration `json:"keep_alive"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Port:             DefaultPort,
		ListenIP:         "0.0.0.0",
		EnableTCP:        true,
		EnableQUIC:       true,
		DialTimeout:      Duration(15 * time.Second),
		HandshakeTimeout: Duration(10 * time.Second),
		KeepAlive:        Duration(30 * time.Second),
	}
}

// ListenAddrs 返回按端口派生的监听地址
func (c TransportConfig) ListenAddrs() []string {
	var addrs []string
	if c.EnableTCP {
		addrs = append(addrs, fmt.Sprintf("/ip4/%s/tcp/%d", c.ListenIP, c.Port))
	}
	if c.EnableQUIC {
		addrs = append(addrs, fmt.Sprintf("/ip4/%s/udp/%d/quic-v1", c.ListenIP, c.Port))
	}
	return addrs
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if !c.EnableTCP && !c.EnableQUIC {
		return errors.New("at least one of tcp or quic must be enabled")
	}
	if c.ListenIP == "" {
		return errors.New("listen ip is required")
	}
	if c.DialTimeout <= 0 || c.HandshakeTimeout <= 0 {
		return errors.New("dial and handshake timeouts must be positive")
	}
	if c.KeepAlive <= 0 {
		return errors.New("keep alive must be positive")
	}
	return nil
}
