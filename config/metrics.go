package config

import (
	"errors"
	"net"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enable 是否暴露 /metrics HTTP 端点
	// 关闭时指标仍会采集，只是不对外暴露
	Enable bool `json:"enable"`

	// ListenAddr HTTP 监听地址（host:port）
	ListenAddr string `json:"listen_addr"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:     false,
		ListenAddr: "127.0.0.1:9464",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.New("metrics listen addr must be host:port")
	}
	return nil
}
