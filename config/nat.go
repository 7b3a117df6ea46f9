package config

import (
	"errors"
	"time"
)

// NATConfig AutoNAT 配置
//
// 客户端：定期请求已连接的节点回拨，确认自身地址可达性。
// 服务端：为其他节点执行回拨探测，带节流。
type NATConfig struct {
	// EnableService 启用 AutoNAT 服务端
	EnableService bool `json:"enable_service"`

	// BootDelay 首次探测前的等待时间
	BootDelay Duration `json:"boot_delay"`

	// RetryInterval 状态未知时的探测间隔
	RetryInterval Duration `json:"retry_interval"`

	// RefreshInterval 状态已确认时的探测间隔
	RefreshInterval Duration `json:"refresh_interval"`

	// MaxServers 单轮最多请求的探测服务端数
	MaxServers int `json:"max_servers"`

	// ConfidenceMax 状态切换所需的连续一致结果数
	ConfidenceMax int `json:"confidence_max"`

	// ThrottlePeerPeriod 同一节点两次回拨之间的最小间隔
	ThrottlePeerPeriod Duration `json:"throttle_peer_period"`

	// ThrottleGlobalRate 服务端每秒最多回拨次数
	ThrottleGlobalRate float64 `json:"throttle_global_rate"`

	// DialTimeout 回拨超时
	DialTimeout Duration `json:"dial_timeout"`
}

// DefaultNATConfig 返回默认 NAT 配置
func DefaultNATConfig() NATConfig {
	return NATConfig{
		EnableService:      true,
		BootDelay:          Duration(15 * time.Second),
		RetryInterval:      Duration(90 * time.Second),
		RefreshInterval:    Duration(15 * time.Minute),
		MaxServers:         3,
		ConfidenceMax:      3,
		ThrottlePeerPeriod: Duration(90 * time.Second),
		ThrottleGlobalRate: 1,
		DialTimeout:        Duration(15 * time.Second),
	}
}

// Validate 验证 NAT 配置
func (c NATConfig) Validate() error {
	if c.RetryInterval <= 0 || c.RefreshInterval <= 0 {
		return errors.New("autonat intervals must be positive")
	}
	if c.BootDelay < 0 {
		return errors.New("autonat boot delay must not be negative")
	}
	if c.MaxServers <= 0 {
		return errors.New("autonat max servers must be positive")
	}
	if c.ConfidenceMax <= 0 {
		return errors.New("autonat confidence must be positive")
	}
	if c.ThrottleGlobalRate <= 0 {
		return errors.New("autonat global rate must be positive")
	}
	return nil
}
