package config

import (
	"errors"
	"time"
)

// LivenessConfig Ping 存活检测配置
type LivenessConfig struct {
	// Interval 对每个已连接节点发起 Ping 的间隔
	Interval Duration `json:"interval"`

	// Timeout 单次 Ping 超时
	Timeout Duration `json:"timeout"`
}

// DefaultLivenessConfig 返回默认存活检测配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		Interval: Duration(15 * time.Second),
		Timeout:  Duration(20 * time.Second),
	}
}

// Validate 验证存活检测配置
func (c LivenessConfig) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return errors.New("liveness interval and timeout must be positive")
	}
	return nil
}
