// Package config 提供引导节点的配置管理
//
// 采用与各组件一一对应的子配置：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带默认值与校验
//   - 支持从 JSON 加载
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Transport.Port = 4011
//	if err := cfg.Validate(); err != nil { ... }
//
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 是引导节点的完整配置结构
//
//   - Identity: 身份密钥
//   - Transport: 监听端口与传输层
//   - Discovery: Kademlia 与引导种子
//   - NAT: AutoNAT 探测
//   - Relay: 中继代理
//   - Liveness: Ping 存活检测
//   - Metrics: Prometheus 指标
type Config struct {
	// JoinIPFS 是否加入公共 IPFS 网络
	// 仅作为配置项保留，编排器本身不使用
	JoinIPFS bool `json:"join_ipfs"`

	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Discovery 节点发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// NAT 可达性探测配置
	NAT NATConfig `json:"nat"`

	// Relay 中继服务配置
	Relay RelayConfig `json:"relay"`

	// Liveness 存活检测配置
	Liveness LivenessConfig `json:"liveness"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Discovery: DefaultDiscoveryConfig(),
		NAT:       DefaultNATConfig(),
		Relay:     DefaultRelayConfig(),
		Liveness:  DefaultLivenessConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 按子配置顺序检查，返回第一个错误。
func (c *Config) Validate() error {
	checks := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"identity", c.Identity},
		{"transport", c.Transport},
		{"discovery", c.Discovery},
		{"nat", c.NAT},
		{"relay", c.Relay},
		{"liveness", c.Liveness},
		{"metrics", c.Metrics},
	}
	for _, check := range checks {
		if err := check.v.Validate(); err != nil {
			return &ValidationError{Section: check.name, Err: err}
		}
	}
	return nil
}

// FromJSON 在默认配置之上合并 JSON 内容
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ValidationError 子配置校验错误
type ValidationError struct {
	Section string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s config: %v", e.Section, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
