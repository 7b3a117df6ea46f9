package config

import (
	"errors"
	"time"
)

// DiscoveryConfig Kademlia 发现配置
type DiscoveryConfig struct {
	// BootstrapInterval 周期性重新引导的间隔
	BootstrapInterval Duration `json:"bootstrap_interval"`

	// BucketSize k 桶大小
	BucketSize int `json:"bucket_size"`

	// Alpha 查询并发度
	Alpha int `json:"alpha"`

	// RequestTimeout 单次 FIND_NODE 请求超时
	RequestTimeout Duration `json:"request_timeout"`

	// QueryTimeout 整个查询的超时
	QueryTimeout Duration `json:"query_timeout"`

	// DNSServers dnsaddr 解析使用的 DNS 服务器（host:port）
	// 为空时读取 /etc/resolv.conf
	DNSServers []string `json:"dns_servers,omitempty"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		BootstrapInterval: Duration(5 * time.Minute), // 每 5 分钟重新引导
		BucketSize:        20,
		Alpha:             3,
		RequestTimeout:    Duration(10 * time.Second),
		QueryTimeout:      Duration(60 * time.Second),
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.BootstrapInterval <= 0 {
		return errors.New("bootstrap interval must be positive")
	}
	if c.BucketSize <= 0 {
		return errors.New("bucket size must be positive")
	}
	if c.Alpha <= 0 {
		return errors.New("alpha must be positive")
	}
	if c.RequestTimeout <= 0 || c.QueryTimeout <= 0 {
		return errors.New("query timeouts must be positive")
	}
	return nil
}
