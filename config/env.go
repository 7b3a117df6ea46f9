package config

import (
	"fmt"
	"strconv"
	"time"
)

// 环境变量名
const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "BOOTNODE_"

	EnvJoinIPFS          = EnvPrefix + "JOIN_IPFS"
	EnvPort              = EnvPrefix + "PORT"
	EnvSecretKey         = EnvPrefix + "SECRET_KEY"
	EnvMetricsAddr       = EnvPrefix + "METRICS_ADDR"
	EnvBootstrapInterval = EnvPrefix + "BOOTSTRAP_INTERVAL"
)

// LookupFunc 环境变量查询函数，与 os.LookupEnv 同签名
type LookupFunc func(key string) (string, bool)

// ApplyEnv 用 BOOTNODE_* 环境变量覆盖配置
//
// 未设置的变量保持原值；格式错误返回带变量名的错误。
// 设置 BOOTNODE_METRICS_ADDR 即启用指标端点。
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvJoinIPFS); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJoinIPFS, err)
		}
		c.JoinIPFS = b
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := ParsePort(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Transport.Port = port
	}
	if v, ok := lookup(EnvSecretKey); ok {
		c.Identity.SecretKey = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok && v != "" {
		c.Metrics.Enable = true
		c.Metrics.ListenAddr = v
	}
	if v, ok := lookup(EnvBootstrapInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBootstrapInterval, err)
		}
		c.Discovery.BootstrapInterval = Duration(d)
	}
	return nil
}

// ParsePort 解析十进制端口号
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}
