package config

import (
	"errors"
	"time"
)

// RelayConfig 中继代理配置
//
// 引导节点始终作为中继服务端，为 NAT 后的节点提供预留与电路。
type RelayConfig struct {
	// MaxReservations 最大预留数
	MaxReservations int `json:"max_reservations"`

	// MaxReservationsPerIP 同一 IP 的最大预留数（续约不增加）
	MaxReservationsPerIP int `json:"max_reservations_per_ip"`

	// MaxCircuits 最大活跃电路数
	MaxCircuits int `json:"max_circuits"`

	// MaxCircuitsPerPeer 每个预留允许的并发电路数
	MaxCircuitsPerPeer int `json:"max_circuits_per_peer"`

	// ReservationTTL 预留有效期，到期未续约即超时
	ReservationTTL Duration `json:"reservation_ttl"`

	// CircuitDuration 单个电路最长持续时间
	CircuitDuration Duration `json:"circuit_duration"`

	// CircuitBytes 单个电路最多转发字节数（每个方向）
	CircuitBytes int64 `json:"circuit_bytes"`

	// BandwidthLimit 单个电路的速率限制（字节/秒，0 表示不限制）
	BandwidthLimit int64 `json:"bandwidth_limit"`

	// ConnectTimeout 连接目标节点的超时
	ConnectTimeout Duration `json:"connect_timeout"`
}

// DefaultRelayConfig 返回默认中继配置
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		MaxReservations:      128,
		MaxReservationsPerIP: 8,
		MaxCircuits:          16,
		MaxCircuitsPerPeer:   4,
		ReservationTTL:       Duration(1 * time.Hour),
		CircuitDuration:      Duration(2 * time.Minute),
		CircuitBytes:         128 << 10, // 128 KiB
		BandwidthLimit:       0,
		ConnectTimeout:       Duration(30 * time.Second),
	}
}

// Validate 验证中继配置
func (c RelayConfig) Validate() error {
	if c.MaxReservations <= 0 {
		return errors.New("relay max reservations must be positive")
	}
	if c.MaxReservationsPerIP <= 0 {
		return errors.New("relay max reservations per ip must be positive")
	}
	if c.MaxCircuits <= 0 || c.MaxCircuitsPerPeer <= 0 {
		return errors.New("relay circuit limits must be positive")
	}
	if c.ReservationTTL <= 0 || c.CircuitDuration <= 0 || c.ConnectTimeout <= 0 {
		return errors.New("relay durations must be positive")
	}
	if c.CircuitBytes <= 0 {
		return errors.New("relay circuit bytes must be positive")
	}
	if c.BandwidthLimit < 0 {
		return errors.New("relay bandwidth limit must not be negative")
	}
	return nil
}
