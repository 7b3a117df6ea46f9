package config

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// RandomSecretKey 表示"生成新的随机身份"的哨兵值
const RandomSecretKey = "{RANDOM}"

// SeedSize Ed25519 种子长度（字节）
const SeedSize = 32

var (
	// ErrInvalidSecretKey 密钥格式错误
	ErrInvalidSecretKey = errors.New("secret key must be a 64-char hex ed25519 seed or " + RandomSecretKey)
)

// IdentityConfig 身份配置
type IdentityConfig struct {
	// SecretKey Ed25519 种子的十六进制编码，或 {RANDOM}
	SecretKey string `json:"secret_key"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		SecretKey: RandomSecretKey, // 默认每次启动生成新身份
	}
}

// IsRandom 是否需要生成随机身份
func (c IdentityConfig) IsRandom() bool {
	return c.SecretKey == "" || c.SecretKey == RandomSecretKey
}

// Seed 解码密钥种子
func (c IdentityConfig) Seed() ([]byte, error) {
	if c.IsRandom() {
		return nil, nil
	}
	seed, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(seed))
	}
	return seed, nil
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	_, err := c.Seed()
	return err
}
