package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("identity")

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 节点身份
//
// 创建后只读，可在各协议模块间共享。
type Identity struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	id   types.PeerID
}

// New 从 Ed25519 私钥创建身份
func New(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes", ErrInvalidSeed, ed25519.PrivateKeySize)
	}
	pub := priv.Public().(ed25519.PublicKey)

	id, err := PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}

	return &Identity{priv: priv, pub: pub, id: id}, nil
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return New(priv)
}

// FromSeed 从 32 字节种子确定性地创建身份
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), ed25519.SeedSize)
	}
	return New(ed25519.NewKeyFromSeed(seed))
}

// FromHexSeed 从十六进制种子创建身份
func FromHexSeed(s string) (*Identity, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return FromSeed(seed)
}

// FromConfig 按身份配置加载或生成身份
func FromConfig(cfg config.IdentityConfig) (*Identity, error) {
	if cfg.IsRandom() {
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		log.Info("已生成随机身份", "peer", id.PeerID())
		return id, nil
	}
	return FromHexSeed(cfg.SecretKey)
}

// ============================================================================
//                              访问方法
// ============================================================================

// PeerID 返回节点标识
func (i *Identity) PeerID() types.PeerID {
	return i.id
}

// PublicKey 返回 Ed25519 公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.pub
}

// PrivateKey 返回 Ed25519 私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// MarshalPublicKey 返回 protobuf 序列化的公钥
func (i *Identity) MarshalPublicKey() []byte {
	return MarshalPublicKey(i.pub)
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.priv, data)
}
