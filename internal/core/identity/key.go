package identity

import (
	"crypto/ed25519"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              公钥序列化
// ============================================================================

// 序列化格式与 libp2p crypto.proto 兼容：
//
//	message PublicKey {
//	  required KeyType Type = 1;
//	  required bytes Data = 2;
//	}

// KeyType 密钥类型（与 libp2p 枚举值一致）
type KeyType int32

const (
	// KeyTypeRSA RSA
	KeyTypeRSA KeyType = 0
	// KeyTypeEd25519 Ed25519
	KeyTypeEd25519 KeyType = 1
	// KeyTypeSecp256k1 Secp256k1
	KeyTypeSecp256k1 KeyType = 2
	// KeyTypeECDSA ECDSA
	KeyTypeECDSA KeyType = 3
)

const (
	fieldType protowire.Number = 1
	fieldData protowire.Number = 2
)

// MarshalPublicKey 序列化 Ed25519 公钥
func MarshalPublicKey(pub ed25519.PublicKey) []byte {
	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(KeyTypeEd25519))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	return protowire.AppendBytes(b, pub)
}

// UnmarshalPublicKey 反序列化公钥，仅支持 Ed25519
func UnmarshalPublicKey(data []byte) (ed25519.PublicKey, error) {
	var (
		keyType KeyType = -1
		keyData []byte
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, protowire.ParseError(n))
			}
			keyType = KeyType(v)
			data = data[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, protowire.ParseError(n))
			}
			keyData = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if keyType != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedKeyType, keyType)
	}
	if len(keyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 key is %d bytes", ErrMalformedPublicKey, len(keyData))
	}
	return ed25519.PublicKey(keyData), nil
}

// ============================================================================
//                              PeerID 派生
// ============================================================================

// PeerIDFromPublicKey 从公钥派生 PeerID
//
// 序列化结果不超过 42 字节时使用 identity multihash，否则使用 sha2-256。
func PeerIDFromPublicKey(pub ed25519.PublicKey) (types.PeerID, error) {
	if len(pub) != ed25519.PublicKeySize {
		return types.EmptyPeerID, fmt.Errorf("%w: ed25519 key is %d bytes", ErrMalformedPublicKey, len(pub))
	}

	data := MarshalPublicKey(pub)
	if len(data) <= types.MaxInlineKeyLength {
		return types.PeerIDFromBytes(types.NewMultihash(types.MhIdentity, data))
	}
	sum := sha256.Sum256(data)
	return types.PeerIDFromBytes(types.NewMultihash(types.MhSha256, sum[:]))
}

// MatchesPeerID 检查公钥是否对应给定的 PeerID
//
// 同时接受 identity 与 sha2-256 两种派生方式。
func MatchesPeerID(pub ed25519.PublicKey, id types.PeerID) bool {
	code, digest, err := id.Multihash()
	if err != nil {
		return false
	}

	data := MarshalPublicKey(pub)
	switch code {
	case types.MhIdentity:
		return string(digest) == string(data)
	case types.MhSha256:
		sum := sha256.Sum256(data)
		return string(digest) == string(sum[:])
	default:
		return false
	}
}

// PublicKeyFromPeerID 从 identity multihash 的 PeerID 中提取公钥
func PublicKeyFromPeerID(id types.PeerID) (ed25519.PublicKey, error) {
	code, digest, err := id.Multihash()
	if err != nil {
		return nil, err
	}
	if code != types.MhIdentity {
		return nil, fmt.Errorf("%w: peer id does not inline its key", ErrUnsupportedKeyType)
	}
	return UnmarshalPublicKey(digest)
}
