package types

import (
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-varint"
)

// ============================================================================
//                              Multihash 常量
// ============================================================================

const (
	// MhIdentity identity multihash（数据原样内嵌）
	MhIdentity uint64 = 0x00

	// MhSha256 sha2-256 multihash
	MhSha256 uint64 = 0x12

	// MaxInlineKeyLength 可内嵌到 identity multihash 的最大公钥长度
	MaxInlineKeyLength = 42
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 内部以 multihash 的 Base58 文本保存，可直接作为 map 键。
// 与 libp2p 的文本格式互通：Qm... 与 12D3KooW... 均可解析。
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// ParsePeerID 解析 Base58 文本形式的 PeerID
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	if _, _, err := decodeMultihash(raw); err != nil {
		return EmptyPeerID, err
	}
	return PeerID(s), nil
}

// MustParsePeerID 解析 PeerID，失败时 panic
//
// 仅用于常量初始化或测试代码。
func MustParsePeerID(s string) PeerID {
	id, err := ParsePeerID(s)
	if err != nil {
		panic(fmt.Sprintf("MustParsePeerID(%q): %v", s, err))
	}
	return id
}

// PeerIDFromBytes 从 multihash 字节创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) == 0 {
		return EmptyPeerID, ErrEmptyPeerID
	}
	if _, _, err := decodeMultihash(b); err != nil {
		return EmptyPeerID, err
	}
	return PeerID(base58.Encode(b)), nil
}

// NewMultihash 按给定编码构造 multihash 字节
func NewMultihash(code uint64, digest []byte) []byte {
	buf := make([]byte, 0, varint.UvarintSize(code)+varint.UvarintSize(uint64(len(digest)))+len(digest))
	buf = append(buf, varint.ToUvarint(code)...)
	buf = append(buf, varint.ToUvarint(uint64(len(digest)))...)
	return append(buf, digest...)
}

// String 返回 Base58 文本
func (id PeerID) String() string {
	return string(id)
}

// ShortString 返回日志用的短标识
//
// 格式：最后 6 个字符前加 "*"，与 libp2p 日志习惯一致。
func (id PeerID) ShortString() string {
	s := string(id)
	if len(s) <= 8 {
		return s
	}
	return "*" + s[len(s)-6:]
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Bytes 返回 multihash 原始字节
//
// 对于通过 ParsePeerID/PeerIDFromBytes 构造的 PeerID 不会失败，
// 非法文本返回 nil。
func (id PeerID) Bytes() []byte {
	raw, err := base58.Decode(string(id))
	if err != nil {
		return nil
	}
	return raw
}

// Validate 校验 PeerID 是否为合法 multihash
func (id PeerID) Validate() error {
	_, err := ParsePeerID(string(id))
	return err
}

// Multihash 返回 multihash 编码与摘要
func (id PeerID) Multihash() (code uint64, digest []byte, err error) {
	raw := id.Bytes()
	if raw == nil {
		return 0, nil, ErrInvalidPeerID
	}
	return decodeMultihash(raw)
}

// decodeMultihash 解析 multihash 头部，返回编码与摘要
func decodeMultihash(b []byte) (uint64, []byte, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: multihash code: %v", ErrInvalidPeerID, err)
	}
	b = b[n:]

	length, n, err := varint.FromUvarint(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: multihash length: %v", ErrInvalidPeerID, err)
	}
	b = b[n:]

	if uint64(len(b)) != length {
		return 0, nil, fmt.Errorf("%w: digest length %d, header says %d", ErrInvalidPeerID, len(b), length)
	}

	switch code {
	case MhSha256:
		if length != 32 {
			return 0, nil, fmt.Errorf("%w: sha2-256 digest must be 32 bytes", ErrInvalidPeerID)
		}
	case MhIdentity:
		if length > MaxInlineKeyLength {
			return 0, nil, fmt.Errorf("%w: identity digest too long", ErrInvalidPeerID)
		}
	default:
		return 0, nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedMultihash, code)
	}
	return code, b, nil
}
