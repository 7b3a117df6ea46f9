package identity

import "errors"

var (
	// ErrInvalidSeed 种子格式或长度错误
	ErrInvalidSeed = errors.New("invalid ed25519 seed")

	// ErrUnsupportedKeyType 不支持的公钥类型
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrMalformedPublicKey 公钥序列化格式错误
	ErrMalformedPublicKey = errors.New("malformed public key")

	// ErrNoPeerCertificate 对端未提供证书
	ErrNoPeerCertificate = errors.New("no peer certificate")
)
