package noise

import "errors"

var (
	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("noise: peer id mismatch")

	// ErrInvalidSignature 静态密钥签名无效
	ErrInvalidSignature = errors.New("noise: remote static key not bound to identity key")

	// ErrInvalidStaticKey 对端静态公钥长度错误
	ErrInvalidStaticKey = errors.New("noise: invalid remote static key")
)
