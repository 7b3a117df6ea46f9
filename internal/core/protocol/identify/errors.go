package identify

import "errors"

var (
	// ErrPublicKeyMismatch 公钥与对端 PeerID 不匹配
	ErrPublicKeyMismatch = errors.New("identify: public key does not match peer id")

	// ErrServiceClosed 服务已停止
	ErrServiceClosed = errors.New("identify: service closed")
)
