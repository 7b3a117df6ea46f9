package upgrader

import "errors"

var (
	// ErrNilIdentity 身份为空
	ErrNilIdentity = errors.New("upgrader: identity is nil")

	// ErrNoPeerID 出站升级缺少期望的 PeerID
	ErrNoPeerID = errors.New("upgrader: outbound upgrade requires remote peer id")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("upgrader: connection closed")
)
