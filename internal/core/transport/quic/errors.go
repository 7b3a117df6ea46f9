package quic

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("quic: transport closed")

	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("quic: listener closed")

	// ErrNotQUICAddr 不是 QUIC 地址
	ErrNotQUICAddr = errors.New("quic: not a quic-v1 multiaddr")
)
