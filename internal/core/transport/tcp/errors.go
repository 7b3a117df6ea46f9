package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("tcp: transport closed")

	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("tcp: listener closed")

	// ErrNotTCPAddr 不是 TCP 地址
	ErrNotTCPAddr = errors.New("tcp: not a tcp multiaddr")
)
