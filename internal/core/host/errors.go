package host

import "errors"

var (
	// ErrNoProtocols 未指定协议
	ErrNoProtocols = errors.New("no protocols specified")

	// ErrProtocolNotSupported 对端不支持任何给定协议
	ErrProtocolNotSupported = errors.New("protocol not supported by remote peer")
)
