package server

import "errors"

var (
	// ErrServerClosed 服务端已关闭
	ErrServerClosed = errors.New("relay server closed")

	// ErrMalformedMessage 消息格式错误
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnexpectedMessage 意外消息
	ErrUnexpectedMessage = errors.New("unexpected message type")

	// ErrCircuitDurationExceeded 电路超过持续时间限制
	ErrCircuitDurationExceeded = errors.New("circuit duration limit exceeded")

	// ErrCircuitBytesExceeded 电路超过字节数限制
	ErrCircuitBytesExceeded = errors.New("circuit data limit exceeded")
)

// StatusError 对端返回的非 OK 状态
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return "relay: " + e.Status.String()
}
