package autonat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoServer 没有可用的探测服务端
	ErrNoServer = errors.New("autonat: no server available")

	// ErrDialRefused 服务端拒绝回拨
	ErrDialRefused = errors.New("autonat: dial refused")

	// ErrBadRequest 请求格式错误
	ErrBadRequest = errors.New("autonat: bad request")

	// ErrNoDialableAddrs 请求中没有可回拨的地址
	ErrNoDialableAddrs = errors.New("autonat: no dialable addresses")
)

// ResponseError 服务端返回的非 OK 响应
type ResponseError struct {
	Status ResponseStatus
	Text   string
}

func (e *ResponseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("autonat: %s", e.Status)
	}
	return fmt.Sprintf("autonat: %s: %s", e.Status, e.Text)
}

// Is 按状态映射到哨兵错误
func (e *ResponseError) Is(target error) bool {
	switch target {
	case ErrDialRefused:
		return e.Status == StatusDialRefused
	case ErrBadRequest:
		return e.Status == StatusBadRequest
	}
	return false
}
