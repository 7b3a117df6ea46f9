package swarm

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-bootnode/pkg/types"
)

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrNoAddresses 没有可用地址
	ErrNoAddresses = errors.New("no addresses")

	// ErrNoTransport 没有可用传输层
	ErrNoTransport = errors.New("no transport for address")

	// ErrDialToSelf 尝试拨号自己
	ErrDialToSelf = errors.New("dial to self attempted")

	// ErrNoListenAddrs 没有配置监听地址
	ErrNoListenAddrs = errors.New("no listen addresses")
)

// DialError 拨号错误，包含多个地址的错误信息
type DialError struct {
	Peer   types.PeerID
	Errors []error
}

func (e *DialError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("failed to dial %s: unknown error", e.Peer)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("failed to dial %s: %v", e.Peer, e.Errors[0])
	}
	return fmt.Sprintf("failed to dial %s: %d errors: %v", e.Peer, len(e.Errors), e.Errors)
}

// Unwrap 返回全部错误
func (e *DialError) Unwrap() []error {
	return e.Errors
}

// BindError 监听地址绑定失败
type BindError struct {
	Addr types.Multiaddr
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

// Unwrap 返回底层错误
func (e *BindError) Unwrap() error {
	return e.Err
}
