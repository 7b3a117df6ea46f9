package orchestrator

import "errors"

var (
	// ErrEventStreamClosed 合并事件流在运行期间关闭
	ErrEventStreamClosed = errors.New("orchestrator: event stream closed")

	// ErrInvalidSeed 种子节点标识或地址无法解析
	ErrInvalidSeed = errors.New("orchestrator: invalid seed")

	// ErrInvalidTransition 中继状态转换不合法
	ErrInvalidTransition = errors.New("orchestrator: invalid relay transition")
)
