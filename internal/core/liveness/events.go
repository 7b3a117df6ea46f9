package liveness

import (
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleName 事件来源模块名
const ModuleName = "liveness"

// Result 一次 Ping 的结果
type Result struct {
	Peer types.PeerID
	RTT  time.Duration
	Err  error
}

func (Result) Module() string { return ModuleName }
