package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// negotiate 在 conn 上协商单个协议
//
// 服务器端使用 MultistreamMuxer.Negotiate()，客户端使用 SelectProtoOrFail()。
func negotiate(ctx context.Context, conn net.Conn, proto types.ProtocolID, isServer bool) error {
	if d, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(d); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
		defer conn.SetDeadline(time.Time{}) // 清除超时
	}

	if isServer {
		muxer := mss.NewMultistreamMuxer[types.ProtocolID]()
		muxer.AddHandler(proto, nil)
		if _, _, err := muxer.Negotiate(conn); err != nil {
			return fmt.Errorf("server negotiation %s: %w", proto, err)
		}
		return nil
	}

	if err := mss.SelectProtoOrFail(proto, conn); err != nil {
		return fmt.Errorf("client negotiation %s: %w", proto, err)
	}
	return nil
}
