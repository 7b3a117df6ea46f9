package autonat

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Dialer 执行回拨
type Dialer interface {
	// DialBack 在新建连接上依次尝试 addrs，返回成功的地址
	DialBack(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) (types.Multiaddr, error)
}

// transportDialer 直接使用传输层拨号
//
// 连接不登记到 swarm，已有连接不会被复用。
type transportDialer struct {
	transports []pkgif.Transport
}

// NewTransportDialer 基于传输列表创建回拨器
func NewTransportDialer(transports []pkgif.Transport) Dialer {
	return &transportDialer{transports: transports}
}

func (d *transportDialer) DialBack(ctx context.Context, peer types.PeerID, addrs []types.Multiaddr) (types.Multiaddr, error) {
	var errs error
	for _, addr := range addrs {
		t := d.transportFor(addr)
		if t == nil {
			continue
		}
		conn, err := t.Dial(ctx, addr, peer)
		if err != nil {
			errs = multierr.Append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		_ = conn.Close()
		return addr, nil
	}
	if errs == nil {
		errs = errors.New("no transport for addresses")
	}
	return "", errs
}

func (d *transportDialer) transportFor(addr types.Multiaddr) pkgif.Transport {
	for _, t := range d.transports {
		if t.CanDial(addr) {
			return t
		}
	}
	return nil
}
