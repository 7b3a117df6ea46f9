package host

import (
	"fmt"

	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
)

// NetworkInfo 网络概况
type NetworkInfo struct {
	NumPeers       int
	NumConnections int
	NumInbound     int
	NumOutbound    int
	PendingDials   int
	NumListeners   int
}

// String 返回单行摘要
func (i NetworkInfo) String() string {
	return fmt.Sprintf("peers=%d conns=%d (in=%d out=%d) pending_dials=%d listeners=%d",
		i.NumPeers, i.NumConnections, i.NumInbound, i.NumOutbound, i.PendingDials, i.NumListeners)
}

// NetworkInfo 返回当前网络概况
func (h *Host) NetworkInfo() NetworkInfo {
	info := NetworkInfo{
		NumPeers:     len(h.swarm.Peers()),
		PendingDials: h.swarm.PendingDials(),
		NumListeners: len(h.swarm.ListenAddrs()),
	}
	for _, c := range h.swarm.Conns() {
		info.NumConnections++
		switch c.Direction() {
		case pkgif.DirInbound:
			info.NumInbound++
		case pkgif.DirOutbound:
			info.NumOutbound++
		}
	}
	return info
}
