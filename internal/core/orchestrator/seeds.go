package orchestrator

import (
	"fmt"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// BootnodeDNS 公共引导节点的汇合地址
const BootnodeDNS = "/dnsaddr/bootstrap.libp2p.io"

// BootnodeIdentities 公共引导节点标识
var BootnodeIdentities = []string{
	"QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb",
	"QmcZf59bWwK5XFi76CZX8cbJ4BhTzzA3gU1ZjYZcYW3dwt",
	"QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN",
	"QmQCU2EcMqAqQPR2i9bChDtGNJchTbq5TbXJJ16u19uLTa",
}

// Seed 种子节点
type Seed struct {
	Peer types.PeerID
	Addr types.Multiaddr
}

// ParseSeeds 解析共享同一地址的种子节点
//
// 任一标识或地址无法解析都返回 ErrInvalidSeed。
func ParseSeeds(ids []string, addr string) ([]Seed, error) {
	maddr, err := types.ParseMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q: %v", ErrInvalidSeed, addr, err)
	}

	seeds := make([]Seed, 0, len(ids))
	for _, s := range ids {
		id, err := types.ParsePeerID(s)
		if err != nil {
			return nil, fmt.Errorf("%w: peer %q: %v", ErrInvalidSeed, s, err)
		}
		seeds = append(seeds, Seed{Peer: id, Addr: maddr})
	}
	return seeds, nil
}

// DefaultSeeds 返回内置的公共引导节点
func DefaultSeeds() ([]Seed, error) {
	return ParseSeeds(BootnodeIdentities, BootnodeDNS)
}
