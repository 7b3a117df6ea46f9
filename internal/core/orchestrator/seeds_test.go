package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/pkg/types"
)

func TestDefaultSeeds(t *testing.T) {
	seeds, err := DefaultSeeds()
	require.NoError(t, err)
	require.Len(t, seeds, 4)

	seen := make(map[types.PeerID]bool)
	for _, s := range seeds {
		assert.Equal(t, types.Multiaddr(BootnodeDNS), s.Addr)
		assert.True(t, s.Addr.IsDNSAddr())
		assert.NoError(t, s.Peer.Validate())
		seen[s.Peer] = true
	}
	assert.Len(t, seen, 4, "种子节点标识不应重复")

	t.Log("✅ 内置种子节点测试通过")
}

func TestParseSeeds_Invalid(t *testing.T) {
	_, err := ParseSeeds([]string{"not-a-peer-id"}, BootnodeDNS)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = ParseSeeds(BootnodeIdentities, "dnsaddr/missing-slash")
	assert.ErrorIs(t, err, ErrInvalidSeed)

	seeds, err := ParseSeeds(nil, BootnodeDNS)
	require.NoError(t, err)
	assert.Empty(t, seeds)

	t.Log("✅ 无效种子节点测试通过")
}
