package dnsaddr

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/pkg/types"
)

const (
	seedA = "QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb"
	seedB = "QmcZf59bWwK5XFi76CZX8cbJ4BhTzzA3gU1ZjYZcYW3dwt"
)

// fakeLookup 内存 TXT 记录
type fakeLookup struct {
	records map[string][]string
	calls   atomic.Int32
}

func (f *fakeLookup) LookupTXT(_ context.Context, name string) ([]string, error) {
	f.calls.Add(1)
	recs, ok := f.records[name]
	if !ok {
		return nil, ErrNoRecordsFound
	}
	return recs, nil
}

func newFake() *fakeLookup {
	return &fakeLookup{records: map[string][]string{
		"_dnsaddr.bootstrap.libp2p.io": {
			"dnsaddr=/dnsaddr/ams-1.bootstrap.libp2p.io",
			"dnsaddr=/dnsaddr/sjc-1.bootstrap.libp2p.io",
			"not-a-record",
		},
		"_dnsaddr.ams-1.bootstrap.libp2p.io": {
			"dnsaddr=/ip4/147.75.83.83/tcp/4001/p2p/" + seedA,
			"dnsaddr=/ip4/147.75.83.83/udp/4001/quic-v1/p2p/" + seedA,
		},
		"_dnsaddr.sjc-1.bootstrap.libp2p.io": {
			"dnsaddr=/ip4/147.75.195.153/tcp/4001/p2p/" + seedB,
		},
		"_dnsaddr.loop.example": {
			"dnsaddr=/dnsaddr/loop.example",
		},
	}}
}

func TestResolve_FiltersByPeer(t *testing.T) {
	r := NewResolverWithLookup(DefaultConfig(), newFake())

	addrs, err := r.Resolve(context.Background(),
		types.Multiaddr("/dnsaddr/bootstrap.libp2p.io/p2p/"+seedA))
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.Multiaddr{
		types.Multiaddr("/ip4/147.75.83.83/tcp/4001/p2p/" + seedA),
		types.Multiaddr("/ip4/147.75.83.83/udp/4001/quic-v1/p2p/" + seedA),
	}, addrs)

	t.Log("✅ dnsaddr 按节点过滤测试通过")
}

func TestResolve_AllPeersWithoutFilter(t *testing.T) {
	r := NewResolverWithLookup(DefaultConfig(), newFake())

	addrs, err := r.Resolve(context.Background(), "/dnsaddr/bootstrap.libp2p.io")
	require.NoError(t, err)
	assert.Len(t, addrs, 3)

	t.Log("✅ dnsaddr 全量展开测试通过")
}

func TestResolve_PassThrough(t *testing.T) {
	fake := newFake()
	r := NewResolverWithLookup(DefaultConfig(), fake)

	in := types.Multiaddr("/ip4/1.2.3.4/tcp/4001")
	addrs, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []types.Multiaddr{in}, addrs)
	assert.Zero(t, fake.calls.Load())
}

func TestResolve_UnknownPeer(t *testing.T) {
	r := NewResolverWithLookup(DefaultConfig(), newFake())

	_, err := r.Resolve(context.Background(),
		types.Multiaddr("/dnsaddr/bootstrap.libp2p.io/p2p/QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN"))
	assert.ErrorIs(t, err, ErrNoRecordsFound)
}

func TestResolve_DepthLimit(t *testing.T) {
	r := NewResolverWithLookup(DefaultConfig(), newFake())

	_, err := r.Resolve(context.Background(), "/dnsaddr/loop.example")
	assert.Error(t, err)

	t.Log("✅ 递归深度限制测试通过")
}

func TestResolve_Cache(t *testing.T) {
	fake := newFake()
	r := NewResolverWithLookup(DefaultConfig(), fake)

	_, err := r.Resolve(context.Background(), "/dnsaddr/bootstrap.libp2p.io")
	require.NoError(t, err)
	first := fake.calls.Load()

	_, err = r.Resolve(context.Background(), "/dnsaddr/bootstrap.libp2p.io")
	require.NoError(t, err)
	assert.Equal(t, first, fake.calls.Load())

	r.ClearCache()
	_, err = r.Resolve(context.Background(), "/dnsaddr/bootstrap.libp2p.io")
	require.NoError(t, err)
	assert.Greater(t, fake.calls.Load(), first)
}

func TestParseRecord(t *testing.T) {
	a, err := ParseRecord("dnsaddr=/ip4/1.2.3.4/tcp/1/p2p/" + seedA)
	require.NoError(t, err)
	assert.True(t, a.Equal(types.Multiaddr("/ip4/1.2.3.4/tcp/1/p2p/"+seedA)))

	_, err = ParseRecord("/ip4/1.2.3.4/tcp/1")
	assert.Error(t, err)
	_, err = ParseRecord("dnsaddr=garbage")
	assert.Error(t, err)
}

func TestNewDNSClient_Fallback(t *testing.T) {
	c := newDNSClient([]string{"9.9.9.9:53"}, DefaultTimeout)
	assert.Equal(t, []string{"9.9.9.9:53"}, c.servers)
	assert.NotEmpty(t, newDNSClient(nil, DefaultTimeout).servers)
}
