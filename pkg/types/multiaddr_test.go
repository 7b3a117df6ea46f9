package types

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMultiaddr(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// 有效的 multiaddr
		{"ipv4 tcp", "/ip4/0.0.0.0/tcp/4011", false},
		{"ipv4 udp quic", "/ip4/0.0.0.0/udp/4011/quic-v1", false},
		{"ipv6 udp quic", "/ip6/::1/udp/4001/quic-v1", false},
		{"dns4", "/dns4/example.com/tcp/4001", false},
		{"dnsaddr", "/dnsaddr/bootstrap.libp2p.io", false},
		{"with peer id", "/ip4/1.2.3.4/tcp/4001/p2p/" + seedA, false},
		{"relay", "/ip4/1.2.3.4/tcp/4001/p2p/" + seedA + "/p2p-circuit/p2p/" + seedB, false},

		// 无效格式
		{"empty", "", true},
		{"host:port format", "1.2.3.4:4001", true},
		{"no leading slash", "ip4/1.2.3.4/udp/4001", true},
		{"unknown protocol", "/unknown/1.2.3.4/udp/4001", true},
		{"too short", "/ip4", true},
		{"bad ip4", "/ip4/300.1.1.1/tcp/1", true},
		{"ip6 in ip4", "/ip4/::1/tcp/1", true},
		{"bad port", "/ip4/1.1.1.1/tcp/70000", true},
		{"bad peer", "/ip4/1.1.1.1/tcp/1/p2p/notapeer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma, err := ParseMultiaddr(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.input, ma.String())
			}
		})
	}
}

func TestMustParseMultiaddr(t *testing.T) {
	assert.NotPanics(t, func() {
		ma := MustParseMultiaddr("/ip4/1.2.3.4/udp/4001/quic-v1")
		assert.Equal(t, "/ip4/1.2.3.4/udp/4001/quic-v1", ma.String())
	})
	assert.Panics(t, func() {
		MustParseMultiaddr("invalid")
	})
}

func TestMultiaddr_PeerID(t *testing.T) {
	ma := MustParseMultiaddr("/ip4/1.2.3.4/tcp/4001/p2p/" + seedA)
	id, ok := ma.PeerID()
	require.True(t, ok)
	assert.Equal(t, PeerID(seedA), id)

	assert.Equal(t, Multiaddr("/ip4/1.2.3.4/tcp/4001"), ma.WithoutPeerID())
	assert.Equal(t, ma, ma.WithoutPeerID().WithPeerID(PeerID(seedA)))

	// 替换已有的 peer id
	replaced := ma.WithPeerID(PeerID(seedB))
	got, _ := replaced.PeerID()
	assert.Equal(t, PeerID(seedB), got)

	_, ok = MustParseMultiaddr("/dnsaddr/bootstrap.libp2p.io").PeerID()
	assert.False(t, ok)
}

func TestMultiaddr_HostPort(t *testing.T) {
	tests := []struct {
		input    string
		network  string
		hostport string
		wantErr  bool
	}{
		{"/ip4/127.0.0.1/tcp/4011", "tcp4", "127.0.0.1:4011", false},
		{"/ip4/127.0.0.1/udp/4011/quic-v1", "udp4", "127.0.0.1:4011", false},
		{"/ip6/::1/tcp/4011", "tcp6", "[::1]:4011", false},
		{"/dns/example.com/tcp/1", "tcp", "example.com:1", false},
		{"/ip4/127.0.0.1/tcp/4011/p2p/" + seedA, "tcp4", "127.0.0.1:4011", false},
		{"/dnsaddr/bootstrap.libp2p.io", "", "", true},
		{"/ip4/127.0.0.1/udp/4011", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			network, hp, err := Multiaddr(tt.input).HostPort()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotDialable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.network, network)
			assert.Equal(t, tt.hostport, hp)
		})
	}
}

func TestMultiaddr_Predicates(t *testing.T) {
	assert.True(t, MustParseMultiaddr("/dnsaddr/bootstrap.libp2p.io").IsDNSAddr())
	assert.True(t, MustParseMultiaddr("/ip4/1.2.3.4/udp/1/quic-v1").IsQUIC())
	assert.False(t, MustParseMultiaddr("/ip4/1.2.3.4/tcp/1").IsQUIC())
	assert.True(t, MustParseMultiaddr("/ip4/8.8.8.8/tcp/1").IsPublic())
	assert.False(t, MustParseMultiaddr("/ip4/192.168.1.1/tcp/1").IsPublic())
	assert.True(t, MustParseMultiaddr("/ip4/0.0.0.0/tcp/1").IsUnspecified())
}

func TestFromNetAddr(t *testing.T) {
	tcp, err := FromNetAddr(&net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4011})
	require.NoError(t, err)
	assert.Equal(t, Multiaddr("/ip4/10.0.0.1/tcp/4011"), tcp)

	udp, err := FromNetAddr(&net.UDPAddr{IP: net.ParseIP("::1"), Port: 4011})
	require.NoError(t, err)
	assert.Equal(t, Multiaddr("/ip6/::1/udp/4011/quic-v1"), udp)

	_, err = FromNetAddr(&net.UnixAddr{Name: "/tmp/x", Net: "unix"})
	assert.Error(t, err)
}
