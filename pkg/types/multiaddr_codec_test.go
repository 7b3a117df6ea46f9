package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiaddr_Bytes(t *testing.T) {
	tests := []struct {
		name string
		addr Multiaddr
		want []byte
	}{
		{"ip4 tcp", "/ip4/127.0.0.1/tcp/4001", []byte{0x04, 127, 0, 0, 1, 0x06, 0x0f, 0xa1}},
		{"ip4 udp quic", "/ip4/1.2.3.4/udp/4001/quic-v1", []byte{0x04, 1, 2, 3, 4, 0x91, 0x02, 0x0f, 0xa1, 0xcc, 0x03}},
		{"dnsaddr", "/dnsaddr/a.io", []byte{0x38, 4, 'a', '.', 'i', 'o'}},
		{"circuit", "/p2p-circuit", []byte{0xa2, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.addr.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := MultiaddrFromBytes(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, back)
		})
	}

	t.Log("✅ 二进制地址编码测试通过")
}

func TestMultiaddr_BytesWithPeerID(t *testing.T) {
	addr := MustParseMultiaddr("/ip6/::1/udp/4001/quic-v1/p2p/" + seedA + "/p2p-circuit/p2p/" + seedB)

	b, err := addr.Bytes()
	require.NoError(t, err)

	back, err := MultiaddrFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, addr, back)

	t.Log("✅ 带节点 ID 的地址编码测试通过")
}

func TestMultiaddrFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"unknown code (ws)", []byte{0x04, 1, 2, 3, 4, 0x06, 0x0f, 0xa1, 0xdd, 0x03}},
		{"truncated ip4", []byte{0x04, 1, 2}},
		{"truncated dns", []byte{0x38, 10, 'a'}},
		{"bad peer id", []byte{0xa5, 0x03, 2, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MultiaddrFromBytes(tt.in)
			assert.Error(t, err)
		})
	}

	good, _ := Multiaddr("/ip4/1.2.3.4/tcp/1").Bytes()
	got := MultiaddrsFromBytes([][]byte{good, {0xdd, 0x03}})
	assert.Equal(t, []Multiaddr{"/ip4/1.2.3.4/tcp/1"}, got)

	t.Log("✅ 非法二进制地址测试通过")
}
