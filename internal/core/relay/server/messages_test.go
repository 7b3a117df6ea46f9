package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ip4Tcp4001 为 /ip4/1.2.3.4/tcp/4001 的二进制形式
var ip4Tcp4001 = []byte{0x04, 1, 2, 3, 4, 0x06, 0x0f, 0xa1}

func TestHopMessage_DecodesConnect(t *testing.T) {
	dst := randomPeer(t)

	var peer []byte
	peer = protowire.AppendTag(peer, 1, protowire.BytesType)
	peer = protowire.AppendBytes(peer, dst.Bytes())

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, peer)

	var m HopMessage
	require.NoError(t, m.UnmarshalProto(b))
	assert.Equal(t, MessageConnect, m.Type)
	require.NotNil(t, m.Peer)
	assert.Equal(t, dst, m.Peer.ID)

	t.Log("✅ CONNECT 解码测试通过")
}

func TestHopMessage_ReservationLayout(t *testing.T) {
	m := HopMessage{
		Type:        MessageStatus,
		Status:      StatusOK,
		Reservation: &ReservationInfo{Expire: 1700000000, Addrs: []types.Multiaddr{"/ip4/1.2.3.4/tcp/4001"}},
		Limit:       &Limit{Duration: 120, Data: 1 << 17},
	}

	var rsvp []byte
	rsvp = protowire.AppendTag(rsvp, 1, protowire.VarintType)
	rsvp = protowire.AppendVarint(rsvp, 1700000000)
	rsvp = protowire.AppendTag(rsvp, 2, protowire.BytesType)
	rsvp = protowire.AppendBytes(rsvp, ip4Tcp4001)

	var limit []byte
	limit = protowire.AppendTag(limit, 1, protowire.VarintType)
	limit = protowire.AppendVarint(limit, 120)
	limit = protowire.AppendTag(limit, 2, protowire.VarintType)
	limit = protowire.AppendVarint(limit, 1<<17)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 2)
	want = protowire.AppendTag(want, 3, protowire.BytesType)
	want = protowire.AppendBytes(want, rsvp)
	want = protowire.AppendTag(want, 4, protowire.BytesType)
	want = protowire.AppendBytes(want, limit)
	want = protowire.AppendTag(want, 5, protowire.VarintType)
	want = protowire.AppendVarint(want, 100)

	assert.Equal(t, want, m.MarshalProto())

	t.Log("✅ 预留响应布局测试通过")
}

func TestStopMessage_Layout(t *testing.T) {
	src := randomPeer(t)
	m := StopMessage{Type: MessageConnect, Peer: &PeerInfo{ID: src}}

	var peer []byte
	peer = protowire.AppendTag(peer, 1, protowire.BytesType)
	peer = protowire.AppendBytes(peer, src.Bytes())

	// stop 协议中 CONNECT 为 0
	var want []byte
	want = protowire.AppendTag(want, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 0)
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendBytes(want, peer)
	assert.Equal(t, want, m.MarshalProto())

	var status []byte
	status = protowire.AppendTag(status, 1, protowire.VarintType)
	status = protowire.AppendVarint(status, 1)
	status = protowire.AppendTag(status, 4, protowire.VarintType)
	status = protowire.AppendVarint(status, 100)

	var back StopMessage
	require.NoError(t, back.UnmarshalProto(status))
	assert.Equal(t, MessageStatus, back.Type)
	assert.Equal(t, StatusOK, back.Status)

	t.Log("✅ STOP 消息布局测试通过")
}

func TestHopMessage_UnknownType(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	var m HopMessage
	require.NoError(t, m.UnmarshalProto(b))
	assert.Equal(t, messageUnknown, m.Type)

	var empty HopMessage
	require.NoError(t, empty.UnmarshalProto(nil))
	assert.Equal(t, messageUnknown, empty.Type)

	t.Log("✅ 未知消息类型测试通过")
}
