package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seedA = "QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb"
	seedB = "QmcZf59bWwK5XFi76CZX8cbJ4BhTzzA3gU1ZjYZcYW3dwt"
)

func TestParsePeerID(t *testing.T) {
	t.Run("sha256 multihash", func(t *testing.T) {
		id, err := ParsePeerID(seedA)
		require.NoError(t, err)
		assert.Equal(t, seedA, id.String())

		code, digest, err := id.Multihash()
		require.NoError(t, err)
		assert.Equal(t, MhSha256, code)
		assert.Len(t, digest, 32)
	})

	t.Run("identity multihash", func(t *testing.T) {
		digest := bytes.Repeat([]byte{0x42}, 36)
		id, err := PeerIDFromBytes(NewMultihash(MhIdentity, digest))
		require.NoError(t, err)

		parsed, err := ParsePeerID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)

		code, got, err := parsed.Multihash()
		require.NoError(t, err)
		assert.Equal(t, MhIdentity, code)
		assert.Equal(t, digest, got)
	})

	invalid := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"truncated", seedA[:20]},
		{"host port", "1.2.3.4:4001"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePeerID(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestPeerIDFromBytes_Rejects(t *testing.T) {
	_, err := PeerIDFromBytes(nil)
	assert.ErrorIs(t, err, ErrEmptyPeerID)

	// 未知 multihash 编码
	_, err = PeerIDFromBytes(NewMultihash(0x13, make([]byte, 64)))
	assert.ErrorIs(t, err, ErrUnsupportedMultihash)

	// 长度不符
	bad := NewMultihash(MhSha256, make([]byte, 32))
	_, err = PeerIDFromBytes(bad[:len(bad)-1])
	assert.ErrorIs(t, err, ErrInvalidPeerID)

	// identity 摘要过长
	_, err = PeerIDFromBytes(NewMultihash(MhIdentity, make([]byte, MaxInlineKeyLength+1)))
	assert.ErrorIs(t, err, ErrInvalidPeerID)
}

func TestPeerID_ShortString(t *testing.T) {
	id := MustParsePeerID(seedB)
	assert.Equal(t, "*YW3dwt", id.ShortString())
	assert.Equal(t, "", EmptyPeerID.ShortString())
	assert.True(t, EmptyPeerID.IsEmpty())
}

func TestPeerID_BytesRoundTrip(t *testing.T) {
	id := MustParsePeerID(seedA)
	back, err := PeerIDFromBytes(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, back)
	assert.NoError(t, id.Validate())
	assert.Error(t, PeerID("garbage!").Validate())
}
