package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/lib/wire"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// payloadSigPrefix 签名 payload 的前缀
const payloadSigPrefix = "noise-libp2p-static-key:"

// handshakePayload 握手 payload（NoiseHandshakePayload）
//
// 字段 1 identity_key，字段 2 identity_sig；扩展字段 4 忽略。
type handshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
}

func (p *handshakePayload) MarshalProto() []byte {
	b := wire.AppendBytes(nil, 1, p.IdentityKey)
	return wire.AppendBytes(b, 2, p.IdentitySig)
}

func (p *handshakePayload) UnmarshalProto(data []byte) error {
	return wire.RangeFields(data, func(f wire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			p.IdentityKey = wire.Clone(f.Bytes)
		case 2:
			p.IdentitySig = wire.Clone(f.Bytes)
		}
		return nil
	})
}

// cipherSuite Noise 密码套件
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// ============================================================================
// Noise XX 握手实现
// ============================================================================

// Handshake 在 conn 上执行 Noise XX 握手
//
// expected 非空时校验对端 PeerID，不符返回 ErrPeerIDMismatch。
func Handshake(conn net.Conn, id *identity.Identity, expected types.PeerID, initiator bool) (*SecureConn, error) {
	staticPriv := ed25519ToCurve25519Private(id.PrivateKey())
	staticPub, err := ed25519ToCurve25519Public(id.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("convert static key: %w", err)
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: noise.DHKey{Private: staticPriv, Public: staticPub},
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	localPayload := (&handshakePayload{
		IdentityKey: id.MarshalPublicKey(),
		IdentitySig: id.Sign(append([]byte(payloadSigPrefix), staticPub...)),
	}).MarshalProto()

	var sendCS, recvCS *noise.CipherState
	var remotePayload []byte
	if initiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(conn, hs, localPayload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(conn, hs, localPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	remoteStatic := hs.PeerStatic()
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidStaticKey, len(remoteStatic))
	}

	remotePeer, remotePub, err := verifyPayload(remotePayload, remoteStatic)
	if err != nil {
		return nil, err
	}
	if expected != types.EmptyPeerID && !identity.MatchesPeerID(remotePub, expected) {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected, remotePeer)
	}

	return &SecureConn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  id.PeerID(),
		remotePeer: remotePeer,
		remotePub:  remotePub,
	}, nil
}

// verifyPayload 校验对端 payload 并派生 PeerID
func verifyPayload(data, remoteStatic []byte) (types.PeerID, ed25519.PublicKey, error) {
	var p handshakePayload
	if err := p.UnmarshalProto(data); err != nil {
		return types.EmptyPeerID, nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	pub, err := identity.UnmarshalPublicKey(p.IdentityKey)
	if err != nil {
		return types.EmptyPeerID, nil, fmt.Errorf("remote identity key: %w", err)
	}
	if !ed25519.Verify(pub, append([]byte(payloadSigPrefix), remoteStatic...), p.IdentitySig) {
		return types.EmptyPeerID, nil, ErrInvalidSignature
	}

	peer, err := identity.PeerIDFromPublicKey(pub)
	if err != nil {
		return types.EmptyPeerID, nil, err
	}
	return peer, pub, nil
}

// ============================================================================
// 握手流程
// ============================================================================

// clientHandshake 发起者：-> e；<- e, ee, s, es；-> s, se
func clientHandshake(rw io.ReadWriter, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(rw, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(rw, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}

	// 发起者：cs1 发送，cs2 接收
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 响应者：<- e；-> e, ee, s, es；<- s, se
func serverHandshake(rw io.ReadWriter, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(rw, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}

	// 响应者：cs2 发送，cs1 接收
	return cs2, cs1, remotePayload, nil
}

// ============================================================================
// 密钥转换
// ============================================================================

// ed25519ToCurve25519Private SHA-512(seed) 前 32 字节并 clamp（RFC 7748）
func ed25519ToCurve25519Private(priv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(priv.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

// ed25519ToCurve25519Public Edwards → Montgomery：u = (1 + y) / (1 - y)
func ed25519ToCurve25519Public(pub ed25519.PublicKey) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, err
	}
	return point.BytesMontgomery(), nil
}

// ============================================================================
// 分帧
// ============================================================================

// writeFrame 写入帧（2 字节长度 + 数据）
func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data))) // #nosec G115 -- 调用方保证 ≤ 65535
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取帧（2 字节长度 + 数据）
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
