package noise

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// maxFrameSize 单帧密文上限
const maxFrameSize = 65535

// maxPlaintext 单帧明文上限（扣除 16 字节 AEAD tag）
const maxPlaintext = maxFrameSize - 16

// SecureConn Noise 加密连接
type SecureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.PeerID
	remotePeer types.PeerID
	remotePub  ed25519.PublicKey

	readMu  sync.Mutex
	writeMu sync.Mutex
	readBuf []byte
}

// LocalPeer 返回本地 PeerID
func (c *SecureConn) LocalPeer() types.PeerID {
	return c.localPeer
}

// RemotePeer 返回对端 PeerID
func (c *SecureConn) RemotePeer() types.PeerID {
	return c.remotePeer
}

// RemotePublicKey 返回对端身份公钥
func (c *SecureConn) RemotePublicKey() ed25519.PublicKey {
	return c.remotePub
}

// Read 读取并解密
func (c *SecureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recvCS.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("noise decrypt: %w", err)
		}
		c.readBuf = plaintext
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 加密并写出，超过单帧上限时拆分
func (c *SecureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}

		ciphertext, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("noise encrypt: %w", err)
		}
		if err := writeFrame(c.Conn, ciphertext); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}
