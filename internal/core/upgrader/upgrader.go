package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/internal/util/logger"
	pkgif "github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var log = logger.Logger("core/upgrader")

// Upgrader 连接升级器
type Upgrader struct {
	identity *identity.Identity
	config   Config
}

// New 创建升级器
func New(id *identity.Identity, cfg Config) (*Upgrader, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}
	return &Upgrader{identity: id, config: cfg}, nil
}

// Upgrade 升级连接
//
// 参数：
//   - conn: 原始 TCP 连接（升级失败时会被关闭）
//   - dir: 连接方向，出站方作为 Noise 发起者与 yamux 客户端
//   - remotePeer: 期望的对端身份，出站必填
//   - remoteAddr: 对端多地址
func (u *Upgrader) Upgrade(
	ctx context.Context,
	conn net.Conn,
	dir pkgif.Direction,
	remotePeer types.PeerID,
	remoteAddr types.Multiaddr,
) (*Conn, error) {
	if dir == pkgif.DirOutbound && remotePeer.IsEmpty() {
		conn.Close()
		return nil, ErrNoPeerID
	}

	ctx, cancel := context.WithTimeout(ctx, u.config.HandshakeTimeout)
	defer cancel()

	isServer := dir == pkgif.DirInbound

	// 1. 协商安全协议
	if err := negotiate(ctx, conn, protocolids.Noise, isServer); err != nil {
		conn.Close()
		return nil, fmt.Errorf("security negotiation: %w", err)
	}

	// 2. Noise 握手
	if d, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(d)
	}
	secConn, err := noise.Handshake(conn, u.identity, remotePeer, !isServer)
	if err != nil {
		log.Debug("安全握手失败", "direction", dir, "error", err)
		conn.Close()
		return nil, fmt.Errorf("security handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	// 3. 协商多路复用器
	if err := negotiate(ctx, secConn, protocolids.Yamux, isServer); err != nil {
		secConn.Close()
		return nil, fmt.Errorf("muxer negotiation: %w", err)
	}

	var session *yamux.Session
	if isServer {
		session, err = yamux.Server(secConn, u.config.yamuxConfig())
	} else {
		session, err = yamux.Client(secConn, u.config.yamuxConfig())
	}
	if err != nil {
		secConn.Close()
		return nil, fmt.Errorf("muxer setup: %w", err)
	}

	localAddr, _ := types.FromNetAddr(conn.LocalAddr())

	log.Debug("连接升级成功",
		"remotePeer", secConn.RemotePeer().ShortString(),
		"direction", dir)

	return &Conn{
		session:    session,
		localPeer:  secConn.LocalPeer(),
		remotePeer: secConn.RemotePeer(),
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		direction:  dir,
	}, nil
}
