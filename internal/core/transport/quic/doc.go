// Package quic 实现 QUIC v1 传输
//
// 握手使用 TLS 1.3，证书由节点身份密钥自签名，
// 对端 PeerID 从证书公钥派生；ALPN 为 "libp2p"。
//
// 第一个监听的 UDP socket 同时用于出站拨号，
// 使出站连接的源端口与监听端口一致。
package quic
