// Package interfaces 定义引导节点内部各层之间的公共接口
//
// 传输层（TCP/QUIC）、连接群（swarm）与协议模块之间只通过这里的接口交互：
//
//	Transport ──Dial/Listen──▶ Connection ──NewStream/AcceptStream──▶ Stream
//	Host      ──Connect/NewStream/SetStreamHandler──▶ 协议模块
//	Peerstore ──地址簿 + 协议簿
package interfaces
