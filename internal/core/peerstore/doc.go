// Package peerstore 实现内存节点信息存储
//
// 地址簿按 TTL 过期，种子节点与显式加入的地址使用 PermanentAddrTTL；
// 协议簿记录 identify 得到的对端协议列表。
//
// 节点信息不做持久化，重启后由种子注册与 Kademlia 引导重建。
package peerstore
