// Package identify 实现身份交换协议
//
// 每个新连接建立后主动请求对端身份（/ipfs/id/1.0.0），
// 并在本地监听地址变化时向已知支持推送的节点推送（/ipfs/id/push/1.0.0）。
//
// 收到的身份信息：
//   - 公钥必须与连接的对端 PeerID 匹配
//   - 监听地址写入地址簿，协议列表写入协议簿
//   - 对端看到的本节点地址交给 host 作为观测地址
//
// 结果以 Received / Sent / Pushed / Error 事件发出。
package identify
