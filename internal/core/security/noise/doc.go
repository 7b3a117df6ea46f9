// Package noise 实现 TCP 连接上的 Noise 安全通道
//
// 握手采用 Noise XX（25519 / ChaChaPoly / SHA256）：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 把 Noise 静态密钥绑定到节点身份：
//   - identity_key: protobuf 序列化的 Ed25519 身份公钥
//   - identity_sig: Sign("noise-libp2p-static-key:" + curve25519 静态公钥)
//
// Noise 静态密钥由身份私钥确定性地转换得到（Ed25519 → X25519），
// 同一身份的静态公钥在不同连接间保持一致。
//
// 握手完成后每条消息以 2 字节大端长度前缀分帧，单帧密文不超过 65535 字节。
package noise
