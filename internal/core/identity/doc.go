// Package identity 管理引导节点的网络身份
//
// 节点身份由一个 Ed25519 密钥对构成，进程生命周期内不可变：
//   - 私钥：签名 Noise 握手 payload、生成 QUIC TLS 证书
//   - 公钥：按 libp2p 规则序列化（protobuf PublicKey）
//   - PeerID：公钥序列化结果的 multihash（≤42 字节内嵌，否则 sha2-256）
//
// # 密钥来源
//
//	// 十六进制种子（32 字节）
//	id, err := identity.FromHexSeed("0f1e...")
//
//	// 随机生成
//	id, err := identity.Generate()
//
//	// 按配置（{RANDOM} 哨兵值表示随机生成）
//	id, err := identity.FromConfig(cfg.Identity)
//
// # Fx 模块
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    identity.Module(),
//	    fx.Invoke(func(id *identity.Identity) {
//	        fmt.Println(id.PeerID())
//	    }),
//	)
package identity
