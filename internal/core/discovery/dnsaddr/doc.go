// Package dnsaddr 解析 /dnsaddr 多地址
//
// 遵循 libp2p dnsaddr 约定，查询 _dnsaddr.<host> 的 TXT 记录：
//
//	_dnsaddr.bootstrap.libp2p.io TXT "dnsaddr=/dnsaddr/ams-2.bootstrap.libp2p.io"
//	_dnsaddr.ams-2.bootstrap.libp2p.io TXT "dnsaddr=/ip4/147.75.83.83/tcp/4001/p2p/QmbLHAnMoJPWSCR5Zhtx6BHJX9KiKNN6tpvbUcqanj75Nb"
//
// 嵌套的 /dnsaddr 记录递归展开；输入带 /p2p/<id> 后缀时只保留同一节点的地址。
// TXT 查询通过 miekg/dns 直接向 resolv.conf 中的服务器发出。
package dnsaddr
