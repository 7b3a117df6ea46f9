// Package host 实现协议模块所见的节点视图
//
// Host 建立在 swarm 之上：
//
//   - 协议协商：入站流通过 multistream-select 分发到已注册的处理函数，
//     出站流按顺序协商调用方给出的协议
//   - 地址管理：监听地址（通配地址展开为各网卡地址）、
//     观测地址（多个不同节点报告后才启用）与已确认的外部地址
//   - 网络概况：NetworkInfo 汇总连接数与拨号状态
//
// 所有协议模块只依赖 pkgif.Host 接口。
package host
