// Package orchestrator 实现引导节点的事件编排器
//
// 编排器持有唯一的事件循环，把 AutoNAT、身份交换、Kademlia、存活检测与中继
// 五个协议模块（以及 swarm 自身）的事件流合并为一路，逐个分类处理：
//
//   - 身份交换结果中声明支持 Kademlia 协议的节点，其监听地址写入发现表
//   - 中继事件推进预留与电路状态
//   - 其余事件按级别上报
//
// 每轮循环先非阻塞地检查维护定时器（默认 5 分钟），到期时重新引导发现表，
// 然后阻塞等待下一个事件。循环不会因单个事件或引导失败而退出，只有合并后
// 的事件流意外关闭才视为致命错误。
//
// 发现表视图与电路状态只由循环所在的协程修改，无需加锁。
package orchestrator
