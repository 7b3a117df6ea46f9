// Package eventbus 提供协议模块的事件发射器
//
// 每个协议模块持有一个 Emitter，编排器通过 Events() 读取该模块的事件流。
// 订阅后发射是阻塞的：事件按发生顺序交付，不会因消费者慢而丢弃；
// 发射器关闭后所有阻塞中的 Emit 立即返回 ErrEmitterClosed。
package eventbus
