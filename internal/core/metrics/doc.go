// Package metrics 提供 Prometheus 指标
//
// 指标由编排器在处理每个事件后更新：
//
//	bootnode_events_total{module,kind}   各模块事件计数
//	bootnode_bootstrap_total{outcome}    引导命令结果计数
//	bootnode_routing_table_peers         发现表节点数
//	bootnode_relay_reservations          活跃中继预留数
//	bootnode_relay_circuits              活跃中继电路数
//	bootnode_relay_bytes_total           中继转发字节数
//
// 配置 metrics.enable 后通过 HTTP 暴露 /metrics 端点；关闭时指标仍会采集。
package metrics
