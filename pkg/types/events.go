package types

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 协议模块向编排器发出的事件
//
// 每个协议模块在自己的包中定义具体事件类型，
// 编排器通过类型分支逐一识别，未识别的事件按调试级别记录。
type Event interface {
	// Module 返回产生事件的模块名
	Module() string
}

// EventSource 事件源
//
// 协议模块返回一个永不结束的事件流；通道只会在模块停止后关闭。
type EventSource interface {
	Events() <-chan Event
}
