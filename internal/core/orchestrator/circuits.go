package orchestrator

import (
	"fmt"

	"github.com/google/uuid"

	relay "github.com/dep2p/go-bootnode/internal/core/relay/server"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// State 中继预留或电路的生命周期状态
type State int

const (
	StateNone State = iota
	StateAccepted
	StateRenewed
	StateDenied
	StateTimedOut
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateRenewed:
		return "renewed"
	case StateDenied:
		return "denied"
	case StateTimedOut:
		return "timed_out"
	case StateClosed:
		return "closed"
	default:
		return "none"
	}
}

// active 是否为非终止状态
func (s State) active() bool {
	return s == StateAccepted || s == StateRenewed
}

// Circuit 活跃电路
type Circuit struct {
	ID  uuid.UUID
	Src types.PeerID
	Dst types.PeerID
}

// Transition 一次状态转换
type Transition struct {
	From State
	To   State
}

// TransitionError 不合法的状态转换
type TransitionError struct {
	Event string
	From  State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s in state %s", ErrInvalidTransition, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CircuitTracker 由中继事件推导的预留与电路状态
//
// 预留按来源节点记录，电路按电路 ID 记录；进入终止状态即移除。
// 非并发安全，只由事件循环访问。
type CircuitTracker struct {
	reservations map[types.PeerID]State
	circuits     map[uuid.UUID]Circuit
	denied       int
}

// NewCircuitTracker 创建跟踪器
func NewCircuitTracker() *CircuitTracker {
	return &CircuitTracker{
		reservations: make(map[types.PeerID]State),
		circuits:     make(map[uuid.UUID]Circuit),
	}
}

// Apply 按中继事件推进状态
//
// 非中继生命周期事件返回 ok=false；不合法的转换返回 *TransitionError，状态不变。
func (t *CircuitTracker) Apply(ev types.Event) (tr Transition, ok bool, err error) {
	switch e := ev.(type) {
	case relay.ReservationReqAccepted:
		from := t.reservations[e.Src]
		switch {
		case !e.Renewed && !from.active():
			tr = Transition{From: from, To: StateAccepted}
		case e.Renewed && from.active():
			tr = Transition{From: from, To: StateRenewed}
		default:
			return tr, true, &TransitionError{Event: "ReservationReqAccepted", From: from}
		}
		t.reservations[e.Src] = tr.To
		return tr, true, nil

	case relay.ReservationReqDenied:
		// 被拒绝的是这一次请求，已有预留（如经中继连接重复预留）保持不变
		return Transition{From: StateNone, To: StateDenied}, true, nil

	case relay.ReservationTimedOut:
		return t.endReservation("ReservationTimedOut", e.Src, StateTimedOut)

	case relay.ReservationClosed:
		return t.endReservation("ReservationClosed", e.Src, StateClosed)

	case relay.CircuitReqAccepted:
		if _, exists := t.circuits[e.ID]; exists {
			return tr, true, &TransitionError{Event: "CircuitReqAccepted", From: StateAccepted}
		}
		t.circuits[e.ID] = Circuit{ID: e.ID, Src: e.Src, Dst: e.Dst}
		return Transition{From: StateNone, To: StateAccepted}, true, nil

	case relay.CircuitReqDenied:
		t.denied++
		return Transition{From: StateNone, To: StateDenied}, true, nil

	case relay.CircuitClosed:
		if _, exists := t.circuits[e.ID]; !exists {
			return tr, true, &TransitionError{Event: "CircuitClosed", From: StateNone}
		}
		delete(t.circuits, e.ID)
		return Transition{From: StateAccepted, To: StateClosed}, true, nil
	}
	return tr, false, nil
}

func (t *CircuitTracker) endReservation(event string, src types.PeerID, to State) (Transition, bool, error) {
	from := t.reservations[src]
	if !from.active() {
		return Transition{}, true, &TransitionError{Event: event, From: from}
	}
	delete(t.reservations, src)
	return Transition{From: from, To: to}, true, nil
}

// Reservation 返回来源节点的预留状态
func (t *CircuitTracker) Reservation(src types.PeerID) State {
	return t.reservations[src]
}

// Circuit 返回活跃电路
func (t *CircuitTracker) Circuit(id uuid.UUID) (Circuit, bool) {
	c, ok := t.circuits[id]
	return c, ok
}

// Reservations 返回活跃预留数
func (t *CircuitTracker) Reservations() int {
	return len(t.reservations)
}

// Circuits 返回活跃电路数
func (t *CircuitTracker) Circuits() int {
	return len(t.circuits)
}

// DeniedCircuits 返回累计被拒绝的电路请求数
func (t *CircuitTracker) DeniedCircuits() int {
	return t.denied
}
