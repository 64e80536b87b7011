// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态
type State string

const (
	StatePending           State = "PENDING"            // 已创建，尚未进入支付
	StatePaymentPending    State = "PAYMENT_PENDING"    // 等待支付
	StatePaymentProcessing State = "PAYMENT_PROCESSING" // 支付处理中，等待结果
	StateCompleted         State = "COMPLETED"          // 支付成功，终态
	StatePaymentFailed     State = "PAYMENT_FAILED"     // 支付失败
	StateCancelled         State = "CANCELLED"          // 已取消，终态
)

// transitions 是订单状态机的转移表：当前状态 -> 允许的下一个状态
var transitions = map[State][]State{
	StatePending:           {StatePaymentPending, StateCancelled},
	StatePaymentPending:    {StatePaymentProcessing, StateCancelled},
	StatePaymentProcessing: {StateCompleted, StatePaymentFailed, StateCancelled},
	StatePaymentFailed:     {StateCancelled},
}

// CanTransitionTo 报告是否允许从 s 转移到 next
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal 终态没有任何出边
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}
