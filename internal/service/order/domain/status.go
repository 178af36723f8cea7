// internal/service/order/domain/status.go
package domain

import "fmt"

// Status 定义订单生命周期状态。
type Status string

const (
	StatusPending  Status = "PENDING"  // 初始状态，等待地址校验与支付授权
	StatusApproved Status = "APPROVED" // 已审批，进入拣货打包
	StatusShipping Status = "SHIPPING" // 运输中，跟踪已启动
	StatusComplete Status = "COMPLETE" // 终态：已完成
	StatusCanceled Status = "CANCELED" // 终态：已取消，补偿链负责回滚
)

// AllStatuses 返回全部合法状态。动作表在构造时据此做完整性校验。
func AllStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusShipping, StatusComplete, StatusCanceled}
}

// allowedTransitions 枚举所有合法的状态边。不在表中的流转一律拒绝，
// 包括被显式禁止的回退边（APPROVED→PENDING 等）和跳跃边（PENDING→SHIPPING 等）。
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusCanceled: true},
	StatusApproved: {StatusShipping: true, StatusCanceled: true},
	StatusShipping: {StatusComplete: true, StatusCanceled: true},
	StatusComplete: {},
	StatusCanceled: {},
}

// StatusTransitionError 表示一次非法的状态流转请求。
type StatusTransitionError struct {
	From Status
	To   Status
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("illegal order status transition: %s -> %s", e.From, e.To)
}

// Valid 判断状态值本身是否合法。
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal 判断是否为终态。终态订单不再接受任何字段变更。
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCanceled
}

// CanTransitionTo 校验 s -> next 是否为合法边。
// 非法时返回 *StatusTransitionError，订单保持不变由调用方保证。
func (s Status) CanTransitionTo(next Status) error {
	if !next.Valid() {
		return &StatusTransitionError{From: s, To: next}
	}
	if s == next {
		// 重复写同一状态视为非法流转，防止动作被重复触发
		return &StatusTransitionError{From: s, To: next}
	}
	if !allowedTransitions[s][next] {
		return &StatusTransitionError{From: s, To: next}
	}
	return nil
}
