// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrItemsInvalid 表示订单条目为空或不合法，无法计算总价。
var ErrItemsInvalid = errors.New("order items are missing or invalid")

// ErrOrderNotFound 由仓储在订单不存在时返回。
var ErrOrderNotFound = errors.New("order not found")

// ValidationError 表示某个守卫拒绝了整个更新。
// 同步返回给 Update 的调用方，订单保持不变。
type ValidationError struct {
	Guard  string // 拒绝更新的守卫名
	Field  Field  // 相关字段，可为空
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("update rejected by %s: field %q: %s", e.Guard, e.Field, e.Reason)
	}
	return fmt.Sprintf("update rejected by %s: %s", e.Guard, e.Reason)
}

func NewValidationError(guard string, field Field, reason string) *ValidationError {
	return &ValidationError{Guard: guard, Field: field, Reason: reason}
}

// PayloadError 表示某个续延（continuation）收到了缺失或为空的必填载荷。
// 只拒绝当前这次待执行的操作，本身不触发补偿。
type PayloadError struct {
	Continuation string
	Field        Field
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("continuation %q requires a non-empty %q", e.Continuation, e.Field)
}

func NewPayloadError(continuation string, field Field) *PayloadError {
	return &PayloadError{Continuation: continuation, Field: field}
}
