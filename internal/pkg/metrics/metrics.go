// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated 统计成功创建的订单数。
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_orders_created_total",
		Help: "Number of orders created.",
	})

	// StatusTransitions 按目标状态统计提交成功的状态流转。
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_status_transitions_total",
		Help: "Number of committed order status transitions.",
	}, []string{"status"})

	// RejectedUpdates 按守卫统计被拒绝的更新。
	RejectedUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_rejected_updates_total",
		Help: "Number of updates rejected by a guard.",
	}, []string{"guard"})

	// CompensationSteps 按步骤与结果统计补偿执行情况。
	CompensationSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_compensation_steps_total",
		Help: "Number of executed compensation steps.",
	}, []string{"step", "result"})

	// AdapterFailures 按外部调用统计失败次数。
	AdapterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_adapter_failures_total",
		Help: "Number of failed external adapter calls.",
	}, []string{"call"})
)
