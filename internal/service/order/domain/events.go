// internal/service/order/domain/events.go
package domain

import "time"

// TrackingDelivered 是承运商上报"已送达"的跟踪状态值。
// 送达只代表 done=true，COMPLETE 流转是另一个显式事件。
const TrackingDelivered = "orderDelivered"

// OrderEvent 在每次更新提交后发布到 order-events 主题。
// 发布失败只告警，不影响主流程。
type OrderEvent struct {
	OrderNo        string    `json:"orderNo"`
	Status         Status    `json:"orderStatus"`
	ChangedFields  []string  `json:"changedFields"`
	TrackingID     string    `json:"trackingId,omitempty"`
	TrackingStatus string    `json:"trackingStatus,omitempty"`
	CustomerEmail  string    `json:"customerEmail,omitempty"`
	At             time.Time `json:"at"`
}

// FailureReport 是错误/超时上报方写入 failure-reports 主题的消息。
// 两类上报走同一条路径：取消订单并触发补偿链。
type FailureReport struct {
	OrderNo string    `json:"orderNo"`
	Reason  string    `json:"reason"`
	Timeout bool      `json:"timeout"`
	At      time.Time `json:"at"`
}
