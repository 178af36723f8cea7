package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// OrderEventProducer 把订单事件发布给下游（通知、跟踪推送等）。
type OrderEventProducer interface {
	PublishOrderEvent(ctx context.Context, event *domain.OrderEvent) error
}

// TrackingStore 记录跟踪启动标记和最近一次跟踪状态，
// SHIPPING 动作借它做到重启后安全重入。
type TrackingStore interface {
	// MarkTrackingStarted 打跟踪启动标记，返回之前是否已标记过。
	MarkTrackingStarted(ctx context.Context, orderNo string) (alreadyStarted bool, err error)

	// SaveTrackingStatus 缓存最近一次跟踪状态。
	SaveTrackingStatus(ctx context.Context, orderNo, trackingStatus string) error

	// LastTrackingStatus 读取缓存的跟踪状态，没有时返回空串。
	LastTrackingStatus(ctx context.Context, orderNo string) (string, error)
}

// OrderLocker 对单个订单做互斥，保证守卫看到一致的前置快照。
// 进程内实现用 mutex，跨进程实现用 ZooKeeper。
type OrderLocker interface {
	// LockOrder 抢占订单锁，返回释放函数。
	LockOrder(ctx context.Context, orderNo string) (unlock func(), err error)
}
