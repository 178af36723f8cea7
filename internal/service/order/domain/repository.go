// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义订单聚合的持久化接口。
// 实现方必须保证当前进程能读到自己刚提交的写入，守卫依赖这一点
// 拿到一致的前置快照。
type OrderRepository interface {
	// Save 保存订单（创建或整体更新）。
	Save(ctx context.Context, order *Order) error

	// FindByOrderNo 按订单号查找，不存在时返回 ErrOrderNotFound。
	FindByOrderNo(ctx context.Context, orderNo string) (*Order, error)

	// Delete 物理删除订单。只有终态订单才允许删除，校验在应用层。
	Delete(ctx context.Context, orderNo string) error
}
