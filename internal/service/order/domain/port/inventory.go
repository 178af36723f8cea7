package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// InventoryService 是库存服务的出站端口。
// 协调器只在补偿链里用到它：把订单占用的库存退回。
type InventoryService interface {
	// ReturnReservation 释放订单的库存预占。
	// 对从未预占过的订单调用必须安全（幂等）。
	ReturnReservation(ctx context.Context, order *domain.Order) error
}
