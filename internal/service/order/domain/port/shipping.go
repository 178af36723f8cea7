package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// ShippingService 是物流服务的出站端口。
type ShippingService interface {
	// PickOrder 发起拣货打包，返回取件地址。
	PickOrder(ctx context.Context, order *domain.Order) (pickupAddress *domain.Address, err error)

	// ShipOrder 请求承运商揽收，返回运单号。
	ShipOrder(ctx context.Context, order *domain.Order) (shipmentID string, err error)

	// TrackShipment 查询/启动运单跟踪，返回跟踪号与当前跟踪状态。
	// 重复调用必须安全，协调器靠它在重启后恢复跟踪。
	TrackShipment(ctx context.Context, order *domain.Order) (trackingID, trackingStatus string, err error)

	// VerifyDelivery 获取签收凭证。
	VerifyDelivery(ctx context.Context, order *domain.Order) (proofOfDelivery string, err error)

	// ReturnShipment 是发货的补偿操作：把在途运单退回原址。
	ReturnShipment(ctx context.Context, order *domain.Order) error

	// CancelDelivery 是配送请求的补偿操作。
	CancelDelivery(ctx context.Context, order *domain.Order) error
}
