package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// PaymentService 是支付服务的出站端口。
type PaymentService interface {
	// AuthorizePayment 为订单做支付授权，返回授权凭据。
	AuthorizePayment(ctx context.Context, order *domain.Order) (authorization string, err error)

	// CompletePayment 完成扣款。
	CompletePayment(ctx context.Context, order *domain.Order) error

	// RefundPayment 是授权/扣款的补偿操作，返回退款凭证。
	// 对未发生过支付的订单调用必须安全（幂等）。
	RefundPayment(ctx context.Context, order *domain.Order) (receipt string, err error)
}
