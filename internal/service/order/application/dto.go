// internal/service/order/application/dto.go
package application

import "orderflow/internal/service/order/domain"

// CreateOrderRequest 是接口层提交的下单请求。
type CreateOrderRequest struct {
	CustomerInfo      domain.CustomerInfo `json:"customerInfo"`
	Items             []domain.Item       `json:"orderItems"`
	BillingAddress    *domain.Address     `json:"billingAddress,omitempty"`
	ShippingAddress   *domain.Address     `json:"shippingAddress,omitempty"`
	CreditCardNumber  string              `json:"creditCardNumber"`
	SignatureRequired bool                `json:"signatureRequired,omitempty"`
}

// ToDraft 把请求 DTO 转成领域工厂的输入。
func (r *CreateOrderRequest) ToDraft(orderNo string) domain.OrderDraft {
	return domain.OrderDraft{
		OrderNo:            orderNo,
		CustomerInfo:       r.CustomerInfo,
		Items:              r.Items,
		BillingAddress:     r.BillingAddress,
		ShippingAddress:    r.ShippingAddress,
		CreditCardNumber:   r.CreditCardNumber,
		SignatureRequested: r.SignatureRequired,
	}
}

// CreateOrderResponse 立即返回给客户端：订单已受理，外部流程异步推进。
type CreateOrderResponse struct {
	OrderNo string        `json:"orderNo"`
	Status  domain.Status `json:"orderStatus"`
	Message string        `json:"message"`
}
