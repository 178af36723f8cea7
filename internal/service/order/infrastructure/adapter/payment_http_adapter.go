// internal/service/order/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"
	"fmt"
	"net/url"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// PaymentHTTPAdapter 是 port.PaymentService 的 HTTP 实现。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
}

func NewPaymentHTTPAdapter(client *httpclient.Client) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client}
}

// authorizeResponse 是支付服务授权接口的响应体。
type authorizeResponse struct {
	Authorization string `json:"authorization"`
}

// refundResponse 是退款接口的响应体。
type refundResponse struct {
	Receipt string `json:"receipt"`
}

// AuthorizePayment 请求支付授权，返回授权凭据。
func (a *PaymentHTTPAdapter) AuthorizePayment(ctx context.Context, order *domain.Order) (string, error) {
	params := url.Values{}
	params.Set("order_no", order.OrderNo)
	params.Set("card", order.CreditCardNumber)
	params.Set("amount", fmt.Sprintf("%.2f", order.OrderTotal))

	var resp authorizeResponse
	if err := a.client.CallService(ctx, constants.PaymentService, constants.PaymentAuthorizePath, params, &resp); err != nil {
		return "", err
	}
	return resp.Authorization, nil
}

// CompletePayment 凭授权完成扣款。
func (a *PaymentHTTPAdapter) CompletePayment(ctx context.Context, order *domain.Order) error {
	params := url.Values{}
	params.Set("order_no", order.OrderNo)
	params.Set("authorization", order.PaymentAuthorization)
	return a.client.CallService(ctx, constants.PaymentService, constants.PaymentCompletePath, params, nil)
}

// RefundPayment 退款并返回凭证。支付服务侧保证幂等：
// 未发生过支付的订单退款返回空凭证而不是错误。
func (a *PaymentHTTPAdapter) RefundPayment(ctx context.Context, order *domain.Order) (string, error) {
	params := url.Values{}
	params.Set("order_no", order.OrderNo)
	params.Set("authorization", order.PaymentAuthorization)

	var resp refundResponse
	if err := a.client.CallService(ctx, constants.PaymentService, constants.PaymentRefundPath, params, &resp); err != nil {
		return "", err
	}
	return resp.Receipt, nil
}
