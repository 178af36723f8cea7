// internal/service/order/infrastructure/adapter/shipping_http_adapter.go
package adapter

import (
	"context"
	"net/url"
	"strconv"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// ShippingHTTPAdapter 同时实现 port.ShippingService 和 port.InventoryService：
// 演示环境里库存归还也由物流服务代答，两组接口都是简单的 HTTP 调用。
type ShippingHTTPAdapter struct {
	client *httpclient.Client
}

func NewShippingHTTPAdapter(client *httpclient.Client) *ShippingHTTPAdapter {
	return &ShippingHTTPAdapter{client: client}
}

type pickResponse struct {
	PickupAddress *domain.Address `json:"pickupAddress"`
}

type shipResponse struct {
	ShipmentID string `json:"shipmentId"`
}

type trackResponse struct {
	TrackingID     string `json:"trackingId"`
	TrackingStatus string `json:"trackingStatus"`
}

type verifyResponse struct {
	ProofOfDelivery string `json:"proofOfDelivery"`
}

// PickOrder 发起拣货打包。
func (a *ShippingHTTPAdapter) PickOrder(ctx context.Context, order *domain.Order) (*domain.Address, error) {
	var resp pickResponse
	if err := a.client.CallService(ctx, constants.ShippingService, constants.ShippingPickPath, a.orderParams(order), &resp); err != nil {
		return nil, err
	}
	return resp.PickupAddress, nil
}

// ShipOrder 请求承运商揽收。
func (a *ShippingHTTPAdapter) ShipOrder(ctx context.Context, order *domain.Order) (string, error) {
	params := a.orderParams(order)
	params.Set("signature_required", strconv.FormatBool(order.SignatureRequired))

	var resp shipResponse
	if err := a.client.CallService(ctx, constants.ShippingService, constants.ShippingShipPath, params, &resp); err != nil {
		return "", err
	}
	return resp.ShipmentID, nil
}

// TrackShipment 查询运单跟踪状态。
func (a *ShippingHTTPAdapter) TrackShipment(ctx context.Context, order *domain.Order) (string, string, error) {
	params := a.orderParams(order)
	params.Set("shipment_id", order.ShipmentID)

	var resp trackResponse
	if err := a.client.CallService(ctx, constants.ShippingService, constants.ShippingTrackPath, params, &resp); err != nil {
		return "", "", err
	}
	return resp.TrackingID, resp.TrackingStatus, nil
}

// VerifyDelivery 获取签收凭证。
func (a *ShippingHTTPAdapter) VerifyDelivery(ctx context.Context, order *domain.Order) (string, error) {
	params := a.orderParams(order)
	params.Set("tracking_id", order.TrackingID)

	var resp verifyResponse
	if err := a.client.CallService(ctx, constants.ShippingService, constants.ShippingVerifyPath, params, &resp); err != nil {
		return "", err
	}
	return resp.ProofOfDelivery, nil
}

// ReturnShipment 把在途运单退回原址（补偿操作，幂等）。
func (a *ShippingHTTPAdapter) ReturnShipment(ctx context.Context, order *domain.Order) error {
	params := a.orderParams(order)
	params.Set("shipment_id", order.ShipmentID)
	return a.client.CallService(ctx, constants.ShippingService, constants.ShippingReturnPath, params, nil)
}

// CancelDelivery 取消配送请求（补偿操作，幂等）。
func (a *ShippingHTTPAdapter) CancelDelivery(ctx context.Context, order *domain.Order) error {
	params := a.orderParams(order)
	params.Set("tracking_id", order.TrackingID)
	return a.client.CallService(ctx, constants.ShippingService, constants.ShippingCancelPath, params, nil)
}

// ReturnReservation 释放订单的库存预占（补偿操作，幂等）。
func (a *ShippingHTTPAdapter) ReturnReservation(ctx context.Context, order *domain.Order) error {
	return a.client.CallService(ctx, constants.ShippingService, constants.InventoryReturnPath, a.orderParams(order), nil)
}

func (a *ShippingHTTPAdapter) orderParams(order *domain.Order) url.Values {
	params := url.Values{}
	params.Set("order_no", order.OrderNo)
	return params
}
