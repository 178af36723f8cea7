// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"
	"fmt"

	"orderflow/internal/service/order/domain"
)

// ToOrderModel 把领域订单转成数据库模型。
func ToOrderModel(order *domain.Order) (*OrderModel, error) {
	customer, err := marshalJSON(order.CustomerInfo)
	if err != nil {
		return nil, err
	}
	items, err := marshalJSON(order.Items)
	if err != nil {
		return nil, err
	}
	billing, err := marshalJSON(order.BillingAddress)
	if err != nil {
		return nil, err
	}
	shipping, err := marshalJSON(order.ShippingAddress)
	if err != nil {
		return nil, err
	}
	pickup, err := marshalJSON(order.PickupAddress)
	if err != nil {
		return nil, err
	}

	return &OrderModel{
		OrderNo:              order.OrderNo,
		CustomerInfo:         customer,
		Items:                items,
		OrderTotal:           order.OrderTotal,
		BillingAddress:       billing,
		ShippingAddress:      shipping,
		CreditCardNumber:     order.CreditCardNumber,
		PaymentAuthorization: order.PaymentAuthorization,
		Receipt:              order.Receipt,
		PickupAddress:        pickup,
		ShipmentID:           order.ShipmentID,
		TrackingID:           order.TrackingID,
		TrackingStatus:       order.TrackingStatus,
		ProofOfDelivery:      order.ProofOfDelivery,
		SignatureRequired:    order.SignatureRequired,
		Status:               string(order.Status),
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}, nil
}

// ToDomainOrder 把数据库模型还原成领域订单。
func ToDomainOrder(model *OrderModel) (*domain.Order, error) {
	order := &domain.Order{
		OrderNo:              model.OrderNo,
		OrderTotal:           model.OrderTotal,
		CreditCardNumber:     model.CreditCardNumber,
		PaymentAuthorization: model.PaymentAuthorization,
		Receipt:              model.Receipt,
		ShipmentID:           model.ShipmentID,
		TrackingID:           model.TrackingID,
		TrackingStatus:       model.TrackingStatus,
		ProofOfDelivery:      model.ProofOfDelivery,
		SignatureRequired:    model.SignatureRequired,
		Status:               domain.Status(model.Status),
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}

	if err := unmarshalJSON(model.CustomerInfo, &order.CustomerInfo); err != nil {
		return nil, fmt.Errorf("order %s: customer_info: %w", model.OrderNo, err)
	}
	if err := unmarshalJSON(model.Items, &order.Items); err != nil {
		return nil, fmt.Errorf("order %s: items: %w", model.OrderNo, err)
	}
	if err := unmarshalJSON(model.BillingAddress, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("order %s: billing_address: %w", model.OrderNo, err)
	}
	if err := unmarshalJSON(model.ShippingAddress, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("order %s: shipping_address: %w", model.OrderNo, err)
	}
	if err := unmarshalJSON(model.PickupAddress, &order.PickupAddress); err != nil {
		return nil, fmt.Errorf("order %s: pickup_address: %w", model.OrderNo, err)
	}
	return order, nil
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON(data string, out interface{}) error {
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}
