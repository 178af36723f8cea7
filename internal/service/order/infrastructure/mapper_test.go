package infrastructure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
)

func TestOrderModelRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	order := &domain.Order{
		OrderNo:      "ORD-mapper",
		CustomerInfo: domain.CustomerInfo{Name: "Jamie Doe", Email: "jamie@example.com"},
		Items: []domain.Item{
			{ItemID: "widget", Price: 500, Qty: 2},
		},
		OrderTotal:           1000,
		ShippingAddress:      &domain.Address{Street: "10 Main St", City: "Reno", State: "NV", Zip: "89502"},
		CreditCardNumber:     "4111111111111111",
		PaymentAuthorization: "AUTH-1",
		SignatureRequired:    true,
		Status:               domain.StatusApproved,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	model, err := infrastructure.ToOrderModel(order)
	require.NoError(t, err)
	assert.Equal(t, "ORD-mapper", model.OrderNo)
	assert.Equal(t, "APPROVED", model.Status)

	restored, err := infrastructure.ToDomainOrder(model)
	require.NoError(t, err)
	assert.Equal(t, order, restored)
}

func TestOrderModelNilAddresses(t *testing.T) {
	order := &domain.Order{
		OrderNo: "ORD-sparse",
		Items:   []domain.Item{{ItemID: "widget", Price: 1}},
		Status:  domain.StatusPending,
	}

	model, err := infrastructure.ToOrderModel(order)
	require.NoError(t, err)

	restored, err := infrastructure.ToDomainOrder(model)
	require.NoError(t, err)
	assert.Nil(t, restored.BillingAddress)
	assert.Nil(t, restored.PickupAddress)
	assert.Equal(t, order, restored)
}
