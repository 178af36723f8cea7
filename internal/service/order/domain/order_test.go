package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/policy"
)

func testDraft(orderNo string) domain.OrderDraft {
	return domain.OrderDraft{
		OrderNo:      orderNo,
		CustomerInfo: domain.CustomerInfo{Name: "Jamie Doe", Email: "jamie@example.com"},
		Items: []domain.Item{
			{ItemID: "widget", Price: 500, Qty: 2},
			{ItemID: "gadget", Price: 100},
		},
		ShippingAddress:  &domain.Address{Street: "10 Main St", City: "Reno", State: "NV", Zip: "89502"},
		CreditCardNumber: "4111 1111 1111 1111",
	}
}

func TestCalcTotal(t *testing.T) {
	t.Run("qty defaults to one", func(t *testing.T) {
		total, err := domain.CalcTotal([]domain.Item{
			{ItemID: "a", Price: 500, Qty: 2},
			{ItemID: "b", Price: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, 1100.0, total)
	})

	t.Run("empty items rejected", func(t *testing.T) {
		_, err := domain.CalcTotal(nil)
		assert.ErrorIs(t, err, domain.ErrItemsInvalid)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		_, err := domain.CalcTotal([]domain.Item{{ItemID: "a", Price: -1}})
		assert.ErrorIs(t, err, domain.ErrItemsInvalid)
	})

	t.Run("missing item id rejected", func(t *testing.T) {
		_, err := domain.CalcTotal([]domain.Item{{Price: 10}})
		assert.ErrorIs(t, err, domain.ErrItemsInvalid)
	})
}

func TestNewOrder(t *testing.T) {
	signature := policy.MustSignaturePolicy("")

	t.Run("high value order requires signature", func(t *testing.T) {
		order, err := domain.NewOrder(testDraft("ORD-1"), signature)
		require.NoError(t, err)

		assert.Equal(t, 1100.0, order.OrderTotal)
		assert.True(t, order.SignatureRequired)
		assert.Equal(t, domain.StatusPending, order.Status)
	})

	t.Run("low value order without request skips signature", func(t *testing.T) {
		draft := testDraft("ORD-2")
		draft.Items = []domain.Item{{ItemID: "widget", Price: 9.99}}
		order, err := domain.NewOrder(draft, signature)
		require.NoError(t, err)
		assert.False(t, order.SignatureRequired)
	})

	t.Run("customer request forces signature", func(t *testing.T) {
		draft := testDraft("ORD-3")
		draft.Items = []domain.Item{{ItemID: "widget", Price: 9.99}}
		draft.SignatureRequested = true
		order, err := domain.NewOrder(draft, signature)
		require.NoError(t, err)
		assert.True(t, order.SignatureRequired)
	})

	t.Run("order number required", func(t *testing.T) {
		draft := testDraft("")
		_, err := domain.NewOrder(draft, signature)
		require.Error(t, err)
	})

	t.Run("card format validated", func(t *testing.T) {
		for _, card := range []string{"", "1234", "4111-1111-1111-111a", "11111111111111111111"} {
			draft := testDraft("ORD-4")
			draft.CreditCardNumber = card
			_, err := domain.NewOrder(draft, signature)
			assert.Error(t, err, "card %q should be rejected", card)
		}
	})

	t.Run("card separators accepted", func(t *testing.T) {
		draft := testDraft("ORD-5")
		draft.CreditCardNumber = "4111-1111-1111-1111"
		_, err := domain.NewOrder(draft, signature)
		assert.NoError(t, err)
	})
}

func TestOrderApply(t *testing.T) {
	signature := policy.MustSignaturePolicy("")
	order, err := domain.NewOrder(testDraft("ORD-10"), signature)
	require.NoError(t, err)

	t.Run("returns new value, original untouched", func(t *testing.T) {
		next, err := order.Apply(domain.Change{domain.FieldPaymentAuthorization: "AUTH-1"})
		require.NoError(t, err)

		assert.Equal(t, "AUTH-1", next.PaymentAuthorization)
		assert.Empty(t, order.PaymentAuthorization)
	})

	t.Run("type mismatch rejected without partial apply", func(t *testing.T) {
		_, err := order.Apply(domain.Change{
			domain.FieldOrderTotal: "not-a-float",
		})
		require.Error(t, err)
		assert.Equal(t, 1100.0, order.OrderTotal)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := order.Apply(domain.Change{domain.Field("bogus"): 1})
		assert.Error(t, err)
	})

	t.Run("clone isolates nested values", func(t *testing.T) {
		cp := order.Clone()
		cp.Items[0].Price = 1
		cp.ShippingAddress.City = "ELSEWHERE"

		assert.Equal(t, 500.0, order.Items[0].Price)
		assert.Equal(t, "Reno", order.ShippingAddress.City)
	})
}
