package guard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/application/guard"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/policy"
)

func newTestOrder(t *testing.T, status domain.Status) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(domain.OrderDraft{
		OrderNo:      "ORD-guard",
		CustomerInfo: domain.CustomerInfo{Name: "Jamie Doe", Email: "jamie@example.com"},
		Items: []domain.Item{
			{ItemID: "widget", Price: 500, Qty: 2},
			{ItemID: "gadget", Price: 100},
		},
		ShippingAddress:  &domain.Address{Street: "10 Main St", City: "Reno", State: "NV", Zip: "89502"},
		CreditCardNumber: "4111111111111111",
	}, policy.MustSignaturePolicy(""))
	require.NoError(t, err)

	if status != domain.StatusPending {
		order.Status = status
	}
	return order
}

func newPipeline() *guard.Pipeline {
	return guard.NewPipeline(policy.MustSignaturePolicy(""))
}

func TestFreezeOnCompletion(t *testing.T) {
	p := newPipeline()

	t.Run("terminal order rejects frozen fields", func(t *testing.T) {
		for _, status := range []domain.Status{domain.StatusComplete, domain.StatusCanceled} {
			order := newTestOrder(t, status)
			_, err := p.Run(order, domain.Change{domain.FieldTrackingStatus: "IN_TRANSIT"})
			require.Error(t, err)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "freezeOnCompletion", validationErr.Guard)
		}
	})

	t.Run("receipt stays writable after cancellation", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusCanceled)
		approved, err := p.Run(order, domain.Change{domain.FieldReceipt: "REFUND-ORD-guard"})
		require.NoError(t, err)
		assert.Equal(t, "REFUND-ORD-guard", approved[domain.FieldReceipt])
	})
}

func TestFreezeOnApproval(t *testing.T) {
	p := newPipeline()

	t.Run("commercial fields frozen after leaving PENDING", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusApproved)
		_, err := p.Run(order, domain.Change{domain.FieldCreditCardNumber: "4000000000000002"})
		require.Error(t, err)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "freezeOnApproval", validationErr.Guard)
	})

	t.Run("commercial fields editable while PENDING", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{
			domain.FieldOrderItems: []domain.Item{{ItemID: "widget", Price: 5}},
		})
		assert.NoError(t, err)
	})

	t.Run("operational fields unaffected", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusApproved)
		_, err := p.Run(order, domain.Change{domain.FieldPickupAddress: &domain.Address{Street: "1 Dock Rd"}})
		assert.NoError(t, err)
	})
}

func TestStatusChangeGuard(t *testing.T) {
	p := newPipeline()

	t.Run("legal edge passes", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		approved, err := p.Run(order, domain.Change{domain.FieldOrderStatus: domain.StatusApproved})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, approved[domain.FieldOrderStatus])
	})

	t.Run("illegal edge rejected", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{domain.FieldOrderStatus: domain.StatusComplete})

		var transitionErr *domain.StatusTransitionError
		require.ErrorAs(t, err, &transitionErr)
	})

	t.Run("wrong value type rejected", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{domain.FieldOrderStatus: "APPROVED"})
		assert.Error(t, err)
	})
}

func TestRequiredForCompletion(t *testing.T) {
	p := newPipeline()

	t.Run("completion without proof rejected", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusShipping)
		_, err := p.Run(order, domain.Change{domain.FieldOrderStatus: domain.StatusComplete})

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "requiredForCompletion", validationErr.Guard)
	})

	t.Run("proof in same update passes", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusShipping)
		_, err := p.Run(order, domain.Change{
			domain.FieldOrderStatus:     domain.StatusComplete,
			domain.FieldProofOfDelivery: "POD-1",
		})
		assert.NoError(t, err)
	})

	t.Run("previously stored proof passes", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusShipping)
		order.ProofOfDelivery = "POD-1"
		_, err := p.Run(order, domain.Change{domain.FieldOrderStatus: domain.StatusComplete})
		assert.NoError(t, err)
	})
}

func TestOrderTotalGuards(t *testing.T) {
	p := newPipeline()

	t.Run("claimed total must match item sum", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{domain.FieldOrderTotal: 42.0})

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "orderTotalValid", validationErr.Guard)
	})

	t.Run("matching total passes", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{domain.FieldOrderTotal: 1100.0})
		assert.NoError(t, err)
	})

	t.Run("item change recalculates total", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		approved, err := p.Run(order, domain.Change{
			domain.FieldOrderItems: []domain.Item{{ItemID: "widget", Price: 25, Qty: 2}},
		})
		require.NoError(t, err)
		assert.Equal(t, 50.0, approved[domain.FieldOrderTotal])
	})

	t.Run("invalid replacement items rejected", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		_, err := p.Run(order, domain.Change{domain.FieldOrderItems: []domain.Item{}})
		assert.ErrorIs(t, err, domain.ErrItemsInvalid)
	})
}

func TestSignatureGuard(t *testing.T) {
	p := newPipeline()

	t.Run("item change re-evaluates policy", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		order.SignatureRequired = false
		approved, err := p.Run(order, domain.Change{
			domain.FieldOrderItems: []domain.Item{{ItemID: "tv", Price: 2000}},
		})
		require.NoError(t, err)
		assert.Equal(t, true, approved[domain.FieldSignatureRequired])
	})

	t.Run("signature never drops back to false", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		require.True(t, order.SignatureRequired)

		approved, err := p.Run(order, domain.Change{
			domain.FieldOrderItems: []domain.Item{{ItemID: "pen", Price: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, true, approved[domain.FieldSignatureRequired])
	})

	t.Run("explicit false request cannot clear it", func(t *testing.T) {
		order := newTestOrder(t, domain.StatusPending)
		require.True(t, order.SignatureRequired)

		approved, err := p.Run(order, domain.Change{domain.FieldSignatureRequired: false})
		require.NoError(t, err)
		assert.Equal(t, true, approved[domain.FieldSignatureRequired])
	})
}

func TestPipelineAtomicity(t *testing.T) {
	p := newPipeline()
	order := newTestOrder(t, domain.StatusShipping)

	// 同一个更新里合法字段与非法字段混合：整体拒绝
	ch := domain.Change{
		domain.FieldTrackingStatus: "IN_TRANSIT",
		domain.FieldOrderStatus:    domain.StatusPending, // 非法回退
	}
	_, err := p.Run(order, ch)
	require.Error(t, err)

	// 传入的 Change 不被守卫改写
	assert.Equal(t, "IN_TRANSIT", ch[domain.FieldTrackingStatus])
	assert.Len(t, ch, 2)
}

func TestCanDelete(t *testing.T) {
	assert.Error(t, guard.CanDelete(nil))

	for _, status := range []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusShipping} {
		order := newTestOrder(t, status)
		err := guard.CanDelete(order)
		require.Error(t, err, "status %s should not be deletable", status)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "readyToDelete", validationErr.Guard)
	}

	for _, status := range []domain.Status{domain.StatusComplete, domain.StatusCanceled} {
		assert.NoError(t, guard.CanDelete(newTestOrder(t, status)))
	}
}
