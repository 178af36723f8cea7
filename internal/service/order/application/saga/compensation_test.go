package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
)

type fakePayment struct {
	refundReceipt string
	refundErr     error
	refundCalls   int
}

func (f *fakePayment) AuthorizePayment(ctx context.Context, order *domain.Order) (string, error) {
	return "AUTH-test", nil
}
func (f *fakePayment) CompletePayment(ctx context.Context, order *domain.Order) error { return nil }
func (f *fakePayment) RefundPayment(ctx context.Context, order *domain.Order) (string, error) {
	f.refundCalls++
	return f.refundReceipt, f.refundErr
}

type fakeShipping struct {
	returnErr   error
	returnCalls int
	cancelCalls int
}

func (f *fakeShipping) PickOrder(ctx context.Context, order *domain.Order) (*domain.Address, error) {
	return &domain.Address{}, nil
}
func (f *fakeShipping) ShipOrder(ctx context.Context, order *domain.Order) (string, error) {
	return "SHP-test", nil
}
func (f *fakeShipping) TrackShipment(ctx context.Context, order *domain.Order) (string, string, error) {
	return "TRK-test", "IN_TRANSIT", nil
}
func (f *fakeShipping) VerifyDelivery(ctx context.Context, order *domain.Order) (string, error) {
	return "POD-test", nil
}
func (f *fakeShipping) ReturnShipment(ctx context.Context, order *domain.Order) error {
	f.returnCalls++
	return f.returnErr
}
func (f *fakeShipping) CancelDelivery(ctx context.Context, order *domain.Order) error {
	f.cancelCalls++
	return nil
}

type fakeInventory struct {
	calls int
}

func (f *fakeInventory) ReturnReservation(ctx context.Context, order *domain.Order) error {
	f.calls++
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{OrderNo: "ORD-saga", Status: domain.StatusCanceled}
}

func TestCompensationChainRunsAllSteps(t *testing.T) {
	payment := &fakePayment{refundReceipt: "REFUND-ORD-saga"}
	shipping := &fakeShipping{}
	inventory := &fakeInventory{}

	var recordedOrderNo, recordedReceipt string
	chain := saga.NewCompensationChain(saga.Deps{
		Payment:   payment,
		Shipping:  shipping,
		Inventory: inventory,
		RecordReceipt: func(ctx context.Context, orderNo, receipt string) error {
			recordedOrderNo, recordedReceipt = orderNo, receipt
			return nil
		},
		Tracer: noop.NewTracerProvider().Tracer("test"),
	})

	chain.Trigger(context.Background(), testOrder())

	assert.Equal(t, 1, payment.refundCalls)
	assert.Equal(t, 1, shipping.returnCalls)
	assert.Equal(t, 1, shipping.cancelCalls)
	assert.Equal(t, 1, inventory.calls)
	assert.Equal(t, "ORD-saga", recordedOrderNo)
	assert.Equal(t, "REFUND-ORD-saga", recordedReceipt)
}

func TestCompensationChainContinuesPastFailures(t *testing.T) {
	payment := &fakePayment{refundErr: errors.New("payment gateway down")}
	shipping := &fakeShipping{returnErr: errors.New("carrier unreachable")}
	inventory := &fakeInventory{}

	chain := saga.NewCompensationChain(saga.Deps{
		Payment:   payment,
		Shipping:  shipping,
		Inventory: inventory,
		Tracer:    noop.NewTracerProvider().Tracer("test"),
	})

	// 前两步失败不影响后续步骤
	chain.Trigger(context.Background(), testOrder())

	assert.Equal(t, 1, payment.refundCalls)
	assert.Equal(t, 1, shipping.returnCalls)
	assert.Equal(t, 1, shipping.cancelCalls)
	assert.Equal(t, 1, inventory.calls)
}

func TestCompensationChainEmptyReceiptNotRecorded(t *testing.T) {
	payment := &fakePayment{refundReceipt: ""}
	recorded := false
	chain := saga.NewCompensationChain(saga.Deps{
		Payment:   payment,
		Shipping:  &fakeShipping{},
		Inventory: &fakeInventory{},
		RecordReceipt: func(ctx context.Context, orderNo, receipt string) error {
			recorded = true
			return nil
		},
		Tracer: noop.NewTracerProvider().Tracer("test"),
	})

	chain.Trigger(context.Background(), testOrder())
	assert.False(t, recorded, "empty refund receipt must not be written back")
}

func TestCompensationChainAppend(t *testing.T) {
	chain := saga.NewCompensationChain(saga.Deps{
		Payment:   &fakePayment{},
		Shipping:  &fakeShipping{},
		Inventory: &fakeInventory{},
		Tracer:    noop.NewTracerProvider().Tracer("test"),
	})

	called := false
	chain.Append(saga.Step{
		Name: "notify-ops",
		Run: func(ctx context.Context, order *domain.Order) error {
			called = true
			return nil
		},
	})

	chain.Trigger(context.Background(), testOrder())
	require.True(t, called)
}
