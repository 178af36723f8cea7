package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/policy"
	"orderflow/internal/service/order/infrastructure"
)

// ---------------------------------------------------------------------------
// 出站端口的测试替身

type stubAddress struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubAddress) ValidateAddress(ctx context.Context, address *domain.Address) (*domain.Address, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	verified := *address
	verified.City = "RENO"
	return &verified, nil
}

type stubPayment struct {
	mu             sync.Mutex
	authorizeCalls int
	refundCalls    int
	authorizeErr   error
}

func (s *stubPayment) AuthorizePayment(ctx context.Context, order *domain.Order) (string, error) {
	s.mu.Lock()
	s.authorizeCalls++
	s.mu.Unlock()
	if s.authorizeErr != nil {
		return "", s.authorizeErr
	}
	return "AUTH-" + order.OrderNo, nil
}
func (s *stubPayment) CompletePayment(ctx context.Context, order *domain.Order) error { return nil }
func (s *stubPayment) RefundPayment(ctx context.Context, order *domain.Order) (string, error) {
	s.mu.Lock()
	s.refundCalls++
	s.mu.Unlock()
	return "REFUND-" + order.OrderNo, nil
}

func (s *stubPayment) refunds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refundCalls
}

type stubShipping struct {
	mu          sync.Mutex
	pickCalls   int
	trackCalls  int
	returnCalls int
	cancelCalls int
}

func (s *stubShipping) PickOrder(ctx context.Context, order *domain.Order) (*domain.Address, error) {
	s.mu.Lock()
	s.pickCalls++
	s.mu.Unlock()
	return &domain.Address{Street: "1 Warehouse Way", City: "RENO", State: "NV", Zip: "89502"}, nil
}
func (s *stubShipping) ShipOrder(ctx context.Context, order *domain.Order) (string, error) {
	return "SHP-" + order.OrderNo, nil
}
func (s *stubShipping) TrackShipment(ctx context.Context, order *domain.Order) (string, string, error) {
	s.mu.Lock()
	s.trackCalls++
	s.mu.Unlock()
	return "TRK-" + order.OrderNo, "IN_TRANSIT", nil
}
func (s *stubShipping) VerifyDelivery(ctx context.Context, order *domain.Order) (string, error) {
	return "POD-" + order.OrderNo, nil
}
func (s *stubShipping) ReturnShipment(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	s.returnCalls++
	s.mu.Unlock()
	return nil
}
func (s *stubShipping) CancelDelivery(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	s.cancelCalls++
	s.mu.Unlock()
	return nil
}

type stubInventory struct {
	mu    sync.Mutex
	calls int
}

func (s *stubInventory) ReturnReservation(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil
}

type stubEvents struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (s *stubEvents) PublishOrderEvent(ctx context.Context, event *domain.OrderEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// 装配

type fixture struct {
	coordinator *application.Coordinator
	repo        *infrastructure.MemoryOrderRepository
	address     *stubAddress
	payment     *stubPayment
	shipping    *stubShipping
	inventory   *stubInventory
	events      *stubEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      infrastructure.NewMemoryOrderRepository(),
		address:   &stubAddress{},
		payment:   &stubPayment{},
		shipping:  &stubShipping{},
		inventory: &stubInventory{},
		events:    &stubEvents{},
	}
	f.coordinator = application.NewCoordinator(application.Deps{
		Repo:      f.repo,
		Locker:    infrastructure.NewMemoryLocker(),
		Address:   f.address,
		Payment:   f.payment,
		Shipping:  f.shipping,
		Inventory: f.inventory,
		Events:    f.events,
		Tracking:  infrastructure.NewMemoryTrackingStore(),
		Signature: policy.MustSignaturePolicy(""),
		Tracer:    noop.NewTracerProvider().Tracer("test"),
	})
	return f
}

func createRequest() *application.CreateOrderRequest {
	return &application.CreateOrderRequest{
		CustomerInfo: domain.CustomerInfo{Name: "Jamie Doe", Email: "jamie@example.com"},
		Items: []domain.Item{
			{ItemID: "widget", Price: 500, Qty: 2},
			{ItemID: "gadget", Price: 100},
		},
		ShippingAddress:  &domain.Address{Street: "10 Main St", City: "Reno", State: "NV", Zip: "89502"},
		CreditCardNumber: "4111111111111111",
	}
}

// createOrder 创建订单并等待 PENDING 阶段的异步调用全部落库。
func (f *fixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.coordinator.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	return current
}

// ---------------------------------------------------------------------------

func TestCreateOrderIssuesPendingCalls(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	// 地址校验与支付授权各发起一次，结果写回订单
	assert.Equal(t, 1, f.address.calls)
	assert.Equal(t, 1, f.payment.authorizeCalls)
	assert.Equal(t, "RENO", order.ShippingAddress.City)
	assert.Equal(t, "AUTH-"+order.OrderNo, order.PaymentAuthorization)

	// 两个结果都到位后订单仍停在 PENDING，审批是显式动作
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, 1100.0, order.OrderTotal)
	assert.True(t, order.SignatureRequired)
}

func TestApproveTriggersPick(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Approve(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, current.Status)
	assert.Equal(t, 1, f.shipping.pickCalls)
	assert.NotNil(t, current.PickupAddress)
}

func TestOrderShippedStartsTracking(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Approve(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	shipped, err := f.coordinator.OrderShipped(context.Background(), order.OrderNo, "SHP-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipping, shipped.Status)
	assert.Equal(t, "SHP-1", shipped.ShipmentID)

	f.coordinator.WaitAsync()
	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, 1, f.shipping.trackCalls)
	assert.Equal(t, "TRK-"+order.OrderNo, current.TrackingID)
	assert.Equal(t, "IN_TRANSIT", current.TrackingStatus)
}

func TestTrackingUpdateReportsDelivery(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Approve(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()
	_, err = f.coordinator.OrderShipped(context.Background(), order.OrderNo, "SHP-1")
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	_, done, err := f.coordinator.TrackingUpdate(context.Background(), order.OrderNo, "TRK-1", "OUT_FOR_DELIVERY")
	require.NoError(t, err)
	assert.False(t, done)

	current, done, err := f.coordinator.TrackingUpdate(context.Background(), order.OrderNo, "TRK-1", domain.TrackingDelivered)
	require.NoError(t, err)
	assert.True(t, done)
	// 送达只是跟踪状态，不自动完成订单
	assert.Equal(t, domain.StatusShipping, current.Status)
}

func TestCompleteRequiresProofOfDelivery(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Approve(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()
	_, err = f.coordinator.OrderShipped(context.Background(), order.OrderNo, "SHP-1")
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	_, err = f.coordinator.Complete(context.Background(), order.OrderNo)
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "requiredForCompletion", validationErr.Guard)

	_, err = f.coordinator.DeliveryVerified(context.Background(), order.OrderNo, "POD-1")
	require.NoError(t, err)

	completed, err := f.coordinator.Complete(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, completed.Status)
}

func TestCancelRunsCompensationChain(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	canceled, err := f.coordinator.Cancel(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)

	f.coordinator.WaitAsync()

	assert.Equal(t, 1, f.payment.refunds())
	assert.Equal(t, 1, f.shipping.returnCalls)
	assert.Equal(t, 1, f.shipping.cancelCalls)
	assert.Equal(t, 1, f.inventory.calls)

	// 退款凭证落到已取消的订单上
	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "REFUND-"+order.OrderNo, current.Receipt)
}

func TestNonStatusUpdateDoesNotDispatch(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.Equal(t, 1, f.payment.authorizeCalls)

	// 纯字段更新不触发状态动作：PENDING 的授权不会被重复发起
	_, err := f.coordinator.Update(context.Background(), order.OrderNo,
		domain.Change{domain.FieldBillingAddress: &domain.Address{Street: "2 Oak St", City: "Reno", State: "NV", Zip: "89501"}})
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	assert.Equal(t, 1, f.payment.authorizeCalls)
	assert.Equal(t, 0, f.shipping.pickCalls)
}

func TestAdapterFailureCancelsOrder(t *testing.T) {
	f := newFixture(t)
	f.address.err = errors.New("address service unavailable")

	order, err := f.coordinator.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err, "creation succeeds, the failure is asynchronous")
	f.coordinator.WaitAsync()

	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, current.Status)
	assert.Equal(t, 1, f.payment.refunds())
}

func TestErrorCallbackIdempotentOnCanceled(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Cancel(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()
	require.Equal(t, 1, f.payment.refunds())

	// 已取消订单的再次上报直接重跑补偿，不再走状态机
	require.NoError(t, f.coordinator.ErrorCallback(context.Background(), order.OrderNo, "late report"))
	f.coordinator.WaitAsync()
	assert.Equal(t, 2, f.payment.refunds())
}

func TestErrorCallbackRejectedOnCompleted(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	_, err := f.coordinator.Approve(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()
	_, err = f.coordinator.OrderShipped(context.Background(), order.OrderNo, "SHP-1")
	require.NoError(t, err)
	f.coordinator.WaitAsync()
	_, err = f.coordinator.DeliveryVerified(context.Background(), order.OrderNo, "POD-1")
	require.NoError(t, err)
	_, err = f.coordinator.Complete(context.Background(), order.OrderNo)
	require.NoError(t, err)

	err = f.coordinator.ErrorCallback(context.Background(), order.OrderNo, "too late")
	require.Error(t, err)
	assert.Equal(t, 0, f.payment.refunds())
}

func TestContinuationPayloadErrors(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	var payloadErr *domain.PayloadError

	_, err := f.coordinator.PaymentAuthorized(context.Background(), order.OrderNo, "")
	require.ErrorAs(t, err, &payloadErr)

	_, err = f.coordinator.OrderShipped(context.Background(), order.OrderNo, "")
	require.ErrorAs(t, err, &payloadErr)

	_, _, err = f.coordinator.TrackingUpdate(context.Background(), order.OrderNo, "", "IN_TRANSIT")
	require.ErrorAs(t, err, &payloadErr)

	_, err = f.coordinator.DeliveryVerified(context.Background(), order.OrderNo, "")
	require.ErrorAs(t, err, &payloadErr)

	// 载荷错误只拒绝本次操作，订单不受影响
	current, err := f.coordinator.Get(context.Background(), order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, current.Status)
}

func TestDeleteOnlyTerminalOrders(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	err := f.coordinator.Delete(context.Background(), order.OrderNo)
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "readyToDelete", validationErr.Guard)

	_, err = f.coordinator.Cancel(context.Background(), order.OrderNo)
	require.NoError(t, err)
	f.coordinator.WaitAsync()

	require.NoError(t, f.coordinator.Delete(context.Background(), order.OrderNo))

	_, err = f.coordinator.Get(context.Background(), order.OrderNo)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.Get(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestEventsPublishedOnEveryCommit(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	f.events.mu.Lock()
	count := len(f.events.events)
	first := f.events.events[0]
	f.events.mu.Unlock()

	// 创建 + 两次续延写回，至少三条事件
	assert.GreaterOrEqual(t, count, 3)
	assert.Equal(t, order.OrderNo, first.OrderNo)
	assert.Equal(t, []string{"created"}, first.ChangedFields)
	assert.Equal(t, "jamie@example.com", first.CustomerEmail)
}
