// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/application/guard"
	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// actionFunc 是某个状态的入场动作。动作只负责"发起"外部调用，
// 不等待结果；结果由续延异步写回。
type actionFunc func(ctx context.Context, order *domain.Order) error

// Deps 汇集协调器的全部依赖，由组装根填充。
type Deps struct {
	Repo   domain.OrderRepository
	Locker port.OrderLocker

	Address   port.AddressVerifier
	Payment   port.PaymentService
	Shipping  port.ShippingService
	Inventory port.InventoryService

	Events   port.OrderEventProducer
	Tracking port.TrackingStore

	Signature domain.SignaturePolicy
	Tracer    trace.Tracer
}

// Coordinator 是订单生命周期的协调器：守卫后的更新路径、状态动作表、
// 事件派发和补偿链都挂在这里。
type Coordinator struct {
	repo   domain.OrderRepository
	locker port.OrderLocker

	address   port.AddressVerifier
	payment   port.PaymentService
	shipping  port.ShippingService
	inventory port.InventoryService

	events   port.OrderEventProducer
	tracking port.TrackingStore

	guards    *guard.Pipeline
	chain     *saga.CompensationChain
	signature domain.SignaturePolicy
	tracer    trace.Tracer

	actions map[domain.Status]actionFunc

	async sync.WaitGroup
}

// NewCoordinator 组装协调器。动作表在这里一次性注册，
// 漏掉任何一个状态都会在构造期 panic，而不是等到运行时调用才暴露。
func NewCoordinator(deps Deps) *Coordinator {
	c := &Coordinator{
		repo:      deps.Repo,
		locker:    deps.Locker,
		address:   deps.Address,
		payment:   deps.Payment,
		shipping:  deps.Shipping,
		inventory: deps.Inventory,
		events:    deps.Events,
		tracking:  deps.Tracking,
		guards:    guard.NewPipeline(deps.Signature),
		signature: deps.Signature,
		tracer:    deps.Tracer,
	}
	c.chain = saga.NewCompensationChain(saga.Deps{
		Payment:       deps.Payment,
		Shipping:      deps.Shipping,
		Inventory:     deps.Inventory,
		RecordReceipt: c.recordReceipt,
		Tracer:        deps.Tracer,
	})

	c.actions = map[domain.Status]actionFunc{
		domain.StatusPending:  c.onPending,
		domain.StatusApproved: c.onApproved,
		domain.StatusShipping: c.onShipping,
		domain.StatusCanceled: c.onCanceled,
		domain.StatusComplete: c.onComplete,
	}
	for _, status := range domain.AllStatuses() {
		if _, ok := c.actions[status]; !ok {
			panic(fmt.Sprintf("order coordinator: no action registered for status %s", status))
		}
	}
	return c
}

// Guards 暴露守卫流水线，允许组装根追加规则。
func (c *Coordinator) Guards() *guard.Pipeline {
	return c.guards
}

// WaitAsync 等待所有已发起的异步任务结束，用于优雅关停与测试。
func (c *Coordinator) WaitAsync() {
	c.async.Wait()
}

// ---------------------------------------------------------------------------
// 入口：创建 / 更新 / 删除

// CreateOrder 创建订单：分配订单号、建立不可变初值并触发 PENDING 动作。
func (c *Coordinator) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "order.CreateOrder")
	defer span.End()

	orderNo := "ORD-" + uuid.New().String()
	order, err := domain.NewOrder(req.ToDraft(orderNo), c.signature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create order entity")
		return nil, err
	}

	if err := c.repo.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save initial order")
		return nil, err
	}
	metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.String("order.no", order.OrderNo))
	logger.Ctx(ctx).Info().
		Str("order", order.OrderNo).
		Float64("total", order.OrderTotal).
		Bool("signatureRequired", order.SignatureRequired).
		Msg("Order created with PENDING status.")

	c.publishEvent(ctx, order, []string{"created"})

	// 创建事件等同于一次进入 PENDING 的状态变化
	return order, c.dispatch(ctx, order, true, nil)
}

// Update 是唯一的受守卫更新路径：取锁 -> 读前置快照 -> 过守卫 ->
// 在副本上套用 -> 落库 -> 派发状态动作。任何守卫报错时订单保持不变。
func (c *Coordinator) Update(ctx context.Context, orderNo string, ch domain.Change) (*domain.Order, error) {
	ctx, span := c.tracer.Start(ctx, "order.Update")
	defer span.End()
	span.SetAttributes(attribute.String("order.no", orderNo))

	unlock, err := c.locker.LockOrder(ctx, orderNo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer unlock()

	prev, err := c.repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	approved, err := c.guards.Run(prev, ch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update rejected by guard")
		return nil, err
	}

	next, err := prev.Apply(approved)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := c.repo.Save(ctx, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist update")
		return nil, err
	}

	if approved.Has(domain.FieldOrderStatus) {
		metrics.StatusTransitions.WithLabelValues(string(next.Status)).Inc()
		logger.Ctx(ctx).Info().
			Str("order", next.OrderNo).
			Str("from", string(prev.Status)).
			Str("to", string(next.Status)).
			Msg("Order status transition committed.")
	}
	c.publishEvent(ctx, next, approved.Fields())

	return next, c.dispatch(ctx, next, false, approved)
}

// Delete 只放行终态订单（readyToDelete 守卫）。
func (c *Coordinator) Delete(ctx context.Context, orderNo string) error {
	ctx, span := c.tracer.Start(ctx, "order.Delete")
	defer span.End()

	unlock, err := c.locker.LockOrder(ctx, orderNo)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := c.repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if err := guard.CanDelete(order); err != nil {
		span.RecordError(err)
		return err
	}
	return c.repo.Delete(ctx, orderNo)
}

// Get 按订单号读取。
func (c *Coordinator) Get(ctx context.Context, orderNo string) (*domain.Order, error) {
	return c.repo.FindByOrderNo(ctx, orderNo)
}

// ---------------------------------------------------------------------------
// 显式状态流转

// Approve 把订单推进到 APPROVED。PENDING 阶段没有隐式 join：
// 地址校验和支付授权各自落库后，由上游显式发起审批。
func (c *Coordinator) Approve(ctx context.Context, orderNo string) (*domain.Order, error) {
	return c.Update(ctx, orderNo, domain.Change{domain.FieldOrderStatus: domain.StatusApproved})
}

// Complete 把订单推进到 COMPLETE，requiredForCompletion 守卫要求签收凭证已就位。
func (c *Coordinator) Complete(ctx context.Context, orderNo string) (*domain.Order, error) {
	return c.Update(ctx, orderNo, domain.Change{domain.FieldOrderStatus: domain.StatusComplete})
}

// Cancel 把订单推进到 CANCELED，补偿链随 CANCELED 动作触发。
func (c *Coordinator) Cancel(ctx context.Context, orderNo string) (*domain.Order, error) {
	return c.Update(ctx, orderNo, domain.Change{domain.FieldOrderStatus: domain.StatusCanceled})
}

// ---------------------------------------------------------------------------
// 事件派发与状态动作

// dispatch 是"字段变了"与"外部流程动一步"之间唯一的耦合点：
// 仅在创建或 orderStatus 发生变化时运行当前状态的动作。
func (c *Coordinator) dispatch(ctx context.Context, order *domain.Order, created bool, ch domain.Change) error {
	if !created && (ch == nil || !ch.Has(domain.FieldOrderStatus)) {
		return nil
	}

	action := c.actions[order.Status]
	if err := action(ctx, order); err != nil {
		// 动作同步失败：带状态名记录并向调用方抛出。
		// 补偿只挂在 CANCELED 动作上，这里不自动触发。
		logger.Ctx(ctx).Error().Err(err).
			Str("order", order.OrderNo).
			Str("status", string(order.Status)).
			Msg("Status action failed.")
		return err
	}
	return nil
}

// onPending 并发发起地址校验与支付授权。两个调用互不等待，
// 结果各自经由续延独立提交，先后顺序没有保证。
func (c *Coordinator) onPending(ctx context.Context, order *domain.Order) error {
	shippingAddress := order.ShippingAddress

	c.goAsync(ctx, "adapter.validateAddress", order.OrderNo, func(ctx context.Context) {
		verified, err := c.address.ValidateAddress(ctx, shippingAddress)
		if err != nil {
			c.reportAdapterFailure(ctx, order.OrderNo, "validateAddress", err)
			return
		}
		if _, err := c.AddressValidated(ctx, order.OrderNo, verified); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderNo).
				Msg("addressValidated continuation rejected.")
		}
	})

	c.goAsync(ctx, "adapter.authorizePayment", order.OrderNo, func(ctx context.Context) {
		authorization, err := c.payment.AuthorizePayment(ctx, order)
		if err != nil {
			c.reportAdapterFailure(ctx, order.OrderNo, "authorizePayment", err)
			return
		}
		if _, err := c.PaymentAuthorized(ctx, order.OrderNo, authorization); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderNo).
				Msg("paymentAuthorized continuation rejected.")
		}
	})

	return nil
}

// onApproved 发起拣货打包。
func (c *Coordinator) onApproved(ctx context.Context, order *domain.Order) error {
	c.goAsync(ctx, "adapter.pickOrder", order.OrderNo, func(ctx context.Context) {
		pickup, err := c.shipping.PickOrder(ctx, order)
		if err != nil {
			c.reportAdapterFailure(ctx, order.OrderNo, "pickOrder", err)
			return
		}
		if _, err := c.OrderPicked(ctx, order.OrderNo, pickup); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderNo).
				Msg("orderPicked continuation rejected.")
		}
	})
	return nil
}

// onShipping (重新)启动运单跟踪。进程重启后再次进入 SHIPPING
// 重复调用是安全的：跟踪标记只是日志层面的提示。
func (c *Coordinator) onShipping(ctx context.Context, order *domain.Order) error {
	already, err := c.tracking.MarkTrackingStarted(ctx, order.OrderNo)
	if err != nil {
		// 标记失败不阻断跟踪本身
		logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderNo).
			Msg("Failed to mark tracking start.")
	} else if already {
		logger.Ctx(ctx).Info().Str("order", order.OrderNo).Msg("Resuming shipment tracking.")
	}

	c.goAsync(ctx, "adapter.trackShipment", order.OrderNo, func(ctx context.Context) {
		trackingID, trackingStatus, err := c.shipping.TrackShipment(ctx, order)
		if err != nil {
			c.reportAdapterFailure(ctx, order.OrderNo, "trackShipment", err)
			return
		}
		if _, _, err := c.TrackingUpdate(ctx, order.OrderNo, trackingID, trackingStatus); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderNo).
				Msg("trackingUpdate continuation rejected.")
		}
	})
	return nil
}

// onCanceled 触发补偿链，不等待其完成。
func (c *Coordinator) onCanceled(ctx context.Context, order *domain.Order) error {
	c.goAsync(ctx, "saga.compensate", order.OrderNo, func(ctx context.Context) {
		c.chain.Trigger(ctx, order)
	})
	return nil
}

// onComplete 是终态钩子：只留痕，不再有外部副作用。
func (c *Coordinator) onComplete(ctx context.Context, order *domain.Order) error {
	logger.Ctx(ctx).Info().
		Str("order", order.OrderNo).
		Float64("total", order.OrderTotal).
		Msg("Order completed.")
	return nil
}

// ---------------------------------------------------------------------------
// 续延：外部适配器的结果经由这里写回订单

// AddressValidated 是地址校验的续延。
func (c *Coordinator) AddressValidated(ctx context.Context, orderNo string, address *domain.Address) (*domain.Order, error) {
	if address == nil {
		return nil, domain.NewPayloadError("addressValidated", domain.FieldShippingAddress)
	}
	return c.Update(ctx, orderNo, domain.Change{domain.FieldShippingAddress: address})
}

// PaymentAuthorized 是支付授权的续延。
func (c *Coordinator) PaymentAuthorized(ctx context.Context, orderNo, authorization string) (*domain.Order, error) {
	if authorization == "" {
		return nil, domain.NewPayloadError("paymentAuthorized", domain.FieldPaymentAuthorization)
	}
	return c.Update(ctx, orderNo, domain.Change{domain.FieldPaymentAuthorization: authorization})
}

// PaymentCompleted 是扣款完成的续延。载荷是隐式的：
// 走一次空的受守卫更新，留下可审计的提交痕迹。
func (c *Coordinator) PaymentCompleted(ctx context.Context, orderNo string) (*domain.Order, error) {
	logger.Ctx(ctx).Info().Str("order", orderNo).Msg("Payment completed.")
	return c.Update(ctx, orderNo, domain.Change{})
}

// PaymentRefunded 是退款的续延，把凭证写回订单。
// receipt 不在终态冻结清单内，取消后的订单也能落下退款证据。
func (c *Coordinator) PaymentRefunded(ctx context.Context, orderNo, receipt string) (*domain.Order, error) {
	if receipt == "" {
		return nil, domain.NewPayloadError("refundPayment", domain.FieldReceipt)
	}
	return c.Update(ctx, orderNo, domain.Change{domain.FieldReceipt: receipt})
}

// OrderPicked 是拣货完成的续延。
func (c *Coordinator) OrderPicked(ctx context.Context, orderNo string, pickupAddress *domain.Address) (*domain.Order, error) {
	if pickupAddress == nil {
		return nil, domain.NewPayloadError("orderPicked", domain.FieldPickupAddress)
	}
	return c.Update(ctx, orderNo, domain.Change{domain.FieldPickupAddress: pickupAddress})
}

// OrderShipped 是揽收完成的续延：记录运单号并把订单推进到 SHIPPING。
func (c *Coordinator) OrderShipped(ctx context.Context, orderNo, shipmentID string) (*domain.Order, error) {
	if shipmentID == "" {
		return nil, domain.NewPayloadError("orderShipped", domain.FieldShipmentID)
	}
	return c.Update(ctx, orderNo, domain.Change{
		domain.FieldShipmentID:  shipmentID,
		domain.FieldOrderStatus: domain.StatusShipping,
	})
}

// TrackingUpdate 是跟踪状态的续延。送达只返回 done=true，
// 不改 orderStatus——COMPLETE 是另一个显式事件。
func (c *Coordinator) TrackingUpdate(ctx context.Context, orderNo, trackingID, trackingStatus string) (order *domain.Order, done bool, err error) {
	if trackingID == "" {
		return nil, false, domain.NewPayloadError("trackingUpdate", domain.FieldTrackingID)
	}
	if trackingStatus == "" {
		return nil, false, domain.NewPayloadError("trackingUpdate", domain.FieldTrackingStatus)
	}
	order, err = c.Update(ctx, orderNo, domain.Change{
		domain.FieldTrackingID:     trackingID,
		domain.FieldTrackingStatus: trackingStatus,
	})
	if err != nil {
		return nil, false, err
	}
	if cacheErr := c.tracking.SaveTrackingStatus(ctx, orderNo, trackingStatus); cacheErr != nil {
		logger.Ctx(ctx).Warn().Err(cacheErr).Str("order", orderNo).
			Msg("Failed to cache tracking status.")
	}
	return order, trackingStatus == domain.TrackingDelivered, nil
}

// DeliveryVerified 是签收核验的续延。
func (c *Coordinator) DeliveryVerified(ctx context.Context, orderNo, proofOfDelivery string) (*domain.Order, error) {
	if proofOfDelivery == "" {
		return nil, domain.NewPayloadError("deliveryVerified", domain.FieldProofOfDelivery)
	}
	return c.Update(ctx, orderNo, domain.Change{domain.FieldProofOfDelivery: proofOfDelivery})
}

// ---------------------------------------------------------------------------
// 错误/超时上报：统一转进补偿

// ErrorCallback 由错误上报方调用：取消订单并触发补偿链。
func (c *Coordinator) ErrorCallback(ctx context.Context, orderNo, reason string) error {
	return c.handleFailure(ctx, &domain.FailureReport{OrderNo: orderNo, Reason: reason, At: time.Now()})
}

// TimeoutCallback 由超时探测方调用，与 ErrorCallback 走同一条路径。
func (c *Coordinator) TimeoutCallback(ctx context.Context, orderNo string) error {
	return c.handleFailure(ctx, &domain.FailureReport{
		OrderNo: orderNo,
		Reason:  "processing timeout",
		Timeout: true,
		At:      time.Now(),
	})
}

func (c *Coordinator) handleFailure(ctx context.Context, report *domain.FailureReport) error {
	ctx, span := c.tracer.Start(ctx, "order.HandleFailure")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.no", report.OrderNo),
		attribute.Bool("report.timeout", report.Timeout),
	)

	logger.Ctx(ctx).Warn().
		Str("order", report.OrderNo).
		Str("reason", report.Reason).
		Bool("timeout", report.Timeout).
		Msg("Failure reported, cancelling order.")

	order, err := c.repo.FindByOrderNo(ctx, report.OrderNo)
	if err != nil {
		span.RecordError(err)
		return err
	}

	switch order.Status {
	case domain.StatusCanceled:
		// 已取消：补偿步骤幂等，直接重跑补偿链
		c.goAsync(ctx, "saga.compensate", order.OrderNo, func(ctx context.Context) {
			c.chain.Trigger(ctx, order)
		})
		return nil
	case domain.StatusComplete:
		return domain.NewValidationError("errorCallback", domain.FieldOrderStatus,
			"completed orders cannot be compensated")
	default:
		_, err := c.Cancel(ctx, report.OrderNo)
		return err
	}
}

// reportAdapterFailure 把外部调用失败记账后转进统一失败路径。
func (c *Coordinator) reportAdapterFailure(ctx context.Context, orderNo, call string, err error) {
	metrics.AdapterFailures.WithLabelValues(call).Inc()
	logger.Ctx(ctx).Error().Err(err).
		Str("order", orderNo).
		Str("call", call).
		Msg("External adapter call failed.")
	if cbErr := c.ErrorCallback(ctx, orderNo, call+": "+err.Error()); cbErr != nil {
		logger.Ctx(ctx).Error().Err(cbErr).Str("order", orderNo).
			Msg("Failure handling itself failed.")
	}
}

// ---------------------------------------------------------------------------
// 内部工具

// goAsync 发起一个火忘任务：脱离调用方的超时，只保留链路关联。
// panic 被兜住并记录，不会带崩协调器。
func (c *Coordinator) goAsync(ctx context.Context, name, orderNo string, fn func(ctx context.Context)) {
	spanContext := trace.SpanContextFromContext(ctx)
	detached := trace.ContextWithRemoteSpanContext(context.Background(), spanContext)

	c.async.Add(1)
	go func() {
		defer c.async.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Logger().Error().
					Str("order", orderNo).
					Str("task", name).
					Interface("panic", r).
					Msg("Async task panicked.")
			}
		}()
		taskCtx, span := c.tracer.Start(detached, name)
		defer span.End()
		fn(taskCtx)
	}()
}

// publishEvent 把订单快照投到事件主题。发布失败只告警，
// 事件流是衍生视图，不能反过来阻断状态机本身。
func (c *Coordinator) publishEvent(ctx context.Context, order *domain.Order, changedFields []string) {
	event := &domain.OrderEvent{
		OrderNo:        order.OrderNo,
		Status:         order.Status,
		ChangedFields:  changedFields,
		TrackingID:     order.TrackingID,
		TrackingStatus: order.TrackingStatus,
		CustomerEmail:  order.CustomerInfo.Email,
		At:             time.Now(),
	}
	if err := c.events.PublishOrderEvent(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("order", order.OrderNo).
			Msg("Failed to publish order event.")
	}
}

// recordReceipt 是补偿链写退款凭证用的口子。
func (c *Coordinator) recordReceipt(ctx context.Context, orderNo, receipt string) error {
	_, err := c.PaymentRefunded(ctx, orderNo, receipt)
	return err
}
