// internal/service/order/application/saga/compensation.go
package saga

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// Step 是补偿链上的一个回滚动作。每个步骤独立、幂等：
// 对应的正向步骤从未发生时调用也必须安全。
type Step struct {
	Name string
	Run  func(ctx context.Context, order *domain.Order) error
}

// Deps 是补偿链需要的出站端口。RecordReceipt 把退款凭证写回订单，
// 走的仍然是守卫后的更新路径。
type Deps struct {
	Payment   port.PaymentService
	Shipping  port.ShippingService
	Inventory port.InventoryService

	RecordReceipt func(ctx context.Context, orderNo, receipt string) error

	Tracer trace.Tracer
}

// CompensationChain 按固定顺序执行回滚：退款 -> 退回运单 -> 取消配送 -> 释放库存。
// 任何一步失败只记录，不阻断其余步骤，也绝不反向"回滚补偿"。
// 链本身不改 orderStatus——CANCELED 由触发方先行写入。
type CompensationChain struct {
	steps  []Step
	tracer trace.Tracer
}

func NewCompensationChain(deps Deps) *CompensationChain {
	c := &CompensationChain{tracer: deps.Tracer}

	c.Append(Step{
		Name: "refund-payment",
		Run: func(ctx context.Context, order *domain.Order) error {
			receipt, err := deps.Payment.RefundPayment(ctx, order)
			if err != nil {
				return err
			}
			if receipt == "" || deps.RecordReceipt == nil {
				return nil
			}
			return deps.RecordReceipt(ctx, order.OrderNo, receipt)
		},
	})
	c.Append(Step{
		Name: "return-shipment",
		Run: func(ctx context.Context, order *domain.Order) error {
			return deps.Shipping.ReturnShipment(ctx, order)
		},
	})
	c.Append(Step{
		Name: "cancel-delivery",
		Run: func(ctx context.Context, order *domain.Order) error {
			return deps.Shipping.CancelDelivery(ctx, order)
		},
	})
	c.Append(Step{
		Name: "return-inventory",
		Run: func(ctx context.Context, order *domain.Order) error {
			return deps.Inventory.ReturnReservation(ctx, order)
		},
	})

	return c
}

// Append 追加一个回滚步骤，供扩展。
func (c *CompensationChain) Append(step Step) {
	c.steps = append(c.steps, step)
}

// Trigger 顺序执行全部补偿步骤。
func (c *CompensationChain) Trigger(ctx context.Context, order *domain.Order) {
	ctx, span := c.tracer.Start(ctx, "saga.Compensation")
	defer span.End()

	log := logger.Ctx(ctx)
	log.Info().
		Str("order", order.OrderNo).
		Int("steps", len(c.steps)).
		Msg("Executing compensation chain.")

	for _, step := range c.steps {
		stepCtx, stepSpan := c.tracer.Start(ctx, "saga.compensation."+step.Name)
		if err := step.Run(stepCtx, order); err != nil {
			// 补偿失败需要人工介入，但不能挡住后面的步骤
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, "compensation step failed")
			metrics.CompensationSteps.WithLabelValues(step.Name, "failure").Inc()
			log.Error().Err(err).
				Str("order", order.OrderNo).
				Str("step", step.Name).
				Msg("Compensation step failed, continuing with remaining steps.")
		} else {
			metrics.CompensationSteps.WithLabelValues(step.Name, "success").Inc()
		}
		stepSpan.End()
	}

	span.AddEvent("Compensation chain finished.")
}
