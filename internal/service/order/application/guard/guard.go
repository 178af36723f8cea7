// internal/service/order/application/guard/guard.go
package guard

import (
	"math"

	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/domain"
)

// Guard 是一条纯校验/改写规则：输入前置快照与提议的更新，
// 输出放行后的更新或错误。抛错即中止整个更新，不做部分应用。
type Guard struct {
	Name  string
	Check func(prev *domain.Order, ch domain.Change) (domain.Change, error)
}

// Pipeline 按固定顺序执行守卫，遇错短路。
// 顺序有讲究：冻结类先行，状态边校验在前，派生字段（总价、签收）最后改写。
type Pipeline struct {
	guards []Guard
}

// NewPipeline 组装缺省守卫序列。调用方可以 Append 扩展，无需改动派发逻辑。
func NewPipeline(signature domain.SignaturePolicy) *Pipeline {
	p := &Pipeline{}
	p.Append(FreezeOnCompletion(domain.FreezableOnCompletionFields()...))
	p.Append(FreezeOnApproval(domain.CommercialFields()...))
	p.Append(StatusChangeValid())
	p.Append(RequiredForCompletion(domain.FieldProofOfDelivery))
	p.Append(OrderTotalValid())
	p.Append(RecalcTotal())
	p.Append(UpdateSignature(signature))
	return p
}

func (p *Pipeline) Append(g Guard) {
	p.guards = append(p.guards, g)
}

// Run 在更新的副本上执行全部守卫。任何一条失败时原 Change 与订单都不受影响。
func (p *Pipeline) Run(prev *domain.Order, ch domain.Change) (domain.Change, error) {
	work := ch.Clone()
	for _, g := range p.guards {
		next, err := g.Check(prev, work)
		if err != nil {
			metrics.RejectedUpdates.WithLabelValues(g.Name).Inc()
			return nil, err
		}
		work = next
	}
	return work, nil
}

// FreezeOnCompletion 拒绝对终态订单指定字段的变更。
// receipt 不在冻结清单里：退款凭证要落到已取消的订单上。
func FreezeOnCompletion(fields ...domain.Field) Guard {
	frozen := make(map[domain.Field]bool, len(fields))
	for _, f := range fields {
		frozen[f] = true
	}
	return Guard{
		Name: "freezeOnCompletion",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			if prev == nil || !prev.Status.Terminal() {
				return ch, nil
			}
			for field := range ch {
				if frozen[field] {
					return nil, domain.NewValidationError("freezeOnCompletion", field,
						"order is "+string(prev.Status)+" and can no longer be modified")
				}
			}
			return ch, nil
		},
	}
}

// FreezeOnApproval 在订单离开 PENDING 后冻结随单写入的商业字段。
func FreezeOnApproval(fields ...domain.Field) Guard {
	frozen := make(map[domain.Field]bool, len(fields))
	for _, f := range fields {
		frozen[f] = true
	}
	return Guard{
		Name: "freezeOnApproval",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			if prev == nil || prev.Status == domain.StatusPending {
				return ch, nil
			}
			for field := range ch {
				if frozen[field] {
					return nil, domain.NewValidationError("freezeOnApproval", field,
						"field is frozen once the order leaves PENDING")
				}
			}
			return ch, nil
		},
	}
}

// StatusChangeValid 校验状态边。首写（无前置状态）直接放行；
// 非法边返回 *StatusTransitionError。
func StatusChangeValid() Guard {
	return Guard{
		Name: "statusChangeValid",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			raw, ok := ch[domain.FieldOrderStatus]
			if !ok {
				return ch, nil
			}
			next, ok := raw.(domain.Status)
			if !ok {
				return nil, domain.NewValidationError("statusChangeValid", domain.FieldOrderStatus,
					"orderStatus must be a Status value")
			}
			if prev == nil || prev.Status == "" {
				if !next.Valid() {
					return nil, &domain.StatusTransitionError{To: next}
				}
				return ch, nil
			}
			if err := prev.Status.CanTransitionTo(next); err != nil {
				return nil, err
			}
			return ch, nil
		},
	}
}

// RequiredForCompletion 要求进入 COMPLETE 时指定字段已经就位
// （本次更新带上，或之前已写入）。
func RequiredForCompletion(field domain.Field) Guard {
	return Guard{
		Name: "requiredForCompletion",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			if next, ok := ch[domain.FieldOrderStatus].(domain.Status); !ok || next != domain.StatusComplete {
				return ch, nil
			}
			if v, ok := ch[field].(string); ok && v != "" {
				return ch, nil
			}
			if prev != nil && field == domain.FieldProofOfDelivery && prev.ProofOfDelivery != "" {
				return ch, nil
			}
			return nil, domain.NewValidationError("requiredForCompletion", field,
				"field must be present before the order can complete")
		},
	}
}

// OrderTotalValid 把调用方自报的总价和按条目重算的结果对账。
func OrderTotalValid() Guard {
	return Guard{
		Name: "orderTotalValid",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			raw, ok := ch[domain.FieldOrderTotal]
			if !ok {
				return ch, nil
			}
			claimed, ok := raw.(float64)
			if !ok {
				return nil, domain.NewValidationError("orderTotalValid", domain.FieldOrderTotal,
					"orderTotal must be a float64")
			}
			items := itemsInEffect(prev, ch)
			total, err := domain.CalcTotal(items)
			if err != nil {
				return nil, err
			}
			if math.Abs(total-claimed) > 1e-9 {
				return nil, domain.NewValidationError("orderTotalValid", domain.FieldOrderTotal,
					"supplied total does not match the item sum")
			}
			return ch, nil
		},
	}
}

// RecalcTotal 在条目发生变化时重算并覆写总价（不变量 1）。
func RecalcTotal() Guard {
	return Guard{
		Name: "recalcTotal",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			raw, ok := ch[domain.FieldOrderItems]
			if !ok {
				return ch, nil
			}
			items, ok := raw.([]domain.Item)
			if !ok {
				return nil, domain.NewValidationError("recalcTotal", domain.FieldOrderItems,
					"orderItems must be a []Item")
			}
			total, err := domain.CalcTotal(items)
			if err != nil {
				return nil, err
			}
			ch[domain.FieldOrderTotal] = total
			return ch, nil
		},
	}
}

// UpdateSignature 在条目变化时重评签收策略，结果与历史值取或：
// signatureRequired 一旦为真绝不回落（不变量 5）。
func UpdateSignature(policy domain.SignaturePolicy) Guard {
	return Guard{
		Name: "updateSignature",
		Check: func(prev *domain.Order, ch domain.Change) (domain.Change, error) {
			requested, _ := ch[domain.FieldSignatureRequired].(bool)
			if !ch.Has(domain.FieldOrderItems) && !ch.Has(domain.FieldSignatureRequired) {
				return ch, nil
			}

			total := totalInEffect(prev, ch)
			required, err := policy.Requires(total, requested)
			if err != nil {
				return nil, domain.NewValidationError("updateSignature", domain.FieldSignatureRequired, err.Error())
			}
			if prev != nil && prev.SignatureRequired {
				required = true
			}
			ch[domain.FieldSignatureRequired] = required
			return ch, nil
		},
	}
}

// CanDelete 是删除路径上的 readyToDelete 守卫：只放行终态订单。
func CanDelete(order *domain.Order) error {
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if !order.Status.Terminal() {
		return domain.NewValidationError("readyToDelete", domain.FieldOrderStatus,
			"only COMPLETE or CANCELED orders may be deleted")
	}
	return nil
}

func itemsInEffect(prev *domain.Order, ch domain.Change) []domain.Item {
	if items, ok := ch[domain.FieldOrderItems].([]domain.Item); ok {
		return items
	}
	if prev != nil {
		return prev.Items
	}
	return nil
}

func totalInEffect(prev *domain.Order, ch domain.Change) float64 {
	if total, ok := ch[domain.FieldOrderTotal].(float64); ok {
		return total
	}
	if prev != nil {
		return prev.OrderTotal
	}
	return 0
}
