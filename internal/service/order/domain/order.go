// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"
)

// Item 是订单条目。Qty 为 0 时按 1 计。
type Item struct {
	ItemID string  `json:"itemId"`
	Price  float64 `json:"price"`
	Qty    int     `json:"qty,omitempty"`
}

// Address 是账单/收货/取件地址的统一表示。
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// CustomerInfo 是下单客户的基本信息。
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// SignaturePolicy 决定订单是否需要签收。
// 具体实现（CEL 规则）在 domain/policy 中，领域层只依赖这个口子。
type SignaturePolicy interface {
	Requires(orderTotal float64, requested bool) (bool, error)
}

// Order 是被管理的聚合，一经创建即为不可变值：
// 所有"修改"都通过守卫后的 Apply 产出新值，旧值作为前置快照留给守卫比对。
type Order struct {
	OrderNo string `json:"orderNo"`

	CustomerInfo CustomerInfo `json:"customerInfo"`
	Items        []Item       `json:"orderItems"`
	OrderTotal   float64      `json:"orderTotal"`

	BillingAddress  *Address `json:"billingAddress,omitempty"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`

	CreditCardNumber     string `json:"creditCardNumber,omitempty"`
	PaymentAuthorization string `json:"paymentAuthorization,omitempty"`
	Receipt              string `json:"receipt,omitempty"`

	PickupAddress   *Address `json:"pickupAddress,omitempty"`
	ShipmentID      string   `json:"shipmentId,omitempty"`
	TrackingID      string   `json:"trackingId,omitempty"`
	TrackingStatus  string   `json:"trackingStatus,omitempty"`
	ProofOfDelivery string   `json:"proofOfDelivery,omitempty"`

	SignatureRequired bool `json:"signatureRequired"`

	Status Status `json:"orderStatus"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderDraft 是创建订单的输入。OrderNo 由应用层分配。
type OrderDraft struct {
	OrderNo            string
	CustomerInfo       CustomerInfo
	Items              []Item
	BillingAddress     *Address
	ShippingAddress    *Address
	CreditCardNumber   string
	SignatureRequested bool
}

// CalcTotal 按 Σ(price×qty) 计算总价，qty 缺省为 1。
// 条目为空或含非法值时返回 ErrItemsInvalid。
func CalcTotal(items []Item) (float64, error) {
	if len(items) == 0 {
		return 0, ErrItemsInvalid
	}
	var total float64
	for _, item := range items {
		if item.ItemID == "" || item.Price < 0 || item.Qty < 0 {
			return 0, ErrItemsInvalid
		}
		qty := item.Qty
		if qty == 0 {
			qty = 1
		}
		total += item.Price * float64(qty)
	}
	return total, nil
}

// NewOrder 是订单的唯一工厂：分配好的订单号、计算初始总价、
// 评估签收策略、设置 PENDING。之后的一切变更只能走守卫后的更新路径。
func NewOrder(draft OrderDraft, policy SignaturePolicy) (*Order, error) {
	if draft.OrderNo == "" {
		return nil, NewValidationError("factory", "", "orderNo is required")
	}
	total, err := CalcTotal(draft.Items)
	if err != nil {
		return nil, err
	}
	if err := checkCardFormat(draft.CreditCardNumber); err != nil {
		return nil, err
	}

	signatureRequired, err := policy.Requires(total, draft.SignatureRequested)
	if err != nil {
		return nil, fmt.Errorf("signature policy evaluation failed: %w", err)
	}

	now := time.Now()
	return &Order{
		OrderNo:           draft.OrderNo,
		CustomerInfo:      draft.CustomerInfo,
		Items:             cloneItems(draft.Items),
		OrderTotal:        total,
		BillingAddress:    cloneAddress(draft.BillingAddress),
		ShippingAddress:   cloneAddress(draft.ShippingAddress),
		CreditCardNumber:  draft.CreditCardNumber,
		SignatureRequired: signatureRequired,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Apply 在当前值的副本上套用一次已通过守卫的更新，返回新值。
// 字段类型不匹配说明调用方拼装 Change 有误，直接报错，不做部分应用。
func (o *Order) Apply(ch Change) (*Order, error) {
	next := o.Clone()
	for field, value := range ch {
		if err := next.set(field, value); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = time.Now()
	return next, nil
}

// Clone 深拷贝订单值。旧值作为前置快照必须不受后续更新影响。
func (o *Order) Clone() *Order {
	next := *o
	next.Items = cloneItems(o.Items)
	next.BillingAddress = cloneAddress(o.BillingAddress)
	next.ShippingAddress = cloneAddress(o.ShippingAddress)
	next.PickupAddress = cloneAddress(o.PickupAddress)
	return &next
}

func (o *Order) set(field Field, value interface{}) error {
	switch field {
	case FieldCustomerInfo:
		v, ok := value.(CustomerInfo)
		if !ok {
			return badFieldValue(field, value)
		}
		o.CustomerInfo = v
	case FieldOrderItems:
		v, ok := value.([]Item)
		if !ok {
			return badFieldValue(field, value)
		}
		o.Items = cloneItems(v)
	case FieldOrderTotal:
		v, ok := value.(float64)
		if !ok {
			return badFieldValue(field, value)
		}
		o.OrderTotal = v
	case FieldBillingAddress:
		v, ok := value.(*Address)
		if !ok {
			return badFieldValue(field, value)
		}
		o.BillingAddress = cloneAddress(v)
	case FieldShippingAddress:
		v, ok := value.(*Address)
		if !ok {
			return badFieldValue(field, value)
		}
		o.ShippingAddress = cloneAddress(v)
	case FieldCreditCardNumber:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.CreditCardNumber = v
	case FieldPaymentAuthorization:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.PaymentAuthorization = v
	case FieldReceipt:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.Receipt = v
	case FieldPickupAddress:
		v, ok := value.(*Address)
		if !ok {
			return badFieldValue(field, value)
		}
		o.PickupAddress = cloneAddress(v)
	case FieldShipmentID:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.ShipmentID = v
	case FieldTrackingID:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.TrackingID = v
	case FieldTrackingStatus:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.TrackingStatus = v
	case FieldProofOfDelivery:
		v, ok := value.(string)
		if !ok {
			return badFieldValue(field, value)
		}
		o.ProofOfDelivery = v
	case FieldSignatureRequired:
		v, ok := value.(bool)
		if !ok {
			return badFieldValue(field, value)
		}
		o.SignatureRequired = v
	case FieldOrderStatus:
		v, ok := value.(Status)
		if !ok {
			return badFieldValue(field, value)
		}
		o.Status = v
	default:
		return NewValidationError("apply", field, "unknown field")
	}
	return nil
}

func badFieldValue(field Field, value interface{}) error {
	return NewValidationError("apply", field, fmt.Sprintf("unexpected value type %T", value))
}

// checkCardFormat 做创建时的卡号格式检查：剥离分隔符后必须是 13-19 位数字。
// 真正的有效性由支付适配器校验。
func checkCardFormat(card string) error {
	if card == "" {
		return NewValidationError("factory", FieldCreditCardNumber, "credit card number is required")
	}
	digits := 0
	for _, r := range card {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-':
			// 分隔符，忽略
		default:
			return NewValidationError("factory", FieldCreditCardNumber, "credit card number contains invalid characters")
		}
	}
	if digits < 13 || digits > 19 {
		return NewValidationError("factory", FieldCreditCardNumber, "credit card number has invalid length")
	}
	return nil
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func cloneAddress(a *Address) *Address {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
