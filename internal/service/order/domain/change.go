// internal/service/order/domain/change.go
package domain

import "sort"

// Field 标识订单上可被更新的字段。守卫以字段为粒度工作。
type Field string

const (
	FieldCustomerInfo         Field = "customerInfo"
	FieldOrderItems           Field = "orderItems"
	FieldOrderTotal           Field = "orderTotal"
	FieldBillingAddress       Field = "billingAddress"
	FieldShippingAddress      Field = "shippingAddress"
	FieldCreditCardNumber     Field = "creditCardNumber"
	FieldPaymentAuthorization Field = "paymentAuthorization"
	FieldReceipt              Field = "receipt"
	FieldPickupAddress        Field = "pickupAddress"
	FieldShipmentID           Field = "shipmentId"
	FieldTrackingID           Field = "trackingId"
	FieldTrackingStatus       Field = "trackingStatus"
	FieldProofOfDelivery      Field = "proofOfDelivery"
	FieldSignatureRequired    Field = "signatureRequired"
	FieldOrderStatus          Field = "orderStatus"
)

// CommercialFields 是随订单创建写入的商业字段，订单离开 PENDING 后冻结。
func CommercialFields() []Field {
	return []Field{
		FieldCustomerInfo,
		FieldOrderItems,
		FieldOrderTotal,
		FieldBillingAddress,
		FieldShippingAddress,
		FieldCreditCardNumber,
	}
}

// FreezableOnCompletionFields 是终态后冻结的字段：除 receipt 以外的全部。
// receipt 是补偿链退款落下的凭证，必须允许写到已取消的订单上。
func FreezableOnCompletionFields() []Field {
	return []Field{
		FieldCustomerInfo,
		FieldOrderItems,
		FieldOrderTotal,
		FieldBillingAddress,
		FieldShippingAddress,
		FieldCreditCardNumber,
		FieldPaymentAuthorization,
		FieldPickupAddress,
		FieldShipmentID,
		FieldTrackingID,
		FieldTrackingStatus,
		FieldProofOfDelivery,
		FieldSignatureRequired,
		FieldOrderStatus,
	}
}

// Change 是一次提议中的更新：字段到新值的映射。
// 守卫流水线拿到的是副本，可以改写或剔除字段；整个更新要么全部
// 生效要么全部失败。
type Change map[Field]interface{}

// Has 判断该更新是否触及指定字段。
func (c Change) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

// Clone 返回浅拷贝。守卫只整体替换值，不就地修改，浅拷贝足够。
func (c Change) Clone() Change {
	out := make(Change, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Fields 返回触及的字段名，排序后输出，保证日志与事件的确定性。
func (c Change) Fields() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
