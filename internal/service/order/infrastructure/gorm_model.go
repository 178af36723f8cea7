// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import "time"

// OrderModel 是订单在 MySQL 中的表结构。
// 条目和地址按 JSON 存储：它们只随订单整体读写，没有独立查询需求。
type OrderModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	OrderNo string `gorm:"column:order_no;type:varchar(64);uniqueIndex;not null"`

	CustomerInfo string `gorm:"column:customer_info;type:json"`
	Items        string `gorm:"column:items;type:json"`
	OrderTotal   float64 `gorm:"column:order_total"`

	BillingAddress  string `gorm:"column:billing_address;type:json"`
	ShippingAddress string `gorm:"column:shipping_address;type:json"`

	CreditCardNumber     string `gorm:"column:credit_card_number;type:varchar(32)"`
	PaymentAuthorization string `gorm:"column:payment_authorization;type:varchar(128)"`
	Receipt              string `gorm:"column:receipt;type:varchar(128)"`

	PickupAddress   string `gorm:"column:pickup_address;type:json"`
	ShipmentID      string `gorm:"column:shipment_id;type:varchar(64)"`
	TrackingID      string `gorm:"column:tracking_id;type:varchar(64)"`
	TrackingStatus  string `gorm:"column:tracking_status;type:varchar(32)"`
	ProofOfDelivery string `gorm:"column:proof_of_delivery;type:varchar(256)"`

	SignatureRequired bool   `gorm:"column:signature_required"`
	Status            string `gorm:"column:status;type:varchar(16);index;not null"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名。
func (OrderModel) TableName() string {
	return "orders"
}
