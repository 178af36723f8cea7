// internal/pkg/constants/constants.go
package constants

// 下游服务名，与配置里 endpoints 的 key 一致。
const (
	AddressService  = "address-service"
	PaymentService  = "payment-service"
	ShippingService = "shipping-service"
)

// 各服务的调用路径。
const (
	AddressValidatePath = "/address/validate"

	PaymentAuthorizePath = "/payment/authorize"
	PaymentCompletePath  = "/payment/complete"
	PaymentRefundPath    = "/payment/refund"

	ShippingPickPath     = "/shipping/pick"
	ShippingShipPath     = "/shipping/ship"
	ShippingTrackPath    = "/shipping/track"
	ShippingVerifyPath   = "/shipping/verify"
	ShippingReturnPath   = "/shipping/return"
	ShippingCancelPath   = "/shipping/cancel"
	InventoryReturnPath  = "/inventory/return"
)

// 消费组。
const (
	FailureConsumerGroup  = "order-failure-handler"
	TrackingConsumerGroup = "tracking-gateway"
)
