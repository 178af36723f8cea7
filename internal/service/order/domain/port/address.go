package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// AddressVerifier 是地址校验服务的出站端口。
type AddressVerifier interface {
	// ValidateAddress 校验并规整给定地址，返回修正后的版本。
	ValidateAddress(ctx context.Context, address *domain.Address) (*domain.Address, error)
}
