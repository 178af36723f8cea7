// internal/service/order/infrastructure/adapter/address_http_adapter.go
package adapter

import (
	"context"
	"net/url"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// AddressHTTPAdapter 是 port.AddressVerifier 的 HTTP 实现。
type AddressHTTPAdapter struct {
	client *httpclient.Client
}

func NewAddressHTTPAdapter(client *httpclient.Client) *AddressHTTPAdapter {
	return &AddressHTTPAdapter{client: client}
}

// ValidateAddress 调用地址服务做校验与规整，返回修正后的地址。
func (a *AddressHTTPAdapter) ValidateAddress(ctx context.Context, address *domain.Address) (*domain.Address, error) {
	params := url.Values{}
	if address != nil {
		params.Set("street", address.Street)
		params.Set("city", address.City)
		params.Set("state", address.State)
		params.Set("zip", address.Zip)
	}

	var verified domain.Address
	err := a.client.CallService(ctx, constants.AddressService, constants.AddressValidatePath, params, &verified)
	if err != nil {
		return nil, err
	}
	return &verified, nil
}
