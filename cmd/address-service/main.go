// cmd/address-service/main.go
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

const serviceName = "address-service"

var tracer = otel.Tracer(serviceName)

// address-service 是地址校验的模拟实现：把地址字段规整后原样返回。
// 传 fail=true 可注入失败，用于演练补偿链。
func main() {
	bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8091,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc(constants.AddressValidatePath, handleValidate)
		},
	})
}

func handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "address-service.Validate")
	defer span.End()

	q := r.URL.Query()
	if q.Get("fail") == "true" {
		logger.Ctx(ctx).Warn().Msg("Injected address validation failure.")
		http.Error(w, "address could not be verified", http.StatusBadGateway)
		return
	}

	// 模拟规整：城市/州统一大写，邮编去空格
	verified := domain.Address{
		Street: strings.TrimSpace(q.Get("street")),
		City:   strings.ToUpper(strings.TrimSpace(q.Get("city"))),
		State:  strings.ToUpper(strings.TrimSpace(q.Get("state"))),
		Zip:    strings.ReplaceAll(q.Get("zip"), " ", ""),
	}
	if verified.Street == "" || verified.Zip == "" {
		http.Error(w, "street and zip are required", http.StatusBadGateway)
		return
	}

	time.Sleep(50 * time.Millisecond)
	span.AddEvent("Address verified.")
	logger.Ctx(ctx).Info().Str("zip", verified.Zip).Msg("Address verified.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&verified)
}
