// cmd/payment-service/main.go
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
)

const serviceName = "payment-service"

var tracer = otel.Tracer(serviceName)

// payments 记录每个订单的支付阶段，退款借此做到幂等。
var (
	paymentsMu sync.Mutex
	payments   = map[string]string{} // order_no -> "authorized" | "completed" | "refunded"
)

// payment-service 是支付的模拟实现：授权、扣款、退款。
// 传 fail=true 可注入授权失败。
func main() {
	bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8092,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc(constants.PaymentAuthorizePath, handleAuthorize)
			appCtx.Mux.HandleFunc(constants.PaymentCompletePath, handleComplete)
			appCtx.Mux.HandleFunc(constants.PaymentRefundPath, handleRefund)
		},
	})
}

func handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "payment-service.Authorize")
	defer span.End()

	q := r.URL.Query()
	orderNo := q.Get("order_no")
	if q.Get("fail") == "true" || q.Get("card") == "" {
		logger.Ctx(ctx).Warn().Str("order", orderNo).Msg("Payment authorization declined.")
		http.Error(w, "payment declined", http.StatusBadGateway)
		return
	}

	time.Sleep(80 * time.Millisecond)

	paymentsMu.Lock()
	payments[orderNo] = "authorized"
	paymentsMu.Unlock()

	authorization := "AUTH-" + uuid.New().String()[:8]
	span.AddEvent("Payment authorized.")
	logger.Ctx(ctx).Info().Str("order", orderNo).Str("authorization", authorization).Msg("Payment authorized.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"authorization": authorization})
}

func handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "payment-service.Complete")
	defer span.End()

	orderNo := r.URL.Query().Get("order_no")

	paymentsMu.Lock()
	stage := payments[orderNo]
	if stage == "authorized" {
		payments[orderNo] = "completed"
	}
	paymentsMu.Unlock()

	if stage == "" {
		http.Error(w, "no authorization on record", http.StatusBadGateway)
		return
	}

	span.AddEvent("Payment completed.")
	logger.Ctx(ctx).Info().Str("order", orderNo).Msg("Payment completed.")
	w.WriteHeader(http.StatusOK)
}

// handleRefund 幂等退款：没有支付记录时返回空凭证，重复退款返回同样的结果。
func handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "payment-service.Refund")
	defer span.End()

	orderNo := r.URL.Query().Get("order_no")

	paymentsMu.Lock()
	stage := payments[orderNo]
	if stage == "authorized" || stage == "completed" {
		payments[orderNo] = "refunded"
	}
	paymentsMu.Unlock()

	receipt := ""
	if stage != "" {
		receipt = "REFUND-" + orderNo
	}

	span.AddEvent("Refund processed.")
	logger.Ctx(ctx).Info().Str("order", orderNo).Str("receipt", receipt).Msg("Refund processed.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"receipt": receipt})
}
