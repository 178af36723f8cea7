// cmd/shipping-service/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

const serviceName = "shipping-service"

var tracer = otel.Tracer(serviceName)

// shipments 记录每个订单的运单推进，track 接口按调用次数推进状态，
// 模拟真实承运商的多次轮询。
var (
	shipmentsMu sync.Mutex
	shipments   = map[string]*shipment{} // key: order_no
)

type shipment struct {
	trackingID string
	polls      int
}

var trackingSequence = []string{"PICKED_UP", "IN_TRANSIT", "OUT_FOR_DELIVERY", domain.TrackingDelivered}

// shipping-service 是物流/库存的模拟实现。
func main() {
	bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8093,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc(constants.ShippingPickPath, handlePick)
			appCtx.Mux.HandleFunc(constants.ShippingShipPath, handleShip)
			appCtx.Mux.HandleFunc(constants.ShippingTrackPath, handleTrack)
			appCtx.Mux.HandleFunc(constants.ShippingVerifyPath, handleVerify)
			appCtx.Mux.HandleFunc(constants.ShippingReturnPath, handleReturn)
			appCtx.Mux.HandleFunc(constants.ShippingCancelPath, handleCancel)
			appCtx.Mux.HandleFunc(constants.InventoryReturnPath, handleInventoryReturn)
		},
	})
}

func startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return tracer.Start(ctx, name)
}

func handlePick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Pick")
	defer span.End()
	orderNo := r.URL.Query().Get("order_no")

	if r.URL.Query().Get("fail") == "true" {
		http.Error(w, "warehouse unavailable", http.StatusBadGateway)
		return
	}

	time.Sleep(60 * time.Millisecond)
	logger.Ctx(ctx).Info().Str("order", orderNo).Msg("Order picked and packed.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pickupAddress": &domain.Address{
			Street: "1 Warehouse Way",
			City:   "RENO",
			State:  "NV",
			Zip:    "89502",
		},
	})
}

func handleShip(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Ship")
	defer span.End()
	orderNo := r.URL.Query().Get("order_no")

	shipmentID := "SHP-" + uuid.New().String()[:8]
	shipmentsMu.Lock()
	shipments[orderNo] = &shipment{trackingID: "TRK-" + uuid.New().String()[:8]}
	shipmentsMu.Unlock()

	logger.Ctx(ctx).Info().Str("order", orderNo).Str("shipment", shipmentID).Msg("Shipment accepted by carrier.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"shipmentId": shipmentID})
}

// handleTrack 每次调用把跟踪状态往前推一格，最终停在送达。
func handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Track")
	defer span.End()
	orderNo := r.URL.Query().Get("order_no")

	shipmentsMu.Lock()
	s, ok := shipments[orderNo]
	if !ok {
		s = &shipment{trackingID: "TRK-" + uuid.New().String()[:8]}
		shipments[orderNo] = s
	}
	trackingID := s.trackingID
	trackingStatus := trackingSequence[s.polls]
	if s.polls < len(trackingSequence)-1 {
		s.polls++
	}
	shipmentsMu.Unlock()

	logger.Ctx(ctx).Info().
		Str("order", orderNo).
		Str("tracking", trackingID).
		Str("status", trackingStatus).
		Msg("Tracking polled.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"trackingId":     trackingID,
		"trackingStatus": trackingStatus,
	})
}

func handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Verify")
	defer span.End()
	orderNo := r.URL.Query().Get("order_no")

	logger.Ctx(ctx).Info().Str("order", orderNo).Msg("Delivery verified.")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"proofOfDelivery": "POD-" + orderNo + "-" + time.Now().Format("20060102150405"),
	})
}

func handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Return")
	defer span.End()
	logger.Ctx(ctx).Info().Str("order", r.URL.Query().Get("order_no")).Msg("Return shipment scheduled.")
	w.WriteHeader(http.StatusOK)
}

func handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.Cancel")
	defer span.End()
	logger.Ctx(ctx).Info().Str("order", r.URL.Query().Get("order_no")).Msg("Delivery canceled.")
	w.WriteHeader(http.StatusOK)
}

func handleInventoryReturn(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "shipping-service.InventoryReturn")
	defer span.End()
	logger.Ctx(ctx).Info().Str("order", r.URL.Query().Get("order_no")).Msg("Inventory reservation released.")
	w.WriteHeader(http.StatusOK)
}
