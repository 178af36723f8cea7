// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

const serviceName = "order-service"

// OrderHandler 封装订单服务的 HTTP 处理器。
// 承运商回调（揽收、跟踪、签收）也走这里进入协调器的续延。
type OrderHandler struct {
	coordinator *application.Coordinator
}

// NewOrderHandler 创建 HTTP 处理器实例。
func NewOrderHandler(coordinator *application.Coordinator) *OrderHandler {
	return &OrderHandler{coordinator: coordinator}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/orders/create", h.createOrder)
	mux.HandleFunc("/orders/get", h.getOrder)
	mux.HandleFunc("/orders/approve", h.approveOrder)
	mux.HandleFunc("/orders/complete", h.completeOrder)
	mux.HandleFunc("/orders/cancel", h.cancelOrder)
	mux.HandleFunc("/orders/delete", h.deleteOrder)

	// 承运商/支付回调
	mux.HandleFunc("/callbacks/payment_completed", h.paymentCompleted)
	mux.HandleFunc("/callbacks/order_shipped", h.orderShipped)
	mux.HandleFunc("/callbacks/tracking_update", h.trackingUpdate)
	mux.HandleFunc("/callbacks/delivery_verified", h.deliveryVerified)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.CreateOrder")
	defer span.End()

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.coordinator.CreateOrder(ctx, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("order.no", order.OrderNo))

	writeJSON(w, http.StatusCreated, &application.CreateOrderResponse{
		OrderNo: order.OrderNo,
		Status:  order.Status,
		Message: "order accepted, processing asynchronously",
	})
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.GetOrder")
	defer span.End()

	order, err := h.coordinator.Get(ctx, r.URL.Query().Get("order_no"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) approveOrder(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, "order.http.ApproveOrder", h.coordinator.Approve)
}

func (h *OrderHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, "order.http.CompleteOrder", h.coordinator.Complete)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, "order.http.CancelOrder", h.coordinator.Cancel)
}

func (h *OrderHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.DeleteOrder")
	defer span.End()

	orderNo := r.URL.Query().Get("order_no")
	if err := h.coordinator.Delete(ctx, orderNo); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) paymentCompleted(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.PaymentCompleted")
	defer span.End()

	order, err := h.coordinator.PaymentCompleted(ctx, r.URL.Query().Get("order_no"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) orderShipped(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.OrderShipped")
	defer span.End()

	q := r.URL.Query()
	order, err := h.coordinator.OrderShipped(ctx, q.Get("order_no"), q.Get("shipment_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) trackingUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.TrackingUpdate")
	defer span.End()

	q := r.URL.Query()
	order, done, err := h.coordinator.TrackingUpdate(ctx, q.Get("order_no"), q.Get("tracking_id"), q.Get("tracking_status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":     order,
		"delivered": done,
	})
}

func (h *OrderHandler) deliveryVerified(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "order.http.DeliveryVerified")
	defer span.End()

	q := r.URL.Query()
	order, err := h.coordinator.DeliveryVerified(ctx, q.Get("order_no"), q.Get("proof_of_delivery"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) statusChange(w http.ResponseWriter, r *http.Request, spanName string,
	op func(ctx context.Context, orderNo string) (*domain.Order, error)) {
	ctx, span := h.startSpan(r, spanName)
	defer span.End()

	orderNo := r.URL.Query().Get("order_no")
	span.SetAttributes(attribute.String("order.no", orderNo))

	order, err := op(ctx, orderNo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// startSpan 恢复入站链路上下文并开一个服务端 span。
func (h *OrderHandler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceName)
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
}

// writeError 把领域错误映射到 HTTP 状态码。
func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var transitionErr *domain.StatusTransitionError
	var validationErr *domain.ValidationError
	var payloadErr *domain.PayloadError
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.As(err, &transitionErr):
		status = http.StatusConflict
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &payloadErr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrItemsInvalid):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed.")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
