package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"oms/internal/order/domain"
)

// 身份解析在上游网关完成，这里只接收解析结果。
const userNameHeader = "X-User-Name"

// OrderUsecase 是 HTTP 层对应用层的依赖面。
type OrderUsecase interface {
	Create(ctx context.Context, userName string) (*domain.Order, error)
	List(ctx context.Context, userName string, pageSize, page int) ([]*domain.Order, error)
	Get(ctx context.Context, userName string, orderID uuid.UUID) (*domain.Order, error)
	AddPosition(ctx context.Context, userName string, orderID uuid.UUID, productCode string, quantity int) (uuid.UUID, error)
	RemovePosition(ctx context.Context, userName string, positionID uuid.UUID) error
	Place(ctx context.Context, userName string, orderID uuid.UUID) error
	Pay(ctx context.Context, userName string, orderID uuid.UUID) error
	Cancel(ctx context.Context, userName string, orderID uuid.UUID) error
}

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service OrderUsecase
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service OrderUsecase) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /orders/{id}/positions", h.addPosition)
	mux.HandleFunc("DELETE /positions/{id}", h.removePosition)
	mux.HandleFunc("POST /orders/{id}/place", h.placeOrder)
	mux.HandleFunc("POST /orders/{id}/pay", h.payOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}

	order, err := h.service.Create(ctx, userName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:   order.ID.String(),
		CreatedAt: order.CreatedAt,
	})
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}

	pageSize := queryInt(r, "pageSize", 10)
	page := queryInt(r, "page", 1)
	if pageSize < 1 || page < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BAD_REQUEST", Message: "pageSize and page must be >= 1"})
		return
	}

	orders, err := h.service.List(ctx, userName, pageSize, page)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]orderDto, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDto(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.service.Get(ctx, userName, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDto(order))
}

func (h *OrderHandler) addPosition(w http.ResponseWriter, r *http.Request) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req addPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductCode == "" || req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BAD_REQUEST", Message: "productCode and positive quantity required"})
		return
	}

	positionID, err := h.service.AddPosition(ctx, userName, orderID, req.ProductCode, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addPositionResponse{PositionID: positionID.String()})
}

func (h *OrderHandler) removePosition(w http.ResponseWriter, r *http.Request) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}
	positionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemovePosition(ctx, userName, positionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Place)
}

func (h *OrderHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Pay)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userName string, orderID uuid.UUID) error) {
	ctx, userName, ok := h.begin(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := op(ctx, userName, orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// begin 提取追踪上下文和已解析的用户身份。
func (h *OrderHandler) begin(w http.ResponseWriter, r *http.Request) (ctx context.Context, userName string, ok bool) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	userName = r.Header.Get(userNameHeader)
	if userName == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED", Message: "missing " + userNameHeader + " header"})
		return ctx, "", false
	}
	return ctx, userName, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BAD_REQUEST", Message: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

// writeError 将错误类别映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindOwnershipViolation:
		status = http.StatusForbidden
	case domain.KindStateConflict:
		status = http.StatusConflict
	case domain.KindProductUnavailable:
		status = http.StatusUnprocessableEntity
	case domain.KindInsufficientFunds:
		status = http.StatusPaymentRequired
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// 驱动和传输层的细节只进日志，不回给客户端。
		log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: string(kind), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
