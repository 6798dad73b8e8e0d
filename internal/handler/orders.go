package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tatlight/backend/internal/middleware"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/service"
)

type createPaymentRequest struct {
	ProductID     int64  `json:"product_id"`
	PaymentMethod string `json:"payment_method"`
}

type paymentLinkResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	PaymentLink string `json:"payment_link"`
	TxRef       string `json:"tx_ref"`
}

// CreatePayment создаёт заказ и платёж в шлюзе для текущего пользователя.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ProductID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	link, err := h.service.CreateOrderPayment(r.Context(), userID, req.ProductID, req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrAlreadyPurchased):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrPaymentFailed):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, service.ErrGatewayUnavailable):
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		default:
			h.logger.Error("create payment error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, paymentLinkResponse{
		OrderID:     link.OrderID.String(),
		OrderNumber: link.OrderNumber,
		PaymentLink: link.PaymentLink,
		TxRef:       link.TxRef,
	})
}

type orderItemResponse struct {
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title,omitempty"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderResponse struct {
	ID                  string              `json:"id"`
	OrderNumber         string              `json:"order_number"`
	Status              string              `json:"status"`
	Subtotal            float64             `json:"subtotal"`
	Discount            float64             `json:"discount"`
	Total               float64             `json:"total"`
	PaymentMethod       string              `json:"payment_method,omitempty"`
	LoyaltyPointsEarned int64               `json:"loyalty_points_earned"`
	CreatedAt           string              `json:"created_at"`
	CompletedAt         string              `json:"completed_at,omitempty"`
	Items               []orderItemResponse `json:"items"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		})
	}

	resp := orderResponse{
		ID:                  o.ID.String(),
		OrderNumber:         o.OrderNumber,
		Status:              string(o.Status),
		Subtotal:            o.Subtotal.InexactFloat64(),
		Discount:            o.Discount.InexactFloat64(),
		Total:               o.Total.InexactFloat64(),
		PaymentMethod:       o.PaymentMethod,
		LoyaltyPointsEarned: o.LoyaltyPointsEarned,
		CreatedAt:           o.CreatedAt.Format(time.RFC3339),
		Items:               items,
	}
	if o.CompletedAt != nil {
		resp.CompletedAt = o.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

type settlementResponse struct {
	Status string         `json:"status"`
	Order  *orderResponse `json:"order,omitempty"`
}

type verifyPaymentRequest struct {
	TxRef string `json:"tx_ref"`
}

// VerifyPayment проверяет платёж в шлюзе и рассчитывает заказ пользователя.
// Повторная проверка уже рассчитанного заказа отвечает already_processed.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.TxRef == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), userID, req.TxRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentFailed):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, service.ErrGatewayUnavailable):
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		default:
			h.logger.Error("verify payment error", zap.Error(err), zap.String("txRef", req.TxRef))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	if result.Status == service.SettlementNotFound {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	resp := settlementResponse{Status: string(result.Status)}
	if result.Order != nil {
		order := toOrderResponse(result.Order)
		resp.Order = &order
	}

	writeJSON(w, resp)
}

// Webhook обрабатывает уведомление платёжного шлюза. Шлюз повторяет доставку
// при любом ответе кроме 200, поэтому уведомление о неизвестном заказе
// логируется и подтверждается: повторы его не исправят.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), payload)
	if err != nil {
		if errors.Is(err, service.ErrGatewayUnavailable) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("webhook error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if result.Status == service.SettlementNotFound {
		h.logger.Warn("webhook for unknown transaction", zap.String("status", string(result.Status)))
	}

	writeJSON(w, map[string]string{"status": string(result.Status)})
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, resp)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type downloadResponse struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	FileType  string `json:"file_type,omitempty"`
}

// Download проверяет покупку товара текущим пользователем и фиксирует скачивание.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.DownloadProduct(r.Context(), userID, id, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotPurchased):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		default:
			h.logger.Error("download error", zap.Error(err), zap.Int64("productID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, downloadResponse{
		ProductID: product.ID,
		Title:     product.Title,
		FileType:  product.FileType,
	})
}

type downloadHistoryResponse struct {
	ProductID    int64  `json:"product_id"`
	OrderID      string `json:"order_id"`
	DownloadedAt string `json:"downloaded_at"`
}

// GetDownloads возвращает историю скачиваний текущего пользователя.
func (h *Handler) GetDownloads(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	downloads, err := h.service.GetDownloadsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get downloads error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(downloads) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]downloadHistoryResponse, 0, len(downloads))
	for _, d := range downloads {
		resp = append(resp, downloadHistoryResponse{
			ProductID:    d.ProductID,
			OrderID:      d.OrderID.String(),
			DownloadedAt: d.DownloadedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, resp)
}
