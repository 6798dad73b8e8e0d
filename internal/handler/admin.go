package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type dashboardStatsResponse struct {
	Revenue        float64 `json:"revenue"`
	RevenueChange  float64 `json:"revenue_change"`
	Downloads      int64   `json:"downloads"`
	NewUsers       int64   `json:"new_users"`
	ActiveProducts int64   `json:"active_products"`
}

// AdminStats возвращает сводные показатели текущего месяца.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		h.logger.Error("dashboard stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, dashboardStatsResponse{
		Revenue:        stats.Revenue.InexactFloat64(),
		RevenueChange:  stats.RevenueChange,
		Downloads:      stats.Downloads,
		NewUsers:       stats.NewUsers,
		ActiveProducts: stats.ActiveProducts,
	})
}

type productSalesResponse struct {
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title"`
	Sales     int64   `json:"sales"`
	Revenue   float64 `json:"revenue"`
	IsActive  bool    `json:"is_active"`
}

// AdminTopProducts возвращает товары с наибольшими продажами.
func (h *Handler) AdminTopProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	products, err := h.service.GetTopProducts(r.Context(), limit)
	if err != nil {
		h.logger.Error("top products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productSalesResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productSalesResponse{
			ProductID: p.ProductID,
			Title:     p.Title,
			Sales:     p.Sales,
			Revenue:   p.Revenue.InexactFloat64(),
			IsActive:  p.IsActive,
		})
	}

	writeJSON(w, resp)
}

type dailyRevenueResponse struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// AdminRevenueChart возвращает выручку по дням за последнюю неделю.
func (h *Handler) AdminRevenueChart(w http.ResponseWriter, r *http.Request) {
	days, err := h.service.GetRevenueChart(r.Context())
	if err != nil {
		h.logger.Error("revenue chart error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]dailyRevenueResponse, 0, len(days))
	for _, d := range days {
		resp = append(resp, dailyRevenueResponse{
			Date:    d.Date.Format(time.DateOnly),
			Revenue: d.Revenue.InexactFloat64(),
		})
	}

	writeJSON(w, resp)
}
