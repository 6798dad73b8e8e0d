// Package handler содержит HTTP-обработчики API магазина цифровых товаров.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tatlight/backend/internal/middleware"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, firstName, lastName string) (*model.User, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, newPasswordConfirm string) error
	DeactivateAccount(ctx context.Context, userID int64) error
	GetUserStats(ctx context.Context, userID int64) (*service.UserStats, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, slug string) (*model.Category, error)
	ListProducts(ctx context.Context, categorySlug string, includeInactive bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	FeaturedProducts(ctx context.Context) ([]model.Product, error)
	RelatedProducts(ctx context.Context, productID int64) ([]model.Product, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, in service.ProductInput) (*model.Product, error)
	ToggleProduct(ctx context.Context, id int64) (bool, error)

	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)
	CreateReview(ctx context.Context, userID, productID int64, rating int, comment string) (int64, error)
	UpdateReview(ctx context.Context, userID, reviewID int64, rating int, comment string) error
	DeleteReview(ctx context.Context, userID, reviewID int64) error

	CreateOrderPayment(ctx context.Context, userID, productID int64, paymentMethod string) (*service.PaymentLink, error)
	VerifyPayment(ctx context.Context, userID int64, txRef string) (*service.SettlementResult, error)
	HandleWebhook(ctx context.Context, payload []byte) (*service.SettlementResult, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	DownloadProduct(ctx context.Context, userID, productID int64, ipAddress string) (*model.Product, error)
	GetDownloadsByUser(ctx context.Context, userID int64) ([]model.Download, error)

	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
	GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error)
	GetRevenueChart(ctx context.Context) ([]repository.DailyRevenue, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type registerRequest struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	LoyaltyPoints  int64   `json:"loyalty_points"`
	LoyaltyTier    string  `json:"loyalty_tier"`
	TotalPurchases int64   `json:"total_purchases"`
	TotalSpent     float64 `json:"total_spent"`
	IsStaff        bool    `json:"is_staff"`
	RegisteredAt   string  `json:"registered_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		LoyaltyPoints:  u.LoyaltyPoints,
		LoyaltyTier:    string(u.LoyaltyTier),
		TotalPurchases: u.TotalPurchases,
		TotalSpent:     u.TotalSpent.InexactFloat64(),
		IsStaff:        u.IsStaff,
		RegisteredAt:   u.RegisteredAt.Format(time.RFC3339),
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword),
			errors.Is(err, service.ErrPasswordMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("register user error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, false)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.IsStaff)
	writeJSON(w, toUserResponse(user))
}

// Logout сбрасывает cookie аутентификации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toUserResponse(user))
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateProfile изменяет имя и фамилию текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req.FirstName, req.LastName)
	if err != nil {
		h.logger.Error("update profile error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toUserResponse(user))
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrPasswordMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("change password error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAccount деактивирует аккаунт текущего пользователя и сбрасывает cookie.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), userID); err != nil {
		h.logger.Error("deactivate account error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type userStatsResponse struct {
	TotalPurchases  int64   `json:"total_purchases"`
	TotalSpent      float64 `json:"total_spent"`
	LoyaltyPoints   int64   `json:"loyalty_points"`
	LoyaltyTier     string  `json:"loyalty_tier"`
	DiscountPercent int     `json:"discount_percent"`
	CompletedOrders int64   `json:"completed_orders"`
	MemberSince     string  `json:"member_since"`
}

// GetUserStats возвращает статистику текущего пользователя.
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("get user stats error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, userStatsResponse{
		TotalPurchases:  stats.TotalPurchases,
		TotalSpent:      stats.TotalSpent.InexactFloat64(),
		LoyaltyPoints:   stats.LoyaltyPoints,
		LoyaltyTier:     string(stats.LoyaltyTier),
		DiscountPercent: stats.DiscountPercent,
		CompletedOrders: stats.CompletedOrders,
		MemberSince:     stats.MemberSince.Format(time.RFC3339),
	})
}
