package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tatlight/backend/internal/middleware"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUser *model.User
	authErr  error

	profileUser *model.User
	profileErr  error

	statsResp *service.UserStats
	statsErr  error

	productsResp []model.Product
	productsErr  error

	productResp *model.Product
	productErr  error

	createReviewID  int64
	createReviewErr error

	paymentResp *service.PaymentLink
	paymentErr  error

	verifyResp *service.SettlementResult
	verifyErr  error

	webhookResp    *service.SettlementResult
	webhookErr     error
	webhookPayload []byte

	ordersResp []model.Order
	ordersErr  error

	downloadResp *model.Product
	downloadErr  error

	adminStats *repository.DashboardStats
}

func (s *stubService) RegisterUser(ctx context.Context, in service.RegisterInput) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.profileUser, s.profileErr
}

func (s *stubService) UpdateProfile(ctx context.Context, userID int64, firstName, lastName string) (*model.User, error) {
	return s.profileUser, s.profileErr
}

func (s *stubService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, newPasswordConfirm string) error {
	return nil
}

func (s *stubService) DeactivateAccount(ctx context.Context, userID int64) error { return nil }

func (s *stubService) GetUserStats(ctx context.Context, userID int64) (*service.UserStats, error) {
	return s.statsResp, s.statsErr
}

func (s *stubService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return nil, nil
}

func (s *stubService) GetCategory(ctx context.Context, slug string) (*model.Category, error) {
	return nil, nil
}

func (s *stubService) ListProducts(ctx context.Context, categorySlug string, includeInactive bool) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) FeaturedProducts(ctx context.Context) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) RelatedProducts(ctx context.Context, productID int64) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, id int64, in service.ProductInput) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) ToggleProduct(ctx context.Context, id int64) (bool, error) {
	return false, s.productErr
}

func (s *stubService) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	return nil, nil
}

func (s *stubService) CreateReview(ctx context.Context, userID, productID int64, rating int, comment string) (int64, error) {
	return s.createReviewID, s.createReviewErr
}

func (s *stubService) UpdateReview(ctx context.Context, userID, reviewID int64, rating int, comment string) error {
	return s.createReviewErr
}

func (s *stubService) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	return s.createReviewErr
}

func (s *stubService) CreateOrderPayment(ctx context.Context, userID, productID int64, paymentMethod string) (*service.PaymentLink, error) {
	return s.paymentResp, s.paymentErr
}

func (s *stubService) VerifyPayment(ctx context.Context, userID int64, txRef string) (*service.SettlementResult, error) {
	return s.verifyResp, s.verifyErr
}

func (s *stubService) HandleWebhook(ctx context.Context, payload []byte) (*service.SettlementResult, error) {
	s.webhookPayload = payload
	return s.webhookResp, s.webhookErr
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) DownloadProduct(ctx context.Context, userID, productID int64, ipAddress string) (*model.Product, error) {
	return s.downloadResp, s.downloadErr
}

func (s *stubService) GetDownloadsByUser(ctx context.Context, userID int64) ([]model.Download, error) {
	return nil, nil
}

func (s *stubService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	return s.adminStats, nil
}

func (s *stubService) GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error) {
	return nil, nil
}

func (s *stubService) GetRevenueChart(ctx context.Context) ([]repository.DailyRevenue, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authedRequest(t *testing.T, h *Handler, method, target string, body []byte, userID int64, isStaff bool) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID, isStaff)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerUserID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:           "user@example.com",
		Password:        "password1",
		PasswordConfirm: "password1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie must be set on register")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:           "user@example.com",
		Password:        "password1",
		PasswordConfirm: "password1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid email", service.ErrInvalidEmail},
		{"weak password", service.ErrWeakPassword},
		{"password mismatch", service.ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{registerErr: tt.err}
			h := newTestHandler(t, svc)

			body, _ := json.Marshal(registerRequest{
				Email:           "user@example.com",
				Password:        "password1",
				PasswordConfirm: "password1",
			})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.Register(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	svc := &stubService{productErr: repository.ErrProductNotFound}
	h := newTestHandler(t, svc)

	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/products/99", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetProduct_InactiveHiddenFromVisitors(t *testing.T) {
	svc := &stubService{
		productResp: &model.Product{ID: 5, Title: "Hidden", Price: decimal.NewFromInt(10), IsActive: false},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/products/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("visitor status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	staffReq := authedRequest(t, h, http.MethodGet, "/api/products/5", nil, 1, true)
	staffRec := httptest.NewRecorder()
	router.ServeHTTP(staffRec, staffReq)

	if staffRec.Code != http.StatusOK {
		t.Fatalf("staff status = %d, want %d", staffRec.Code, http.StatusOK)
	}
}

func TestCreateReview_Conflict(t *testing.T) {
	svc := &stubService{createReviewErr: repository.ErrReviewExists}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(reviewRequest{Rating: 5, Comment: "great"})
	req := authedRequest(t, h, http.MethodPost, "/api/products/5/reviews", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateReview_RequiresAuth(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(reviewRequest{Rating: 5})
	req := httptest.NewRequest(http.MethodPost, "/api/products/5/reviews", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreatePayment_GatewayUnavailable(t *testing.T) {
	svc := &stubService{paymentErr: service.ErrGatewayUnavailable}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(createPaymentRequest{ProductID: 5, PaymentMethod: "card"})
	req := authedRequest(t, h, http.MethodPost, "/api/orders/", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestCreatePayment_AlreadyPurchased(t *testing.T) {
	svc := &stubService{paymentErr: repository.ErrAlreadyPurchased}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(createPaymentRequest{ProductID: 5, PaymentMethod: "card"})
	req := authedRequest(t, h, http.MethodPost, "/api/orders/", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestVerifyPayment_AlreadyProcessed(t *testing.T) {
	svc := &stubService{
		verifyResp: &service.SettlementResult{Status: service.SettlementAlreadyProcessed},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(verifyPaymentRequest{TxRef: "TX-1"})
	req := authedRequest(t, h, http.MethodPost, "/api/orders/verify", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp settlementResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "already_processed" {
		t.Fatalf("settlement status = %s, want already_processed", resp.Status)
	}
}

func TestVerifyPayment_NotFound(t *testing.T) {
	svc := &stubService{
		verifyResp: &service.SettlementResult{Status: service.SettlementNotFound},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(verifyPaymentRequest{TxRef: "TX-1"})
	req := authedRequest(t, h, http.MethodPost, "/api/orders/verify", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestWebhook_AcksUnknownTransaction(t *testing.T) {
	svc := &stubService{
		webhookResp: &service.SettlementResult{Status: service.SettlementNotFound},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	payload := `{"event":"charge.completed","data":{"tx_ref":"TX-unknown","status":"successful"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders/webhook/flutterwave", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown transaction must be acknowledged, status = %d", rec.Code)
	}
	if string(svc.webhookPayload) != payload {
		t.Fatalf("raw payload must reach the service unchanged")
	}
}

func TestWebhook_NoAuthRequired(t *testing.T) {
	svc := &stubService{
		webhookResp: &service.SettlementResult{Status: service.SettlementSuccess},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/orders/webhook/flutterwave", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authedRequest(t, h, http.MethodGet, "/api/orders/", nil, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestDownload_Forbidden(t *testing.T) {
	svc := &stubService{downloadErr: repository.ErrNotPurchased}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authedRequest(t, h, http.MethodPost, "/api/products/5/download", nil, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminRoutes_RequireStaff(t *testing.T) {
	svc := &stubService{
		adminStats: &repository.DashboardStats{Revenue: decimal.NewFromInt(100)},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authedRequest(t, h, http.MethodGet, "/api/admin/stats", nil, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-staff status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	staffReq := authedRequest(t, h, http.MethodGet, "/api/admin/stats", nil, 1, true)
	staffRec := httptest.NewRecorder()
	router.ServeHTTP(staffRec, staffReq)

	if staffRec.Code != http.StatusOK {
		t.Fatalf("staff status = %d, want %d", staffRec.Code, http.StatusOK)
	}
}

func TestCreateProduct_RequiresStaff(t *testing.T) {
	svc := &stubService{
		productResp: &model.Product{ID: 1, Title: "New", Price: decimal.NewFromInt(10), IsActive: true},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(productRequest{Title: "New", Price: 10})

	req := authedRequest(t, h, http.MethodPost, "/api/products/", body, 1, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-staff status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	staffReq := authedRequest(t, h, http.MethodPost, "/api/products/", body, 1, true)
	staffRec := httptest.NewRecorder()
	router.ServeHTTP(staffRec, staffReq)

	if staffRec.Code != http.StatusCreated {
		t.Fatalf("staff status = %d, want %d", staffRec.Code, http.StatusCreated)
	}
}
