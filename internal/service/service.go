// Package service реализует бизнес-логику магазина цифровых товаров.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/tatlight/backend/internal/gateway"
	"github.com/tatlight/backend/internal/loyalty"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/validation"
)

// ErrInvalidEmail возвращается при регистрации с некорректным email.
var (
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword возвращается, если пароль короче минимальной длины.
	ErrWeakPassword = errors.New("password is too short")
	// ErrPasswordMismatch возвращается, если пароль и подтверждение не совпадают.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRating возвращается, если оценка отзыва вне диапазона 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNegativePrice возвращается при попытке сохранить товар с отрицательной ценой.
	ErrNegativePrice = errors.New("price must not be negative")
	// ErrPaymentFailed возвращается, когда шлюз сообщает о неуспешном платеже.
	ErrPaymentFailed = errors.New("payment not confirmed by gateway")
	// ErrGatewayUnavailable возвращается, когда шлюз недоступен или вернул ошибку.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email string, passwordHash []byte, firstName, lastName string) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, firstName, lastName string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error
	DeactivateUser(ctx context.Context, id int64) error
	CountCompletedOrders(ctx context.Context, userID int64) (int64, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	GetRelatedProducts(ctx context.Context, productID int64, limit int) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	ToggleProductActive(ctx context.Context, id int64) (bool, error)

	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)
	CreateReview(ctx context.Context, productID, userID int64, rating int, comment string) (int64, error)
	UpdateReview(ctx context.Context, reviewID, userID int64, rating int, comment string) error
	DeleteReview(ctx context.Context, reviewID, userID int64) error

	CreateOrder(ctx context.Context, order *model.Order) error
	SetOrderTransactionRef(ctx context.Context, orderID uuid.UUID, txRef string) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderByTransactionRef(ctx context.Context, txRef string) (*model.Order, error)
	SettleOrder(ctx context.Context, txRef, paymentMethod string) (*model.Order, error)

	FindCompletedOrderID(ctx context.Context, userID, productID int64) (uuid.UUID, error)
	CreateDownload(ctx context.Context, userID, productID int64, orderID uuid.UUID, ipAddress string) error
	GetDownloadsByUser(ctx context.Context, userID int64) ([]model.Download, error)

	GetDashboardStats(ctx context.Context, now time.Time) (*repository.DashboardStats, error)
	GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error)
	GetRevenueByDay(ctx context.Context, now time.Time, days int) ([]repository.DailyRevenue, error)
}

// Gateway описывает контракт платёжного шлюза, используемый сервисом.
type Gateway interface {
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentInit, error)
	VerifyPayment(ctx context.Context, txRef string) (*gateway.Verification, error)
	ProcessWebhook(payload []byte) (*gateway.WebhookEvent, error)
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo        Repository
	gateway     Gateway
	ledger      *loyalty.Ledger
	orderPrefix string
}

// NewService создаёт новый сервис с указанным репозиторием, клиентом шлюза и
// конфигурацией программы лояльности.
func NewService(repo Repository, gw Gateway, ledger *loyalty.Ledger, orderPrefix string) *Service {
	if orderPrefix == "" {
		orderPrefix = "TAT"
	}
	return &Service{
		repo:        repo,
		gateway:     gw,
		ledger:      ledger,
		orderPrefix: orderPrefix,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterInput содержит данные формы регистрации.
type RegisterInput struct {
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

// RegisterUser регистрирует нового пользователя. Проверки выполняются до
// какой-либо записи: некорректный ввод не оставляет следов в БД.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (int64, error) {
	if !validation.IsValidEmail(in.Email) {
		return 0, ErrInvalidEmail
	}
	if !validation.IsValidPassword(in.Password) {
		return 0, ErrWeakPassword
	}
	if in.Password != in.PasswordConfirm {
		return 0, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, strings.ToLower(in.Email), hash, in.FirstName, in.LastName)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile обновляет имя и фамилию и возвращает обновлённый профиль.
// Email неизменяем.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, firstName, lastName string) (*model.User, error) {
	if err := s.repo.UpdateUserProfile(ctx, userID, firstName, lastName); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

// ChangePassword меняет пароль пользователя после проверки старого пароля.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, newPasswordConfirm string) error {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if !validation.IsValidPassword(newPassword) {
		return ErrWeakPassword
	}
	if newPassword != newPasswordConfirm {
		return ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdateUserPassword(ctx, userID, hash)
}

// DeactivateAccount выполняет мягкое удаление аккаунта.
func (s *Service) DeactivateAccount(ctx context.Context, userID int64) error {
	return s.repo.DeactivateUser(ctx, userID)
}

// UserStats содержит статистику пользователя для личного кабинета.
type UserStats struct {
	TotalPurchases  int64
	TotalSpent      decimal.Decimal
	LoyaltyPoints   int64
	LoyaltyTier     model.LoyaltyTier
	DiscountPercent int
	CompletedOrders int64
	MemberSince     time.Time
}

// GetUserStats возвращает статистику пользователя, включая скидку его уровня.
func (s *Service) GetUserStats(ctx context.Context, userID int64) (*UserStats, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.CountCompletedOrders(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserStats{
		TotalPurchases:  u.TotalPurchases,
		TotalSpent:      u.TotalSpent,
		LoyaltyPoints:   u.LoyaltyPoints,
		LoyaltyTier:     u.LoyaltyTier,
		DiscountPercent: s.ledger.DiscountFor(u.LoyaltyTier),
		CompletedOrders: completed,
		MemberSince:     u.RegisteredAt,
	}, nil
}
