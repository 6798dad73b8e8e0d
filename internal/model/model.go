// Package model содержит доменные сущности магазина цифровых товаров.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoyaltyTier описывает уровень программы лояльности пользователя.
type LoyaltyTier string

const (
	TierBronze   LoyaltyTier = "BRONZE"
	TierSilver   LoyaltyTier = "SILVER"
	TierGold     LoyaltyTier = "GOLD"
	TierPlatinum LoyaltyTier = "PLATINUM"
)

// TierRank возвращает порядковый номер уровня для сравнения уровней между собой.
func TierRank(t LoyaltyTier) int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	default:
		return 0
	}
}

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID             int64
	Email          string
	PasswordHash   []byte
	FirstName      string
	LastName       string
	IsActive       bool
	IsStaff        bool
	LoyaltyPoints  int64
	LoyaltyTier    LoyaltyTier
	TotalPurchases int64
	TotalSpent     decimal.Decimal
	RegisteredAt   time.Time
}

// FullName возвращает полное имя пользователя либо email, если имя не заполнено.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Email
}

// Category описывает категорию каталога.
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Icon        string
}

// Product описывает цифровой товар каталога.
//
// Поля Rating и ReviewsCount пересчитываются только агрегатором отзывов,
// SalesCount изменяется только при завершении заказа.
type Product struct {
	ID           int64
	Title        string
	Slug         string
	Description  string
	CategoryID   int64
	CategorySlug string
	FileType     string
	Price        decimal.Decimal
	Rating       float64
	ReviewsCount int64
	SalesCount   int64
	IsActive     bool
	Featured     bool
	CreatedAt    time.Time
}

// Review описывает отзыв пользователя о товаре. На пару (товар, пользователь)
// допускается не более одного отзыва.
type Review struct {
	ID        int64
	ProductID int64
	UserID    int64
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// Order описывает заказ пользователя.
//
// TransactionRef — ключ идемпотентности, присвоенный платёжным шлюзом:
// одной ссылке соответствует ровно один заказ, и переход PENDING→COMPLETED
// выполняется по ней не более одного раза.
type Order struct {
	ID                  uuid.UUID
	OrderNumber         string
	UserID              int64
	Subtotal            decimal.Decimal
	Discount            decimal.Decimal
	Total               decimal.Decimal
	Status              OrderStatus
	PaymentMethod       string
	TransactionRef      string
	LoyaltyPointsEarned int64
	CreatedAt           time.Time
	CompletedAt         *time.Time
	Items               []OrderItem
}

// OrderItem описывает позицию заказа. Цена фиксируется в момент создания
// заказа и не пересчитывается при изменении цены товара в каталоге.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	ProductID int64
	Title     string
	Quantity  int64
	Price     decimal.Decimal
}

// Download описывает факт скачивания купленного файла. Записи только добавляются.
type Download struct {
	ID           int64
	UserID       int64
	ProductID    int64
	OrderID      uuid.UUID
	DownloadedAt time.Time
	IPAddress    string
}
