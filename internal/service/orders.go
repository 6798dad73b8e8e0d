package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tatlight/backend/internal/gateway"
	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
)

// SettlementStatus описывает исход расчёта заказа.
type SettlementStatus string

const (
	// SettlementSuccess — заказ переведён в COMPLETED этим вызовом.
	SettlementSuccess SettlementStatus = "success"
	// SettlementAlreadyProcessed — заказ уже был рассчитан ранее.
	SettlementAlreadyProcessed SettlementStatus = "already_processed"
	// SettlementNotFound — заказ по ссылке транзакции не найден.
	SettlementNotFound SettlementStatus = "not_found"
	// SettlementSkipped — событие вебхука не требует расчёта заказа.
	SettlementSkipped SettlementStatus = "skipped"
)

// SettlementResult содержит исход расчёта и снимок заказа при успехе.
type SettlementResult struct {
	Status SettlementStatus
	Order  *model.Order
}

// PaymentLink содержит данные созданного платежа для перехода к оплате.
type PaymentLink struct {
	OrderID     uuid.UUID
	OrderNumber string
	PaymentLink string
	TxRef       string
}

func (s *Service) generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("%s-%s-%s", s.orderPrefix, time.Now().Format("20060102150405"), suffix)
}

// CreateOrderPayment создаёт заказ в статусе PENDING и платёж в шлюзе.
//
// Цена позиции фиксируется на момент создания заказа. Если шлюз не смог создать
// платёж, только что созданный заказ удаляется: незавершённый PENDING-заказ без
// ссылки транзакции никогда не будет рассчитан.
func (s *Service) CreateOrderPayment(ctx context.Context, userID, productID int64, paymentMethod string) (*PaymentLink, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:          uuid.New(),
		OrderNumber: s.generateOrderNumber(),
		UserID:      userID,
		Subtotal:    product.Price,
		Discount:    decimal.Zero,
		Total:       product.Price,
		Status:      model.OrderStatusPending,
		Items: []model.OrderItem{
			{
				ProductID: product.ID,
				Quantity:  1,
				Price:     product.Price,
			},
		},
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	init, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		Email:         user.Email,
		ProductTitle:  product.Title,
		Amount:        order.Total,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		if delErr := s.repo.DeleteOrder(ctx, order.ID); delErr != nil {
			return nil, fmt.Errorf("rollback order after gateway error: %w", delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	if init.Status != gateway.StatusSuccess {
		if delErr := s.repo.DeleteOrder(ctx, order.ID); delErr != nil {
			return nil, fmt.Errorf("rollback order after gateway failure: %w", delErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, init.Message)
	}

	if err := s.repo.SetOrderTransactionRef(ctx, order.ID, init.TxRef); err != nil {
		return nil, err
	}

	return &PaymentLink{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PaymentLink: init.PaymentLink,
		TxRef:       init.TxRef,
	}, nil
}

// settle переводит заказ PENDING→COMPLETED по ссылке транзакции. Обе точки
// входа — синхронная проверка платежа и вебхук — сходятся здесь, поэтому
// повторная доставка любого из путей даёт already_processed, а не повторное
// начисление.
func (s *Service) settle(ctx context.Context, txRef, paymentMethod string) (*SettlementResult, error) {
	order, err := s.repo.SettleOrder(ctx, txRef, paymentMethod)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return &SettlementResult{Status: SettlementNotFound}, nil
		}
		if errors.Is(err, repository.ErrOrderAlreadySettled) {
			return &SettlementResult{Status: SettlementAlreadyProcessed}, nil
		}
		return nil, err
	}

	return &SettlementResult{Status: SettlementSuccess, Order: order}, nil
}

// VerifyPayment проверяет платёж в шлюзе и рассчитывает заказ пользователя.
func (s *Service) VerifyPayment(ctx context.Context, userID int64, txRef string) (*SettlementResult, error) {
	verification, err := s.gateway.VerifyPayment(ctx, txRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	if verification.Status != gateway.StatusSuccess {
		return nil, ErrPaymentFailed
	}

	order, err := s.repo.GetOrderByTransactionRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return &SettlementResult{Status: SettlementNotFound}, nil
		}
		return nil, err
	}
	if order.UserID != userID {
		return &SettlementResult{Status: SettlementNotFound}, nil
	}

	paymentMethod := verification.PaymentType
	if paymentMethod == "" {
		paymentMethod = "gateway"
	}

	return s.settle(ctx, txRef, paymentMethod)
}

// HandleWebhook обрабатывает вебхук шлюза. Событие, не являющееся успешной
// оплатой, подтверждается без каких-либо действий.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte) (*SettlementResult, error) {
	event, err := s.gateway.ProcessWebhook(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	if event.Status != gateway.StatusSuccess || event.Action != gateway.ActionPaymentCompleted {
		return &SettlementResult{Status: SettlementSkipped}, nil
	}

	return s.settle(ctx, event.TxRef, "gateway")
}

// GetOrdersByUser возвращает заказы пользователя с позициями.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// DownloadProduct проверяет, что товар куплен пользователем, пишет запись в
// журнал скачиваний и возвращает товар.
func (s *Service) DownloadProduct(ctx context.Context, userID, productID int64, ipAddress string) (*model.Product, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	orderID, err := s.repo.FindCompletedOrderID(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateDownload(ctx, userID, productID, orderID, ipAddress); err != nil {
		return nil, err
	}

	return product, nil
}

// GetDownloadsByUser возвращает историю скачиваний пользователя.
func (s *Service) GetDownloadsByUser(ctx context.Context, userID int64) ([]model.Download, error) {
	return s.repo.GetDownloadsByUser(ctx, userID)
}

// GetDashboardStats возвращает сводные показатели для панели администратора.
func (s *Service) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	return s.repo.GetDashboardStats(ctx, time.Now())
}

// GetTopProducts возвращает товары с наибольшими продажами.
func (s *Service) GetTopProducts(ctx context.Context, limit int) ([]repository.ProductSales, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.GetTopProducts(ctx, limit)
}

// GetRevenueChart возвращает выручку по дням за последнюю неделю.
func (s *Service) GetRevenueChart(ctx context.Context) ([]repository.DailyRevenue, error) {
	return s.repo.GetRevenueByDay(ctx, time.Now(), 7)
}
