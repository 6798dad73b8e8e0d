package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tatlight/backend/internal/model"
)

// DashboardStats содержит сводные показатели для панели администратора.
type DashboardStats struct {
	Revenue        decimal.Decimal
	RevenueChange  float64
	Downloads      int64
	NewUsers       int64
	ActiveProducts int64
}

// ProductSales описывает товар в отчёте по продажам.
type ProductSales struct {
	ProductID int64
	Title     string
	Sales     int64
	Revenue   decimal.Decimal
	IsActive  bool
}

// DailyRevenue описывает выручку за один день.
type DailyRevenue struct {
	Date    time.Time
	Revenue decimal.Decimal
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (r *PostgresRepository) completedRevenueCents(ctx context.Context, from, to time.Time) (int64, error) {
	var cents int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_cents), 0)
		 FROM orders
		 WHERE status = $1 AND created_at >= $2 AND created_at < $3`,
		string(model.OrderStatusCompleted), from, to,
	).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return cents, nil
}

// GetDashboardStats возвращает показатели текущего месяца: выручку с изменением
// к прошлому месяцу, число скачиваний, новых пользователей и активных товаров.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	monthStart := startOfMonth(now)
	prevMonthStart := startOfMonth(monthStart.AddDate(0, 0, -1))

	revenueCents, err := r.completedRevenueCents(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}

	prevRevenueCents, err := r.completedRevenueCents(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	var change float64
	if prevRevenueCents > 0 {
		change = float64(revenueCents-prevRevenueCents) / float64(prevRevenueCents) * 100
	}

	stats := &DashboardStats{
		Revenue:       centsToDecimal(revenueCents),
		RevenueChange: change,
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM downloads WHERE downloaded_at >= $1`,
		monthStart,
	).Scan(&stats.Downloads)
	if err != nil {
		return nil, fmt.Errorf("count downloads: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE registered_at >= $1`,
		monthStart,
	).Scan(&stats.NewUsers)
	if err != nil {
		return nil, fmt.Errorf("count new users: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE is_active = TRUE`,
	).Scan(&stats.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("count active products: %w", err)
	}

	return stats, nil
}

// GetTopProducts возвращает товары с наибольшим числом продаж и их выручкой
// по завершённым заказам.
func (r *PostgresRepository) GetTopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.title, p.sales_count, p.is_active,
		        COALESCE((SELECT SUM(oi.quantity * oi.price_cents)
		                  FROM order_items oi
		                  JOIN orders o ON o.id = oi.order_id
		                  WHERE oi.product_id = p.id AND o.status = $1), 0)
		 FROM products p
		 ORDER BY p.sales_count DESC
		 LIMIT $2`,
		string(model.OrderStatusCompleted), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select top products: %w", err)
	}
	defer rows.Close()

	var res []ProductSales
	for rows.Next() {
		var (
			ps           ProductSales
			revenueCents int64
		)
		if err := rows.Scan(&ps.ProductID, &ps.Title, &ps.Sales, &ps.IsActive, &revenueCents); err != nil {
			return nil, fmt.Errorf("scan product sales: %w", err)
		}
		ps.Revenue = centsToDecimal(revenueCents)
		res = append(res, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetRevenueByDay возвращает выручку по дням за указанное число дней,
// включая дни без продаж.
func (r *PostgresRepository) GetRevenueByDay(ctx context.Context, now time.Time, days int) ([]DailyRevenue, error) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)

	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day, SUM(total_cents)
		 FROM orders
		 WHERE status = $1 AND created_at >= $2 AND created_at < $3
		 GROUP BY day`,
		string(model.OrderStatusCompleted), start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select daily revenue: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]int64)
	for rows.Next() {
		var (
			day   time.Time
			cents int64
		)
		if err := rows.Scan(&day, &cents); err != nil {
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		byDay[day.Format("2006-01-02")] = cents
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	res := make([]DailyRevenue, 0, days)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		res = append(res, DailyRevenue{
			Date:    d,
			Revenue: centsToDecimal(byDay[d.Format("2006-01-02")]),
		})
	}

	return res, nil
}
