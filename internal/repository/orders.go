package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tatlight/backend/internal/model"
)

// CreateOrder сохраняет заказ с позициями в статусе PENDING.
// Повторная покупка уже купленного товара отклоняется до обращения к шлюзу.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		var purchased bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM orders o
			   JOIN order_items oi ON oi.order_id = o.id
			   WHERE o.user_id = $1 AND o.status = $2 AND oi.product_id = $3
			 )`,
			order.UserID, string(model.OrderStatusCompleted), item.ProductID,
		).Scan(&purchased)
		if err != nil {
			return fmt.Errorf("check purchased: %w", err)
		}
		if purchased {
			return ErrAlreadyPurchased
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, order_number, user_id, subtotal_cents, discount_cents, total_cents, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.OrderNumber, order.UserID,
		decimalToCents(order.Subtotal), decimalToCents(order.Discount), decimalToCents(order.Total),
		string(model.OrderStatusPending),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			 VALUES ($1, $2, $3, $4)`,
			order.ID, item.ProductID, item.Quantity, decimalToCents(item.Price),
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// SetOrderTransactionRef сохраняет ссылку транзакции, присвоенную шлюзом.
func (r *PostgresRepository) SetOrderTransactionRef(ctx context.Context, orderID uuid.UUID, txRef string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET transaction_ref = $2 WHERE id = $1`,
		orderID, txRef,
	)
	if err != nil {
		return fmt.Errorf("set transaction ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteOrder удаляет заказ вместе с позициями. Используется для отката
// только что созданного заказа, когда шлюз не смог создать платёж.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) loadOrderItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, p.title, oi.quantity, oi.price_cents
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]model.OrderItem)
	for rows.Next() {
		var (
			item       model.OrderItem
			priceCents int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title,
			&item.Quantity, &priceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Price = centsToDecimal(priceCents)
		res[item.OrderID] = append(res[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrdersByUser возвращает заказы пользователя с позициями, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, user_id, subtotal_cents, discount_cents, total_cents,
		        status, payment_method, COALESCE(transaction_ref, ''), loyalty_points_earned,
		        created_at, completed_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []model.Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.loadOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		subtotalCents int64
		discountCents int64
		totalCents    int64
		status        string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &subtotalCents, &discountCents,
		&totalCents, &status, &o.PaymentMethod, &o.TransactionRef,
		&o.LoyaltyPointsEarned, &o.CreatedAt, &o.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Subtotal = centsToDecimal(subtotalCents)
	o.Discount = centsToDecimal(discountCents)
	o.Total = centsToDecimal(totalCents)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// GetOrderByTransactionRef возвращает заказ по точному совпадению ссылки транзакции.
func (r *PostgresRepository) GetOrderByTransactionRef(ctx context.Context, txRef string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_number, user_id, subtotal_cents, discount_cents, total_cents,
		        status, payment_method, COALESCE(transaction_ref, ''), loyalty_points_earned,
		        created_at, completed_at
		 FROM orders
		 WHERE transaction_ref = $1`,
		txRef,
	)
	return scanOrder(row)
}

// SettleOrder выполняет расчёт заказа по ссылке транзакции: единственный
// переход PENDING→COMPLETED со всеми побочными эффектами.
//
// Проверка статуса и переход атомарны: строка заказа блокируется через
// SELECT ... FOR UPDATE, поэтому из двух конкурирующих вызовов (опрос статуса
// платежа и вебхук) мутацию выполняет ровно один, второй получает
// ErrOrderAlreadySettled. Строка пользователя блокируется так же, чтобы
// одновременное завершение нескольких заказов не потеряло баллы.
func (r *PostgresRepository) SettleOrder(ctx context.Context, txRef, paymentMethod string) (*model.Order, error) {
	var settled *model.Order

	err := r.withRetry(ctx, func() error {
		o, err := r.settleOrderTx(ctx, txRef, paymentMethod)
		if err != nil {
			return err
		}
		settled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return settled, nil
}

func (r *PostgresRepository) settleOrderTx(ctx context.Context, txRef, paymentMethod string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, order_number, user_id, subtotal_cents, discount_cents, total_cents,
		        status, payment_method, COALESCE(transaction_ref, ''), loyalty_points_earned,
		        created_at, completed_at
		 FROM orders
		 WHERE transaction_ref = $1
		 FOR UPDATE`,
		txRef,
	)

	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderAlreadySettled
	}

	// Счётчики продаж: по одной позиции заказа на товар.
	_, err = tx.Exec(ctx,
		`UPDATE products p SET sales_count = p.sales_count + oi.quantity
		 FROM order_items oi
		 WHERE oi.order_id = $1 AND p.id = oi.product_id`,
		order.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update sales counters: %w", err)
	}

	// Блокируем строку пользователя, чтобы сериализовать начисления баллов.
	var points int64
	err = tx.QueryRow(ctx,
		`SELECT loyalty_points FROM users WHERE id = $1 FOR UPDATE`,
		order.UserID,
	).Scan(&points)
	if err != nil {
		return nil, fmt.Errorf("lock user for update: %w", err)
	}

	pointsDelta, err := r.ledger.PointsFor(order.Total)
	if err != nil {
		return nil, fmt.Errorf("calc points: %w", err)
	}

	newPoints := points + pointsDelta
	newTier := r.ledger.TierFor(newPoints)

	_, err = tx.Exec(ctx,
		`UPDATE users SET
		   total_purchases = total_purchases + 1,
		   total_spent_cents = total_spent_cents + $2,
		   loyalty_points = $3,
		   loyalty_tier = $4
		 WHERE id = $1`,
		order.UserID, decimalToCents(order.Total), newPoints, string(newTier),
	)
	if err != nil {
		return nil, fmt.Errorf("update user stats: %w", err)
	}

	var completedAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, payment_method = $3, loyalty_points_earned = $4, completed_at = now()
		 WHERE id = $1
		 RETURNING completed_at`,
		order.ID, string(model.OrderStatusCompleted), paymentMethod, pointsDelta,
	).Scan(&completedAt)
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order.Status = model.OrderStatusCompleted
	order.PaymentMethod = paymentMethod
	order.LoyaltyPointsEarned = pointsDelta
	order.CompletedAt = &completedAt

	items, err := r.loadOrderItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// FindCompletedOrderID возвращает идентификатор завершённого заказа
// пользователя, содержащего указанный товар.
func (r *PostgresRepository) FindCompletedOrderID(ctx context.Context, userID, productID int64) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT o.id FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.user_id = $1 AND o.status = $2 AND oi.product_id = $3
		 LIMIT 1`,
		userID, string(model.OrderStatusCompleted), productID,
	).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotPurchased
		}
		return uuid.Nil, fmt.Errorf("find completed order: %w", err)
	}
	return orderID, nil
}

// CreateDownload добавляет запись в журнал скачиваний. Журнал только пополняется.
func (r *PostgresRepository) CreateDownload(ctx context.Context, userID, productID int64, orderID uuid.UUID, ipAddress string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO downloads (user_id, product_id, order_id, ip_address) VALUES ($1, $2, $3, $4)`,
		userID, productID, orderID, ipAddress,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// GetDownloadsByUser возвращает историю скачиваний пользователя.
func (r *PostgresRepository) GetDownloadsByUser(ctx context.Context, userID int64) ([]model.Download, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, product_id, order_id, downloaded_at, ip_address
		 FROM downloads
		 WHERE user_id = $1
		 ORDER BY downloaded_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select downloads: %w", err)
	}
	defer rows.Close()

	var res []model.Download
	for rows.Next() {
		var d model.Download
		if err := rows.Scan(&d.ID, &d.UserID, &d.ProductID, &d.OrderID,
			&d.DownloadedAt, &d.IPAddress); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
