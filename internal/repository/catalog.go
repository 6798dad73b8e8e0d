package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tatlight/backend/internal/model"
)

// ListCategories возвращает все категории каталога.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, description, icon FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCategoryBySlug возвращает категорию по slug.
func (r *PostgresRepository) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, description, icon FROM categories WHERE slug = $1`,
		slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// ProductFilter задаёт условия выборки товаров каталога.
type ProductFilter struct {
	CategorySlug    string
	FeaturedOnly    bool
	IncludeInactive bool
	Limit           int
}

const productColumns = `p.id, p.title, p.slug, p.description, p.category_id, c.slug, p.file_type,
	p.price_cents, p.rating, p.reviews_count, p.sales_count, p.is_active, p.featured, p.created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p          model.Product
		priceCents int64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.CategoryID, &p.CategorySlug,
		&p.FileType, &priceCents, &p.Rating, &p.ReviewsCount, &p.SalesCount,
		&p.IsActive, &p.Featured, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	p.Price = centsToDecimal(priceCents)
	return &p, nil
}

// ListProducts возвращает товары каталога с учётом фильтра.
func (r *PostgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p JOIN categories c ON c.id = p.category_id`

	var (
		conds []string
		args  []any
	)

	if !filter.IncludeInactive {
		conds = append(conds, "p.is_active = TRUE")
	}
	if filter.FeaturedOnly {
		conds = append(conds, "p.featured = TRUE")
	}
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		conds = append(conds, fmt.Sprintf("c.slug = $%d", len(args)))
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY p.created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p JOIN categories c ON c.id = p.category_id WHERE p.id = $1`,
		id,
	)
	return scanProduct(row)
}

// GetRelatedProducts возвращает активные товары той же категории, отсортированные по продажам.
func (r *PostgresRepository) GetRelatedProducts(ctx context.Context, productID int64, limit int) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products p
		 JOIN categories c ON c.id = p.category_id
		 WHERE p.category_id = (SELECT category_id FROM products WHERE id = $1)
		   AND p.id <> $1 AND p.is_active = TRUE
		 ORDER BY p.sales_count DESC
		 LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select related products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateProduct добавляет товар в каталог и возвращает его идентификатор.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (title, slug, description, category_id, file_type, price_cents, is_active, featured)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Title, p.Slug, p.Description, p.CategoryID, p.FileType,
		decimalToCents(p.Price), p.IsActive, p.Featured,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct обновляет основные поля товара. Rating, reviews_count и
// sales_count не обновляются: ими владеют агрегатор отзывов и расчёт заказа.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET title = $2, slug = $3, description = $4, category_id = $5,
		     file_type = $6, price_cents = $7, is_active = $8, featured = $9
		 WHERE id = $1`,
		p.ID, p.Title, p.Slug, p.Description, p.CategoryID, p.FileType,
		decimalToCents(p.Price), p.IsActive, p.Featured,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ToggleProductActive переключает признак активности товара и возвращает новое значение.
func (r *PostgresRepository) ToggleProductActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`,
		id,
	).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProductNotFound
		}
		return false, fmt.Errorf("toggle product: %w", err)
	}
	return active, nil
}

// ListReviews возвращает отзывы о товаре, новые первыми.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rv.id, rv.product_id, rv.user_id,
		        CASE WHEN u.first_name <> '' AND u.last_name <> ''
		             THEN u.first_name || ' ' || u.last_name ELSE u.email END,
		        rv.rating, rv.comment, rv.created_at, rv.updated_at
		 FROM reviews rv
		 JOIN users u ON u.id = rv.user_id
		 WHERE rv.product_id = $1
		 ORDER BY rv.created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName,
			&rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// recomputeProductRating пересчитывает агрегаты товара с нуля по текущим
// строкам отзывов. Полный пересчёт вместо скользящего среднего исключает
// накопление ошибок округления при правках и удалениях.
func recomputeProductRating(ctx context.Context, tx pgx.Tx, productID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET
		   rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 1) FROM reviews WHERE product_id = $1), 0),
		   reviews_count = (SELECT COUNT(*) FROM reviews WHERE product_id = $1)
		 WHERE id = $1`,
		productID,
	)
	if err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}
	return nil
}

// CreateReview сохраняет отзыв и пересчитывает рейтинг товара в одной транзакции.
func (r *PostgresRepository) CreateReview(ctx context.Context, productID, userID int64, rating int, comment string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		productID, userID, rating, comment,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return 0, ErrReviewExists
			}
			if pgErr.Code == pgerrcode.ForeignKeyViolation {
				return 0, ErrProductNotFound
			}
		}
		return 0, fmt.Errorf("insert review: %w", err)
	}

	if err := recomputeProductRating(ctx, tx, productID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// UpdateReview изменяет отзыв его автора и пересчитывает рейтинг товара.
func (r *PostgresRepository) UpdateReview(ctx context.Context, reviewID, userID int64, rating int, comment string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID int64
	err = tx.QueryRow(ctx,
		`UPDATE reviews SET rating = $3, comment = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2 RETURNING product_id`,
		reviewID, userID, rating, comment,
	).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("update review: %w", err)
	}

	if err := recomputeProductRating(ctx, tx, productID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// DeleteReview удаляет отзыв его автора и пересчитывает рейтинг товара.
// Удаление последнего отзыва сбрасывает rating и reviews_count в ноль.
func (r *PostgresRepository) DeleteReview(ctx context.Context, reviewID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID int64
	err = tx.QueryRow(ctx,
		`DELETE FROM reviews WHERE id = $1 AND user_id = $2 RETURNING product_id`,
		reviewID, userID,
	).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("delete review: %w", err)
	}

	if err := recomputeProductRating(ctx, tx, productID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
