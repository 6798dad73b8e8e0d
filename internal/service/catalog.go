package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tatlight/backend/internal/model"
	"github.com/tatlight/backend/internal/repository"
	"github.com/tatlight/backend/internal/validation"
)

// ListCategories возвращает категории каталога.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// GetCategory возвращает категорию по slug.
func (s *Service) GetCategory(ctx context.Context, slug string) (*model.Category, error) {
	return s.repo.GetCategoryBySlug(ctx, slug)
}

// ListProducts возвращает товары каталога. Неактивные товары видны только администраторам.
func (s *Service) ListProducts(ctx context.Context, categorySlug string, includeInactive bool) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, repository.ProductFilter{
		CategorySlug:    categorySlug,
		IncludeInactive: includeInactive,
	})
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// FeaturedProducts возвращает до шести активных товаров, отмеченных как рекомендуемые.
func (s *Service) FeaturedProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, repository.ProductFilter{
		FeaturedOnly: true,
		Limit:        6,
	})
}

// RelatedProducts возвращает до трёх похожих товаров той же категории.
func (s *Service) RelatedProducts(ctx context.Context, productID int64) ([]model.Product, error) {
	return s.repo.GetRelatedProducts(ctx, productID, 3)
}

// ProductInput содержит данные для создания или изменения товара.
type ProductInput struct {
	Title       string
	Description string
	CategoryID  int64
	FileType    string
	Price       decimal.Decimal
	IsActive    bool
	Featured    bool
}

func slugify(title string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CreateProduct добавляет товар в каталог. Slug выводится из названия.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if in.Price.IsNegative() {
		return nil, ErrNegativePrice
	}

	p := &model.Product{
		Title:       in.Title,
		Slug:        slugify(in.Title),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		FileType:    in.FileType,
		Price:       in.Price,
		IsActive:    in.IsActive,
		Featured:    in.Featured,
	}

	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}

	return s.repo.GetProductByID(ctx, id)
}

// UpdateProduct изменяет товар каталога.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*model.Product, error) {
	if in.Price.IsNegative() {
		return nil, ErrNegativePrice
	}

	p := &model.Product{
		ID:          id,
		Title:       in.Title,
		Slug:        slugify(in.Title),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		FileType:    in.FileType,
		Price:       in.Price,
		IsActive:    in.IsActive,
		Featured:    in.Featured,
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	return s.repo.GetProductByID(ctx, id)
}

// ToggleProduct переключает признак активности товара и возвращает новое значение.
func (s *Service) ToggleProduct(ctx context.Context, id int64) (bool, error) {
	return s.repo.ToggleProductActive(ctx, id)
}

// ListReviews возвращает отзывы о товаре.
func (s *Service) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	return s.repo.ListReviews(ctx, productID)
}

// CreateReview добавляет отзыв о товаре. Второй отзыв того же пользователя о
// том же товаре отклоняется до пересчёта агрегатов.
func (s *Service) CreateReview(ctx context.Context, userID, productID int64, rating int, comment string) (int64, error) {
	if !validation.IsValidRating(rating) {
		return 0, ErrInvalidRating
	}
	return s.repo.CreateReview(ctx, productID, userID, rating, comment)
}

// UpdateReview изменяет отзыв, принадлежащий пользователю.
func (s *Service) UpdateReview(ctx context.Context, userID, reviewID int64, rating int, comment string) error {
	if !validation.IsValidRating(rating) {
		return ErrInvalidRating
	}
	return s.repo.UpdateReview(ctx, reviewID, userID, rating, comment)
}

// DeleteReview удаляет отзыв, принадлежащий пользователю.
func (s *Service) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	return s.repo.DeleteReview(ctx, reviewID, userID)
}
