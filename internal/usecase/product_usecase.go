package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	Category    string `json:"category"`
}

type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// List は公開商品の一覧（検索/価格帯/ソート/ページング）。
func (u *ProductUsecase) List(ctx context.Context, q repo.ProductListQuery) (ProductListResponse, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	products, total, err := u.productRepo.ListActive(ctx, q)
	if err != nil {
		return ProductListResponse{}, storeError(err)
	}

	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(p))
	}

	return ProductListResponse{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// GetByID は商品1件。非公開・削除済みは存在しない扱い。
func (u *ProductUsecase) GetByID(ctx context.Context, id int64) (ProductResponse, error) {
	if id <= 0 {
		return ProductResponse{}, NewValidationError("invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductResponse{}, NewNotFoundError("product not found")
	}
	if err != nil {
		return ProductResponse{}, storeError(err)
	}
	if !p.IsActive {
		return ProductResponse{}, NewNotFoundError("product not found")
	}

	return toProductResponse(p), nil
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
	}
}
