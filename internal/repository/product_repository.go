package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

// 商品カタログの読み取り窓口。カタログ自体の管理は対象外。
type ProductRepository interface {
	ListActive(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// 行ロック付き取得（FOR UPDATE）。在庫チェックと更新を
	// 同じトランザクション内で直列化するために使う。
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)
}
