package repository

import (
	"app/internal/domain/model"
	"context"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	Insert(ctx context.Context, item *model.CartItem) error
	// 絶対値で上書き（加算ではない）
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	// 表示用スナップショット価格の更新
	UpdateSnapshotPrice(ctx context.Context, cartItemID int64, price int64) error
	// 削除件数を返す。0件でもエラーにしない。
	DeleteByCartAndProduct(ctx context.Context, cartID int64, productID int64) (int64, error)
}
