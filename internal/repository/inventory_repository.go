package repository

import "context"

type InventoryRepository interface {
	// 在庫が足りるときだけ減算してtrueを返す。
	// 足りなければ何も変えずにfalse。
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)
}
