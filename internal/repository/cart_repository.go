package repository

import (
	"app/internal/domain/model"
	"context"
)

type CartRepository interface {
	// ユーザーのカートを取得し、無ければ作成
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)

	// 最終更新時刻だけを進める
	Touch(ctx context.Context, cartID int64) error

	// 明細を全削除して削除件数を返す。カート行自体は残す。
	ClearItems(ctx context.Context, cartID int64) (int64, error)
}
