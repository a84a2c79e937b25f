package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// 数量の変更はすべてTransactionManager経由で行い、商品行のロックの下で
// 在庫を再検証する。別リクエスト同士のcheck-then-actの競合はここで防ぐ。
type CartUsecase struct {
	tx           repo.TransactionManager
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		tx:           tx,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type CartItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

type CartResponse struct {
	Items          []CartItemResponse `json:"items"`
	TotalItemCount int64              `json:"total_item_count"`
	Total          int64              `json:"total"`
}

type ClearCartResponse struct {
	Removed int64 `json:"removed"`
}

type SetItemQuantityInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得。カートが無ければここで作る（読み取りの副作用として
// カートが出来ることを仕様として明示する）。
// 表示価格は現在のカタログ価格。スナップショットがずれていたら読み取り時に
// 追従させる（表示用キャッシュ）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewValidationError("invalid user")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, storeError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// SetItemQuantity は明細の数量を絶対値で設定する。
// quantityは「カートに入れたい最終数量」であって加算量ではない。
// 0を渡すと行削除（removeと同じ）。在庫超過はInsufficientStock。
// 商品行をFOR UPDATEで取ってから在庫を検証するので、同じ商品への
// 同時セットで在庫超過の数量がコミットされることはない。
func (u *CartUsecase) SetItemQuantity(ctx context.Context, userID int64, in SetItemQuantityInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewValidationError("invalid user")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewValidationError("invalid product_id")
	}
	if in.Quantity < 0 {
		return CartResponse{}, NewValidationError("invalid quantity")
	}

	var cartID int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 商品行ロック。以降の在庫チェックはこのロックの下で行う。
		p, err := r.Products().FindByIDForUpdate(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError("product not found")
		}
		if err != nil {
			return storeError(err)
		}
		if !p.IsActive {
			return NewNotFoundError("product not found")
		}

		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return storeError(err)
		}
		cartID = cart.ID

		if in.Quantity > p.Stock {
			return NewInsufficientStockError(p.ID, p.Stock)
		}

		item, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, in.ProductID)

		switch {
		case in.Quantity == 0:
			// 0は削除。行が無くても成功。
			if _, err := r.CartItems().DeleteByCartAndProduct(ctx, cart.ID, in.ProductID); err != nil {
				return storeError(err)
			}

		case errors.Is(err, repo.ErrNotFound):
			newItem := model.CartItem{
				CartID:            cart.ID,
				ProductID:         in.ProductID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: p.Price,
			}
			if err := r.CartItems().Insert(ctx, &newItem); err != nil {
				return storeError(err)
			}

		case err != nil:
			return storeError(err)

		case item.Quantity == in.Quantity:
			// 状態が変わらないセットは成功扱いのno-op

		default:
			if err := r.CartItems().UpdateQuantity(ctx, item.ID, in.Quantity); err != nil {
				return storeError(err)
			}
		}

		if err := r.Carts().Touch(ctx, cart.ID); err != nil {
			return storeError(err)
		}
		return nil
	})

	if err != nil {
		return CartResponse{}, err
	}
	return u.buildCartResponse(ctx, cartID)
}

// RemoveItem は明細を削除する。カートや明細が無くても黙って成功する
// （冪等。削除済みをもう一度消しても同じ結果）。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewValidationError("invalid user")
	}
	if productID <= 0 {
		return CartResponse{}, NewValidationError("invalid product_id")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{Items: []CartItemResponse{}}, nil
	}
	if err != nil {
		return CartResponse{}, storeError(err)
	}

	if _, err := u.cartItemRepo.DeleteByCartAndProduct(ctx, cart.ID, productID); err != nil {
		return CartResponse{}, storeError(err)
	}
	if err := u.cartRepo.Touch(ctx, cart.ID); err != nil {
		return CartResponse{}, storeError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// ClearCart は明細を全削除して件数を返す。カートが無くても空でも成功。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (ClearCartResponse, error) {
	if userID <= 0 {
		return ClearCartResponse{}, NewValidationError("invalid user")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ClearCartResponse{Removed: 0}, nil
	}
	if err != nil {
		return ClearCartResponse{}, storeError(err)
	}

	removed, err := u.cartRepo.ClearItems(ctx, cart.ID)
	if err != nil {
		return ClearCartResponse{}, storeError(err)
	}
	if removed > 0 {
		if err := u.cartRepo.Touch(ctx, cart.ID); err != nil {
			return ClearCartResponse{}, storeError(err)
		}
	}

	return ClearCartResponse{Removed: removed}, nil
}

// cartIDの明細をまとめてCartResponseを作る。
// 商品が消えている・非公開になっている明細は表示しない。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, storeError(err)
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var count int64 = 0
	var total int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil {
			continue
		}
		if !p.IsActive {
			continue
		}

		// スナップショットを現在価格に追従させる（失敗しても表示は現在価格）
		if it.UnitPriceSnapshot != p.Price {
			_ = u.cartItemRepo.UpdateSnapshotPrice(ctx, it.ID, p.Price)
		}

		respItems = append(respItems, CartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Name:        p.Name,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
			LineTotal:   p.Price * it.Quantity,
		})

		count += it.Quantity
		total += p.Price * it.Quantity
	}

	return CartResponse{Items: respItems, TotalItemCount: count, Total: total}, nil
}
