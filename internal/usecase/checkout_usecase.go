package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CheckoutUsecase はカートを注文に変換する。
// 処理全体が1トランザクションで、どこで失敗しても注文・在庫・カートの
// どれにも痕跡を残さない（全コミットか全ロールバックの二択）。
type CheckoutUsecase struct {
	tx repo.TransactionManager
}

func NewCheckoutUsecase(tx repo.TransactionManager) *CheckoutUsecase {
	return &CheckoutUsecase{tx: tx}
}

type CheckoutInput struct {
	PaymentMethod model.PaymentMethod
}

type CheckoutOutput struct {
	OrderID int64 `json:"order_id"`
	Total   int64 `json:"total"`
}

type OrderLineOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	Total         int64             `json:"total"`
	CreatedAt     time.Time         `json:"created_at"`
	Lines         []OrderLineOutput `json:"lines"`
}

// Checkout はカートの内容から注文を確定する。
// 金額はカートのスナップショットではなく、トランザクション内で読んだ
// 現在のカタログ価格で計算する。明細にはその価格を凍結して保存する。
// 在庫はここで初めて減る。1商品でも在庫が足りなければ全体をロールバック。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewValidationError("invalid user")
	}
	if !in.PaymentMethod.Valid() {
		return CheckoutOutput{}, NewValidationError("invalid payment_method")
	}

	var out CheckoutOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// カートが無い＝空カート
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewEmptyCartError()
		}
		if err != nil {
			return storeError(err)
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return storeError(err)
		}
		if len(cartItems) == 0 {
			return NewEmptyCartError()
		}

		// 商品IDの昇順でロックする。カートへの追加順が互い違いの
		// 同時チェックアウト同士がデッドロックしないようにする。
		sort.Slice(cartItems, func(i, j int) bool {
			return cartItems[i].ProductID < cartItems[j].ProductID
		})

		lines := make([]model.OrderLine, 0, len(cartItems))
		var total int64 = 0

		for _, ci := range cartItems {
			// 商品行ロック。価格読み取りと在庫減算をここで直列化する。
			p, err := r.Products().FindByIDForUpdate(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFoundError("product no longer available")
			}
			if err != nil {
				return storeError(err)
			}
			if !p.IsActive {
				return NewNotFoundError("product no longer available")
			}

			// 在庫はカート追加時から変わっている可能性があるので再チェック。
			// 足りなければfalseが返り、トランザクション全体が巻き戻る。
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return storeError(err)
			}
			if !ok {
				return NewInsufficientStockError(p.ID, p.Stock)
			}

			lines = append(lines, model.OrderLine{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
			})

			total += p.Price * ci.Quantity
		}

		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentMethod: in.PaymentMethod,
			Total:         total,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return storeError(err)
		}

		if err := r.OrderLines().CreateBulk(ctx, orderID, lines); err != nil {
			return storeError(err)
		}

		// カートを空にする。カート行そのものは残る。
		if _, err := r.Carts().ClearItems(ctx, cart.ID); err != nil {
			return storeError(err)
		}

		out = CheckoutOutput{OrderID: orderID, Total: total}
		return nil
	})

	if err != nil {
		return CheckoutOutput{}, err
	}
	return out, nil
}

// ListMyOrders は自分の注文履歴（新しい順）。
func (u *CheckoutUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewValidationError("invalid user")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return storeError(err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			lines, err := r.OrderLines().ListByOrderID(ctx, o.ID)
			if err != nil {
				return storeError(err)
			}
			outs = append(outs, toOrderOutput(o, lines))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// GetMyOrderDetail は注文1件の詳細。他人の注文は存在しない扱いにする。
func (u *CheckoutUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewValidationError("invalid user")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewValidationError("invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFoundError("order not found")
		}
		if err != nil {
			return storeError(err)
		}
		if o.UserID != userID {
			return NewNotFoundError("order not found")
		}

		lines, err := r.OrderLines().ListByOrderID(ctx, orderID)
		if err != nil {
			return storeError(err)
		}

		out = toOrderOutput(o, lines)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, lines []model.OrderLine) OrderOutput {
	outLines := make([]OrderLineOutput, 0, len(lines))
	for _, l := range lines {
		outLines = append(outLines, OrderLineOutput{
			ProductID: l.ProductID,
			Name:      l.ProductNameSnapshot,
			UnitPrice: l.UnitPriceSnapshot,
			Quantity:  l.Quantity,
		})
	}

	return OrderOutput{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
		Lines:         outLines,
	}
}
