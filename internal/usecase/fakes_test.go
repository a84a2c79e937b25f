package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// インメモリのテスト用ストア。
// memTxManagerがミューテックスでトランザクションを直列化し、
// fnがエラーを返したらスナップショットに巻き戻す。
// 本物のDBの行ロック＋ロールバックを粗く模している。
type memStore struct {
	products   map[int64]model.Product
	carts      map[int64]model.Cart
	cartByUser map[int64]int64
	items      map[int64]model.CartItem
	orders     map[int64]model.Order
	orderLines map[int64][]model.OrderLine
	nextID     int64

	// このproductIDへの在庫減算でストア障害を起こす
	decreaseErrProductID int64
}

func newMemStore() *memStore {
	return &memStore{
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartByUser: map[int64]int64{},
		items:      map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderLines: map[int64][]model.OrderLine{},
		nextID:     0,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	c.decreaseErrProductID = s.decreaseErrProductID
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderLines {
		lines := make([]model.OrderLine, len(v))
		copy(lines, v)
		c.orderLines[k] = lines
	}
	return c
}

type memDB struct {
	mu sync.Mutex
	s  *memStore
}

func newMemDB() *memDB {
	return &memDB{s: newMemStore()}
}

// locking=trueはトランザクション外から使う版（呼び出しごとにロック）。
// トランザクション内の版はmemTxManagerがロックを握ったまま使うのでロックしない。
type memRepos struct {
	db      *memDB
	locking bool
}

func (r *memRepos) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.db.mu.Lock()
	return r.db.mu.Unlock
}

// --- ProductRepository ---

func (r *memRepos) ListActive(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	defer r.lock()()
	var out []model.Product
	for _, p := range r.db.s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRepos) FindByID(ctx context.Context, id int64) (model.Product, error) {
	defer r.lock()()
	p, ok := r.db.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memRepos) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return r.FindByID(ctx, id)
}

// --- CartRepository ---

func (r *memRepos) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.lock()()
	if cartID, ok := r.db.s.cartByUser[userID]; ok {
		return r.db.s.carts[cartID], nil
	}
	cart := model.Cart{
		ID:        r.db.s.id(),
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.db.s.carts[cart.ID] = cart
	r.db.s.cartByUser[userID] = cart.ID
	return cart, nil
}

func (r *memRepos) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.lock()()
	cartID, ok := r.db.s.cartByUser[userID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return r.db.s.carts[cartID], nil
}

func (r *memRepos) Touch(ctx context.Context, cartID int64) error {
	defer r.lock()()
	cart, ok := r.db.s.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	cart.UpdatedAt = time.Now()
	r.db.s.carts[cartID] = cart
	return nil
}

func (r *memRepos) ClearItems(ctx context.Context, cartID int64) (int64, error) {
	defer r.lock()()
	var removed int64
	for id, it := range r.db.s.items {
		if it.CartID == cartID {
			delete(r.db.s.items, id)
			removed++
		}
	}
	return removed, nil
}

// --- CartItemRepository ---

func (r *memRepos) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	defer r.lock()()
	out := []model.CartItem{}
	for _, it := range r.db.s.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memRepos) FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error) {
	defer r.lock()()
	for _, it := range r.db.s.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r *memRepos) Insert(ctx context.Context, item *model.CartItem) error {
	defer r.lock()()
	item.ID = r.db.s.id()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	r.db.s.items[item.ID] = *item
	return nil
}

func (r *memRepos) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	defer r.lock()()
	it, ok := r.db.s.items[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	r.db.s.items[cartItemID] = it
	return nil
}

func (r *memRepos) UpdateSnapshotPrice(ctx context.Context, cartItemID int64, price int64) error {
	defer r.lock()()
	it, ok := r.db.s.items[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.UnitPriceSnapshot = price
	r.db.s.items[cartItemID] = it
	return nil
}

func (r *memRepos) DeleteByCartAndProduct(ctx context.Context, cartID int64, productID int64) (int64, error) {
	defer r.lock()()
	for id, it := range r.db.s.items {
		if it.CartID == cartID && it.ProductID == productID {
			delete(r.db.s.items, id)
			return 1, nil
		}
	}
	return 0, nil
}

// --- OrderRepository ---
// FindByIDのシグネチャがProductRepositoryと衝突するので別型に分ける

type memOrders struct {
	r *memRepos
}

func (m *memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	defer m.r.lock()()
	order.ID = m.r.db.s.id()
	m.r.db.s.orders[order.ID] = order
	return order.ID, nil
}

func (m *memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	defer m.r.lock()()
	o, ok := m.r.db.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	defer m.r.lock()()
	out := []model.Order{}
	// 新しい順（IDの大きい順）
	var maxID int64
	for id := range m.r.db.s.orders {
		if id > maxID {
			maxID = id
		}
	}
	for id := maxID; id >= 1; id-- {
		if o, ok := m.r.db.s.orders[id]; ok && o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- OrderLineRepository ---

func (r *memRepos) CreateBulk(ctx context.Context, orderID int64, lines []model.OrderLine) error {
	defer r.lock()()
	stored := make([]model.OrderLine, 0, len(lines))
	for _, l := range lines {
		l.ID = r.db.s.id()
		l.OrderID = orderID
		stored = append(stored, l)
	}
	r.db.s.orderLines[orderID] = append(r.db.s.orderLines[orderID], stored...)
	return nil
}

func (r *memRepos) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	defer r.lock()()
	lines := r.db.s.orderLines[orderID]
	out := make([]model.OrderLine, len(lines))
	copy(out, lines)
	return out, nil
}

// --- InventoryRepository ---

func (r *memRepos) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	defer r.lock()()
	if r.db.s.decreaseErrProductID == productID && productID != 0 {
		return false, errors.New("store gone away")
	}
	p, ok := r.db.s.products[productID]
	if !ok {
		return false, nil
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.db.s.products[productID] = p
	return true, nil
}

// 個々のインターフェースに分けて返す（memReposが全部実装している）
type memTxRepos struct {
	r *memRepos
}

func (t *memTxRepos) Products() repo.ProductRepository     { return t.r }
func (t *memTxRepos) Carts() repo.CartRepository           { return t.r }
func (t *memTxRepos) CartItems() repo.CartItemRepository   { return t.r }
func (t *memTxRepos) Orders() repo.OrderRepository         { return &memOrders{r: t.r} }
func (t *memTxRepos) OrderLines() repo.OrderLineRepository { return t.r }
func (t *memTxRepos) Inventory() repo.InventoryRepository  { return t.r }

type memTxManager struct {
	db *memDB
}

// トランザクションを直列化し、エラー時は開始前の状態に巻き戻す
func (tm *memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	tm.db.mu.Lock()
	defer tm.db.mu.Unlock()

	snapshot := tm.db.s.clone()
	err := fn(&memTxRepos{r: &memRepos{db: tm.db, locking: false}})
	if err != nil {
		tm.db.s = snapshot
	}
	return err
}
