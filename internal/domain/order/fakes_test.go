package order

import (
	"context"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/catalog"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/wallet"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func i64(v int64) *int64 {
	return &v
}

// --- In-memory database ---

type stockKey struct {
	product int64
	variant int64
}

func keyOf(productID int64, variantID *int64) stockKey {
	return stockKey{product: productID, variant: variantKey(variantID)}
}

type memState struct {
	orders  map[string]Order
	stock   map[stockKey]int
	carts   map[int64][]cart.Item
	coupons map[string]coupon.Coupon
	wallets map[int64]wallet.Wallet
	txs     []wallet.Transaction
}

func (s memState) clone() memState {
	orders := make(map[string]Order, len(s.orders))
	for k, o := range s.orders {
		orders[k] = cloneOrder(o)
	}
	carts := make(map[int64][]cart.Item, len(s.carts))
	for k, items := range s.carts {
		carts[k] = slices.Clone(items)
	}
	return memState{
		orders:  orders,
		stock:   maps.Clone(s.stock),
		carts:   carts,
		coupons: maps.Clone(s.coupons),
		wallets: maps.Clone(s.wallets),
		txs:     slices.Clone(s.txs),
	}
}

func cloneOrder(o Order) Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// memDB backs every repository fake. RunInTx restores the state when fn
// fails, mirroring a rolled back transaction.
type memDB struct {
	memState

	nextID int64
	// taken order numbers collide on Create.
	taken map[string]bool

	restockCalls int
	commits      int
	creditErr    error
}

func newMemDB() *memDB {
	return &memDB{
		memState: memState{
			orders:  map[string]Order{},
			stock:   map[stockKey]int{},
			carts:   map[int64][]cart.Item{},
			coupons: map[string]coupon.Coupon{},
			wallets: map[int64]wallet.Wallet{},
		},
		taken: map[string]bool{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := db.clone()
	if err := fn(ctx); err != nil {
		db.memState = snapshot
		return err
	}
	db.commits++
	return nil
}

func (db *memDB) order(t *testing.T, orderID string) Order {
	t.Helper()
	o, ok := db.orders[orderID]
	require.True(t, ok, "order %s not stored", orderID)
	return o
}

func (db *memDB) balance(userID int64) decimal.Decimal {
	return db.wallets[userID].Balance
}

// --- order.Repository ---

type memOrders struct{ db *memDB }

func (m memOrders) Create(_ context.Context, o *Order) (bool, error) {
	if _, ok := m.db.orders[o.OrderID]; ok || m.db.taken[o.OrderID] {
		return false, nil
	}
	o.ID = m.db.id()
	for i := range o.Items {
		o.Items[i].ID = m.db.id()
		o.Items[i].OrderID = o.ID
	}
	m.db.orders[o.OrderID] = cloneOrder(*o)
	return true, nil
}

func (m memOrders) Get(_ context.Context, orderID string) (*Order, error) {
	o, ok := m.db.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m memOrders) GetForUpdate(ctx context.Context, orderID string) (*Order, error) {
	return m.Get(ctx, orderID)
}

func (m memOrders) GetByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*Order, error) {
	for _, o := range m.db.orders {
		if o.GatewayOrderID == gatewayOrderID {
			return m.Get(ctx, o.OrderID)
		}
	}
	return nil, ErrNotFound
}

func (m memOrders) ListByUser(_ context.Context, userID int64, limit int) ([]Order, error) {
	var out []Order
	for _, o := range m.db.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memOrders) ListCreatedBetween(_ context.Context, from, to time.Time) ([]Order, error) {
	var out []Order
	for _, o := range m.db.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m memOrders) Save(_ context.Context, o *Order) error {
	stored, ok := m.db.orders[o.OrderID]
	if !ok {
		return ErrNotFound
	}
	updated := *o
	updated.Items = stored.Items
	m.db.orders[o.OrderID] = updated
	return nil
}

func (m memOrders) SaveItem(_ context.Context, it *Item) error {
	for k, o := range m.db.orders {
		if o.ID != it.OrderID {
			continue
		}
		for i := range o.Items {
			if o.Items[i].ID == it.ID {
				o.Items[i] = *it
				m.db.orders[k] = o
				return nil
			}
		}
	}
	return ErrItemNotFound
}

// --- order.Inventory ---

type memInventory struct{ db *memDB }

func (m memInventory) Reserve(_ context.Context, productID int64, variantID *int64, quantity int) (bool, error) {
	k := keyOf(productID, variantID)
	if m.db.stock[k] < quantity {
		return false, nil
	}
	m.db.stock[k] -= quantity
	return true, nil
}

func (m memInventory) Restock(_ context.Context, productID int64, variantID *int64, quantity int) error {
	m.db.stock[keyOf(productID, variantID)] += quantity
	m.db.restockCalls++
	return nil
}

func (m memInventory) Available(_ context.Context, productID int64, variantID *int64) (int, error) {
	return m.db.stock[keyOf(productID, variantID)], nil
}

// --- cart.Repository ---

type memCarts struct{ db *memDB }

func (m memCarts) Items(_ context.Context, userID int64) ([]cart.Item, error) {
	return slices.Clone(m.db.carts[userID]), nil
}

func (m memCarts) Add(context.Context, int64, int64, *int64, int) error {
	return errors.New("not used")
}

func (m memCarts) SetQuantity(context.Context, int64, int64, int) error {
	return errors.New("not used")
}

func (m memCarts) Remove(ctx context.Context, userID, itemID int64) error {
	return m.RemoveItems(ctx, userID, []int64{itemID})
}

func (m memCarts) RemoveItems(_ context.Context, userID int64, itemIDs []int64) error {
	m.db.carts[userID] = slices.DeleteFunc(slices.Clone(m.db.carts[userID]), func(it cart.Item) bool {
		return slices.Contains(itemIDs, it.ID)
	})
	return nil
}

func (m memCarts) Clear(_ context.Context, userID int64) error {
	delete(m.db.carts, userID)
	return nil
}

// --- coupon.Repository ---

type memCoupons struct{ db *memDB }

func (m memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.db.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (m memCoupons) FindByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	return m.FindByCode(ctx, code)
}

func (m memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	c.ID = m.db.id()
	m.db.coupons[c.Code] = *c
	return nil
}

func (m memCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	m.db.coupons[c.Code] = *c
	return nil
}

func (m memCoupons) IncrementUsage(_ context.Context, id int64) error {
	for code, c := range m.db.coupons {
		if c.ID != id {
			continue
		}
		if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
			return coupon.ErrUsageLimitReached
		}
		c.UsageCount++
		m.db.coupons[code] = c
		return nil
	}
	return coupon.ErrNotFound
}

// --- wallet.Repository ---

type memWallets struct{ db *memDB }

func (m memWallets) GetOrCreateForUpdate(_ context.Context, userID int64) (*wallet.Wallet, error) {
	w, ok := m.db.wallets[userID]
	if !ok {
		w = wallet.Wallet{ID: m.db.id(), UserID: userID, Balance: decimal.Zero}
		m.db.wallets[userID] = w
	}
	return &w, nil
}

func (m memWallets) Get(_ context.Context, userID int64) (*wallet.Wallet, error) {
	w, ok := m.db.wallets[userID]
	if !ok {
		return nil, wallet.ErrNotFound
	}
	return &w, nil
}

func (m memWallets) Append(_ context.Context, tx *wallet.Transaction) error {
	if m.db.creditErr != nil {
		return m.db.creditErr
	}
	tx.ID = m.db.id()
	m.db.txs = append(m.db.txs, *tx)
	return nil
}

func (m memWallets) SetBalance(_ context.Context, walletID int64, balance decimal.Decimal) error {
	for userID, w := range m.db.wallets {
		if w.ID == walletID {
			w.Balance = balance
			m.db.wallets[userID] = w
			return nil
		}
	}
	return wallet.ErrNotFound
}

func (m memWallets) Transactions(_ context.Context, walletID int64) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	for _, tx := range m.db.txs {
		if tx.WalletID == walletID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m memWallets) OrderNet(_ context.Context, orderID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tx := range m.db.txs {
		if tx.OrderID != nil && *tx.OrderID == orderID {
			sum = sum.Add(tx.Signed())
		}
	}
	return sum, nil
}

// --- Collaborators ---

type recordingPublisher struct {
	events []StatusEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev StatusEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) statuses() []Status {
	out := make([]Status, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Status
	}
	return out
}

type countingRecorder struct {
	placed        int
	refunds       []float64
	restocked     int
	paymentFailed int
}

func (r *countingRecorder) OrderPlaced(string)            { r.placed++ }
func (r *countingRecorder) StatusChanged(string)          {}
func (r *countingRecorder) RefundCredited(amount float64) { r.refunds = append(r.refunds, amount) }
func (r *countingRecorder) Restocked(units int)           { r.restocked += units }
func (r *countingRecorder) PaymentFailed()                { r.paymentFailed++ }

type fakeGateway struct {
	intent PaymentIntent
	err    error
	reqs   []PaymentRequest
}

func (g *fakeGateway) CreatePayment(_ context.Context, req PaymentRequest) (PaymentIntent, error) {
	g.reqs = append(g.reqs, req)
	return g.intent, g.err
}

// --- Fixture ---

type fixture struct {
	svc     *Service
	db      *memDB
	events  *recordingPublisher
	metrics *countingRecorder
	gateway *fakeGateway
	ledger  *wallet.Ledger
}

type fixtureOption func(*Deps)

func withPolicy(p pricing.Policy) fixtureOption {
	return func(deps *Deps) {
		deps.Engine = pricing.NewEngine(p).WithClock(func() time.Time { return fixedNow })
	}
}

func withSuffixes(suffixes ...int) fixtureOption {
	return func(deps *Deps) {
		i := 0
		deps.Suffix = func() int {
			s := suffixes[i%len(suffixes)]
			i++
			return s
		}
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db := newMemDB()
	f := &fixture{
		db:      db,
		events:  &recordingPublisher{},
		metrics: &countingRecorder{},
		gateway: &fakeGateway{intent: PaymentIntent{GatewayOrderID: "pi_123", ClientSecret: "pi_123_secret"}},
		ledger:  wallet.NewLedger(memWallets{db: db}),
	}
	deps := Deps{
		Orders:     memOrders{db: db},
		Inventory:  memInventory{db: db},
		Carts:      memCarts{db: db},
		Coupons:    coupon.NewService(memCoupons{db: db}),
		Wallet:     f.ledger,
		Engine:     pricing.NewEngine(pricing.DefaultPolicy()),
		UnitOfWork: db,
		Gateway:    f.gateway,
		Events:     f.events,
		Metrics:    f.metrics,
		Clock:      func() time.Time { return fixedNow },
		Suffix:     func() int { return 1234 },
		EventID:    func() string { return "01JTEST" },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc, err := NewService(deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seedOrder stores o as if placed at checkout and returns it with ids set.
func (f *fixture) seedOrder(t *testing.T, o Order) Order {
	t.Helper()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = fixedNow
	}
	for i := range o.Items {
		if o.Items[i].Status == "" {
			o.Items[i].Status = o.Status
		}
	}
	created, err := memOrders{db: f.db}.Create(context.Background(), &o)
	require.NoError(t, err)
	require.True(t, created)
	return o
}

func (f *fixture) addToCart(userID int64, line catalog.Line) {
	f.db.carts[userID] = append(f.db.carts[userID], cart.Item{ID: f.db.id(), Line: line})
}

func product(id int64, name, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, CategoryID: 1, Name: name, Price: d(price), Stock: stock}
}

func line(p catalog.Product, qty int) catalog.Line {
	return catalog.Line{Product: p, Category: catalog.Category{ID: p.CategoryID, Name: "Perfume"}, Quantity: qty}
}

func item(productID int64, name, price string, qty int) Item {
	return Item{ProductID: i64(productID), ProductName: name, Price: d(price), Quantity: qty}
}

func requireRejected(t *testing.T, err error, reason string) {
	t.Helper()
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, reason, rej.Reason)
}
