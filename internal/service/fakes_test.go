package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"handoff-service/internal/models"
	"handoff-service/internal/store"
)

// fakeRepo is an in-memory stand-in for the Postgres store. It enforces the
// same unique indexes and conditional updates the schema does.
type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	failStock bool

	products   map[int64]*models.Product
	carts      map[int64]*models.Cart
	items      map[int64]*models.CartItem
	transfers  map[int64]*models.TransferCode
	orders     map[int64]*models.Order
	orderItems []models.OrderItem
	joinCodes  map[int64]*models.JoinCode
	members    map[[2]int64]*models.StoreMember
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:  map[int64]*models.Product{},
		carts:     map[int64]*models.Cart{},
		items:     map[int64]*models.CartItem{},
		transfers: map[int64]*models.TransferCode{},
		orders:    map[int64]*models.Order{},
		joinCodes: map[int64]*models.JoinCode{},
		members:   map[[2]int64]*models.StoreMember{},
	}
}

func (r *fakeRepo) newID() int64 {
	r.nextID++
	return r.nextID
}

// fixtures

func (r *fakeRepo) addProduct(p models.Product) *models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.newID()
	}
	r.products[p.ID] = &p
	return &p
}

func (r *fakeRepo) addMember(storeID, userID int64, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[[2]int64{storeID, userID}] = &models.StoreMember{StoreID: storeID, UserID: userID, Role: role}
}

func (r *fakeRepo) cartLines(cartID int64) []models.CartItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemsLocked(cartID)
}

func (r *fakeRepo) ordersFor(transferID int64) []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.TransferCodeID == transferID {
			out = append(out, *o)
		}
	}
	return out
}

func (r *fakeRepo) transfer(id int64) models.TransferCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.transfers[id]
}

func (r *fakeRepo) product(id int64) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.products[id]
}

// snapshot copies every table so a failed handoff can roll back.
func (r *fakeRepo) snapshot() *fakeRepo {
	c := newFakeRepo()
	c.nextID = r.nextID
	for k, v := range r.products {
		p := *v
		p.Sizes = append(models.SizeOptions(nil), v.Sizes...)
		c.products[k] = &p
	}
	for k, v := range r.carts {
		cp := *v
		c.carts[k] = &cp
	}
	for k, v := range r.items {
		cp := *v
		c.items[k] = &cp
	}
	for k, v := range r.transfers {
		cp := *v
		c.transfers[k] = &cp
	}
	for k, v := range r.orders {
		cp := *v
		c.orders[k] = &cp
	}
	c.orderItems = append(c.orderItems, r.orderItems...)
	for k, v := range r.joinCodes {
		cp := *v
		c.joinCodes[k] = &cp
	}
	for k, v := range r.members {
		cp := *v
		c.members[k] = &cp
	}
	return c
}

func (r *fakeRepo) restore(s *fakeRepo) {
	r.nextID = s.nextID
	r.products, r.carts, r.items = s.products, s.carts, s.items
	r.transfers, r.orders, r.orderItems = s.transfers, s.orders, s.orderItems
	r.joinCodes, r.members = s.joinCodes, s.members
}

// products

func (r *fakeRepo) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.productsLocked(ids), nil
}

func (r *fakeRepo) productsLocked(ids []int64) []models.Product {
	out := []models.Product{}
	seen := map[int64]bool{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *p)
		}
	}
	return out
}

// carts

func (r *fakeRepo) GetOrCreateCart(_ context.Context, sessionID string, storeID int64) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.SessionID == sessionID && c.StoreID == storeID {
			cp := *c
			return &cp, nil
		}
	}
	c := &models.Cart{ID: r.newID(), SessionID: sessionID, StoreID: storeID, CreatedAt: time.Now()}
	r.carts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) FindCart(_ context.Context, sessionID string, storeID int64) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.SessionID == sessionID && c.StoreID == storeID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) GetCart(_ context.Context, cartID int64) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) GetCartItems(_ context.Context, cartID int64) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemsLocked(cartID), nil
}

func (r *fakeRepo) itemsLocked(cartID int64) []models.CartItem {
	out := []models.CartItem{}
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepo) GetCartItem(_ context.Context, itemID int64) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func sizeKey(size *string) string {
	if size == nil {
		return ""
	}
	return *size
}

func (r *fakeRepo) FindCartItem(_ context.Context, cartID, productID int64, size *string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.CartID == cartID && it.ProductID == productID && sizeKey(it.Size) == sizeKey(size) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) InsertCartItem(_ context.Context, item *models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.CartID == item.CartID && it.ProductID == item.ProductID && sizeKey(it.Size) == sizeKey(item.Size) {
			return store.ErrDuplicate
		}
	}
	item.ID = r.newID()
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateCartItem(_ context.Context, item *models.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateCartItemIfQuantity(_ context.Context, item *models.CartItem, expected int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[item.ID]
	if !ok || cur.Quantity != expected {
		return false, nil
	}
	cp := *item
	r.items[item.ID] = &cp
	return true, nil
}

func (r *fakeRepo) DeleteCartItem(_ context.Context, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, itemID)
	return nil
}

// transfers

func (r *fakeRepo) ExpireStaleTransfers(_ context.Context, cartID int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transfers {
		if t.CartID == cartID && t.Status == models.TransferPending && t.Expired(now) {
			t.Status = models.TransferExpired
		}
	}
	return nil
}

func (r *fakeRepo) GetPendingTransfer(_ context.Context, cartID int64, now time.Time) (*models.TransferCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transfers {
		if t.CartID == cartID && t.Status == models.TransferPending && !t.Expired(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) InsertTransfer(_ context.Context, t *models.TransferCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transfers {
		if existing.Code == t.Code {
			return store.ErrCodeTaken
		}
	}
	for _, existing := range r.transfers {
		if existing.CartID == t.CartID && existing.Status == models.TransferPending {
			return store.ErrDuplicate
		}
	}
	t.ID = r.newID()
	t.Status = models.TransferPending
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *fakeRepo) GetTransferByCode(_ context.Context, code string) (*models.TransferCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transfers {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) GetTransferByID(_ context.Context, id int64) (*models.TransferCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) ExpireTransfer(_ context.Context, id int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.transfers[id]; ok && t.Status == models.TransferPending && t.Expired(now) {
		t.Status = models.TransferExpired
	}
	return nil
}

func (r *fakeRepo) CancelTransfer(_ context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, staffID, models.TransferCancelled, now)
}

func (r *fakeRepo) transitionLocked(id, staffID int64, status string, now time.Time) (*models.TransferCode, bool, error) {
	t, ok := r.transfers[id]
	if !ok || t.Status != models.TransferPending || t.Expired(now) {
		return nil, false, nil
	}
	t.Status = status
	t.StaffID = &staffID
	cp := *t
	return &cp, true, nil
}

// RunHandoff holds the lock for the whole callback, which serializes
// handoffs the way the row lock does, and rolls back on error.
func (r *fakeRepo) RunHandoff(_ context.Context, fn func(HandoffTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(&fakeTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type fakeTx struct {
	r *fakeRepo
}

func (t *fakeTx) ClaimTransfer(_ context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error) {
	return t.r.transitionLocked(id, staffID, models.TransferConfirmed, now)
}

func (t *fakeTx) GetCartItems(_ context.Context, cartID int64) ([]models.CartItem, error) {
	return t.r.itemsLocked(cartID), nil
}

func (t *fakeTx) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	return t.r.productsLocked(ids), nil
}

func (t *fakeTx) CreateOrder(_ context.Context, order *models.Order) error {
	for _, o := range t.r.orders {
		if o.TransferCodeID == order.TransferCodeID {
			return store.ErrDuplicate
		}
	}
	order.ID = t.r.newID()
	order.CreatedAt = time.Now()
	cp := *order
	t.r.orders[order.ID] = &cp
	return nil
}

func (t *fakeTx) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	item.ID = t.r.newID()
	t.r.orderItems = append(t.r.orderItems, *item)
	return nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID int64, size *string, quantity int) error {
	if t.r.failStock {
		return errors.New("stock row locked")
	}
	p, ok := t.r.products[productID]
	if !ok {
		return nil
	}
	p.Stock = maxInt(p.Stock-quantity, 0)
	if size != nil {
		for i := range p.Sizes {
			if p.Sizes[i].Size == *size {
				p.Sizes[i].Stock = maxInt(p.Sizes[i].Stock-quantity, 0)
			}
		}
	}
	return nil
}

func (t *fakeTx) ClearCart(_ context.Context, cartID int64) error {
	for id, it := range t.r.items {
		if it.CartID == cartID {
			delete(t.r.items, id)
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// join codes

func (r *fakeRepo) IssueJoinCode(_ context.Context, jc *models.JoinCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.joinCodes {
		if existing.Code == jc.Code {
			return store.ErrCodeTaken
		}
	}
	for _, existing := range r.joinCodes {
		if existing.StoreID == jc.StoreID && existing.Role == jc.Role && existing.Status == models.JoinCodeActive {
			existing.Status = models.JoinCodeExpired
		}
	}
	jc.ID = r.newID()
	jc.Status = models.JoinCodeActive
	cp := *jc
	r.joinCodes[jc.ID] = &cp
	return nil
}

func (r *fakeRepo) ExpireJoinCodes(_ context.Context, storeID int64, role string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, jc := range r.joinCodes {
		if jc.StoreID == storeID && jc.Role == role && jc.Status == models.JoinCodeActive && !jc.ExpiresAt.After(now) {
			jc.Status = models.JoinCodeExpired
		}
	}
	return nil
}

func (r *fakeRepo) GetActiveJoinCode(_ context.Context, storeID int64, role string, now time.Time) (*models.JoinCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, jc := range r.joinCodes {
		if jc.StoreID == storeID && jc.Role == role && jc.Status == models.JoinCodeActive && jc.ExpiresAt.After(now) {
			cp := *jc
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) FindActiveJoinCode(ctx context.Context, storeID int64, role, code string, now time.Time) (*models.JoinCode, error) {
	jc, err := r.GetActiveJoinCode(ctx, storeID, role, now)
	if err != nil {
		return nil, err
	}
	if jc.Code != code {
		return nil, store.ErrNotFound
	}
	return jc, nil
}

func (r *fakeRepo) ConsumeJoinCode(_ context.Context, id, userID int64, now time.Time) (*models.JoinCode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jc, ok := r.joinCodes[id]
	if !ok || jc.Status != models.JoinCodeActive || !jc.ExpiresAt.After(now) {
		return nil, false, nil
	}
	jc.Status = models.JoinCodeUsed
	jc.UsedBy = &userID
	jc.UsedAt = &now

	key := [2]int64{jc.StoreID, userID}
	role := jc.Role
	if m, ok := r.members[key]; ok && m.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}
	r.members[key] = &models.StoreMember{StoreID: jc.StoreID, UserID: userID, Role: role, JoinedAt: now}

	cp := *jc
	return &cp, true, nil
}

func (r *fakeRepo) GetMember(_ context.Context, storeID, userID int64) (*models.StoreMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[[2]int64{storeID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// seqGenerator hands out codes in order and repeats the last one when the
// list runs out.
type seqGenerator struct {
	mu      sync.Mutex
	numeric []string
	base36  []string
}

func (g *seqGenerator) Numeric() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return next(&g.numeric), nil
}

func (g *seqGenerator) Base36() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return next(&g.base36), nil
}

func next(list *[]string) string {
	v := (*list)[0]
	if len(*list) > 1 {
		*list = (*list)[1:]
	}
	return v
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []interface{}
}

func (p *recordingPublisher) record(event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishTransferIssued(_ context.Context, e *models.TransferIssuedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishTransferConfirmed(_ context.Context, e *models.TransferConfirmedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishTransferCancelled(_ context.Context, e *models.TransferCancelledEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishJoinCodeIssued(_ context.Context, e *models.JoinCodeIssuedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishJoinCodeConsumed(_ context.Context, e *models.JoinCodeConsumedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var (
	_ CartRepository     = (*fakeRepo)(nil)
	_ TransferRepository = (*fakeRepo)(nil)
	_ JoinCodeRepository = (*fakeRepo)(nil)
	_ MemberRepository   = (*fakeRepo)(nil)
	_ HandoffTx          = (*fakeTx)(nil)
)
