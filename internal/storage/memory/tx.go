package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type memTx struct {
	store *Store

	products        overlay[domain.Product]
	productVersions map[string]int64
	createdProducts map[string]struct{}
	images          overlay[domain.ProductImage]
	addresses       overlay[domain.Address]
	carts           overlay[domain.Cart]
	cartReads       map[string]int64
	cartVersions    map[string]int64
	orders          overlay[domain.Order]
	orderVersions   map[string]int64
	createdOrders   map[string]struct{}
	milestones      map[string][]domain.Milestone
	outbox          []domain.OutboxMessage

	held    map[string]struct{}
	unlocks []func()
}

func newMemTx(s *Store) *memTx {
	return &memTx{
		store:           s,
		products:        newOverlay[domain.Product](),
		productVersions: make(map[string]int64),
		createdProducts: make(map[string]struct{}),
		images:          newOverlay[domain.ProductImage](),
		addresses:       newOverlay[domain.Address](),
		carts:           newOverlay[domain.Cart](),
		cartReads:       make(map[string]int64),
		cartVersions:    make(map[string]int64),
		orders:          newOverlay[domain.Order](),
		orderVersions:   make(map[string]int64),
		createdOrders:   make(map[string]struct{}),
		milestones:      make(map[string][]domain.Milestone),
		held:            make(map[string]struct{}),
	}
}

// LockGroup повторно входим внутри одной транзакции, как pg_advisory_xact_lock.
func (t *memTx) LockGroup(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	release, err := t.store.groups.acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("lock group %s: %w", key, err)
	}
	t.held[key] = struct{}{}
	t.unlocks = append(t.unlocks, release)
	return nil
}

func (t *memTx) releaseLocks() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.unlocks = nil
}

func (t *memTx) Products() domain.ProductRepository { return txProducts{t} }
func (t *memTx) Images() domain.ImageRepository { return txImages{t} }
func (t *memTx) Addresses() domain.AddressRepository { return txAddresses{t} }
func (t *memTx) Carts() domain.CartRepository { return txCarts{t} }
func (t *memTx) Orders() domain.OrderRepository { return txOrders{t} }
func (t *memTx) Outbox() domain.OutboxWriter { return txOutbox{t} }

// read выполняет чтение committed-состояния под RLock.
func (t *memTx) read(fn func()) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	fn()
}

// Products

type txProducts struct{ t *memTx }

func (r txProducts) Create(_ context.Context, p domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var exists bool
	r.t.read(func() { _, exists = r.t.products.get(p.ID, r.t.store.products) })
	if exists {
		return fmt.Errorf("product %s already exists: %w", p.ID, domain.ErrVersionConflict)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 0
	r.t.products.put(p.ID, p)
	r.t.createdProducts[p.ID] = struct{}{}
	return nil
}

func (r txProducts) Get(_ context.Context, id string) (domain.Product, error) {
	var (
		p  domain.Product
		ok bool
	)
	r.t.read(func() { p, ok = r.t.products.get(id, r.t.store.products) })
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (r txProducts) GetMany(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	r.t.read(func() {
		for _, id := range ids {
			if p, ok := r.t.products.get(id, r.t.store.products); ok {
				result[id] = p
			}
		}
	})
	return result, nil
}

func (r txProducts) Save(_ context.Context, p domain.Product) error {
	var (
		current domain.Product
		ok      bool
	)
	r.t.read(func() { current, ok = r.t.products.get(p.ID, r.t.store.products) })
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != p.Version {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrVersionConflict)
	}
	if _, created := r.t.createdProducts[p.ID]; !created {
		if _, tracked := r.t.productVersions[p.ID]; !tracked {
			r.t.productVersions[p.ID] = p.Version
		}
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.t.products.put(p.ID, p)
	return nil
}

// Images

type txImages struct{ t *memTx }

func (r txImages) Create(_ context.Context, img domain.ProductImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	if img.IsMain {
		if err := r.ensureNoOtherMain(img.ProductID, img.ID); err != nil {
			return err
		}
	}
	r.t.images.put(img.ID, img)
	return nil
}

func (r txImages) Get(_ context.Context, id string) (domain.ProductImage, error) {
	var (
		img domain.ProductImage
		ok  bool
	)
	r.t.read(func() { img, ok = r.t.images.get(id, r.t.store.images) })
	if !ok {
		return domain.ProductImage{}, domain.ErrImageNotFound
	}
	return img, nil
}

func (r txImages) ListByProduct(_ context.Context, productID string) ([]domain.ProductImage, error) {
	var result []domain.ProductImage
	r.t.read(func() {
		result = r.t.images.merged(r.t.store.images, func(img domain.ProductImage) bool {
			return img.ProductID == productID
		})
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r txImages) SetMain(ctx context.Context, id string, isMain bool) error {
	img, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if isMain {
		if err := r.ensureNoOtherMain(img.ProductID, img.ID); err != nil {
			return err
		}
	}
	img.IsMain = isMain
	r.t.images.put(img.ID, img)
	return nil
}

func (r txImages) ensureNoOtherMain(productID, exceptID string) error {
	var conflict bool
	r.t.read(func() {
		conflict = len(r.t.images.merged(r.t.store.images, func(img domain.ProductImage) bool {
			return img.ProductID == productID && img.ID != exceptID && img.IsMain
		})) > 0
	})
	if conflict {
		return fmt.Errorf("main image of product %s: %w", productID, domain.ErrFlagConflict)
	}
	return nil
}

func (r txImages) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	r.t.images.remove(id)
	return nil
}

func (r txImages) MainURLs(_ context.Context, productIDs []string) (map[string]string, error) {
	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[string]string, len(productIDs))
	r.t.read(func() {
		for _, img := range r.t.images.merged(r.t.store.images, func(img domain.ProductImage) bool {
			_, ok := wanted[img.ProductID]
			return ok && img.IsMain
		}) {
			result[img.ProductID] = img.URL
		}
	})
	return result, nil
}

// Addresses

type txAddresses struct{ t *memTx }

func (r txAddresses) Create(_ context.Context, a domain.Address) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.IsDefault {
		if err := r.ensureNoOtherDefault(a.UserID, a.ID); err != nil {
			return err
		}
	}
	r.t.addresses.put(a.ID, a)
	return nil
}

func (r txAddresses) Get(_ context.Context, userID, id string) (domain.Address, error) {
	var (
		a  domain.Address
		ok bool
	)
	r.t.read(func() { a, ok = r.t.addresses.get(id, r.t.store.addresses) })
	if !ok || a.UserID != userID {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return a, nil
}

func (r txAddresses) ListByUser(_ context.Context, userID string) ([]domain.Address, error) {
	var result []domain.Address
	r.t.read(func() {
		result = r.t.addresses.merged(r.t.store.addresses, func(a domain.Address) bool { return a.UserID == userID })
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r txAddresses) Update(ctx context.Context, a domain.Address) error {
	current, err := r.Get(ctx, a.UserID, a.ID)
	if err != nil {
		return err
	}
	a.IsDefault = current.IsDefault
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.t.addresses.put(a.ID, a)
	return nil
}

func (r txAddresses) SetDefault(_ context.Context, id string, isDefault bool) error {
	var (
		a  domain.Address
		ok bool
	)
	r.t.read(func() { a, ok = r.t.addresses.get(id, r.t.store.addresses) })
	if !ok {
		return domain.ErrAddressNotFound
	}
	if isDefault {
		if err := r.ensureNoOtherDefault(a.UserID, a.ID); err != nil {
			return err
		}
	}
	a.IsDefault = isDefault
	a.UpdatedAt = time.Now().UTC()
	r.t.addresses.put(a.ID, a)
	return nil
}

func (r txAddresses) ensureNoOtherDefault(userID, exceptID string) error {
	var conflict bool
	r.t.read(func() {
		conflict = len(r.t.addresses.merged(r.t.store.addresses, func(a domain.Address) bool {
			return a.UserID == userID && a.ID != exceptID && a.IsDefault
		})) > 0
	})
	if conflict {
		return fmt.Errorf("default address of user %s: %w", userID, domain.ErrFlagConflict)
	}
	return nil
}

func (r txAddresses) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.Get(ctx, userID, id); err != nil {
		return err
	}
	r.t.addresses.remove(id)
	return nil
}

// Carts

type txCarts struct{ t *memTx }

func (r txCarts) Get(_ context.Context, userID string) (domain.Cart, error) {
	var (
		c  domain.Cart
		ok bool
	)
	r.t.read(func() {
		c, ok = r.t.carts.get(userID, r.t.store.carts)
		if _, seen := r.t.cartReads[userID]; !seen {
			r.t.cartReads[userID] = r.t.store.cartVersions[userID]
		}
	})
	if !ok {
		return domain.Cart{UserID: userID}, nil
	}
	return domain.CloneCart(c), nil
}

// Save проверяется при коммите по версии, увиденной первым чтением корзины в транзакции:
// запись поверх более свежего коммита отклоняется с ErrVersionConflict.
func (r txCarts) Save(_ context.Context, cart domain.Cart) error {
	if _, tracked := r.t.cartVersions[cart.UserID]; !tracked {
		version, seen := r.t.cartReads[cart.UserID]
		if !seen {
			r.t.read(func() { version = r.t.store.cartVersions[cart.UserID] })
		}
		r.t.cartVersions[cart.UserID] = version
	}
	cart = domain.CloneCart(cart)
	cart.UpdatedAt = time.Now().UTC()
	r.t.carts.put(cart.UserID, cart)
	return nil
}

func (r txCarts) RemoveLines(ctx context.Context, userID string, productIDs []string) error {
	cart, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		drop[id] = struct{}{}
	}
	kept := cart.Lines[:0]
	for _, line := range cart.Lines {
		if _, ok := drop[line.ProductID]; !ok {
			kept = append(kept, line)
		}
	}
	cart.Lines = kept
	return r.Save(ctx, cart)
}

func (r txCarts) Clear(ctx context.Context, userID string) error {
	return r.Save(ctx, domain.Cart{UserID: userID})
}

// Orders

type txOrders struct{ t *memTx }

func (r txOrders) Create(_ context.Context, order domain.Order) error {
	var exists bool
	r.t.read(func() { _, exists = r.t.orders.get(order.ID, r.t.store.orders) })
	if exists {
		return fmt.Errorf("order %s already exists: %w", order.ID, domain.ErrVersionConflict)
	}
	milestones := order.Milestones
	order = domain.CloneOrder(order)
	order.Milestones = nil
	order.Version = 0
	r.t.orders.put(order.ID, order)
	r.t.createdOrders[order.ID] = struct{}{}
	r.t.milestones[order.ID] = append(r.t.milestones[order.ID], milestones...)
	return nil
}

func (r txOrders) Get(_ context.Context, id string) (domain.Order, error) {
	var (
		order domain.Order
		ok    bool
		hist  []domain.Milestone
	)
	r.t.read(func() {
		order, ok = r.t.orders.get(id, r.t.store.orders)
		hist = append(hist, r.t.store.milestones[id]...)
	})
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order = domain.CloneOrder(order)
	order.Milestones = append(hist, r.t.milestones[id]...)
	return order, nil
}

func (r txOrders) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	var ids []string
	r.t.read(func() {
		for _, o := range r.t.orders.merged(r.t.store.orders, func(o domain.Order) bool { return o.UserID == userID }) {
			ids = append(ids, o.ID)
		}
	})

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r txOrders) Save(_ context.Context, order domain.Order) error {
	var (
		current domain.Order
		ok      bool
	)
	r.t.read(func() { current, ok = r.t.orders.get(order.ID, r.t.store.orders) })
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrVersionConflict)
	}
	if _, created := r.t.createdOrders[order.ID]; !created {
		if _, tracked := r.t.orderVersions[order.ID]; !tracked {
			r.t.orderVersions[order.ID] = order.Version
		}
	}

	// Позиции и деньги неизменяемы: переносим только статус и адрес.
	current.Status = order.Status
	current.ShippingAddress = order.ShippingAddress
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.t.orders.put(current.ID, current)
	return nil
}

func (r txOrders) AppendMilestone(ctx context.Context, orderID string, m domain.Milestone) error {
	if _, err := r.Get(ctx, orderID); err != nil {
		return err
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	r.t.milestones[orderID] = append(r.t.milestones[orderID], m)
	return nil
}

// Outbox

type txOutbox struct{ t *memTx }

func (r txOutbox) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.t.outbox = append(r.t.outbox, msg)
	return msg, nil
}

var (
	_ domain.Tx                = (*memTx)(nil)
	_ domain.ProductRepository = txProducts{}
	_ domain.ImageRepository   = txImages{}
	_ domain.AddressRepository = txAddresses{}
	_ domain.CartRepository    = txCarts{}
	_ domain.OrderRepository   = txOrders{}
	_ domain.OutboxWriter      = txOutbox{}
)
