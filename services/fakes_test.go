package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/models"
	"storefront-service/repository"
)

// memStore backs the fake repositories with one mutex, standing in for the
// database row locks.
type memStore struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*models.Product
	variants     map[uuid.UUID]*models.Variant
	variantOrder map[uuid.UUID][]uuid.UUID
	reservations map[uuid.UUID]*models.Reservation
	orders       map[uuid.UUID]*models.Order
	seq          int
}

func newMemStore() *memStore {
	return &memStore{
		products:     make(map[uuid.UUID]*models.Product),
		variants:     make(map[uuid.UUID]*models.Variant),
		variantOrder: make(map[uuid.UUID][]uuid.UUID),
		reservations: make(map[uuid.UUID]*models.Reservation),
		orders:       make(map[uuid.UUID]*models.Order),
	}
}

// seedProduct stores an active product with one variant per stock entry.
func (s *memStore) seedProduct(name string, price int64, stocks ...int) *models.Product {
	p := &models.Product{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slugify(name) + "-" + uuid.NewString()[:6],
		BasePrice: decimal.NewFromInt(price),
		Active:    true,
	}
	for i, stock := range stocks {
		p.Variants = append(p.Variants, models.Variant{
			ID:        uuid.New(),
			ProductID: p.ID,
			SKU:       fmt.Sprintf("%s-%d", p.Slug, i),
			Size:      []string{"S", "M", "L", "XL"}[i%4],
			StockQty:  stock,
		})
	}
	if err := (&fakeProductRepo{store: s}).Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

func (s *memStore) variant(id uuid.UUID) models.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.variants[id]
}

func (s *memStore) reservationsFor(orderID uuid.UUID) []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out
}

func (s *memStore) activeReservationsForProductLocked(productID uuid.UUID) bool {
	for _, r := range s.reservations {
		if r.ProductID == productID && r.IsActive() {
			return true
		}
	}
	return false
}

func (s *memStore) productLocked(id uuid.UUID) *models.Product {
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	out := *p
	out.Variants = make([]models.Variant, 0, len(s.variantOrder[id]))
	for _, vid := range s.variantOrder[id] {
		out.Variants = append(out.Variants, *s.variants[vid])
	}
	return &out
}

type fakeProductRepo struct {
	store *memStore
	// FindErr, when set, is returned by FindByID.
	FindErr error
}

func (r *fakeProductRepo) Create(_ context.Context, product *models.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == product.Slug {
			return repository.ErrDuplicateKey
		}
	}
	stored := *product
	stored.Variants = nil
	s.products[product.ID] = &stored
	s.variantOrder[product.ID] = nil
	for _, v := range product.Variants {
		v := v
		v.ProductID = product.ID
		s.variants[v.ID] = &v
		s.variantOrder[product.ID] = append(s.variantOrder[product.ID], v.ID)
	}
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := r.store.productLocked(id)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) Find(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Product
	for id, p := range s.products {
		if filter.MainCategory != "" && !strings.EqualFold(p.MainCategory, filter.MainCategory) {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		out = append(out, *s.productLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *models.Product, replaceVariants bool) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return repository.ErrNotFound
	}
	if replaceVariants {
		if s.activeReservationsForProductLocked(product.ID) {
			return fmt.Errorf("replace variants: %w", repository.ErrActiveReservations)
		}
		for _, vid := range s.variantOrder[product.ID] {
			delete(s.variants, vid)
		}
		s.variantOrder[product.ID] = nil
		for _, v := range product.Variants {
			v := v
			s.variants[v.ID] = &v
			s.variantOrder[product.ID] = append(s.variantOrder[product.ID], v.ID)
		}
	}
	stored := *product
	stored.Variants = nil
	s.products[product.ID] = &stored
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return repository.ErrNotFound
	}
	if s.activeReservationsForProductLocked(id) {
		return fmt.Errorf("delete product: %w", repository.ErrActiveReservations)
	}
	for _, vid := range s.variantOrder[id] {
		delete(s.variants, vid)
	}
	delete(s.variantOrder, id)
	delete(s.products, id)
	return nil
}

type fakeReservationRepo struct {
	store *memStore
}

func (r *fakeReservationRepo) Reserve(_ context.Context, res *models.Reservation) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[res.VariantID]
	if !ok {
		return repository.ErrNotFound
	}
	if v.StockQty < res.Quantity {
		return fmt.Errorf("variant %s has %d left: %w", v.ID, v.StockQty, repository.ErrInsufficientStock)
	}
	v.StockQty -= res.Quantity
	v.ReservedQty += res.Quantity
	res.ProductID = v.ProductID
	s.seq++
	res.CreatedAt = time.Now().Add(time.Duration(s.seq))
	stored := *res
	s.reservations[res.ID] = &stored
	return nil
}

func (r *fakeReservationRepo) settle(id uuid.UUID, eligible func(*models.Reservation) bool, to models.ReservationStatus, at time.Time) (*models.Reservation, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if !eligible(res) {
		out := *res
		return &out, false, nil
	}
	v := s.variants[res.VariantID]
	if v != nil {
		v.ReservedQty -= res.Quantity
		if to == models.ReservationReleased {
			v.StockQty += res.Quantity
		}
	}
	res.Status = to
	if to == models.ReservationReleased {
		res.ReleasedAt = &at
	} else {
		res.ConsumedAt = &at
	}
	out := *res
	return &out, true, nil
}

func (r *fakeReservationRepo) Release(_ context.Context, id uuid.UUID, at time.Time) (*models.Reservation, bool, error) {
	return r.settle(id, (*models.Reservation).IsActive, models.ReservationReleased, at)
}

func (r *fakeReservationRepo) ReleaseExpired(_ context.Context, id uuid.UUID, now time.Time) (*models.Reservation, bool, error) {
	return r.settle(id, func(res *models.Reservation) bool { return res.Expired(now) }, models.ReservationReleased, now)
}

func (r *fakeReservationRepo) Consume(_ context.Context, id uuid.UUID, at time.Time) (*models.Reservation, bool, error) {
	return r.settle(id, (*models.Reservation).IsActive, models.ReservationConsumed, at)
}

func (r *fakeReservationRepo) Hold(_ context.Context, orderID uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.OrderID == orderID && res.Status == models.ReservationReleased {
			return repository.ErrReservationsLapsed
		}
	}
	for _, res := range s.reservations {
		if res.OrderID == orderID && res.IsActive() {
			res.ExpiresAt = nil
		}
	}
	return nil
}

func (r *fakeReservationRepo) RestoreExpiry(_ context.Context, orderID uuid.UUID, expiresAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.OrderID == orderID && res.IsActive() && res.ExpiresAt == nil {
			t := expiresAt
			res.ExpiresAt = &t
		}
	}
	return nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Reservation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *res
	return &out, nil
}

func (r *fakeReservationRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	out := r.store.reservationsFor(orderID)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeReservationRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, res := range s.reservations {
		if res.Expired(now) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeOrderRepo struct {
	store *memStore
	// CreateErrs are returned by successive Create calls before it succeeds.
	CreateErrs []error
	// UpdateErrs are returned by successive UpdateStatus calls.
	UpdateErrs []error
}

func copyOrder(o *models.Order) *models.Order {
	out := *o
	out.Items = append([]models.OrderItem(nil), o.Items...)
	return &out
}

func (r *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(r.CreateErrs) > 0 {
		err := r.CreateErrs[0]
		r.CreateErrs = r.CreateErrs[1:]
		return err
	}
	for _, o := range s.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateKey
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *fakeOrderRepo) find(match func(*models.Order) bool) []models.Order {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, *copyOrder(o))
		}
	}
	return out
}

func (r *fakeOrderRepo) FindByPhone(_ context.Context, phone string) ([]models.Order, error) {
	return r.find(func(o *models.Order) bool { return o.CustomerPhone == phone }), nil
}

func (r *fakeOrderRepo) FindByOrderNumber(_ context.Context, number string) ([]models.Order, error) {
	return r.find(func(o *models.Order) bool { return strings.EqualFold(o.OrderNumber, number) }), nil
}

func (r *fakeOrderRepo) FindStalePending(_ context.Context, now time.Time, limit int) ([]models.Order, error) {
	out := r.find(func(o *models.Order) bool {
		return o.Status == models.OrderStatusPending && o.ReservedUntil != nil && !o.ReservedUntil.After(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, order *models.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(r.UpdateErrs) > 0 {
		err := r.UpdateErrs[0]
		r.UpdateErrs = r.UpdateErrs[1:]
		return err
	}
	stored, ok := s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != order.Version {
		return repository.ErrOptimisticLock
	}
	order.Version++
	order.UpdatedAt = time.Now()
	s.orders[order.ID] = copyOrder(order)
	return nil
}

// backdateOrder moves an order's reservation window and its reservations'
// expiry into the past.
func (s *memStore) backdateOrder(orderID uuid.UUID, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok && o.ReservedUntil != nil {
		t := o.ReservedUntil.Add(-by)
		o.ReservedUntil = &t
	}
	for _, res := range s.reservations {
		if res.OrderID == orderID && res.ExpiresAt != nil {
			t := res.ExpiresAt.Add(-by)
			res.ExpiresAt = &t
		}
	}
}

// backdateReservation moves one reservation's expiry into the past.
func (s *memStore) backdateReservation(id uuid.UUID, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.reservations[id]; ok && res.ExpiresAt != nil {
		t := res.ExpiresAt.Add(-by)
		res.ExpiresAt = &t
	}
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]*models.Offer
	seq    int
	// FindErr, when set, is returned by FindByCode.
	FindErr error
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[uuid.UUID]*models.Offer)}
}

func (r *fakeOfferRepo) Create(_ context.Context, offer *models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.offers {
		if strings.EqualFold(o.Code, offer.Code) {
			return repository.ErrDuplicateKey
		}
	}
	r.seq++
	offer.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	stored := *offer
	r.offers[offer.ID] = &stored
	return nil
}

func (r *fakeOfferRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *o
	return &out, nil
}

func (r *fakeOfferRepo) FindByCode(_ context.Context, code string) (*models.Offer, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.offers {
		if strings.EqualFold(o.Code, strings.TrimSpace(code)) {
			out := *o
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOfferRepo) sorted(match func(*models.Offer) bool) []models.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Offer{}
	for _, o := range r.offers {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeOfferRepo) FindLive(_ context.Context, now time.Time, limit int) ([]models.Offer, error) {
	out := r.sorted(func(o *models.Offer) bool { return o.Active && o.Started(now) && !o.Expired(now) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOfferRepo) FindAll(context.Context) ([]models.Offer, error) {
	return r.sorted(func(*models.Offer) bool { return true }), nil
}

func (r *fakeOfferRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Active = active
	return nil
}

func (r *fakeOfferRepo) Redeem(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok || o.Exhausted() {
		return repository.ErrOfferExhausted
	}
	o.UsedCount++
	return nil
}

func (r *fakeOfferRepo) Unredeem(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.offers[id]; ok && o.UsedCount > 0 {
		o.UsedCount--
	}
	return nil
}

func (r *fakeOfferRepo) offer(code string) models.Offer {
	o, err := r.FindByCode(context.Background(), code)
	if err != nil {
		panic(err)
	}
	return *o
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")

// harness wires real services over the in-memory store.
type harness struct {
	store        *memStore
	products     *fakeProductRepo
	orderRepo    *fakeOrderRepo
	reservRepo   *fakeReservationRepo
	offerRepo    *fakeOfferRepo
	events       *recordingPublisher
	reservations ReservationService
	orders       OrderService
	catalog      CatalogService
	offers       OfferService
	webhook      WebhookService
	logger       *zap.Logger
}

func newHarness() *harness {
	logger, _ := zap.NewDevelopment()
	store := newMemStore()
	h := &harness{
		store:      store,
		products:   &fakeProductRepo{store: store},
		orderRepo:  &fakeOrderRepo{store: store},
		reservRepo: &fakeReservationRepo{store: store},
		offerRepo:  newFakeOfferRepo(),
		events:     &recordingPublisher{},
		logger:     logger,
	}
	h.reservations = NewReservationService(h.reservRepo, nil, nil, 0, logger)
	h.offers = NewOfferService(h.offerRepo, nil, logger)
	h.orders = NewOrderService(h.orderRepo, h.products, h.reservations, h.offers, h.events, nil, DefaultOrderSettings(), logger)
	h.catalog = NewCatalogService(h.products, nil, nil, logger)
	h.webhook = NewWebhookService(h.orders, nil, logger)
	return h
}

func (h *harness) cleanup(cancelExpired bool, now time.Time) *cleanupServiceImpl {
	svc := NewCleanupService(h.reservations, h.orders, h.orderRepo, cancelExpired, h.logger).(*cleanupServiceImpl)
	svc.now = func() time.Time { return now }
	return svc
}

func orderRequest(items ...models.OrderItemInput) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		CustomerName:  "Asha Rao",
		CustomerPhone: "9876500000",
		Items:         items,
	}
}

func item(p *models.Product, variant int, qty int) models.OrderItemInput {
	id := p.Variants[variant].ID
	return models.OrderItemInput{ProductID: p.ID, VariantID: &id, Quantity: qty}
}
