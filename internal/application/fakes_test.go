package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	events   []domain.DomainEvent
	orders   []*domain.TransferOrder
	saveErr  error
	findErr  error
	applyErr error

	// conflicts makes the next N saves fail with a version conflict
	conflicts int
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[string]*domain.Product)}
	for _, p := range products {
		p.ClearDomainEvents()
		f.products[p.SKU] = p
	}
	return f
}

// stored copies so services cannot mutate repository state without saving
func clone(p *domain.Product) *domain.Product {
	c := *p
	c.DemandHistory = append([]domain.SalesRecord{}, p.DemandHistory...)
	c.DomainEvents = nil
	return &c
}

func (f *fakeProductRepo) Create(ctx context.Context, product *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.products[product.SKU]; exists {
		return domain.ErrProductExists
	}
	f.events = append(f.events, product.GetDomainEvents()...)
	product.ClearDomainEvents()
	f.products[product.SKU] = clone(product)
	return nil
}

func (f *fakeProductRepo) Save(ctx context.Context, product *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrConcurrentModification
	}
	stored, ok := f.products[product.SKU]
	if !ok || stored.Version != product.Version {
		return domain.ErrConcurrentModification
	}
	product.Version++
	f.events = append(f.events, product.GetDomainEvents()...)
	product.ClearDomainEvents()
	f.products[product.SKU] = clone(product)
	return nil
}

func (f *fakeProductRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	p, ok := f.products[sku]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (f *fakeProductRepo) FindAll(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Product, 0)
	for _, p := range f.products {
		if filter.OnHandAbove != nil && p.OnHand <= *filter.OnHandAbove {
			continue
		}
		if filter.OnHandBelow != nil && p.OnHand >= *filter.OnHandBelow {
			continue
		}
		results = append(results, clone(p))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SKU < results[j].SKU })
	return results, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, sku string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, sku)
	return nil
}

func (f *fakeProductRepo) ApplyDistribution(ctx context.Context, commit *domain.DistributionCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	if err := commit.Validate(); err != nil {
		return err
	}
	stored, ok := f.products[commit.Product.SKU]
	if !ok {
		return domain.ErrProductNotFound
	}
	if stored.OnHand < commit.Total {
		return &domain.InsufficientStockError{SKU: stored.SKU, Attempted: commit.Total, Available: stored.OnHand}
	}
	if stored.Version != commit.Product.Version {
		return domain.ErrConcurrentModification
	}
	stored.OnHand -= commit.Total
	stored.Version++
	commit.Product.Version = stored.Version
	f.events = append(f.events, commit.Product.GetDomainEvents()...)
	commit.Product.ClearDomainEvents()
	f.orders = append(f.orders, commit.Transfers...)
	return nil
}

func (f *fakeProductRepo) onHand(sku string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[sku].OnHand
}

type fakeWarehouseRepo struct {
	warehouses map[string]*domain.Warehouse
	order      []string
	findErr    error
}

func newFakeWarehouseRepo(warehouses ...*domain.Warehouse) *fakeWarehouseRepo {
	f := &fakeWarehouseRepo{warehouses: make(map[string]*domain.Warehouse)}
	for _, w := range warehouses {
		f.warehouses[w.WarehouseID] = w
		f.order = append(f.order, w.WarehouseID)
	}
	return f
}

func (f *fakeWarehouseRepo) Save(ctx context.Context, w *domain.Warehouse) error {
	if _, ok := f.warehouses[w.WarehouseID]; !ok {
		f.order = append(f.order, w.WarehouseID)
	}
	f.warehouses[w.WarehouseID] = w
	return nil
}

func (f *fakeWarehouseRepo) FindByID(ctx context.Context, id string) (*domain.Warehouse, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.warehouses[id], nil
}

func (f *fakeWarehouseRepo) FindActive(ctx context.Context) ([]*domain.Warehouse, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	results := make([]*domain.Warehouse, 0)
	for _, id := range f.order {
		if w := f.warehouses[id]; w.Active {
			results = append(results, w)
		}
	}
	return results, nil
}

func (f *fakeWarehouseRepo) FindAll(ctx context.Context, limit, offset int) ([]*domain.Warehouse, error) {
	results := make([]*domain.Warehouse, 0)
	for _, id := range f.order {
		results = append(results, f.warehouses[id])
	}
	return results, nil
}

func (f *fakeWarehouseRepo) SetStock(ctx context.Context, warehouseID, sku string, stock domain.WarehouseStock) error {
	w, ok := f.warehouses[warehouseID]
	if !ok {
		return domain.ErrWarehouseNotFound
	}
	return w.SetStock(sku, stock)
}

func (f *fakeWarehouseRepo) IncrementStock(ctx context.Context, warehouseID, sku string, quantity int) error {
	w, ok := f.warehouses[warehouseID]
	if !ok {
		return domain.ErrWarehouseNotFound
	}
	s := w.Stock[sku]
	s.CurrentStock += quantity
	w.Stock[sku] = s
	return nil
}

type fakeCostProvider struct {
	costs map[string]float64
}

func (f *fakeCostProvider) GetTransferCost(ctx context.Context, from string, w *domain.Warehouse) (float64, error) {
	cost, ok := f.costs[w.WarehouseID]
	if !ok {
		return 0, fmt.Errorf("no rate for %s", w.WarehouseID)
	}
	return cost, nil
}

type fakeTransferLog struct {
	products *fakeProductRepo
	statuses map[string]domain.TransferStatus
}

func (f *fakeTransferLog) FindByDistributionID(ctx context.Context, id string) ([]*domain.TransferOrder, error) {
	results := make([]*domain.TransferOrder, 0)
	for _, o := range f.products.orders {
		if o.DistributionID == id {
			results = append(results, o)
		}
	}
	return results, nil
}

func (f *fakeTransferLog) FindBySKU(ctx context.Context, sku string, limit, offset int) ([]*domain.TransferOrder, error) {
	results := make([]*domain.TransferOrder, 0)
	for _, o := range f.products.orders {
		if o.SKU == sku {
			results = append(results, o)
		}
	}
	return results, nil
}

func (f *fakeTransferLog) FindAll(ctx context.Context, limit, offset int) ([]*domain.TransferOrder, error) {
	return f.products.orders, nil
}

func (f *fakeTransferLog) UpdateStatus(ctx context.Context, id string, from []domain.TransferStatus, to domain.TransferStatus) (int64, error) {
	var n int64
	for _, o := range f.products.orders {
		if o.DistributionID != id {
			continue
		}
		for _, s := range from {
			if o.Status == s {
				o.Status = to
				n++
				break
			}
		}
	}
	return n, nil
}

type fakeRequestLog struct {
	mu       sync.Mutex
	requests []*domain.DistributionRequest
}

func (f *fakeRequestLog) Append(ctx context.Context, r *domain.DistributionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	return nil
}

func (f *fakeRequestLog) Find(ctx context.Context, sku string, limit, offset int) ([]*domain.DistributionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.DistributionRequest, 0)
	for i := len(f.requests) - 1; i >= 0; i-- {
		if sku == "" || f.requests[i].SKU == sku {
			results = append(results, f.requests[i])
		}
	}
	return results, nil
}

func (f *fakeRequestLog) last() *domain.DistributionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	lockErr error
}

func (f *fakeLocker) Lock(ctx context.Context, sku string) (func(context.Context) error, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	f.held[sku] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, sku)
		return nil
	}, nil
}

type fakeDispatcher struct {
	calls       int
	dispatchErr error
	last        []*domain.TransferOrder
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, id, sku string, transfers []*domain.TransferOrder) error {
	f.calls++
	f.last = transfers
	return f.dispatchErr
}
