package mongodb

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	wmstesting "github.com/wms-platform/stock-redistribution/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *wmstesting.MongoDBContainer
	client     *mongo.Client
	db         *mongo.Database
	products   *ProductRepository
	warehouses *WarehouseRepository
	transfers  *TransferLogRepository
	requests   *DistributionRequestRepository
	archive    *SalesArchiveRepository
	ctx        context.Context
}

func TestRepositoryIntegration(t *testing.T) {
	wmstesting.SkipIfShort(t)
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := wmstesting.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.GetClient(s.ctx)
	s.Require().NoError(err)
	s.client = client
	s.db = client.Database("redistribution_test")

	factory := cloudevents.NewEventFactory(cloudevents.SourceRedistribution)
	s.products, err = NewProductRepository(s.ctx, s.db, factory, nil)
	s.Require().NoError(err)
	s.warehouses, err = NewWarehouseRepository(s.ctx, s.db, nil)
	s.Require().NoError(err)
	s.transfers, err = NewTransferLogRepository(s.ctx, s.db, nil)
	s.Require().NoError(err)
	s.requests, err = NewDistributionRequestRepository(s.ctx, s.db, nil)
	s.Require().NoError(err)
	s.archive, err = NewSalesArchiveRepository(s.ctx, s.db, nil)
	s.Require().NoError(err)
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	collections := []string{
		productsCollection, warehousesCollection, transfersCollection,
		requestsCollection, salesArchiveCollection, "outbox_events",
	}
	for _, name := range collections {
		_, err := s.db.Collection(name).DeleteMany(s.ctx, bson.M{})
		s.Require().NoError(err)
	}
}

func (s *RepositoryIntegrationTestSuite) createProduct(sku string, onHand int) *domain.Product {
	product, err := domain.NewProduct(sku, "Widget", "hardware", "", onHand, decimal.NewFromFloat(2.5))
	s.Require().NoError(err)
	s.Require().NoError(s.products.Create(s.ctx, product))
	return product
}

func (s *RepositoryIntegrationTestSuite) outboxCount(eventType string) int64 {
	n, err := s.db.Collection("outbox_events").CountDocuments(s.ctx, bson.M{"eventType": eventType})
	s.Require().NoError(err)
	return n
}

func (s *RepositoryIntegrationTestSuite) TestCreateAndFind() {
	s.createProduct("SKU-100", 120)

	found, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(120, found.OnHand)
	s.Equal("2.50", found.UnitCost)
	s.Equal(int64(1), found.Version)
	s.Equal(int64(1), s.outboxCount(cloudevents.ProductCreated))

	missing, err := s.products.FindBySKU(s.ctx, "SKU-404")
	s.NoError(err)
	s.Nil(missing)

	dup, err := domain.NewProduct("SKU-100", "Other", "", "", 1, decimal.Zero)
	s.Require().NoError(err)
	s.ErrorIs(s.products.Create(s.ctx, dup), domain.ErrProductExists)
}

func (s *RepositoryIntegrationTestSuite) TestSaveVersionCheck() {
	s.createProduct("SKU-100", 120)

	first, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	stale, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)

	s.Require().NoError(first.RecordSale(domain.SalesRecord{Date: "2024-03-01", UnitsSold: 4}))
	s.Require().NoError(s.products.Save(s.ctx, first))
	s.Equal(int64(2), first.Version)
	s.Equal(int64(1), s.outboxCount(cloudevents.SaleRecorded))

	s.Require().NoError(stale.Restock(5))
	s.ErrorIs(s.products.Save(s.ctx, stale), domain.ErrConcurrentModification)

	stored, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Equal(120, stored.OnHand)
	s.Require().Len(stored.DemandHistory, 1)
}

func (s *RepositoryIntegrationTestSuite) TestFindAllFilters() {
	s.createProduct("SKU-100", 100)
	s.createProduct("SKU-101", 3)
	s.createProduct("SKU-102", 30)

	filter := domain.FilterForStatus(domain.StockStatusNormal, domain.DefaultStockThresholds())
	products, err := s.products.FindAll(s.ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(products, 1)
	s.Equal("SKU-102", products[0].SKU)

	all, err := s.products.FindAll(s.ctx, domain.ProductFilter{Limit: 2})
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal("SKU-100", all[0].SKU)
}

func (s *RepositoryIntegrationTestSuite) distributionFor(product *domain.Product, quantities ...int) (*domain.DistributionCommit, string) {
	plan := domain.DistributionPlan{SKU: product.SKU}
	for i, q := range quantities {
		plan.Allocations = append(plan.Allocations, domain.Allocation{
			WarehouseID:  fmt.Sprintf("WH-%d", i+1),
			Quantity:     q,
			TransferCost: 50,
		})
	}
	distributionID := "dist-" + product.SKU
	_, err := product.Distribute(distributionID, plan)
	s.Require().NoError(err)

	n := 0
	orders := domain.NewTransferOrders(distributionID, product.Location, plan, func() string {
		n++
		return fmt.Sprintf("%s-t%d", distributionID, n)
	})
	return &domain.DistributionCommit{Product: product, Total: plan.TotalQuantity(), Transfers: orders}, distributionID
}

func (s *RepositoryIntegrationTestSuite) TestApplyDistribution() {
	s.createProduct("SKU-100", 120)
	product, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)

	commit, distributionID := s.distributionFor(product, 46, 14)
	s.Require().NoError(s.products.ApplyDistribution(s.ctx, commit))
	s.Equal(int64(2), product.Version)

	stored, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Equal(60, stored.OnHand)
	s.Equal(int64(1), s.outboxCount(cloudevents.StockDistributed))

	orders, err := s.transfers.FindByDistributionID(s.ctx, distributionID)
	s.Require().NoError(err)
	s.Require().Len(orders, 2)
	s.Equal(domain.TransferStatusPending, orders[0].Status)

	n, err := s.transfers.UpdateStatus(s.ctx, distributionID,
		[]domain.TransferStatus{domain.TransferStatusPending}, domain.TransferStatusInTransit)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = s.transfers.UpdateStatus(s.ctx, distributionID,
		[]domain.TransferStatus{domain.TransferStatusPending}, domain.TransferStatusFailed)
	s.Require().NoError(err)
	s.Equal(int64(0), n)
}

func (s *RepositoryIntegrationTestSuite) TestApplyDistributionRejections() {
	s.createProduct("SKU-100", 50)

	stale, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	fresh, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)

	commit, _ := s.distributionFor(fresh, 40)
	s.Require().NoError(s.products.ApplyDistribution(s.ctx, commit))

	// stale copy still believes 50 are on hand; only 10 remain
	staleCommit, _ := s.distributionFor(stale, 30)
	err = s.products.ApplyDistribution(s.ctx, staleCommit)
	var insufficient *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal(30, insufficient.Attempted)
	s.Equal(10, insufficient.Available)

	reloaded, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	racer, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Require().NoError(reloaded.Restock(5))
	s.Require().NoError(s.products.Save(s.ctx, reloaded))

	racerCommit, _ := s.distributionFor(racer, 5)
	s.ErrorIs(s.products.ApplyDistribution(s.ctx, racerCommit), domain.ErrConcurrentModification)

	stored, err := s.products.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Equal(15, stored.OnHand)

	orders, err := s.transfers.FindBySKU(s.ctx, "SKU-100", 10, 0)
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *RepositoryIntegrationTestSuite) TestWarehouseStock() {
	warehouse := domain.NewWarehouse("WH-A", "North", "Leeds", 0)
	s.Require().NoError(s.warehouses.Save(s.ctx, warehouse))
	s.Require().NoError(s.warehouses.SetStock(s.ctx, "WH-A", "SKU-100", domain.WarehouseStock{CurrentStock: 15, DemandRate: 2.4}))
	s.Require().NoError(s.warehouses.IncrementStock(s.ctx, "WH-A", "SKU-100", 14))

	// descriptive update must not reset stock
	warehouse.Name = "North Hub"
	warehouse.Stock = nil
	s.Require().NoError(s.warehouses.Save(s.ctx, warehouse))

	inactive := domain.NewWarehouse("WH-B", "South", "Bristol", 0)
	inactive.Active = false
	s.Require().NoError(s.warehouses.Save(s.ctx, inactive))

	found, err := s.warehouses.FindByID(s.ctx, "WH-A")
	s.Require().NoError(err)
	s.Equal("North Hub", found.Name)
	s.Equal(29, found.Stock["SKU-100"].CurrentStock)
	s.InDelta(2.4, found.Stock["SKU-100"].DemandRate, 1e-9)

	active, err := s.warehouses.FindActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("WH-A", active[0].WarehouseID)

	s.ErrorIs(s.warehouses.IncrementStock(s.ctx, "WH-Z", "SKU-100", 1), domain.ErrWarehouseNotFound)

	missing, err := s.warehouses.FindByID(s.ctx, "WH-Z")
	s.NoError(err)
	s.Nil(missing)
}

func (s *RepositoryIntegrationTestSuite) TestRequestLogAndArchive() {
	for i, sku := range []string{"SKU-100", "SKU-101", "SKU-100"} {
		s.Require().NoError(s.requests.Append(s.ctx, &domain.DistributionRequest{
			RequestID: fmt.Sprintf("req-%d", i),
			SKU:       sku,
			Mode:      domain.DistributionModePreview,
			Outcome:   domain.OutcomePlanned,
		}))
	}
	requests, err := s.requests.Find(s.ctx, "SKU-100", 10, 0)
	s.Require().NoError(err)
	s.Len(requests, 2)

	records := []domain.SalesRecord{{Date: "2024-01-01", UnitsSold: 3}, {Date: "2024-01-02", UnitsSold: 4}}
	s.Require().NoError(s.archive.Archive(s.ctx, "SKU-100", records))
	s.Require().NoError(s.archive.Archive(s.ctx, "SKU-100", records[:1]))

	archived, err := s.archive.FindBySKU(s.ctx, "SKU-100")
	s.Require().NoError(err)
	s.Equal(records, archived)
}
