package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// maxSaveAttempts bounds read-modify-write retries on version conflicts
const maxSaveAttempts = 3

// ProductService handles product use cases
type ProductService struct {
	repo       domain.ProductRepository
	policy     domain.Policy
	thresholds domain.StockThresholds
	logger     *logging.Logger
}

// NewProductService creates a new ProductService
func NewProductService(
	repo domain.ProductRepository,
	policy domain.Policy,
	thresholds domain.StockThresholds,
	logger *logging.Logger,
) *ProductService {
	return &ProductService{
		repo:       repo,
		policy:     policy,
		thresholds: thresholds,
		logger:     logger,
	}
}

// CreateProduct registers a new product
func (s *ProductService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*ProductDTO, error) {
	unitCost := decimal.Zero
	if cmd.UnitCost != "" {
		parsed, err := decimal.NewFromString(cmd.UnitCost)
		if err != nil {
			return nil, errors.ErrValidationWithFields("invalid unit cost", map[string]string{"unitCost": "must be a decimal number"})
		}
		unitCost = parsed
	}

	product, err := domain.NewProduct(cmd.SKU, cmd.Name, cmd.Category, cmd.Location, cmd.OnHand, unitCost)
	if err != nil {
		return nil, toAppError(err, "product")
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if !stderrors.Is(err, domain.ErrProductExists) {
			s.logger.Error("Failed to create product", "sku", cmd.SKU, "error", err)
		}
		return nil, toAppError(err, "product")
	}

	s.logger.Info("Created product", "sku", cmd.SKU, "onHand", cmd.OnHand)
	return ToProductDTO(product, s.thresholds), nil
}

// GetProduct retrieves a product by SKU
func (s *ProductService) GetProduct(ctx context.Context, sku string) (*ProductDTO, error) {
	product, err := s.load(ctx, sku)
	if err != nil {
		return nil, err
	}
	return ToProductDTO(product, s.thresholds), nil
}

// ListProducts lists products, optionally restricted to a stock status
func (s *ProductService) ListProducts(ctx context.Context, query ListProductsQuery) ([]ProductDTO, error) {
	filter := domain.ProductFilter{}
	if query.Status != "" {
		status := domain.StockStatus(query.Status)
		if !status.IsValid() {
			return nil, errors.ErrValidationWithFields("invalid status", map[string]string{"status": "must be overstock, normal or low"})
		}
		filter = domain.FilterForStatus(status, s.thresholds)
	}
	filter.Limit = query.Limit
	filter.Offset = query.Offset

	products, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list products", "error", err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ToProductDTOs(products, s.thresholds), nil
}

// DeleteProduct removes a product
func (s *ProductService) DeleteProduct(ctx context.Context, sku string) error {
	if _, err := s.load(ctx, sku); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sku); err != nil {
		s.logger.Error("Failed to delete product", "sku", sku, "error", err)
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.logger.Audit(ctx, "delete", "product", sku, nil)
	return nil
}

// Restock adds units at the source location
func (s *ProductService) Restock(ctx context.Context, cmd RestockCommand) (*ProductDTO, error) {
	product, err := s.mutate(ctx, cmd.SKU, func(p *domain.Product) error {
		return p.Restock(cmd.Quantity)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Restocked product", "sku", cmd.SKU, "quantity", cmd.Quantity, "onHand", product.OnHand)
	return ToProductDTO(product, s.thresholds), nil
}

// RecordSale appends a day of sales to the product's demand history
func (s *ProductService) RecordSale(ctx context.Context, cmd RecordSaleCommand) (*ProductDTO, error) {
	record := domain.SalesRecord{Date: cmd.Date, UnitsSold: cmd.UnitsSold}
	if err := record.Validate(); err != nil {
		return nil, toAppError(err, "sale")
	}

	product, err := s.mutate(ctx, cmd.SKU, func(p *domain.Product) error {
		return p.RecordSale(record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Recorded sale", "sku", cmd.SKU, "date", cmd.Date, "unitsSold", cmd.UnitsSold)
	return ToProductDTO(product, s.thresholds), nil
}

// GetExcess runs demand estimation and the excess calculation for a product
func (s *ProductService) GetExcess(ctx context.Context, query GetExcessQuery) (*ExcessDTO, error) {
	policy, err := s.policy.Merge(query.Override)
	if err != nil {
		return nil, toAppError(err, "policy")
	}
	factor, err := seasonality(query.SeasonalityFactor)
	if err != nil {
		return nil, err
	}

	product, err := s.load(ctx, query.SKU)
	if err != nil {
		return nil, err
	}

	avg := product.AverageDemand(policy) * factor
	excess := domain.CalculateExcess(product.OnHand, avg, policy)

	return &ExcessDTO{
		SKU:               product.SKU,
		OnHand:            product.OnHand,
		AvgDemand:         excess.AvgDemand,
		SeasonalityFactor: factor,
		OptimalStock:      excess.OptimalStock,
		ExcessStock:       excess.ExcessStock,
		ExcessValue:       product.UnitCostDecimal().Mul(decimal.NewFromInt(int64(excess.ExcessStock))).StringFixed(2),
		StockStatus:       string(product.StockStatus(s.thresholds)),
		Policy:            policy,
	}, nil
}

func (s *ProductService) load(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		s.logger.Error("Failed to get product", "sku", sku, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, errors.ErrNotFoundWithID("product", sku)
	}
	return product, nil
}

// mutate reloads and reapplies fn when the save loses a version race
func (s *ProductService) mutate(ctx context.Context, sku string, fn func(p *domain.Product) error) (*domain.Product, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		product, err := s.load(ctx, sku)
		if err != nil {
			return nil, err
		}
		if err := fn(product); err != nil {
			return nil, toAppError(err, "product")
		}

		err = s.repo.Save(ctx, product)
		if err == nil {
			return product, nil
		}
		if !stderrors.Is(err, domain.ErrConcurrentModification) {
			s.logger.Error("Failed to save product", "sku", sku, "error", err)
			return nil, fmt.Errorf("failed to save product: %w", err)
		}
		lastErr = err
		s.logger.Debug("Retrying product save after version conflict", "sku", sku, "attempt", attempt)
	}
	return nil, toAppError(lastErr, "product")
}

// seasonality validates an optional demand multiplier
func seasonality(factor *float64) (float64, error) {
	if factor == nil {
		return 1.0, nil
	}
	if *factor <= 0 || math.IsNaN(*factor) || math.IsInf(*factor, 0) {
		return 0, errors.ErrInvalidConfiguration("seasonalityFactor must be a positive number")
	}
	return *factor, nil
}
