package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// WarehouseService manages the warehouse directory
type WarehouseService struct {
	repo   domain.WarehouseRepository
	logger *logging.Logger
}

// NewWarehouseService creates a new WarehouseService
func NewWarehouseService(repo domain.WarehouseRepository, logger *logging.Logger) *WarehouseService {
	return &WarehouseService{repo: repo, logger: logger}
}

// UpsertWarehouse creates a warehouse or updates its descriptive fields
func (s *WarehouseService) UpsertWarehouse(ctx context.Context, cmd CreateWarehouseCommand) (*WarehouseDTO, error) {
	if cmd.ProjectedDemandDays < 0 {
		return nil, errors.ErrValidationWithFields("invalid projected demand days", map[string]string{"projectedDemandDays": "must not be negative"})
	}

	warehouse, err := s.repo.FindByID(ctx, cmd.WarehouseID)
	if err != nil {
		s.logger.Error("Failed to get warehouse", "warehouseId", cmd.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}

	if warehouse == nil {
		warehouse = domain.NewWarehouse(cmd.WarehouseID, cmd.Name, cmd.Location, cmd.ProjectedDemandDays)
	} else {
		warehouse.Name = cmd.Name
		warehouse.Location = cmd.Location
		warehouse.ProjectedDemandDays = cmd.ProjectedDemandDays
	}
	if cmd.Active != nil {
		warehouse.Active = *cmd.Active
	}

	if err := s.repo.Save(ctx, warehouse); err != nil {
		s.logger.Error("Failed to save warehouse", "warehouseId", cmd.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to save warehouse: %w", err)
	}

	s.logger.Info("Saved warehouse", "warehouseId", cmd.WarehouseID, "active", warehouse.Active)
	return ToWarehouseDTO(warehouse), nil
}

// ListWarehouses lists the directory
func (s *WarehouseService) ListWarehouses(ctx context.Context, limit, offset int) ([]WarehouseDTO, error) {
	warehouses, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list warehouses", "error", err)
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	return ToWarehouseDTOs(warehouses), nil
}

// SetStock records a warehouse's stock and demand rate for a SKU
func (s *WarehouseService) SetStock(ctx context.Context, cmd SetWarehouseStockCommand) (*WarehouseDTO, error) {
	warehouse, err := s.repo.FindByID(ctx, cmd.WarehouseID)
	if err != nil {
		s.logger.Error("Failed to get warehouse", "warehouseId", cmd.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}
	if warehouse == nil {
		return nil, errors.ErrNotFoundWithID("warehouse", cmd.WarehouseID)
	}

	stock := domain.WarehouseStock{CurrentStock: cmd.CurrentStock, DemandRate: cmd.DemandRate}
	if err := warehouse.SetStock(cmd.SKU, stock); err != nil {
		return nil, toAppError(err, "warehouse stock")
	}

	if err := s.repo.SetStock(ctx, cmd.WarehouseID, cmd.SKU, stock); err != nil {
		s.logger.Error("Failed to set warehouse stock", "warehouseId", cmd.WarehouseID, "sku", cmd.SKU, "error", err)
		return nil, toAppError(err, "warehouse stock")
	}

	return ToWarehouseDTO(warehouse), nil
}
