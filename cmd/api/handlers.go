package main

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stock-redistribution/internal/application"
	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// CreateProductRequest is the body of POST /products
type CreateProductRequest struct {
	SKU      string `json:"sku" binding:"required,sku"`
	Name     string `json:"name" binding:"required,max=200"`
	Category string `json:"category" binding:"max=100"`
	Location string `json:"location" binding:"max=100"`
	OnHand   int    `json:"onHand" binding:"gte=0"`
	UnitCost string `json:"unitCost"`
}

// RestockRequest is the body of POST /products/:sku/restock
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// RecordSaleRequest is the body of POST /products/:sku/sales
type RecordSaleRequest struct {
	Date      string `json:"date" binding:"required,iso_date"`
	UnitsSold int    `json:"unitsSold" binding:"gte=0"`
}

// UpsertWarehouseRequest is the body of POST /warehouses
type UpsertWarehouseRequest struct {
	WarehouseID         string `json:"warehouseId" binding:"required,warehouse_id"`
	Name                string `json:"name" binding:"required,max=200"`
	Location            string `json:"location" binding:"max=100"`
	ProjectedDemandDays int    `json:"projectedDemandDays" binding:"gte=0"`
	Active              *bool  `json:"active"`
}

// SetWarehouseStockRequest is the body of PUT /warehouses/:warehouseId/stock/:sku
type SetWarehouseStockRequest struct {
	CurrentStock int     `json:"currentStock" binding:"gte=0"`
	DemandRate   float64 `json:"demandRate" binding:"gte=0"`
}

// CandidateRequest is a caller-supplied destination
type CandidateRequest struct {
	WarehouseID  string  `json:"warehouseId" binding:"required,warehouse_id"`
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	CurrentStock int     `json:"currentStock" binding:"gte=0"`
	DemandRate   float64 `json:"demandRate" binding:"gte=0"`
	TransferCost float64 `json:"transferCost" binding:"gte=0"`
	SuggestedQty *int    `json:"suggestedQty"`
}

// ApprovedAllocationRequest is one line of a previewed plan
type ApprovedAllocationRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required,warehouse_id"`
	Quantity    int    `json:"quantity" binding:"gt=0"`
}

// PlanRequest is the optional body of preview and execute
type PlanRequest struct {
	Policy            *domain.PolicyOverride      `json:"policy"`
	SeasonalityFactor *float64                    `json:"seasonalityFactor"`
	Candidates        []CandidateRequest          `json:"candidates" binding:"omitempty,dive"`
	ExpectedPlan      []ApprovedAllocationRequest `json:"expectedPlan" binding:"omitempty,dive"`
}

func (r PlanRequest) toCommand(sku string) application.PlanCommand {
	cmd := application.PlanCommand{
		SKU:               sku,
		Override:          r.Policy,
		SeasonalityFactor: r.SeasonalityFactor,
	}
	for _, c := range r.Candidates {
		cmd.Candidates = append(cmd.Candidates, application.CandidateInput{
			WarehouseID:  c.WarehouseID,
			Name:         c.Name,
			Location:     c.Location,
			CurrentStock: c.CurrentStock,
			DemandRate:   c.DemandRate,
			TransferCost: c.TransferCost,
			SuggestedQty: c.SuggestedQty,
		})
	}
	if r.ExpectedPlan != nil {
		cmd.ExpectedPlan = make([]application.ApprovedAllocation, 0, len(r.ExpectedPlan))
		for _, a := range r.ExpectedPlan {
			cmd.ExpectedPlan = append(cmd.ExpectedPlan, application.ApprovedAllocation{
				WarehouseID: a.WarehouseID,
				Quantity:    a.Quantity,
			})
		}
	}
	return cmd
}

func createProductHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondWithAppError(middleware.BindingError(err))
			return
		}

		product, err := service.CreateProduct(c.Request.Context(), application.CreateProductCommand{
			SKU:      req.SKU,
			Name:     req.Name,
			Category: req.Category,
			Location: req.Location,
			OnHand:   req.OnHand,
			UnitCost: req.UnitCost,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, product)
	}
}

func listProductsHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		limit, offset, appErr := pagination(c)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		products, err := service.ListProducts(c.Request.Context(), application.ListProductsQuery{
			Status: c.Query("status"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
	}
}

func getProductHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		product, err := service.GetProduct(c.Request.Context(), sku)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		if err := service.DeleteProduct(c.Request.Context(), sku); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func restockHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		var req RestockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondWithAppError(middleware.BindingError(err))
			return
		}

		product, err := service.Restock(c.Request.Context(), application.RestockCommand{SKU: sku, Quantity: req.Quantity})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, product)
	}
}

func recordSaleHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		var req RecordSaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondWithAppError(middleware.BindingError(err))
			return
		}

		product, err := service.RecordSale(c.Request.Context(), application.RecordSaleCommand{
			SKU:       sku,
			Date:      req.Date,
			UnitsSold: req.UnitsSold,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, product)
	}
}

func excessHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		query := application.GetExcessQuery{SKU: sku}
		override, fields := policyOverrideFromQuery(c)
		if len(fields) > 0 {
			responder.RespondValidationError("invalid policy override", fields)
			return
		}
		query.Override = override
		if raw := c.Query("seasonalityFactor"); raw != "" {
			factor, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				responder.RespondValidationError("invalid seasonality factor", map[string]string{"seasonalityFactor": "must be a number"})
				return
			}
			query.SeasonalityFactor = &factor
		}

		excess, err := service.GetExcess(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, excess)
	}
}

func upsertWarehouseHandler(service *application.WarehouseService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req UpsertWarehouseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondWithAppError(middleware.BindingError(err))
			return
		}

		warehouse, err := service.UpsertWarehouse(c.Request.Context(), application.CreateWarehouseCommand{
			WarehouseID:         req.WarehouseID,
			Name:                req.Name,
			Location:            req.Location,
			ProjectedDemandDays: req.ProjectedDemandDays,
			Active:              req.Active,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, warehouse)
	}
}

func listWarehousesHandler(service *application.WarehouseService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		limit, offset, appErr := pagination(c)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		warehouses, err := service.ListWarehouses(c.Request.Context(), limit, offset)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"warehouses": warehouses, "count": len(warehouses)})
	}
}

func setWarehouseStockHandler(service *application.WarehouseService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		sku, ok := skuParam(c, responder)
		if !ok {
			return
		}

		var req SetWarehouseStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondWithAppError(middleware.BindingError(err))
			return
		}

		warehouse, err := service.SetStock(c.Request.Context(), application.SetWarehouseStockCommand{
			WarehouseID:  c.Param("warehouseId"),
			SKU:          sku,
			CurrentStock: req.CurrentStock,
			DemandRate:   req.DemandRate,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, warehouse)
	}
}

func previewHandler(service *application.RedistributionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		cmd, ok := bindPlan(c, responder)
		if !ok {
			return
		}

		plan, err := service.Preview(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, plan)
	}
}

func executeHandler(service *application.RedistributionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		cmd, ok := bindPlan(c, responder)
		if !ok {
			return
		}

		execution, err := service.Execute(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		status := http.StatusOK
		if execution.Executed {
			status = http.StatusCreated
		}
		c.JSON(status, execution)
	}
}

func listRequestsHandler(service *application.RedistributionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		limit, offset, appErr := pagination(c)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		requests, err := service.ListRequests(c.Request.Context(), application.ListRequestsQuery{
			SKU:    c.Query("sku"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
	}
}

func listTransfersHandler(service *application.RedistributionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		limit, offset, appErr := pagination(c)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		transfers, err := service.ListTransfers(c.Request.Context(), application.ListTransfersQuery{
			SKU:            c.Query("sku"),
			DistributionID: c.Query("distributionId"),
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"transfers": transfers, "count": len(transfers)})
	}
}

// bindPlan accepts an empty body as "no overrides"
func bindPlan(c *gin.Context, responder *middleware.ErrorResponder) (application.PlanCommand, bool) {
	sku, ok := skuParam(c, responder)
	if !ok {
		return application.PlanCommand{}, false
	}

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		responder.RespondWithAppError(middleware.BindingError(err))
		return application.PlanCommand{}, false
	}
	return req.toCommand(sku), true
}

func skuParam(c *gin.Context, responder *middleware.ErrorResponder) (string, bool) {
	sku := c.Param("sku")
	if !middleware.ValidSKU(sku) {
		responder.RespondValidationError("invalid sku", map[string]string{"sku": "failed on 'sku'"})
		return "", false
	}
	return sku, true
}

func pagination(c *gin.Context) (int, int, *errors.AppError) {
	limit, err := intQuery(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		return 0, 0, errors.ErrValidationWithFields("invalid pagination", map[string]string{"limit": "must be between 1 and 500"})
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil || offset < 0 {
		return 0, 0, errors.ErrValidationWithFields("invalid pagination", map[string]string{"offset": "must not be negative"})
	}
	return limit, offset, nil
}

func policyOverrideFromQuery(c *gin.Context) (*domain.PolicyOverride, map[string]string) {
	var (
		override *domain.PolicyOverride
		fields   = map[string]string{}
	)
	for _, param := range []struct {
		name   string
		target func(o *domain.PolicyOverride, v int)
	}{
		{"minFloorUnits", func(o *domain.PolicyOverride, v int) { o.MinFloorUnits = &v }},
		{"supplyHorizonDays", func(o *domain.PolicyOverride, v int) { o.SupplyHorizonDays = &v }},
		{"historyWindow", func(o *domain.PolicyOverride, v int) { o.HistoryWindow = &v }},
	} {
		raw := c.Query(param.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields[param.name] = "must be an integer"
			continue
		}
		if override == nil {
			override = &domain.PolicyOverride{}
		}
		param.target(override, v)
	}
	return override, fields
}

func intQuery(c *gin.Context, key string, defaultValue int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}
