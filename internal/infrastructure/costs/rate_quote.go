package costs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/resilience"
)

type rateQuoteRequest struct {
	FromLocation string `json:"fromLocation"`
	WarehouseID  string `json:"warehouseId"`
	ToLocation   string `json:"toLocation"`
}

type rateQuoteResponse struct {
	Cost float64 `json:"cost"`
}

// RateQuoteProvider asks a rate-quote service for live costs. Failures and an
// open breaker fall back to the static table.
type RateQuoteProvider struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	fallback   domain.TransferCostProvider
	logger     *logging.Logger
}

// NewRateQuoteProvider creates a RateQuoteProvider
func NewRateQuoteProvider(baseURL string, breaker *resilience.CircuitBreaker, fallback domain.TransferCostProvider, logger *logging.Logger) *RateQuoteProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RateQuoteProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		breaker:    breaker,
		fallback:   fallback,
		logger:     logger,
	}
}

func (p *RateQuoteProvider) GetTransferCost(ctx context.Context, fromLocation string, warehouse *domain.Warehouse) (float64, error) {
	cost, err := resilience.Execute(ctx, p.breaker, func(ctx context.Context) (float64, error) {
		return p.quote(ctx, fromLocation, warehouse)
	})
	if err == nil {
		return cost, nil
	}

	p.logger.WithContext(ctx).Warn("Rate quote failed, using static table",
		"warehouseId", warehouse.WarehouseID,
		"error", err,
	)
	return p.fallback.GetTransferCost(ctx, fromLocation, warehouse)
}

func (p *RateQuoteProvider) quote(ctx context.Context, fromLocation string, warehouse *domain.Warehouse) (float64, error) {
	body, err := json.Marshal(rateQuoteRequest{
		FromLocation: fromLocation,
		WarehouseID:  warehouse.WarehouseID,
		ToLocation:   warehouse.Location,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode rate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/rates", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var quote rateQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if quote.Cost <= 0 || !finite(quote.Cost) {
		return 0, fmt.Errorf("rate service returned invalid cost %v", quote.Cost)
	}
	return quote.Cost, nil
}
