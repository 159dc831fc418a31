package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Services are nil: every case here is rejected before a service is reached
func newTestRouter() *gin.Engine {
	return newRouter(routerDeps{logger: logging.NewNop()})
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRequestValidation tests boundary validation on the API routes
func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		expectStatus int
		expectCode   string
		expectField  string
	}{
		{
			name:   "Product with negative stock",
			method: http.MethodPost, path: "/api/v1/products",
			body:         `{"sku":"SKU-100","name":"Widget","onHand":-1}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "onHand",
		},
		{
			name:   "Product with malformed sku",
			method: http.MethodPost, path: "/api/v1/products",
			body:         `{"sku":"x","name":"Widget"}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "sku",
		},
		{
			name:   "Malformed JSON",
			method: http.MethodPost, path: "/api/v1/products",
			body:         `{"sku":`,
			expectStatus: http.StatusBadRequest, expectCode: "BAD_REQUEST",
		},
		{
			name:   "Sale with negative units",
			method: http.MethodPost, path: "/api/v1/products/SKU-100/sales",
			body:         `{"date":"2024-03-01","unitsSold":-5}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "unitsSold",
		},
		{
			name:   "Sale with bad date",
			method: http.MethodPost, path: "/api/v1/products/SKU-100/sales",
			body:         `{"date":"03/01/2024","unitsSold":5}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "date",
		},
		{
			name:   "Restock of zero",
			method: http.MethodPost, path: "/api/v1/products/SKU-100/restock",
			body:         `{"quantity":0}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "quantity",
		},
		{
			name:   "Preview with invalid sku",
			method: http.MethodPost, path: "/api/v1/redistribution/ab/preview",
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "sku",
		},
		{
			name:   "Execute with negative candidate stock",
			method: http.MethodPost, path: "/api/v1/redistribution/SKU-100/execute",
			body:         `{"candidates":[{"warehouseId":"WH-A","currentStock":-1,"demandRate":1}]}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR",
		},
		{
			name:   "Execute with zero approved quantity",
			method: http.MethodPost, path: "/api/v1/redistribution/SKU-100/execute",
			body:         `{"expectedPlan":[{"warehouseId":"WH-A","quantity":0}]}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR",
		},
		{
			name:   "Warehouse stock with negative demand",
			method: http.MethodPut, path: "/api/v1/warehouses/WH-A/stock/SKU-100",
			body:         `{"currentStock":10,"demandRate":-2}`,
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "demandRate",
		},
		{
			name:   "List with oversized page",
			method: http.MethodGet, path: "/api/v1/products?limit=5000",
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "limit",
		},
		{
			name:   "Excess with non-integer override",
			method: http.MethodGet, path: "/api/v1/products/SKU-100/excess?historyWindow=abc",
			expectStatus: http.StatusBadRequest, expectCode: "VALIDATION_ERROR", expectField: "historyWindow",
		},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.expectStatus, w.Code, w.Body.String())

			var resp middleware.APIErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectCode, resp.Code)
			if tt.expectField != "" {
				assert.Contains(t, resp.Details, tt.expectField)
			}
		})
	}
}

// TestProbes tests health and unknown routes
func TestProbes(t *testing.T) {
	router := newTestRouter()

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestPlanRequestToCommand tests mapping of the optional plan body
func TestPlanRequestToCommand(t *testing.T) {
	var req PlanRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"policy": {"minFloorUnits": 5},
		"seasonalityFactor": 1.5,
		"candidates": [{"warehouseId": "WH-A", "currentStock": 3, "demandRate": 2, "transferCost": 10, "suggestedQty": 0}]
	}`), &req))

	cmd := req.toCommand("SKU-100")
	assert.Equal(t, "SKU-100", cmd.SKU)
	require.NotNil(t, cmd.Override)
	assert.Equal(t, 5, *cmd.Override.MinFloorUnits)
	assert.Nil(t, cmd.Override.SupplyHorizonDays)
	assert.Equal(t, 1.5, *cmd.SeasonalityFactor)
	require.Len(t, cmd.Candidates, 1)
	require.NotNil(t, cmd.Candidates[0].SuggestedQty)
	assert.Equal(t, 0, *cmd.Candidates[0].SuggestedQty)
	assert.Nil(t, cmd.ExpectedPlan, "no approved plan means the plan is recomputed")

	require.NoError(t, json.Unmarshal([]byte(`{"expectedPlan": []}`), &req))
	cmd = req.toCommand("SKU-100")
	assert.NotNil(t, cmd.ExpectedPlan)
	assert.Empty(t, cmd.ExpectedPlan)
}

// TestSplitList tests comma-separated environment values
func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	assert.Nil(t, splitList(""))
}
