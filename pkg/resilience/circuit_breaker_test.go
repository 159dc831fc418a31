package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

func testConfig() *CircuitBreakerConfig {
	config := DefaultCircuitBreakerConfig("rate-quote")
	config.FailureThreshold = 2
	config.MinRequestsToTrip = 0
	config.Timeout = 50 * time.Millisecond
	config.MaxRequests = 1
	return config
}

// TestCircuitBreakerTrips tests opening after consecutive failures and recovery
func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(), logging.NewNop(), nil)
	ctx := context.Background()
	failure := errors.New("upstream 503")

	fail := func(ctx context.Context) (float64, error) { return 0, failure }
	succeed := func(ctx context.Context) (float64, error) { return 12.5, nil }

	for i := 0; i < 2; i++ {
		_, err := Execute(ctx, cb, fail)
		assert.ErrorIs(t, err, failure)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := Execute(ctx, cb, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "rate-quote")

	require.Eventually(t, func() bool {
		return cb.State() == gobreaker.StateHalfOpen
	}, time.Second, 10*time.Millisecond)

	value, err := Execute(ctx, cb, succeed)
	require.NoError(t, err)
	assert.Equal(t, 12.5, value)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

// TestCircuitBreakerFailureRatio tests the ratio-based trip rule
func TestCircuitBreakerFailureRatio(t *testing.T) {
	config := DefaultCircuitBreakerConfig("ratio")
	config.FailureThreshold = 100
	config.MinRequestsToTrip = 4
	config.FailureRatioThreshold = 0.5
	cb := NewCircuitBreaker(config, nil, nil)
	ctx := context.Background()

	outcomes := []bool{true, false, true, false}
	for _, ok := range outcomes {
		_, _ = Execute(ctx, cb, func(ctx context.Context) (int, error) {
			if ok {
				return 1, nil
			}
			return 0, errors.New("fail")
		})
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, "ratio", cb.Name())
}
