package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Non-retryable application error types raised by the transfer activities
const (
	ErrTypeWarehouseNotFound = "WarehouseNotFound"
	ErrTypeInvalidTransfer   = "InvalidTransfer"
)

// RetryPolicyType selects one of the activity retry profiles
type RetryPolicyType int

const (
	// StandardRetry for stock and status updates (3 attempts, 1s-1m backoff)
	StandardRetry RetryPolicyType = iota
	// AggressiveRetry for compensation steps that must land (5 attempts, 500ms-30s backoff)
	AggressiveRetry
)

// GetRetryPolicy returns the retry policy for a profile
func GetRetryPolicy(policyType RetryPolicyType) *temporal.RetryPolicy {
	switch policyType {
	case AggressiveRetry:
		return &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		}
	default:
		return &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeWarehouseNotFound,
				ErrTypeInvalidTransfer,
			},
		}
	}
}

// GetActivityOptions returns activity options for a profile
func GetActivityOptions(timeout time.Duration, policyType RetryPolicyType) workflow.ActivityOptions {
	if timeout == 0 {
		timeout = time.Minute
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         GetRetryPolicy(policyType),
	}
}
