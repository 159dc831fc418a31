package idempotency

import "errors"

var (
	// ErrKeyRequired indicates that an idempotency key is required but was not provided
	ErrKeyRequired = errors.New("idempotency key is required for this operation")

	// ErrKeyInvalid indicates that the idempotency key format is invalid
	ErrKeyInvalid = errors.New("invalid idempotency key format")

	// ErrKeyTooLong indicates that the idempotency key exceeds the maximum length
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")

	// ErrMessageAlreadyProcessed indicates that a message has already been processed
	ErrMessageAlreadyProcessed = errors.New("message has already been processed")
)
