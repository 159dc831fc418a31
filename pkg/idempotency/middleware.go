package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the HTTP header name for the idempotency key
const HeaderIdempotencyKey = "Idempotency-Key"

// responseWriter captures the response so it can be replayed
type responseWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns a Gin middleware that replays the stored response for a
// repeated Idempotency-Key. Apply it to mutating routes only.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Idempotency-Key header is required for this operation",
					"code":  "IDEMPOTENCY_KEY_REQUIRED",
				})
				return
			}
			c.Next()
			return
		}

		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid idempotency key: %v", err),
				"code":  "IDEMPOTENCY_KEY_INVALID",
			})
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		process(c, config, key, ComputeFingerprint(c.Request.Method, c.Request.URL.Path, body))
	}
}

func process(c *gin.Context, config *Config, key, fingerprint string) {
	ctx := c.Request.Context()
	logger := config.logger().WithContext(ctx)
	path := c.FullPath()
	method := c.Request.Method
	now := time.Now().UTC().Truncate(time.Millisecond)

	existing, isNew, err := config.Repository.AcquireLock(ctx, &IdempotencyKey{
		Key:                key,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      method,
		RequestFingerprint: fingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(config.RetentionPeriod),
	})
	if err != nil {
		logger.Error("Failed to acquire idempotency lock", "error", err, "key", key, "path", path)
		config.Metrics.recordStorageError(config.ServiceName, "acquire_lock")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "Idempotency storage is temporarily unavailable",
			"code":  "IDEMPOTENCY_STORAGE_UNAVAILABLE",
		})
		return
	}

	if existing.RequestFingerprint != fingerprint {
		logger.Warn("Idempotency parameter mismatch", "key", key, "path", path)
		config.Metrics.recordMismatch(config.ServiceName, path, method)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Request parameters differ from original request with this idempotency key",
			"code":  "IDEMPOTENCY_PARAMETER_MISMATCH",
		})
		return
	}

	if existing.IsCompleted() {
		logger.Info("Idempotency cache hit", "key", key, "path", path, "statusCode", existing.ResponseCode)
		config.Metrics.recordHit(config.ServiceName, path, method)
		for k, v := range existing.ResponseHeaders {
			c.Header(k, v)
		}
		c.Data(existing.ResponseCode, "application/json", existing.ResponseBody)
		c.Abort()
		return
	}

	if !isNew && existing.IsLocked() {
		if lockAge := time.Since(*existing.LockedAt); lockAge < config.LockTimeout {
			logger.Warn("Concurrent idempotency request", "key", key, "path", path, "lockAge", lockAge)
			config.Metrics.recordConflict(config.ServiceName, path, method)
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "A request with this idempotency key is currently being processed",
				"code":  "IDEMPOTENCY_CONCURRENT_REQUEST",
			})
			return
		}
		logger.Info("Stale idempotency lock, proceeding", "key", key, "path", path)
	}

	config.Metrics.recordMiss(config.ServiceName, path, method)

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}, statusCode: http.StatusOK}
	c.Writer = writer

	c.Next()

	keyID := existing.ID.Hex()

	// Server failures are not cached so the client can retry with the same key
	if writer.statusCode >= http.StatusInternalServerError {
		if err := config.Repository.ReleaseLock(ctx, keyID); err != nil {
			logger.Error("Failed to release idempotency lock", "error", err, "key", key)
			config.Metrics.recordStorageError(config.ServiceName, "release_lock")
		}
		return
	}

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		logger.Warn("Response too large to cache", "key", key, "size", len(responseBody))
		responseBody = []byte(fmt.Sprintf(`{"error":"Response too large to cache","size":%d}`, len(responseBody)))
	}

	headers := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	if err := config.Repository.StoreResponse(ctx, keyID, writer.statusCode, responseBody, headers); err != nil {
		logger.Error("Failed to store idempotency response", "error", err, "key", key)
		config.Metrics.recordStorageError(config.ServiceName, "store_response")
	}
}
