package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// Config holds middleware configuration
type Config struct {
	Logger             *logging.Logger
	ServiceName        string
	CORSAllowedOrigins []string
	TrustedProxies     []string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig(serviceName string, logger *logging.Logger) *Config {
	return &Config{
		Logger:             logger,
		ServiceName:        serviceName,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

// Setup applies all standard middleware to a Gin router
func Setup(router *gin.Engine, config *Config) {
	InitValidator()

	if len(config.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(config.TrustedProxies)
	}

	router.Use(Recovery(config.Logger))
	router.Use(RequestID())
	router.Use(CorrelationID())
	router.Use(LoggerWithConfig(DefaultLoggerConfig(config.Logger)))

	if len(config.CORSAllowedOrigins) > 0 {
		router.Use(CORS(config.CORSAllowedOrigins))
	}

	router.Use(ErrorHandler(config.Logger))
}

// CORS returns the gin-contrib CORS handler for the given origins
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID, HeaderCorrelationID, "Idempotency-Key"},
		ExposeHeaders:    []string{HeaderRequestID, HeaderCorrelationID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// HealthCheck creates a liveness handler
func HealthCheck(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}

// ReadinessCheck creates a readiness handler that runs checkFn against the request context
func ReadinessCheck(serviceName string, checkFn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checkFn(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"service": serviceName,
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"service": serviceName,
		})
	}
}

// NoRoute handles 404 errors with the standard error body
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, APIErrorResponse{
			Code:      "ROUTE_NOT_FOUND",
			Message:   "The requested resource was not found",
			RequestID: GetRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Path:      c.Request.URL.Path,
		})
	}
}
