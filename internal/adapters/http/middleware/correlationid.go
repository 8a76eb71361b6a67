package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/application-intake/internal/platform/logging"
)

const (
	// HeaderCorrelationID is the header name for correlation ID.
	// A correlation ID follows one business transaction across services;
	// a request ID names a single hop.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyCorrelationID is the context key for storing the correlation ID.
	ContextKeyCorrelationID = "correlation_id"
)

// CorrelationID returns middleware that propagates X-Correlation-ID from
// upstream, or starts a new one, and adds it to the context logger.
func CorrelationID() gin.HandlerFunc {
	return createIDMiddleware(idMiddlewareConfig{
		headerName:      HeaderCorrelationID,
		contextKey:      ContextKeyCorrelationID,
		contextEnricher: logging.WithCorrelationID,
	})
}

// GetCorrelationID extracts the correlation ID from the gin.Context.
// Returns empty string if not set.
func GetCorrelationID(c *gin.Context) string {
	return getIDFromContext(c, ContextKeyCorrelationID)
}
