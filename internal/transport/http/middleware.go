package httpt

import (
	"net/http"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

const _requestIDHeader = "X-Request-ID"

// requestID adopts the caller's X-Request-ID or mints one, echoes it back and
// stores it on the request context for every log line downstream.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(_requestIDHeader)
		if id == "" {
			id = logger.NewRequestID()
		}
		c.Header(_requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog records one line and one metric sample per request. Metrics are
// labelled by route template so path parameters do not explode cardinality.
func (h *ShipmentHandler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		took := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		level := logger.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = logger.ErrorLevel
		case status >= http.StatusBadRequest:
			level = logger.WarnLevel
		}

		h.log.LogAttrs(c.Request.Context(), level, "HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("duration", took),
			logger.String("client_ip", c.ClientIP()),
			logger.String("user_agent", c.Request.UserAgent()),
		)

		h.metrics.Request(c.Request.Method, route, status, took)
		if h.slowRequest > 0 && took > h.slowRequest {
			h.metrics.SlowRequest(c.Request.Method, route, status, took)
		}
	}
}

func (h *ShipmentHandler) recoverPanic() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.log.LogAttrs(c.Request.Context(), logger.ErrorLevel, "panic while serving request",
			logger.String("path", c.Request.URL.Path),
			logger.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	})
}
