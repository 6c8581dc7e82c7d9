package httpt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h *ShipmentHandler) handleServiceError(c *gin.Context, err error, op string) {
	ctx := c.Request.Context()
	log := h.log.Ctx(ctx)

	switch {
	case errors.Is(err, entity.ErrMissingField):
		h.logClientError(c, op, "missing required field", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "All fields are required: " + missingFields(err)})
	case errors.Is(err, entity.ErrInvalidStatus):
		h.logClientError(c, op, "invalid status", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid status"})
	case errors.Is(err, entity.ErrDataNotFound):
		h.logClientError(c, op, "shipment not found", err)
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Shipment not found"})
	case errors.Is(err, entity.ErrStatusConflict):
		h.logClientError(c, op, "status changed concurrently", err)
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Shipment status changed concurrently, retry"})
	case errors.Is(err, context.DeadlineExceeded):
		log.LogAttrs(ctx, logger.WarnLevel, "request timeout",
			logger.String("op", op),
			logger.String("path", c.Request.URL.Path),
			logger.String("client_ip", c.ClientIP()),
		)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Request timed out"})
	case errors.Is(err, entity.ErrUploadFailed):
		log.LogAttrs(ctx, logger.ErrorLevel, "image upload failed",
			logger.String("op", op),
			logger.Err(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Image upload failed"})
	default:
		log.LogAttrs(ctx, logger.ErrorLevel, "internal server error",
			logger.String("op", op),
			logger.Err(err),
			logger.String("path", c.Request.URL.Path),
			logger.String("client_ip", c.ClientIP()),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func (h *ShipmentHandler) handleBadRequest(c *gin.Context, op, message string, err error) {
	h.logClientError(c, op, "bad request", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func (h *ShipmentHandler) handleImageError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, http.ErrMissingFile):
		h.handleBadRequest(c, op, "Image file is required", err)
	case errors.Is(err, errImageTooLarge):
		h.handleBadRequest(c, op, "Image is too large", err)
	default:
		h.handleBadRequest(c, op, "Invalid multipart body", err)
	}
}

func (h *ShipmentHandler) logClientError(c *gin.Context, op, msg string, err error) {
	ctx := c.Request.Context()
	h.log.Ctx(ctx).LogAttrs(ctx, logger.WarnLevel, msg,
		logger.String("op", op),
		logger.Err(err),
		logger.String("client_ip", c.ClientIP()),
		logger.String("user_agent", c.Request.UserAgent()),
	)
}

// missingFields extracts the field list the service appends after the sentinel.
func missingFields(err error) string {
	msg := err.Error()
	marker := entity.ErrMissingField.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return "sender, recipient, origin, destination"
}
