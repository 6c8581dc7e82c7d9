package httpt

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

const _imageField = "image"

var errImageTooLarge = errors.New("image exceeds size limit")

func (h *ShipmentHandler) createShipmentHandler(c *gin.Context) {
	const op = "transport.createShipmentHandler"

	ctx := c.Request.Context()
	log := h.log.Ctx(ctx)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	var in entity.CreateShipmentInput
	if err := c.ShouldBind(&in); err != nil {
		h.handleBadRequest(c, op, "Invalid request body", err)
		return
	}

	file, header, err := h.formImage(c, false)
	if err != nil {
		h.handleImageError(c, op, err)
		return
	}

	var img *entity.Image
	if file != nil {
		defer file.Close()
		img = &entity.Image{Reader: file, Filename: header.Filename, Size: header.Size}
	}

	shipment, err := h.svc.Create(ctx, in, img)
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	log.LogAttrs(ctx, logger.InfoLevel, "shipment created",
		logger.String("id", shipment.ID),
		logger.String("tracking_number", shipment.TrackingNumber),
	)

	c.JSON(http.StatusCreated, shipment)
}

func (h *ShipmentHandler) addImageHandler(c *gin.Context) {
	const op = "transport.addImageHandler"

	ctx := c.Request.Context()
	id := c.Param("id")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	file, header, err := h.formImage(c, true)
	if err != nil {
		h.handleImageError(c, op, err)
		return
	}
	defer file.Close()

	url, err := h.svc.AttachImage(ctx, id, entity.Image{
		Reader:   file,
		Filename: header.Filename,
		Size:     header.Size,
	})
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	c.JSON(http.StatusOK, AddImageResponse{Message: "Image added", URL: url})
}

func (h *ShipmentHandler) changeStatusHandler(c *gin.Context) {
	const op = "transport.changeStatusHandler"

	ctx := c.Request.Context()
	log := h.log.Ctx(ctx)
	id := c.Param("id")

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleBadRequest(c, op, "Invalid request body", err)
		return
	}

	shipment, err := h.svc.ChangeStatus(ctx, id, entity.Status(req.Status))
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	log.LogAttrs(ctx, logger.InfoLevel, "shipment status updated",
		logger.String("id", id),
		logger.String("status", shipment.Status.String()),
	)

	c.JSON(http.StatusOK, shipment)
}

func (h *ShipmentHandler) listShipmentsHandler(c *gin.Context) {
	const op = "transport.listShipmentsHandler"

	shipments, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	c.JSON(http.StatusOK, shipments)
}

func (h *ShipmentHandler) getShipmentHandler(c *gin.Context) {
	const op = "transport.getShipmentHandler"

	shipment, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	c.JSON(http.StatusOK, shipment)
}

func (h *ShipmentHandler) trackShipmentHandler(c *gin.Context) {
	const op = "transport.trackShipmentHandler"

	ctx := c.Request.Context()
	log := h.log.Ctx(ctx)
	trackingNumber := c.Param("trackingNumber")

	shipment, err := h.svc.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		h.handleServiceError(c, err, op)
		return
	}

	log.LogAttrs(ctx, logger.DebugLevel, "shipment tracked",
		logger.String("tracking_number", trackingNumber),
	)

	c.JSON(http.StatusOK, shipment)
}

// formImage returns the uploaded image part, or nil when it is absent and not required.
func (h *ShipmentHandler) formImage(c *gin.Context, required bool) (multipart.File, *multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		if required {
			return nil, nil, http.ErrMissingFile
		}
		return nil, nil, nil
	}

	header, err := c.FormFile(_imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if header.Size > h.maxImageBytes {
		return nil, nil, fmt.Errorf("%w: %d > %d bytes", errImageTooLarge, header.Size, h.maxImageBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open image part: %w", err)
	}
	return file, header, nil
}
