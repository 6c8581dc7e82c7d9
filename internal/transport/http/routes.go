package httpt

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const _rootBanner = "UPS Backend Running ✅"

func (h *ShipmentHandler) setupRoutes() {
	h.router.GET("/", banner)
	h.router.GET("/health", health)

	api := h.router.Group("/api/shipments")
	api.POST("", h.createShipmentHandler)
	api.GET("", h.listShipmentsHandler)
	api.GET("/track/:trackingNumber", h.trackShipmentHandler)
	api.GET("/:id", h.getShipmentHandler)
	api.POST("/:id/add-image", h.addImageHandler)
	api.PATCH("/:id/status", h.changeStatusHandler)
}

func banner(c *gin.Context) {
	c.String(http.StatusOK, _rootBanner)
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
