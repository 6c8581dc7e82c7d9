package httpt

import (
	"context"
	"time"

	"github.com/ups-tracking/ups-api/internal/config"
	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=handler.go -destination=mock/handler.go -package=mock_httpt

type ShipmentService interface {
	Create(ctx context.Context, in entity.CreateShipmentInput, img *entity.Image) (*entity.Shipment, error)
	AttachImage(ctx context.Context, id string, img entity.Image) (string, error)
	ChangeStatus(ctx context.Context, id string, requested entity.Status) (*entity.Shipment, error)
	GetAll(ctx context.Context) ([]*entity.Shipment, error)
	GetByID(ctx context.Context, id string) (*entity.Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*entity.Shipment, error)
}

type ShipmentHandler struct {
	svc           ShipmentService
	log           logger.Logger
	metrics       metric.HTTP
	router        *gin.Engine
	maxImageBytes int64
	maxBodyBytes  int64
	slowRequest   time.Duration
}

func NewShipmentHandler(
	svc ShipmentService,
	cfg *config.HTTP,
	log logger.Logger,
	metrics metric.HTTP,
) *ShipmentHandler {
	h := &ShipmentHandler{
		svc:           svc,
		log:           log,
		metrics:       metrics,
		maxImageBytes: cfg.MaxImageBytes,
		maxBodyBytes:  cfg.MaxMultipartBytes,
		slowRequest:   cfg.SlowRequest,
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxMultipartBytes

	router.Use(requestID(), h.accessLog(), h.recoverPanic())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowMethods: cfg.CORS.AllowMethods,
		AllowHeaders: cfg.CORS.AllowHeaders,
		MaxAge:       cfg.CORS.MaxAge,
	}))

	h.router = router

	h.setupRoutes()

	return h
}

func (h *ShipmentHandler) Engine() *gin.Engine {
	return h.router
}
