package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/status"
	"github.com/ups-tracking/ups-api/internal/tracking"
	"github.com/ups-tracking/ups-api/pkg/cache"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
)

//go:generate mockgen -source=service.go -destination=mock/service.go -package=mock_service

const (
	_defaultContextTimeout = 500 * time.Millisecond
	_defaultCacheTTL       = 30 * time.Second
	_defaultCreateRetries  = 5
	_statusChangeAttempts  = 3
	_slowOperation         = 200 * time.Millisecond
)

type (
	// ShipmentStore persists shipments. Create must fail with
	// entity.ErrDuplicateKey when the tracking number is already taken, and
	// UpdateStatus with entity.ErrStatusConflict when the stored status is no
	// longer from.
	ShipmentStore interface {
		Create(ctx context.Context, shipment *entity.Shipment) (*entity.Shipment, error)
		GetByID(ctx context.Context, id string) (*entity.Shipment, error)
		GetByTrackingNumber(ctx context.Context, trackingNumber string) (*entity.Shipment, error)
		ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error)
		List(ctx context.Context) ([]*entity.Shipment, error)
		AppendImage(ctx context.Context, id, url string) (*entity.Shipment, error)
		UpdateStatus(ctx context.Context, id string, from, to entity.Status) (*entity.Shipment, error)
	}

	ImageUploader interface {
		Upload(ctx context.Context, img entity.Image, folder string) (string, error)
	}

	EventPublisher interface {
		Publish(ctx context.Context, event entity.ShipmentEvent) error
	}

	ShipmentService struct {
		store     ShipmentStore
		generator tracking.Generator
		uploader  ImageUploader
		validator status.Validator
		publisher EventPublisher
		cache     cache.Cache[string, *entity.Shipment]
		logger    logger.Logger
		metrics   metric.Tracking

		cacheTTL       time.Duration
		imageFolder    string
		createRetries  int
		contextTimeout time.Duration
		now            func() time.Time
	}
)

func NewShipmentService(
	store ShipmentStore,
	generator tracking.Generator,
	uploader ImageUploader,
	validator status.Validator,
	publisher EventPublisher,
	cache cache.Cache[string, *entity.Shipment],
	logger logger.Logger,
	metrics metric.Tracking,
	opts ...Option,
) (*ShipmentService, error) {
	s := &ShipmentService{
		store:     store,
		generator: generator,
		uploader:  uploader,
		validator: validator,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,

		cacheTTL:       _defaultCacheTTL,
		imageFolder:    "shipments",
		createRetries:  _defaultCreateRetries,
		contextTimeout: _defaultContextTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("service.NewShipmentService: %w", err)
	}

	return s, nil
}

// Create validates the input, uploads the optional image, then persists a
// pending shipment under a fresh tracking number. A unique-constraint
// rejection from the store triggers a new code, up to createRetries times.
func (s *ShipmentService) Create(
	ctx context.Context,
	in entity.CreateShipmentInput,
	img *entity.Image,
) (*entity.Shipment, error) {
	const op = "service.Create"
	log := s.logger.Ctx(ctx)

	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		log.LogAttrs(ctx, logger.InfoLevel, "shipment rejected",
			logger.String("op", op),
			logger.Err(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	startTime := time.Now()
	defer s.warnIfSlow(ctx, op, startTime)

	var imageURL *string
	if img != nil {
		url, err := s.uploader.Upload(ctx, *img, s.imageFolder)
		if err != nil {
			return nil, fmt.Errorf("%s: upload image: %w", op, err)
		}
		imageURL = &url
	}

	for attempt := 1; attempt <= s.createRetries; attempt++ {
		code, err := s.generator.Generate(ctx, s.trackingNumberTaken)
		if err != nil {
			if errors.Is(err, entity.ErrGenerationExhausted) {
				s.metrics.Exhausted()
			}
			s.logOrphanedImage(ctx, op, imageURL)
			return nil, fmt.Errorf("%s: generate tracking number: %w", op, err)
		}

		created, err := s.insert(ctx, entity.NewShipment(in, code, imageURL))
		if err == nil {
			s.publish(ctx, entity.ShipmentEvent{
				Type:           entity.EventShipmentCreated,
				ShipmentID:     created.ID,
				TrackingNumber: created.TrackingNumber,
				Status:         created.Status,
			})

			log.LogAttrs(ctx, logger.InfoLevel, "shipment created",
				logger.String("op", op),
				logger.String("id", created.ID),
				logger.String("tracking_number", created.TrackingNumber),
				logger.Bool("has_image", imageURL != nil),
				logger.Int("attempt", attempt),
				logger.String("duration", time.Since(startTime).String()),
			)
			return created, nil
		}

		if !errors.Is(err, entity.ErrDuplicateKey) {
			s.logOrphanedImage(ctx, op, imageURL)
			return nil, fmt.Errorf("%s: persist shipment: %w", op, err)
		}

		s.metrics.Collision("constraint")
		log.LogAttrs(ctx, logger.WarnLevel, "tracking number taken at insert, regenerating",
			logger.String("op", op),
			logger.String("tracking_number", code),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", s.createRetries),
		)
	}

	s.metrics.Exhausted()
	s.logOrphanedImage(ctx, op, imageURL)
	return nil, fmt.Errorf("%s: %d inserts collided: %w", op, s.createRetries, entity.ErrGenerationExhausted)
}

// AttachImage checks that the shipment exists before uploading, then appends
// the stored image URL to additionalImages. The primary image never changes.
func (s *ShipmentService) AttachImage(ctx context.Context, id string, img entity.Image) (string, error) {
	const op = "service.AttachImage"
	log := s.logger.Ctx(ctx)

	startTime := time.Now()
	defer s.warnIfSlow(ctx, op, startTime)

	if _, err := s.getByID(ctx, id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.uploader.Upload(ctx, img, s.imageFolder)
	if err != nil {
		return "", fmt.Errorf("%s: upload image: %w", op, err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	updated, err := s.store.AppendImage(storeCtx, id, url)
	if err != nil {
		s.logOrphanedImage(ctx, op, &url)
		return "", fmt.Errorf("%s: append image: %w", op, err)
	}

	s.cache.Delete(ctx, updated.TrackingNumber)
	s.publish(ctx, entity.ShipmentEvent{
		Type:           entity.EventShipmentImageAttached,
		ShipmentID:     updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Status:         updated.Status,
		ImageURL:       url,
	})

	log.LogAttrs(ctx, logger.InfoLevel, "image attached",
		logger.String("op", op),
		logger.String("id", id),
		logger.String("url", url),
		logger.Int("additional_images", len(updated.AdditionalImages)),
	)

	return url, nil
}

// ChangeStatus runs the transition validator against the stored status and
// persists the change with a compare-and-set, reloading when a concurrent
// change wins the race.
func (s *ShipmentService) ChangeStatus(
	ctx context.Context,
	id string,
	requested entity.Status,
) (*entity.Shipment, error) {
	const op = "service.ChangeStatus"
	log := s.logger.Ctx(ctx)

	if !requested.Valid() {
		return nil, fmt.Errorf("%s: status %q: %w", op, requested, entity.ErrInvalidStatus)
	}

	startTime := time.Now()
	defer s.warnIfSlow(ctx, op, startTime)

	for attempt := 1; attempt <= _statusChangeAttempts; attempt++ {
		current, err := s.getByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err = s.validator.Validate(current.Status, requested); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		updated, err := s.updateStatus(ctx, id, current.Status, requested)
		if err == nil {
			s.cache.Delete(ctx, updated.TrackingNumber)
			s.publish(ctx, entity.ShipmentEvent{
				Type:           entity.EventShipmentStatusChanged,
				ShipmentID:     updated.ID,
				TrackingNumber: updated.TrackingNumber,
				Status:         updated.Status,
				PreviousStatus: current.Status,
			})

			log.LogAttrs(ctx, logger.InfoLevel, "shipment status changed",
				logger.String("op", op),
				logger.String("id", id),
				logger.String("from", current.Status.String()),
				logger.String("to", requested.String()),
			)
			return updated, nil
		}

		if !errors.Is(err, entity.ErrStatusConflict) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.LogAttrs(ctx, logger.WarnLevel, "status changed concurrently, reloading",
			logger.String("op", op),
			logger.String("id", id),
			logger.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%s: %d attempts: %w", op, _statusChangeAttempts, entity.ErrStatusConflict)
}

// ChangeStatusByTrackingNumber resolves the tracking number and delegates to ChangeStatus.
func (s *ShipmentService) ChangeStatusByTrackingNumber(
	ctx context.Context,
	trackingNumber string,
	requested entity.Status,
) (*entity.Shipment, error) {
	const op = "service.ChangeStatusByTrackingNumber"

	storeCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	shipment, err := s.store.GetByTrackingNumber(storeCtx, trackingNumber)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.ChangeStatus(ctx, shipment.ID, requested)
}

func (s *ShipmentService) GetAll(ctx context.Context) ([]*entity.Shipment, error) {
	const op = "service.GetAll"

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	shipments, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if shipments == nil {
		shipments = []*entity.Shipment{}
	}

	return shipments, nil
}

func (s *ShipmentService) GetByID(ctx context.Context, id string) (*entity.Shipment, error) {
	const op = "service.GetByID"

	shipment, err := s.getByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return shipment, nil
}

// GetByTrackingNumber matches the code exactly. Only this read path fills the
// cache; mutations evict the entry so a later miss reloads it from the store.
func (s *ShipmentService) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*entity.Shipment, error) {
	const op = "service.GetByTrackingNumber"
	log := s.logger.Ctx(ctx)

	if cached, found := s.cache.Get(ctx, trackingNumber); found {
		log.LogAttrs(ctx, logger.DebugLevel, "shipment served from cache",
			logger.String("op", op),
			logger.String("tracking_number", trackingNumber),
		)
		return cached, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	shipment, err := s.store.GetByTrackingNumber(storeCtx, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.Set(ctx, shipment.TrackingNumber, shipment, s.cacheTTL)

	return shipment, nil
}

func (s *ShipmentService) trackingNumberTaken(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	taken, err := s.store.ExistsByTrackingNumber(ctx, code)
	if err != nil {
		return false, fmt.Errorf("service.trackingNumberTaken: %w", err)
	}
	return taken, nil
}

func (s *ShipmentService) insert(ctx context.Context, shipment *entity.Shipment) (*entity.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.store.Create(ctx, shipment)
}

func (s *ShipmentService) getByID(ctx context.Context, id string) (*entity.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	shipment, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shipment %s: %w", id, err)
	}
	return shipment, nil
}

func (s *ShipmentService) updateStatus(
	ctx context.Context,
	id string,
	from, to entity.Status,
) (*entity.Shipment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.store.UpdateStatus(ctx, id, from, to)
}

// publish never fails the caller: the change is already durable.
func (s *ShipmentService) publish(ctx context.Context, event entity.ShipmentEvent) {
	if s.publisher == nil {
		return
	}

	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Ctx(ctx).LogAttrs(ctx, logger.WarnLevel, "publish shipment event failed",
			logger.String("type", string(event.Type)),
			logger.String("tracking_number", event.TrackingNumber),
			logger.Err(err),
		)
	}
}

func (s *ShipmentService) logOrphanedImage(ctx context.Context, op string, url *string) {
	if url == nil {
		return
	}
	s.logger.Ctx(ctx).LogAttrs(ctx, logger.WarnLevel, "uploaded image is not referenced by any shipment",
		logger.String("op", op),
		logger.String("url", *url),
	)
}

func (s *ShipmentService) warnIfSlow(ctx context.Context, op string, startTime time.Time) {
	if duration := time.Since(startTime); duration > _slowOperation {
		s.logger.Ctx(ctx).LogAttrs(ctx, logger.WarnLevel, "slow service operation",
			logger.String("op", op),
			logger.String("duration", duration.String()),
		)
	}
}

func normalizeInput(in entity.CreateShipmentInput) entity.CreateShipmentInput {
	return entity.CreateShipmentInput{
		Sender:      strings.TrimSpace(in.Sender),
		Recipient:   strings.TrimSpace(in.Recipient),
		Origin:      strings.TrimSpace(in.Origin),
		Destination: strings.TrimSpace(in.Destination),
	}
}

func validateInput(in entity.CreateShipmentInput) error {
	fields := []struct {
		name  string
		value string
	}{
		{"sender", in.Sender},
		{"recipient", in.Recipient},
		{"origin", in.Origin},
		{"destination", in.Destination},
	}

	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
