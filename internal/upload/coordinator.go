// Package upload moves inbound images into object storage and returns the
// URL that may be stored on a shipment.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/objectstorage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

//go:generate mockgen -source=coordinator.go -destination=mock/coordinator.go -package=mock_upload

const (
	DefaultFolder         = "shipments"
	_defaultUploadTimeout = 2 * time.Minute
	_sniffLen             = 3072
)

type ObjectStorage interface {
	UploadStream(ctx context.Context, key, contentType string, r io.Reader) (*objectstorage.Object, error)
}

type Coordinator struct {
	storage ObjectStorage
	log     logger.Logger
	metrics metric.Upload

	defaultFolder string
	timeout       time.Duration
	newKey        func() string
	allowed       []string
}

func NewCoordinator(
	storage ObjectStorage,
	log logger.Logger,
	metrics metric.Upload,
	opts ...Option,
) (*Coordinator, error) {
	c := &Coordinator{
		storage:       storage,
		log:           log,
		metrics:       metrics,
		defaultFolder: DefaultFolder,
		timeout:       _defaultUploadTimeout,
		newKey:        func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("upload.NewCoordinator: %w", err)
	}

	return c, nil
}

// Upload streams img into folder and returns its public URL. Every failure is
// reported as entity.ErrUploadFailed wrapping the cause; nothing is retried.
func (c *Coordinator) Upload(ctx context.Context, img entity.Image, folder string) (string, error) {
	const op = "upload.Coordinator.Upload"

	if folder = strings.Trim(folder, "/"); folder == "" {
		folder = c.defaultFolder
	}

	if img.Reader == nil {
		c.metrics.Failed(folder, "empty")
		return "", fmt.Errorf("%s: %w: no image payload", op, entity.ErrUploadFailed)
	}

	header := make([]byte, _sniffLen)
	n, err := io.ReadFull(img.Reader, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		c.metrics.Failed(folder, "read")
		return "", fmt.Errorf("%s: %w: read payload: %w", op, entity.ErrUploadFailed, err)
	}
	if n == 0 {
		c.metrics.Failed(folder, "empty")
		return "", fmt.Errorf("%s: %w: empty image payload", op, entity.ErrUploadFailed)
	}
	header = header[:n]

	mt := mimetype.Detect(header)
	if !c.accepts(mt) {
		c.metrics.Failed(folder, "content_type")
		return "", fmt.Errorf("%s: %w: content type %s not allowed", op, entity.ErrUploadFailed, mt.String())
	}
	key := path.Join(folder, c.newKey()+extension(mt, img.Filename))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	obj, err := c.storage.UploadStream(ctx, key, mt.String(), io.MultiReader(bytes.NewReader(header), img.Reader))
	if err != nil {
		reason := "storage"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		c.metrics.Failed(folder, reason)
		c.log.LogAttrs(ctx, logger.ErrorLevel, "image upload failed",
			logger.String("op", op),
			logger.String("key", key),
			logger.String("content_type", mt.String()),
			logger.Err(err),
		)
		return "", fmt.Errorf("%s: %w: %w", op, entity.ErrUploadFailed, err)
	}

	c.metrics.Uploaded(folder, obj.Size, time.Since(start))
	c.log.LogAttrs(ctx, logger.InfoLevel, "image uploaded",
		logger.String("op", op),
		logger.String("key", obj.Key),
		logger.String("url", obj.URL),
		logger.Int64("size", obj.Size),
		logger.String("content_type", mt.String()),
	)

	return obj.URL, nil
}

// extension prefers the sniffed type and falls back to the client filename.
func extension(mt *mimetype.MIME, filename string) string {
	if ext := mt.Extension(); ext != "" {
		return ext
	}
	return strings.ToLower(path.Ext(filename))
}

// accepts reports whether the sniffed type is on the allow-list. An empty
// list accepts everything; "image/*" style entries match a whole family.
func (c *Coordinator) accepts(mt *mimetype.MIME) bool {
	if len(c.allowed) == 0 {
		return true
	}
	for _, want := range c.allowed {
		if family, ok := strings.CutSuffix(want, "/*"); ok {
			if strings.HasPrefix(mt.String(), family+"/") {
				return true
			}
			continue
		}
		if mt.Is(want) {
			return true
		}
	}
	return false
}

type Option func(*Coordinator)

func WithDefaultFolder(folder string) Option {
	return func(c *Coordinator) {
		c.defaultFolder = strings.Trim(folder, "/")
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

func WithKeyFunc(newKey func() string) Option {
	return func(c *Coordinator) {
		c.newKey = newKey
	}
}

// WithAllowedTypes limits uploads to the given MIME types, sniffed from the
// payload rather than taken from the client.
func WithAllowedTypes(types ...string) Option {
	return func(c *Coordinator) {
		c.allowed = nil
		for _, t := range types {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				c.allowed = append(c.allowed, t)
			}
		}
	}
}

func (c *Coordinator) validate() error {
	if c.storage == nil {
		return errors.New("invalid storage: must not be nil")
	}
	if c.defaultFolder == "" {
		return errors.New("invalid default folder: must not be empty")
	}
	if c.timeout <= 0 {
		return errors.New("invalid timeout: must be > 0")
	}
	if c.newKey == nil {
		return errors.New("invalid key func: must not be nil")
	}
	return nil
}
