// Package objectstorage stores binary objects in Google Cloud Storage and
// hands back their public URLs.
package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"

	"cloud.google.com/go/storage"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"
)

const (
	_publicHost = "storage.googleapis.com"

	_defaultTripAfter = 5
	_defaultCooldown  = 30 * time.Second
)

// ErrUnavailable is returned without contacting the bucket while the upload
// breaker is open.
var ErrUnavailable = errors.New("object storage unavailable")

type Object struct {
	Key  string
	URL  string
	Size int64
}

type GCS struct {
	client    *storage.Client
	log       logger.Logger
	bucket    string
	cdnDomain string

	clientOpts   []option.ClientOption
	cacheControl string

	tripAfter uint32
	cooldown  time.Duration
	breaker   *gobreaker.CircuitBreaker
}

// NewGCS creates a client scoped to bucket. STORAGE_EMULATOR_HOST is honored
// by the underlying client.
func NewGCS(ctx context.Context, bucket string, log logger.Logger, opts ...Option) (*GCS, error) {
	const op = "objectstorage.NewGCS"

	g := &GCS{
		log:          log,
		bucket:       bucket,
		cacheControl: "public, max-age=31536000, immutable",
		tripAfter:    _defaultTripAfter,
		cooldown:     _defaultCooldown,
	}

	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("%s: validation: %w", op, err)
	}
	g.breaker = newBreaker("gcs:"+bucket, g.tripAfter, g.cooldown, log)

	clientOpts := append([]option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}, g.clientOpts...)
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: create storage client: %w", op, err)
	}
	g.client = client

	return g, nil
}

// UploadStream copies r into the object at key. A failed copy aborts the
// write, so no partial object becomes visible.
func (g *GCS) UploadStream(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	const op = "objectstorage.GCS.UploadStream"

	if key == "" {
		return nil, fmt.Errorf("%s: empty object key", op)
	}

	var n int64
	err := g.execute(func() error {
		var writeErr error
		n, writeErr = g.write(ctx, key, contentType, r)
		return writeErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g.log.Debugw("object stored",
		"bucket", g.bucket,
		"key", key,
		"size", n,
	)

	return &Object{
		Key:  key,
		URL:  PublicURL(g.bucket, g.cdnDomain, key),
		Size: n,
	}, nil
}

func (g *GCS) write(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = g.cacheControl

	src := &sourceReader{r: r}
	n, err := io.Copy(w, src)
	if err != nil {
		cancel()
		_ = w.Close()
		if src.err != nil {
			return 0, fmt.Errorf("read source for %s: %w: %w", key, errSourceRead, src.err)
		}
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err = w.Close(); err != nil {
		return 0, fmt.Errorf("finalize %s: %w", key, err)
	}
	return n, nil
}

// errSourceRead marks failures on the caller's side of the copy.
var errSourceRead = errors.New("source read failed")

type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return n, err
}

// countsAgainstBucket leaves out cancelled requests and broken client
// streams, which say nothing about the bucket's health.
func countsAgainstBucket(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, errSourceRead)
}

func newBreaker(name string, tripAfter uint32, cooldown time.Duration, log logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			return !countsAgainstBucket(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("object storage breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func (g *GCS) execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// PublicURL returns https://<cdnDomain>/<key> when a CDN fronts the bucket and
// the storage.googleapis.com URL otherwise.
func PublicURL(bucket, cdnDomain, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")

	if cdnDomain != "" {
		host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(cdnDomain, "https://"), "http://"), "/")
		return "https://" + host + "/" + escaped
	}
	return "https://" + _publicHost + "/" + bucket + "/" + escaped
}

type Option func(*GCS)

func WithCDNDomain(domain string) Option {
	return func(g *GCS) {
		g.cdnDomain = domain
	}
}

func WithCredentialsFile(path string) Option {
	return func(g *GCS) {
		if path != "" {
			g.clientOpts = append(g.clientOpts, option.WithCredentialsFile(path))
		}
	}
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *GCS) {
		g.clientOpts = append(g.clientOpts, opts...)
	}
}

// WithBreaker opens the upload breaker after tripAfter consecutive failures
// and probes the bucket again once cooldown has passed.
func WithBreaker(tripAfter uint32, cooldown time.Duration) Option {
	return func(g *GCS) {
		g.tripAfter = tripAfter
		g.cooldown = cooldown
	}
}

func WithCacheControl(value string) Option {
	return func(g *GCS) {
		g.cacheControl = value
	}
}

func (g *GCS) validate() error {
	if g.bucket == "" {
		return errors.New("invalid bucket: must not be empty")
	}
	if g.log == nil {
		return errors.New("invalid logger: must not be nil")
	}
	if g.tripAfter == 0 {
		return errors.New("invalid breaker threshold: must be > 0")
	}
	return nil
}
