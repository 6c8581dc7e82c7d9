package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
)

var _ Cache[string, struct{}] = (*Memory[string, struct{}])(nil)

type node[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time

	prev, next *node[K, V]
}

func (n *node[K, V]) expired(now time.Time) bool {
	return !n.expiresAt.IsZero() && !now.Before(n.expiresAt)
}

// Memory is an in-process LRU with per-entry expiry. The most recently used
// entry sits at head; eviction takes from tail.
type Memory[K comparable, V any] struct {
	name     string
	capacity int
	log      logger.Logger
	metrics  metric.Cache
	now      func() time.Time

	mu    sync.Mutex
	index map[K]*node[K, V]
	head  *node[K, V]
	tail  *node[K, V]
}

func NewMemory[K comparable, V any](
	name string,
	capacity int,
	log logger.Logger,
	metrics metric.Cache,
) (*Memory[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache.NewMemory: capacity must be positive, got %d", capacity)
	}

	return &Memory[K, V]{
		name:     name,
		capacity: capacity,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
		index:    make(map[K]*node[K, V], capacity),
	}, nil
}

func (m *Memory[K, V]) Get(_ context.Context, key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.index[key]
	if !ok {
		m.metrics.Miss(m.name)
		var zero V
		return zero, false
	}
	if n.expired(m.now()) {
		m.drop(n, "expired")
		m.metrics.Miss(m.name)
		var zero V
		return zero, false
	}

	m.moveToHead(n)
	m.metrics.Hit(m.name)
	return n.value, true
}

func (m *Memory[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.index[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		m.moveToHead(n)
		return
	}

	if len(m.index) >= m.capacity {
		m.drop(m.tail, "capacity")
	}

	n := &node[K, V]{key: key, value: value, expiresAt: expiresAt}
	m.index[key] = n
	m.pushHead(n)
	m.metrics.Size(m.name, len(m.index))
}

func (m *Memory[K, V]) Delete(_ context.Context, key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.index[key]; ok {
		m.drop(n, "deleted")
		m.metrics.Size(m.name, len(m.index))
	}
}

func (m *Memory[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// Run sweeps expired entries every interval until ctx is done.
func (m *Memory[K, V]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.sweep(); removed > 0 {
				m.log.Debugw("expired cache entries swept",
					"cache", m.name,
					"removed", removed,
				)
			}
		}
	}
}

func (m *Memory[K, V]) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for n := m.tail; n != nil; {
		prev := n.prev
		if n.expired(now) {
			m.drop(n, "expired")
			removed++
		}
		n = prev
	}
	m.metrics.Size(m.name, len(m.index))
	return removed
}

func (m *Memory[K, V]) drop(n *node[K, V], reason string) {
	m.unlink(n)
	delete(m.index, n.key)
	m.metrics.Eviction(m.name, reason)
}

func (m *Memory[K, V]) moveToHead(n *node[K, V]) {
	if m.head == n {
		return
	}
	m.unlink(n)
	m.pushHead(n)
}

func (m *Memory[K, V]) pushHead(n *node[K, V]) {
	n.prev = nil
	n.next = m.head
	if m.head != nil {
		m.head.prev = n
	}
	m.head = n
	if m.tail == nil {
		m.tail = n
	}
}

func (m *Memory[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		m.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		m.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
