package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/medleads/clinic-insight/internal/domain/providers"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

const (
	defaultMaxSize      = 1000
	defaultTTLSeconds   = 3600
	sweepInterval       = 5 * time.Minute
	backgroundSweepTick = time.Minute
)

type memoryEntry struct {
	value      []byte
	insertedAt time.Time
	lastAccess time.Time
	expiresAt  time.Time
}

// MemoryAdapter is an in-process TTL+LRU cache implementing CacheProvider.
// A single mutex protects the entry map; a full expiry sweep runs lazily on
// Get when five minutes have passed since the previous sweep.
type MemoryAdapter struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	maxSize   int
	lastSweep time.Time
	now       func() time.Time

	stopSweeper chan struct{}
	sweeperOnce sync.Once
}

// Stats describes the current cache contents.
type Stats struct {
	Size   int       `json:"size"`
	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}

// NewMemoryAdapter creates a memory cache with the default size cap.
func NewMemoryAdapter() *MemoryAdapter {
	return NewMemoryAdapterWithSize(defaultMaxSize)
}

// NewMemoryAdapterWithSize creates a memory cache holding at most maxSize entries.
func NewMemoryAdapterWithSize(maxSize int) *MemoryAdapter {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &MemoryAdapter{
		entries:     make(map[string]*memoryEntry),
		maxSize:     maxSize,
		now:         time.Now,
		stopSweeper: make(chan struct{}),
	}
}

// Get retrieves a value. An expired entry is removed and reported as a miss.
func (m *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now, false)

	entry, ok := m.entries[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("cache key not found: " + key)
	}
	if now.After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, apperrors.NewNotFoundError("cache key expired: " + key)
	}

	entry.lastAccess = now
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value. When the cache is full the entry with the oldest
// last access is evicted first.
func (m *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	if expirationSeconds <= 0 {
		expirationSeconds = defaultTTLSeconds
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = &memoryEntry{
		value:      stored,
		insertedAt: now,
		lastAccess: now,
		expiresAt:  now.Add(time.Duration(expirationSeconds) * time.Second),
	}
	return nil
}

// Delete removes a single key.
func (m *MemoryAdapter) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// InvalidatePattern removes all keys whose name contains the substring.
func (m *MemoryAdapter) InvalidatePattern(ctx context.Context, substring string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.Contains(key, substring) {
			delete(m.entries, key)
		}
	}
	return nil
}

// Stats returns the current size and the oldest/newest insertion times.
func (m *MemoryAdapter) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now(), true)

	stats := Stats{Size: len(m.entries)}
	for _, entry := range m.entries {
		if stats.Oldest.IsZero() || entry.insertedAt.Before(stats.Oldest) {
			stats.Oldest = entry.insertedAt
		}
		if entry.insertedAt.After(stats.Newest) {
			stats.Newest = entry.insertedAt
		}
	}
	return stats
}

// StartSweeper runs a dedicated goroutine that drops expired entries on a
// fixed interval until Stop is called.
func (m *MemoryAdapter) StartSweeper() {
	m.sweeperOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(backgroundSweepTick)
			defer ticker.Stop()
			for {
				select {
				case <-m.stopSweeper:
					return
				case <-ticker.C:
					m.mu.Lock()
					m.sweepLocked(m.now(), true)
					m.mu.Unlock()
				}
			}
		}()
	})
}

// Stop terminates the background sweeper if one was started.
func (m *MemoryAdapter) Stop() {
	select {
	case <-m.stopSweeper:
	default:
		close(m.stopSweeper)
	}
}

func (m *MemoryAdapter) sweepLocked(now time.Time, force bool) {
	if !force && now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.lastSweep = now
}

func (m *MemoryAdapter) evictOldestLocked() {
	var oldestKey string
	var oldestAccess time.Time
	for key, entry := range m.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)
