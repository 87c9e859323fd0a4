package storage

import (
	"context"
	"sync"
	"time"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
)

type cachedResult struct {
	result  *entity.PredictionResult
	expires time.Time
}

func (c cachedResult) expired(now time.Time) bool {
	return !c.expires.IsZero() && now.After(c.expires)
}

// MemoryResultCache in-memory кэш результатов с истечением по TTL
type MemoryResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	results map[string]cachedResult
}

// NewMemoryResultCache создаёт кэш; ttl <= 0 означает бессрочное хранение
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	return &MemoryResultCache{
		ttl:     ttl,
		now:     time.Now,
		results: make(map[string]cachedResult),
	}
}

// Get возвращает копию сохранённого результата
func (c *MemoryResultCache) Get(ctx context.Context, key string) (*entity.PredictionResult, bool, error) {
	c.mu.RLock()
	item, exists := c.results[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if item.expired(c.now()) {
		c.mu.Lock()
		delete(c.results, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return item.result.Clone(), true, nil
}

// Put сохраняет копию результата и заодно выбрасывает просроченные записи
func (c *MemoryResultCache) Put(ctx context.Context, key string, result *entity.PredictionResult) error {
	now := c.now()
	item := cachedResult{result: result.Clone()}
	if c.ttl > 0 {
		item.expires = now.Add(c.ttl)
	}

	c.mu.Lock()
	for k, v := range c.results {
		if v.expired(now) {
			delete(c.results, k)
		}
	}
	c.results[key] = item
	c.mu.Unlock()

	return nil
}

// Len число записей, включая ещё не выброшенные просроченные
func (c *MemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Проверка реализации интерфейса
var _ port.ResultCache = (*MemoryResultCache)(nil)
