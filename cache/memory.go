package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation.
type MemoryCache struct {
	docs   map[string]*Document
	mu     sync.RWMutex
	config Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
func NewMemoryCache(config Config) *MemoryCache {
	config = applyDefaults(config)

	mc := &MemoryCache{
		docs:   make(map[string]*Document),
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go mc.cleanup()

	return mc
}

// Get retrieves a document from the cache.
// Returns nil if the document doesn't exist or has expired.
func (mc *MemoryCache) Get(ctx context.Context, key string) (*Document, error) {
	mc.mu.RLock()
	doc, exists := mc.docs[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if doc.IsExpired() {
		mc.mu.Lock()
		delete(mc.docs, key)
		mc.mu.Unlock()
		return nil, nil
	}

	out := *doc
	return &out, nil
}

// Set stores a copy of doc in the cache.
func (mc *MemoryCache) Set(ctx context.Context, key string, doc *Document) error {
	stored := prepare(doc, mc.config.TTL)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.docs[key] = stored
	return nil
}

// Delete removes a document from the cache.
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.docs, key)
	return nil
}

// Clear removes all documents from the cache.
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.docs = make(map[string]*Document)
	return nil
}

// Len returns the number of documents held, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.docs)
}

// Close stops the cleanup goroutine and releases resources.
func (mc *MemoryCache) Close() error {
	close(mc.stopCh)
	<-mc.doneCh
	return nil
}

// cleanup periodically removes expired documents.
func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(mc.config.CleanupInterval)
	defer ticker.Stop()
	defer close(mc.doneCh)

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCh:
			return
		}
	}
}

// removeExpired removes all documents past their TTL.
func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key, doc := range mc.docs {
		if doc.IsExpired() {
			delete(mc.docs, key)
		}
	}
}
