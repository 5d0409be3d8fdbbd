package cache

import (
	"context"
	"path"
	"time"
)

// Document is a generated sitemap file held in the cache.
type Document struct {
	Name        string        `msgpack:"name"`
	Body        []byte        `msgpack:"body"`
	ContentType string        `msgpack:"content_type"`
	ETag        string        `msgpack:"etag"`
	StoredAt    time.Time     `msgpack:"stored_at"`
	TTL         time.Duration `msgpack:"ttl"`
}

// IsExpired returns true if the document is past its TTL.
func (d *Document) IsExpired() bool {
	return time.Since(d.StoredAt) >= d.TTL
}

// ExpiresAt returns when the document leaves the cache.
func (d *Document) ExpiresAt() time.Time {
	return d.StoredAt.Add(d.TTL)
}

// Cache stores documents by key. Get returns nil without an error when the
// key is missing or expired.
type Cache interface {
	Get(ctx context.Context, key string) (*Document, error)
	Set(ctx context.Context, key string, doc *Document) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config holds cache configuration.
type Config struct {
	Prefix          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a cache config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "sitemapgen:",
		TTL:             time.Hour,
		CleanupInterval: time.Minute,
	}
}

// applyDefaults returns a new Config with default values applied for any zero-valued fields.
func applyDefaults(config Config) Config {
	defaults := DefaultConfig()

	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return config
}

// ContentType returns the media type served for a sitemap file name.
func ContentType(name string) string {
	if path.Ext(name) == ".gz" {
		return "application/gzip"
	}
	return "application/xml; charset=utf-8"
}

// Key returns the cache key of a file within a namespace.
func Key(namespace, name string) string {
	return namespace + "/" + name
}

// prepare fills in the fields Set defaults and returns a copy safe to keep.
func prepare(doc *Document, ttl time.Duration) *Document {
	stored := *doc
	stored.Body = append([]byte(nil), doc.Body...)
	if stored.TTL == 0 {
		stored.TTL = ttl
	}
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now()
	}
	return &stored
}
