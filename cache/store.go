package cache

import (
	"context"
	"time"

	"github.com/joeychilson/sitemapgen/writer"
)

// Store adapts a Cache to writer.Store, keeping every file of one
// generation under a shared namespace.
type Store struct {
	cache     Cache
	namespace string
	ttl       time.Duration
}

// NewStore returns a writer.Store that writes into c under namespace. A zero
// ttl leaves the cache default in place.
func NewStore(c Cache, namespace string, ttl time.Duration) *Store {
	return &Store{cache: c, namespace: namespace, ttl: ttl}
}

// WriteFile stores data as a document named name.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) error {
	return s.cache.Set(ctx, Key(s.namespace, name), &Document{
		Name:        name,
		Body:        data,
		ContentType: ContentType(name),
		ETag:        writer.ETag(data),
		TTL:         s.ttl,
	})
}

// ReadFile returns the body of the document named name.
func (s *Store) ReadFile(ctx context.Context, name string) ([]byte, error) {
	doc, err := s.cache.Get(ctx, Key(s.namespace, name))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, writer.ErrNotFound
	}
	return doc.Body, nil
}
