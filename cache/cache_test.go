package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/joeychilson/sitemapgen/sitemap"
	"github.com/joeychilson/sitemapgen/writer"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"sitemap.xml", "application/xml; charset=utf-8"},
		{"sitemap-index.xml", "application/xml; charset=utf-8"},
		{"sitemap-part-01.xml.gz", "application/gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.name); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestStore(t *testing.T) {
	mc := NewMemoryCache(DefaultConfig())
	defer mc.Close()

	ctx := context.Background()
	store := NewStore(mc, "gen-1", 5*time.Minute)

	_, err := store.ReadFile(ctx, "sitemap.xml")
	if !errors.Is(err, writer.ErrNotFound) {
		t.Fatalf("ReadFile() error = %v, want writer.ErrNotFound", err)
	}

	if err := store.WriteFile(ctx, "sitemap.xml", []byte("<urlset/>")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := store.ReadFile(ctx, "sitemap.xml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "<urlset/>" {
		t.Errorf("ReadFile() = %q, want <urlset/>", data)
	}

	doc, _ := mc.Get(ctx, "gen-1/sitemap.xml")
	if doc == nil {
		t.Fatal("document should be stored under the namespace")
	}
	if doc.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", doc.TTL)
	}
	if doc.ETag != writer.ETag([]byte("<urlset/>")) {
		t.Errorf("ETag = %q, want %q", doc.ETag, writer.ETag([]byte("<urlset/>")))
	}
	if doc.ContentType != "application/xml; charset=utf-8" {
		t.Errorf("ContentType = %q", doc.ContentType)
	}

	other := NewStore(mc, "gen-2", 0)
	if _, err := other.ReadFile(ctx, "sitemap.xml"); !errors.Is(err, writer.ErrNotFound) {
		t.Errorf("namespaces should not share files, got err = %v", err)
	}
}

func TestStore_WithWriter(t *testing.T) {
	rc, mr := setupTestRedis(t)
	defer mr.Close()
	defer rc.Close()

	ctx := context.Background()
	entries := make([]sitemap.Entry, sitemap.MaxEntriesPerPage+1)
	for i := range entries {
		entries[i] = sitemap.URL(fmt.Sprintf("/item/%d", i))
	}

	w := writer.New(NewStore(rc, "gen-1", 0), writer.Options{})
	result, err := w.Write(ctx, entries, sitemap.Options{BaseURL: "https://example.com"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Index != writer.IndexName {
		t.Errorf("Index = %q, want %q", result.Index, writer.IndexName)
	}

	for _, f := range result.Files {
		if !mr.Exists("test:gen-1/" + f.Name) {
			t.Errorf("%s should be stored in redis", f.Name)
		}
	}

	doc, err := rc.Get(ctx, Key("gen-1", writer.IndexName))
	if err != nil || doc == nil {
		t.Fatalf("Get(index) = %v, %v", doc, err)
	}
	if !strings.Contains(string(doc.Body), "<loc>https://example.com/sitemap-part-02.xml</loc>") {
		t.Errorf("index should reference the second page:\n%s", doc.Body)
	}
}
