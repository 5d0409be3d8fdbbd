// Package writer persists generated sitemaps. It names the pages, writes them
// in parallel and writes the index once every page is stored.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joeychilson/sitemapgen/logger"
	"github.com/joeychilson/sitemapgen/sitemap"
)

const (
	// SingleName is the file written when all entries fit on one page.
	SingleName = "sitemap.xml"
	// IndexName is the index written alongside multiple pages.
	IndexName = "sitemap-index.xml"

	gzipExt = ".gz"

	defaultConcurrency = 4
)

// PageName returns the file name of the zero-based page i out of total.
func PageName(i, total int) string {
	if total == 1 {
		return SingleName
	}
	return fmt.Sprintf("sitemap-part-%02d.xml", i+1)
}

// Options configures how files are written.
type Options struct {
	// Gzip compresses every file and appends .gz to its name.
	Gzip bool
	// SkipUnchanged leaves files whose stored content is identical.
	SkipUnchanged bool
	// Concurrency bounds parallel page writes. Zero means 4.
	Concurrency int
	// WritesPerSecond throttles writes to the store. Zero means unlimited.
	WritesPerSecond float64
}

// File describes one written file.
type File struct {
	Name    string `json:"name"`
	Bytes   int    `json:"bytes"`
	ETag    string `json:"etag"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Result describes a completed write. Files lists the pages in order,
// followed by the index when there is one.
type Result struct {
	Files   []File        `json:"files"`
	Index   string        `json:"index,omitempty"`
	Pages   int           `json:"pages"`
	Entries int           `json:"entries"`
	Elapsed time.Duration `json:"-"`
}

// Written returns how many files were actually written.
func (r *Result) Written() int {
	n := 0
	for _, f := range r.Files {
		if !f.Skipped {
			n++
		}
	}
	return n
}

// Writer renders entries and writes the resulting sitemaps to a Store.
type Writer struct {
	store   Store
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
}

// New creates a Writer for store.
func New(store Store, opts Options) *Writer {
	w := &Writer{
		store: store,
		opts:  opts,
		log:   logger.Noop(),
	}
	if opts.WritesPerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}
	return w
}

// WithLogger sets the logger used to report written files.
func (w *Writer) WithLogger(log logger.Logger) *Writer {
	if log != nil {
		w.log = log
	}
	return w
}

// Write generates sitemaps for entries and stores them. Nothing is written
// for an empty entry list. One page is stored as sitemap.xml; more pages are
// stored as sitemap-part-NN.xml followed by sitemap-index.xml.
func (w *Writer) Write(ctx context.Context, entries []sitemap.Entry, opts sitemap.Options) (*Result, error) {
	start := time.Now()
	total := sitemap.PageCount(len(entries))
	result := &Result{
		Files:   make([]File, total),
		Pages:   total,
		Entries: len(entries),
	}
	if total == 0 {
		w.log.Debug("no entries, nothing to write")
		return result, nil
	}

	names := make([]string, total)
	for i := range total {
		names[i] = w.fileName(PageName(i, total))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency())
	for i, page := range sitemap.Pages(entries, opts) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			f, err := w.put(gctx, names[i], page)
			if err != nil {
				return err
			}
			result.Files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if index, ok := sitemap.GenerateIndex(names, opts); ok {
		f, err := w.put(ctx, w.fileName(IndexName), index)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, f)
		result.Index = f.Name
	}

	result.Elapsed = time.Since(start)
	w.log.Info("sitemaps written",
		"pages", result.Pages,
		"entries", result.Entries,
		"written", result.Written(),
		"duration_ms", result.Elapsed.Milliseconds())
	return result, nil
}

func (w *Writer) put(ctx context.Context, name, doc string) (File, error) {
	data, err := w.encode(doc)
	if err != nil {
		return File{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	f := File{Name: name, Bytes: len(data), ETag: ETag(data)}

	if w.opts.SkipUnchanged {
		existing, err := w.store.ReadFile(ctx, name)
		switch {
		case err == nil && ETag(existing) == f.ETag:
			f.Skipped = true
			w.log.Debug("sitemap unchanged", "file", name)
			return f, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			w.log.Warn("failed to read existing sitemap", "file", name, "error", err)
		}
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return File{}, err
		}
	}
	if err := w.store.WriteFile(ctx, name, data); err != nil {
		return File{}, err
	}
	w.log.Debug("sitemap written", "file", name, "bytes", f.Bytes)
	return f, nil
}

func (w *Writer) encode(doc string) ([]byte, error) {
	if !w.opts.Gzip {
		return []byte(doc), nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) fileName(name string) string {
	if w.opts.Gzip {
		return name + gzipExt
	}
	return name
}

func (w *Writer) concurrency() int {
	if w.opts.Concurrency > 0 {
		return w.opts.Concurrency
	}
	return defaultConcurrency
}
