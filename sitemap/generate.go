// Package sitemap renders URL entries into sitemaps.org XML documents. It
// splits large entry sets into pages of MaxEntriesPerPage and builds the
// index that references them. Everything here is pure: no I/O, no shared
// state.
package sitemap

import (
	"iter"
	"strings"
)

const (
	// MaxEntriesPerPage is the protocol limit on url elements per sitemap.
	MaxEntriesPerPage = 50000

	// Namespace is the sitemap protocol XML namespace.
	Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`
)

// PageCount returns how many pages n entries occupy.
func PageCount(n int) int {
	return (n + MaxEntriesPerPage - 1) / MaxEntriesPerPage
}

// Generate renders entries into sitemap pages. No entries means no pages.
func Generate(entries []Entry, opts Options) []string {
	pages := make([]string, 0, PageCount(len(entries)))
	for _, page := range Pages(entries, opts) {
		pages = append(pages, page)
	}
	return pages
}

// Pages renders one page at a time, yielding its zero-based number and XML.
// The sequence can be ranged over again; each pass renders from entries.
func Pages(entries []Entry, opts Options) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		r := newRenderer(opts)
		for i := range PageCount(len(entries)) {
			start := i * MaxEntriesPerPage
			end := min(start+MaxEntriesPerPage, len(entries))
			if !yield(i, r.page(entries[start:end])) {
				return
			}
		}
	}
}

type renderer struct {
	opts    Options
	baseURL string
	nl      string
	tab     string
}

func newRenderer(opts Options) *renderer {
	r := &renderer{
		opts:    opts,
		baseURL: trimBase(opts.BaseURL),
	}
	if opts.Pretty {
		r.nl = "\n"
		r.tab = "\t"
	}
	return r
}

func (r *renderer) page(entries []Entry) string {
	var b strings.Builder
	b.Grow(128 + 64*len(entries))

	r.open(&b, "urlset")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(r.nl)
		}
		r.url(&b, e)
	}
	r.close(&b, "urlset")
	return b.String()
}

func (r *renderer) url(b *strings.Builder, e Entry) {
	loc := Normalize(e.Loc, r.baseURL, r.opts.TrailingSlash)
	fields := Resolve(e, r.opts.Defaults)

	b.WriteString(r.tab + "<url>" + r.nl)
	r.child(b, "loc", EncodeLoc(loc))
	if lm, ok := fields.LastMod.Get(); ok {
		r.child(b, "lastmod", EncodeLastMod(lm, r.opts.location()))
	}
	if p, ok := fields.Priority.Get(); ok {
		r.child(b, "priority", EncodePriority(p))
	}
	if cf, ok := fields.ChangeFreq.Get(); ok {
		r.child(b, "changefreq", string(cf))
	}
	b.WriteString(r.tab + "</url>")
}

func (r *renderer) child(b *strings.Builder, name, content string) {
	b.WriteString(r.tab + r.tab + wrapTag(name, content) + r.nl)
}

func (r *renderer) open(b *strings.Builder, root string) {
	b.WriteString(xmlDeclaration + r.nl)
	b.WriteString(`<` + root + ` xmlns="` + Namespace + `">` + r.nl)
}

func (r *renderer) close(b *strings.Builder, root string) {
	b.WriteString(r.nl + "</" + root + ">")
}
