// Package parser reads sitemaps.org documents back into entries. It accepts
// both urlset pages and sitemap indexes.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/joeychilson/sitemapgen/sitemap"
)

// ErrInvalidFormat is returned for documents that are neither a urlset nor a
// sitemap index with at least one location.
var ErrInvalidFormat = errors.New("invalid sitemap format")

// urlSet represents a sitemap.xml file
type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []URL    `xml:"url"`
}

// sitemapIndex represents a sitemap index file that references other sitemaps
type sitemapIndex struct {
	XMLName  xml.Name  `xml:"sitemapindex"`
	Sitemaps []Sitemap `xml:"sitemap"`
}

// Sitemap represents a reference to another sitemap
type Sitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// URL represents a single URL entry in a sitemap. Values are kept as written.
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Entry converts the record into an entry. The location is percent-decoded
// so that regenerating it does not encode it twice. Elements that were not
// written stay absent.
func (u URL) Entry() sitemap.Entry {
	loc := strings.TrimSpace(u.Loc)
	if decoded, err := url.PathUnescape(loc); err == nil {
		loc = decoded
	}

	e := sitemap.URL(loc)
	if v := strings.TrimSpace(u.LastMod); v != "" {
		e.LastMod = sitemap.Set(sitemap.LastModString(v))
	}
	if v := strings.TrimSpace(u.Priority); v != "" {
		e.Priority = sitemap.Set(sitemap.PriorityString(v))
	}
	if v := strings.TrimSpace(u.ChangeFreq); v != "" {
		e.ChangeFreq = sitemap.Set(sitemap.ChangeFreq(v))
	}
	return e
}

// Result holds the result of parsing a sitemap
type Result struct {
	URLs     []URL
	Sitemaps []Sitemap
	IsIndex  bool
}

// Entries returns the URL records as entries, in document order.
func (r *Result) Entries() []sitemap.Entry {
	entries := make([]sitemap.Entry, len(r.URLs))
	for i, u := range r.URLs {
		entries[i] = u.Entry()
	}
	return entries
}

// Locations returns the raw loc values of the URL records or, for an index,
// of the referenced sitemaps.
func (r *Result) Locations() []string {
	if r.IsIndex {
		locs := make([]string, len(r.Sitemaps))
		for i, s := range r.Sitemaps {
			locs[i] = s.Loc
		}
		return locs
	}
	locs := make([]string, len(r.URLs))
	for i, u := range r.URLs {
		locs[i] = u.Loc
	}
	return locs
}

// Parse parses sitemap XML content and returns URLs or child sitemap references
func Parse(content []byte) (*Result, error) {
	var set urlSet
	if err := xml.Unmarshal(content, &set); err == nil && len(set.URLs) > 0 {
		urls := make([]URL, 0, len(set.URLs))
		for _, u := range set.URLs {
			if strings.TrimSpace(u.Loc) != "" {
				urls = append(urls, u)
			}
		}
		return &Result{URLs: urls}, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(content, &index); err == nil && len(index.Sitemaps) > 0 {
		sitemaps := make([]Sitemap, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			if strings.TrimSpace(s.Loc) != "" {
				sitemaps = append(sitemaps, s)
			}
		}
		return &Result{Sitemaps: sitemaps, IsIndex: true}, nil
	}

	return nil, ErrInvalidFormat
}

// ParseReader parses sitemap XML from a reader
func ParseReader(r io.Reader) (*Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap: %w", err)
	}
	return Parse(content)
}
