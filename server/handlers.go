package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joeychilson/sitemapgen/cache"
	"github.com/joeychilson/sitemapgen/retry"
	"github.com/joeychilson/sitemapgen/sitemap"
	urlutil "github.com/joeychilson/sitemapgen/url"
	"github.com/joeychilson/sitemapgen/writer"
)

// GenerateRequest represents a request to generate a sitemap set.
type GenerateRequest struct {
	Entries []sitemap.Entry `json:"entries"`
	Options RequestOptions  `json:"options"`
}

// RequestOptions controls generation for a single request.
type RequestOptions struct {
	BaseURL       string           `json:"base_url,omitempty"`
	TrailingSlash *bool            `json:"trailing_slash,omitempty"`
	Pretty        bool             `json:"pretty,omitempty"`
	Gzip          bool             `json:"gzip,omitempty"`
	Timezone      string           `json:"timezone,omitempty"`
	Defaults      sitemap.Defaults `json:"defaults"`
}

// FileInfo describes one generated file.
type FileInfo struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Bytes int    `json:"bytes"`
	ETag  string `json:"etag"`
}

// GenerateResponse represents the response from a generate request.
type GenerateResponse struct {
	ID        string     `json:"id"`
	Files     []FileInfo `json:"files"`
	Index     string     `json:"index,omitempty"`
	Pages     int        `json:"pages"`
	Entries   int        `json:"entries"`
	ExpiresAt string     `json:"expires_at"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string            `json:"error"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// handleGenerate handles POST /v1/sitemaps requests.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestBytes)

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	opts, err := s.validateRequest(&req)
	if err != nil {
		log.Warn("invalid request", "error", err)
		status := http.StatusBadRequest
		if len(req.Entries) > s.config.MaxEntries {
			status = http.StatusRequestEntityTooLarge
		}
		s.sendError(w, err.Error(), status)
		return
	}

	id := uuid.NewString()
	log = log.With("id", id)

	var store writer.Store = cache.NewStore(s.cache, id, s.config.CacheTTL)
	if s.config.Retry.IsEnabled() {
		store = retry.NewStore(store, s.config.Retry).WithLogger(log)
	}
	wr := writer.New(store, writer.Options{Gzip: req.Options.Gzip}).WithLogger(log)

	result, err := wr.Write(ctx, req.Entries, opts)
	if err != nil {
		log.Error("generation failed", "error", err)
		s.sendError(w, fmt.Sprintf("failed to generate sitemaps: %v", err), http.StatusInternalServerError)
		return
	}

	resp := GenerateResponse{
		ID:        id,
		Files:     make([]FileInfo, len(result.Files)),
		Index:     result.Index,
		Pages:     result.Pages,
		Entries:   result.Entries,
		ExpiresAt: time.Now().Add(s.ttl()).UTC().Format(time.RFC3339),
	}
	for i, f := range result.Files {
		resp.Files[i] = FileInfo{
			Name:  f.Name,
			URL:   fileURL(id, f.Name),
			Bytes: f.Bytes,
			ETag:  f.ETag,
		}
	}

	log.Info("sitemaps generated", "pages", resp.Pages, "entries", resp.Entries)

	w.Header().Set("Location", fileURL(id, resp.Files[len(resp.Files)-1].Name))
	s.sendJSON(w, resp, http.StatusCreated)
}

// handleFile handles GET /v1/sitemaps/{id}/{filename} requests.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "filename")

	if _, err := uuid.Parse(id); err != nil || !validFileName(name) {
		s.sendError(w, "sitemap not found", http.StatusNotFound)
		return
	}

	doc, err := s.cache.Get(r.Context(), cache.Key(id, name))
	if err != nil {
		s.logger.WithContext(r.Context()).Error("cache lookup failed", "id", id, "file", name, "error", err)
		s.sendError(w, "failed to load sitemap", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		s.sendError(w, "sitemap not found", http.StatusNotFound)
		return
	}

	h := w.Header()
	h.Set("ETag", doc.ETag)
	h.Set("Last-Modified", doc.StoredAt.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge(doc)))

	if etagMatch(r.Header.Get("If-None-Match"), doc.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", doc.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(doc.Body)
	}
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

func (s *Server) validateRequest(req *GenerateRequest) (sitemap.Options, error) {
	if req == nil {
		return sitemap.Options{}, fmt.Errorf("request cannot be nil")
	}
	if len(req.Entries) == 0 {
		return sitemap.Options{}, fmt.Errorf("entries cannot be empty")
	}
	if len(req.Entries) > s.config.MaxEntries {
		return sitemap.Options{}, fmt.Errorf("too many entries: %d (max %d)", len(req.Entries), s.config.MaxEntries)
	}

	if err := urlutil.ValidateBaseURL(req.Options.BaseURL); err != nil {
		return sitemap.Options{}, fmt.Errorf("invalid base_url: %w", err)
	}

	loc := time.UTC
	if req.Options.Timezone != "" {
		l, err := time.LoadLocation(req.Options.Timezone)
		if err != nil {
			return sitemap.Options{}, fmt.Errorf("invalid timezone %q", req.Options.Timezone)
		}
		loc = l
	}

	d := req.Options.Defaults
	if err := (sitemap.Entry{LastMod: d.LastMod, Priority: d.Priority, ChangeFreq: d.ChangeFreq}).Validate(); err != nil {
		return sitemap.Options{}, fmt.Errorf("defaults: %w", err)
	}
	for i, e := range req.Entries {
		if err := e.Validate(); err != nil {
			return sitemap.Options{}, fmt.Errorf("entries[%d]: %w", i, err)
		}
	}

	return sitemap.Options{
		BaseURL:       req.Options.BaseURL,
		TrailingSlash: sitemap.TrailingSlashFromBool(req.Options.TrailingSlash),
		Defaults:      d,
		Pretty:        req.Options.Pretty,
		Location:      loc,
	}, nil
}

func (s *Server) ttl() time.Duration {
	if s.config.CacheTTL > 0 {
		return s.config.CacheTTL
	}
	return cache.DefaultConfig().TTL
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	errResp := ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}
	s.sendJSON(w, errResp, statusCode)
}

func fileURL(id, name string) string {
	return "/v1/sitemaps/" + id + "/" + name
}

func validFileName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	ext := path.Ext(strings.TrimSuffix(name, ".gz"))
	return ext == ".xml"
}

func maxAge(doc *cache.Document) int {
	remaining := time.Until(doc.ExpiresAt())
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// etagMatch reports whether an If-None-Match header matches etag.
func etagMatch(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
