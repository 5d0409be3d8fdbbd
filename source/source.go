// Package source loads sitemap entries from files: plain text lists, CSV,
// NDJSON, JSON arrays and existing sitemaps.
package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/joeychilson/sitemapgen/parser"
	"github.com/joeychilson/sitemapgen/sitemap"
)

// Format is an input file format.
type Format string

const (
	FormatText   Format = "txt"
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrSitemapIndex is returned when an XML input is an index rather than a urlset.
	ErrSitemapIndex = errors.New("input is a sitemap index, not a urlset")
)

const maxLineSize = 1 << 20

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".list", "":
		return FormatText, nil
	case ".csv":
		return FormatCSV, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".json":
		return FormatJSON, nil
	case ".xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile reads entries from a file on the local disk.
func ReadFile(path string) ([]sitemap.Entry, error) {
	return ReadFileFS(afero.NewOsFs(), path)
}

// ReadFileFS reads entries from a file on fs, choosing the format by extension.
func ReadFileFS(fs afero.Fs, path string) ([]sitemap.Entry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	entries, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Read reads entries in the given format and validates each of them.
func Read(r io.Reader, format Format) ([]sitemap.Entry, error) {
	var (
		entries []sitemap.Entry
		err     error
	)
	switch format {
	case FormatText:
		entries, err = readText(r)
	case FormatCSV:
		entries, err = readCSV(r)
	case FormatNDJSON:
		entries, err = readNDJSON(r)
	case FormatJSON:
		entries, err = readJSON(r)
	case FormatXML:
		entries, err = readXML(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return entries, nil
}

func readText(r io.Reader) ([]sitemap.Entry, error) {
	var out []sitemap.Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, sitemap.URL(line))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readCSV(r io.Reader) ([]sitemap.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, err
	}

	cols := map[string]int{"loc": -1, "lastmod": -1, "priority": -1, "changefreq": -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "url" {
			name = "loc"
		}
		if c, ok := cols[name]; ok && c == -1 {
			cols[name] = i
		}
	}
	if cols["loc"] == -1 {
		return nil, errors.New("csv must contain a 'loc' or 'url' header column")
	}

	var out []sitemap.Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		cell := func(name string) string {
			if c := cols[name]; c >= 0 && c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}

		loc := cell("loc")
		if loc == "" {
			continue
		}
		e := sitemap.URL(loc)
		if v := cell("lastmod"); v != "" {
			e.LastMod = sitemap.Set(parseLastMod(v))
		}
		if v := cell("priority"); v != "" {
			e.Priority = sitemap.Set(sitemap.PriorityString(v))
		}
		if v := cell("changefreq"); v != "" {
			e.ChangeFreq = sitemap.Set(sitemap.ChangeFreq(strings.ToLower(v)))
		}
		out = append(out, e)
	}
	return out, nil
}

// parseLastMod treats long digit strings as epoch milliseconds. Four digits
// stay a year.
func parseLastMod(v string) sitemap.LastMod {
	if len(v) > 4 {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return sitemap.LastModMillis(ms)
		}
	}
	return sitemap.LastModString(v)
}

func readNDJSON(r io.Reader) ([]sitemap.Entry, error) {
	var out []sitemap.Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		e, err := decodeEntry(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readJSON(r io.Reader) ([]sitemap.Entry, error) {
	var records []json.RawMessage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("expected a JSON array of entries: %w", err)
	}
	out := make([]sitemap.Entry, 0, len(records))
	for i, rec := range records {
		e, err := decodeEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// decodeEntry accepts a bare location string or an entry object. Objects may
// name the location "url" instead of "loc".
func decodeEntry(data []byte) (sitemap.Entry, error) {
	var e sitemap.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return e, err
	}
	if e.Loc == "" && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var alt struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &alt); err == nil {
			e.Loc = alt.URL
		}
	}
	return e, nil
}

func readXML(r io.Reader) ([]sitemap.Entry, error) {
	result, err := parser.ParseReader(r)
	if err != nil {
		return nil, err
	}
	if result.IsIndex {
		return nil, ErrSitemapIndex
	}
	return result.Entries(), nil
}
