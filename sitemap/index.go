package sitemap

import "strings"

// GenerateIndex builds a sitemap index over filenames, stamped with the
// current time from opts. It returns false when there are fewer than two
// files, since a single sitemap needs no index.
func GenerateIndex(filenames []string, opts Options) (string, bool) {
	return GenerateIndexAt(filenames, opts, LastModTime(opts.now()))
}

// GenerateIndexAt is GenerateIndex with an explicit lastmod shared by every
// referenced file.
func GenerateIndexAt(filenames []string, opts Options, lastMod LastMod) (string, bool) {
	if len(filenames) <= 1 {
		return "", false
	}

	r := newRenderer(opts)
	stamp := EncodeLastMod(lastMod, opts.location())

	var b strings.Builder
	b.Grow(128 + 128*len(filenames))

	r.open(&b, "sitemapindex")
	for i, name := range filenames {
		if i > 0 {
			b.WriteString(r.nl)
		}
		b.WriteString(r.tab + "<sitemap>" + r.nl)
		r.child(&b, "loc", EncodeLoc(join(r.baseURL, name)))
		r.child(&b, "lastmod", stamp)
		b.WriteString(r.tab + "</sitemap>")
	}
	r.close(&b, "sitemapindex")
	return b.String(), true
}
