package sitemap

import "strings"

// Normalize resolves loc against baseURL and applies the trailing slash
// policy. Percent-encoding is left to EncodeLoc.
func Normalize(loc, baseURL string, policy TrailingSlash) string {
	loc = join(trimBase(baseURL), loc)

	switch policy {
	case TrailingSlashAdd:
		if !strings.HasSuffix(loc, "/") {
			loc += "/"
		}
	case TrailingSlashRemove:
		loc = strings.TrimSuffix(loc, "/")
	}
	return loc
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// join appends rel to an already trimmed base with exactly one slash. Empty
// sides are dropped along with the separator.
func join(base, rel string) string {
	if base == "" {
		return rel
	}
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return base
	}
	return base + "/" + rel
}
