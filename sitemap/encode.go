package sitemap

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	lastModLayout = "2006-01-02T15:04:05.000Z"
	invalidDate   = "Invalid Date"
	upperHex      = "0123456789ABCDEF"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"'", "&apos;",
	`"`, "&quot;",
	"<", "&lt;",
	">", "&gt;",
)

// EncodeLoc percent-encodes s with the URI rule set, which keeps reserved
// and mark characters intact, then escapes the XML special characters that
// survive it.
func EncodeLoc(s string) string {
	return xmlEscaper.Replace(encodeURI(s))
}

func encodeURI(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func shouldEscape(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case ';', ',', '/', '?', ':', '@', '&', '=', '+', '$', '#',
		'-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}

// EncodeLastMod formats v as a UTC timestamp with millisecond precision.
// Strings that cannot be parsed yield "Invalid Date"; use LastMod.Valid to
// reject them beforehand.
func EncodeLastMod(v LastMod, loc *time.Location) string {
	t, ok := v.Time(loc)
	if !ok {
		return invalidDate
	}
	return t.UTC().Format(lastModLayout)
}

// EncodePriority writes whole-number priorities 0 and 1 with a decimal.
// Other numbers use their shortest form and strings pass through.
func EncodePriority(p Priority) string {
	if p.isStr {
		return p.str
	}
	switch p.num {
	case 0:
		return "0.0"
	case 1:
		return "1.0"
	}
	return formatNumber(p.num)
}

// formatNumber renders f like Number.prototype.toString: plain decimals
// between 1e-6 and 1e21, exponent form outside, and Infinity/NaN by name.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// wrapTag does not escape content.
func wrapTag(name, content string) string {
	return "<" + name + ">" + content + "</" + name + ">"
}
