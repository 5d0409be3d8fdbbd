package sitemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ChangeFreq is a hint for how often the content at a location changes.
type ChangeFreq string

const (
	Always  ChangeFreq = "always"
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
	Yearly  ChangeFreq = "yearly"
	Never   ChangeFreq = "never"
)

// IsValid reports whether c is one of the protocol's change frequencies.
func (c ChangeFreq) IsValid() bool {
	switch c {
	case Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return true
	}
	return false
}

type fieldState uint8

const (
	fieldAbsent fieldState = iota
	fieldNull
	fieldSet
)

// Field is an optional entry attribute. The zero value is absent, which lets
// a default apply. A null field is present without a value: it suppresses
// the default and is omitted from the output.
type Field[T any] struct {
	value T
	state fieldState
}

// Set returns a present field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, state: fieldSet}
}

// Null returns a present field with no value.
func Null[T any]() Field[T] {
	return Field[T]{state: fieldNull}
}

// IsPresent reports whether the field was given, with or without a value.
func (f Field[T]) IsPresent() bool {
	return f.state != fieldAbsent
}

// Get returns the value and whether there is one.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == fieldSet
}

// MarshalJSON encodes an absent or null field as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON decodes null as a present-but-empty field. Missing keys never
// reach this method and stay absent.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

// UnmarshalYAML decodes a YAML value into a set field.
func (f *Field[T]) UnmarshalYAML(unmarshal func(any) error) error {
	var v T
	if err := unmarshal(&v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

type lastModKind uint8

const (
	lastModTime lastModKind = iota
	lastModMillis
	lastModString
)

// LastMod is a modification time given as a time value, epoch milliseconds
// or a date string. Strings are parsed when encoded.
type LastMod struct {
	t      time.Time
	millis int64
	raw    string
	kind   lastModKind
}

// LastModTime returns a LastMod for t.
func LastModTime(t time.Time) LastMod {
	return LastMod{t: t, kind: lastModTime}
}

// LastModMillis returns a LastMod for a Unix timestamp in milliseconds.
func LastModMillis(ms int64) LastMod {
	return LastMod{millis: ms, kind: lastModMillis}
}

// LastModString returns a LastMod for a date string such as "2020-01-01" or
// "December 17, 1995 03:24:00".
func LastModString(s string) LastMod {
	return LastMod{raw: s, kind: lastModString}
}

// Time resolves the LastMod to an instant. Zone-less strings are read in loc
// (time.Local when nil). ok is false for strings that cannot be parsed.
func (l LastMod) Time(loc *time.Location) (time.Time, bool) {
	switch l.kind {
	case lastModMillis:
		return time.UnixMilli(l.millis), true
	case lastModString:
		return parseDate(l.raw, loc)
	default:
		return l.t, true
	}
}

// Valid reports whether the LastMod resolves to an instant.
func (l LastMod) Valid() bool {
	_, ok := l.Time(time.UTC)
	return ok
}

// MarshalJSON keeps the original form: strings stay strings, times and
// milliseconds become numbers of milliseconds.
func (l LastMod) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case lastModString:
		return json.Marshal(l.raw)
	case lastModMillis:
		return json.Marshal(l.millis)
	default:
		return json.Marshal(l.t.UnixMilli())
	}
}

// UnmarshalJSON accepts a date string or a number of epoch milliseconds.
func (l *LastMod) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = LastModString(s)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("lastmod must be a date string or epoch milliseconds: %w", err)
	}
	*l = LastModMillis(int64(ms))
	return nil
}

// UnmarshalYAML reads lastmod from YAML. Integers are epoch milliseconds,
// anything else is kept as a date string.
func (l *LastMod) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case int:
		*l = LastModMillis(int64(t))
	case int64:
		*l = LastModMillis(t)
	case time.Time:
		*l = LastModTime(t)
	case string:
		*l = LastModString(t)
	default:
		*l = LastModString(fmt.Sprint(t))
	}
	return nil
}

// Priority is a priority value given as a number or a numeric string. It is
// not range checked.
type Priority struct {
	num   float64
	str   string
	isStr bool
}

// PriorityFloat returns a numeric Priority.
func PriorityFloat(f float64) Priority {
	return Priority{num: f}
}

// PriorityString returns a Priority written out verbatim.
func PriorityString(s string) Priority {
	return Priority{str: s, isStr: true}
}

// MarshalJSON keeps strings as strings and numbers as numbers.
func (p Priority) MarshalJSON() ([]byte, error) {
	if p.isStr {
		return json.Marshal(p.str)
	}
	return json.Marshal(p.num)
}

// UnmarshalJSON accepts a number or a string.
func (p *Priority) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriorityString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("priority must be a number or a string: %w", err)
	}
	*p = PriorityFloat(f)
	return nil
}

// UnmarshalYAML reads priority from YAML. Quoted scalars stay strings.
func (p *Priority) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case int:
		*p = PriorityFloat(float64(t))
	case float64:
		*p = PriorityFloat(t)
	case string:
		*p = PriorityString(t)
	default:
		*p = PriorityString(fmt.Sprint(t))
	}
	return nil
}

// Entry is one location to list in a sitemap.
type Entry struct {
	Loc        string            `json:"loc"`
	LastMod    Field[LastMod]    `json:"lastmod"`
	Priority   Field[Priority]   `json:"priority"`
	ChangeFreq Field[ChangeFreq] `json:"changefreq"`
}

// URL returns an Entry for a bare location with no metadata.
func URL(loc string) Entry {
	return Entry{Loc: loc}
}

// Locations returns one bare Entry per location, in order.
func Locations(locs ...string) []Entry {
	entries := make([]Entry, len(locs))
	for i, loc := range locs {
		entries[i] = URL(loc)
	}
	return entries
}

// UnmarshalJSON accepts either a bare location string or an object.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var loc string
		if err := json.Unmarshal(data, &loc); err != nil {
			return err
		}
		*e = URL(loc)
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Validate checks the entry for values that would produce a broken sitemap.
// Generation itself never validates. An empty Loc is allowed since it stands
// for the base URL.
func (e Entry) Validate() error {
	if lm, ok := e.LastMod.Get(); ok && !lm.Valid() {
		return fmt.Errorf("invalid lastmod %q for %s", lm.raw, e.Loc)
	}
	if p, ok := e.Priority.Get(); ok && p.isStr {
		if _, err := strconv.ParseFloat(p.str, 64); err != nil {
			return fmt.Errorf("invalid priority %q for %s", p.str, e.Loc)
		}
	}
	if cf, ok := e.ChangeFreq.Get(); ok && !cf.IsValid() {
		return fmt.Errorf("invalid changefreq %q for %s", cf, e.Loc)
	}
	return nil
}
