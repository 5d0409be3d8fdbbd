package sitemap

import "time"

// TrailingSlash controls how a trailing slash on a location is treated.
type TrailingSlash int

const (
	// TrailingSlashKeep leaves locations as given.
	TrailingSlashKeep TrailingSlash = iota
	// TrailingSlashAdd appends a slash to every location that lacks one.
	TrailingSlashAdd
	// TrailingSlashRemove drops a single trailing slash.
	TrailingSlashRemove
)

// TrailingSlashFromBool maps an optional boolean setting onto a policy:
// nil keeps, true adds, false removes.
func TrailingSlashFromBool(b *bool) TrailingSlash {
	switch {
	case b == nil:
		return TrailingSlashKeep
	case *b:
		return TrailingSlashAdd
	default:
		return TrailingSlashRemove
	}
}

// String returns the policy name.
func (t TrailingSlash) String() string {
	switch t {
	case TrailingSlashAdd:
		return "add"
	case TrailingSlashRemove:
		return "remove"
	default:
		return "keep"
	}
}

// Defaults holds metadata applied to entries that do not carry their own.
type Defaults struct {
	LastMod    Field[LastMod]    `json:"lastmod" yaml:"lastmod"`
	Priority   Field[Priority]   `json:"priority" yaml:"priority"`
	ChangeFreq Field[ChangeFreq] `json:"changefreq" yaml:"changefreq"`
}

// Options configures a generation run. The zero value is usable.
type Options struct {
	BaseURL       string
	TrailingSlash TrailingSlash
	Defaults      Defaults
	Pretty        bool

	// Location is used for date strings without a zone. Defaults to time.Local.
	Location *time.Location
	// Now supplies the index lastmod when none is given. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
