package sitemap

// Resolved is the metadata that ends up in a url element.
type Resolved struct {
	LastMod    Field[LastMod]
	Priority   Field[Priority]
	ChangeFreq Field[ChangeFreq]
}

// Resolve picks each field from the entry when present there, else from the
// defaults. Presence decides, not the value: an explicit priority of 0 or an
// explicit null wins over any default.
func Resolve(e Entry, d Defaults) Resolved {
	return Resolved{
		LastMod:    pick(e.LastMod, d.LastMod),
		Priority:   pick(e.Priority, d.Priority),
		ChangeFreq: pick(e.ChangeFreq, d.ChangeFreq),
	}
}

func pick[T any](own, fallback Field[T]) Field[T] {
	if own.IsPresent() {
		return own
	}
	return fallback
}
