package weather

// MatchMode selects how a location lookup compares stored names.
type MatchMode int

const (
	// MatchExact compares lowercased name and country for equality. Used for
	// the first store query of a request.
	MatchExact MatchMode = iota
	// MatchPrefix matches stored values that start with the given name and
	// country. Required for the re-query after a fetch: the provider may
	// persist a region-qualified spelling of what the user typed, and an
	// exact lookup would miss the newly inserted rows.
	MatchPrefix
)

// LocationFilter is the resolved lookup expression for a user-supplied
// (name, optional country) pair.
type LocationFilter struct {
	Name    string
	Country string
	Match   MatchMode
}

// ResolveLocation builds the first-pass, exact-match filter.
func ResolveLocation(city, country string) LocationFilter {
	return LocationFilter{Name: city, Country: country, Match: MatchExact}
}
