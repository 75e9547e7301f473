package registry

import "strings"

const (
	// Wildcard matches any value at its position in a filter.
	Wildcard = "*"
	// Separator splits a filter into country, state and city segments.
	Separator = "-"
)

// Filter is a parsed locality filter. Each field is either a literal value or
// Wildcard.
type Filter struct {
	Country string
	State   string
	City    string
}

// ParseFilter parses "<country>[-<state>[-<city>]]".
// Missing state and city default to Wildcard; segments past the third are
// ignored. An empty string returns ErrInvalidFilter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, ErrInvalidFilter
	}

	segments := strings.Split(s, Separator)
	f := Filter{Country: segments[0], State: Wildcard, City: Wildcard}
	if len(segments) > 1 {
		f.State = segments[1]
	}
	if len(segments) > 2 {
		f.City = segments[2]
	}
	return f, nil
}

// String renders the filter in its three-segment form, e.g. "US-*-*".
func (f Filter) String() string {
	return f.Country + Separator + f.State + Separator + f.City
}

// Matches reports whether c satisfies every non-wildcard segment of f.
func (f Filter) Matches(c Client) bool {
	return segmentMatches(f.Country, c.Country) &&
		segmentMatches(f.State, c.State) &&
		segmentMatches(f.City, c.City)
}

func segmentMatches(segment, value string) bool {
	return segment == Wildcard || segment == value
}
