package store

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-cache-api/internal/weather"
)

// locationCondition renders a location filter as a parameterized WHERE
// fragment. Placeholder numbering starts at next; the returned args line up
// with the fragment.
func locationCondition(f weather.LocationFilter, next int) (string, []any) {
	var (
		parts []string
		args  []any
	)

	add := func(column, value string) {
		switch f.Match {
		case weather.MatchPrefix:
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE LOWER($%d) || '%%'", column, next))
		default:
			parts = append(parts, fmt.Sprintf("LOWER(%s) = LOWER($%d)", column, next))
		}
		args = append(args, value)
		next++
	}

	add("geo_name", f.Name)
	if f.Country != "" {
		add("geo_country", f.Country)
	}

	return strings.Join(parts, " AND "), args
}
