package weather

import (
	"sort"
	"strings"
)

// DateLayout is the calendar-date form used throughout the cache.
const DateLayout = "2006-01-02"

// MaxForecastDays bounds how far ahead the upstream provider is queried.
const MaxForecastDays = 3

// SplitDates parses a comma-separated list of YYYY-MM-DD dates,
// dropping empty elements.
func SplitDates(s string) []string {
	var dates []string
	for _, d := range strings.Split(s, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			dates = append(dates, d)
		}
	}
	return dates
}

// DateGap computes the set of dates a fetch must cover. When every requested
// date is already complete the gap is empty. Otherwise the gap is the
// symmetric difference of the complete and requested sets: a complete date
// outside the requested range is re-fetched as well.
func DateGap(complete, requested []string) []string {
	completeSet := make(map[string]struct{}, len(complete))
	for _, d := range complete {
		completeSet[d] = struct{}{}
	}
	requestedSet := make(map[string]struct{}, len(requested))
	for _, d := range requested {
		requestedSet[d] = struct{}{}
	}

	covered := true
	for d := range requestedSet {
		if _, ok := completeSet[d]; !ok {
			covered = false
			break
		}
	}
	if covered {
		return nil
	}

	var gap []string
	for d := range requestedSet {
		if _, ok := completeSet[d]; !ok {
			gap = append(gap, d)
		}
	}
	for d := range completeSet {
		if _, ok := requestedSet[d]; !ok {
			gap = append(gap, d)
		}
	}
	sort.Strings(gap)
	return gap
}

// ClampForecastDays normalizes a requested day count: non-positive values
// fall back to the default, anything larger is capped.
func ClampForecastDays(days int) int {
	if days <= 0 {
		return MaxForecastDays
	}
	if days > MaxForecastDays {
		return MaxForecastDays
	}
	return days
}

// DistinctCheckDates returns the unique check_date values of a result set.
func DistinctCheckDates(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	var dates []string
	for _, r := range rows {
		if _, ok := seen[r.CheckDate]; ok {
			continue
		}
		seen[r.CheckDate] = struct{}{}
		dates = append(dates, r.CheckDate)
	}
	return dates
}
