package providers

import (
	"fmt"
	"sort"
	"time"

	"github.com/i474232898/weather-cache-api/internal/weather"
)

// hourLayout is the timestamp form WeatherAPI.com uses for hourly entries
// and the location localtime.
const hourLayout = "2006-01-02 15:04"

// Normalized is the result of splitting a raw payload into the three row
// sets the store persists.
type Normalized struct {
	Location     weather.LocationRow
	Conditions   []weather.ConditionRow
	Observations []weather.ObservationRow
}

// Normalize maps a raw provider payload into typed rows: the location
// identity, the deduplicated condition codes (later entries win), and one
// observation per hour. Observation GeoID is left unset; the worker attaches
// it after the location row is resolved.
func Normalize(p *Payload) (*Normalized, error) {
	if p == nil || len(p.Forecast.Forecastday) == 0 {
		return nil, fmt.Errorf("payload has no forecast days")
	}

	updated, err := time.Parse(hourLayout, p.Location.Localtime)
	if err != nil {
		return nil, fmt.Errorf("parse location localtime %q: %w", p.Location.Localtime, err)
	}

	n := &Normalized{
		Location: weather.LocationRow{
			Name:    p.Location.Name,
			Country: p.Location.Country,
		},
	}

	condTexts := make(map[int]string)

	for _, day := range p.Forecast.Forecastday {
		for _, h := range day.Hour {
			ts, err := time.Parse(hourLayout, h.Time)
			if err != nil {
				return nil, fmt.Errorf("parse hour time %q: %w", h.Time, err)
			}

			condTexts[h.Condition.Code] = h.Condition.Text

			n.Observations = append(n.Observations, weather.ObservationRow{
				Datetime:       ts,
				DatetimeUpdate: updated,
				TempC:          h.TempC,
				TempCFeelsLike: h.FeelslikeC,
				ConditionID:    h.Condition.Code,
				WindSpeedKph:   h.WindKph,
				WindGustKph:    h.GustKph,
				WindDirection:  h.WindDir,
				UVIndex:        h.UV,
				PressureMb:     h.PressureMb,
				Humidity:       h.Humidity,
				Cloud:          h.Cloud,
				IsDay:          h.IsDay != 0,
				Latitude:       p.Location.Lat,
				Longitude:      p.Location.Lon,
			})
		}
	}

	if len(n.Observations) == 0 {
		return nil, fmt.Errorf("payload has no hourly entries")
	}

	codes := make([]int, 0, len(condTexts))
	for code := range condTexts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		n.Conditions = append(n.Conditions, weather.ConditionRow{ID: code, Text: condTexts[code]})
	}

	return n, nil
}
