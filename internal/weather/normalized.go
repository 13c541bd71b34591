package weather

import "time"

// LocationRow is the canonical stored identity of a place. Coordinates from
// the provider payload are carried on observations, not here.
type LocationRow struct {
	Name    string
	Country string
}

// ConditionRow maps a provider-assigned condition code to its description.
type ConditionRow struct {
	ID   int
	Text string
}

// ObservationRow is one normalized hourly observation ready for upsert.
// GeoID is attached after the owning location row is resolved.
type ObservationRow struct {
	GeoID          int64
	Datetime       time.Time
	DatetimeUpdate time.Time
	TempC          float64
	TempCFeelsLike float64
	ConditionID    int
	WindSpeedKph   float64
	WindGustKph    float64
	WindDirection  string
	UVIndex        float64
	PressureMb     float64
	Humidity       int
	Cloud          int
	IsDay          bool
	Latitude       float64
	Longitude      float64
}
