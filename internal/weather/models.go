package weather

// Metadata messages describing which path satisfied a request.
const (
	MsgCacheOnly   = "All data available from cache"
	MsgFetched     = "Data was parsed additionally from Weather API"
	MsgCacheUnsure = "There are maybe issue with caching data from API"
)

// Location identifies a place for which observations are cached.
// Country is optional; when empty only the name participates in lookups.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// HistoryRequest asks for observed weather on explicit dates.
// Dates is a comma-separated list in YYYY-MM-DD form.
type HistoryRequest struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country"`
	Dates   string `json:"dates" validate:"required"`
}

// ForecastRequest asks for predicted weather for the next Days days.
type ForecastRequest struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country"`
	Days    int    `json:"days"`
}

// Row is one hourly observation as returned to clients. CheckDate is the
// internal completeness-tracking column and never serialized.
type Row struct {
	Datetime             string  `json:"datetime"`
	Temperature          float64 `json:"temperature"`
	TemperatureFeelsLike float64 `json:"temperature_feels_like"`
	ConditionWeather     string  `json:"condition_weather"`
	UVIndex              float64 `json:"uv_index"`
	Humidity             float64 `json:"humidity"`
	PressureMb           float64 `json:"pressure_mb"`
	DayOrNight           string  `json:"day_or_night"`
	GeoLocation          string  `json:"geo_location"`

	CheckDate string `json:"-"`
}

// Metainfo describes how the response was assembled. BackendTask carries the
// id of the dispatched fetch job, if any.
type Metainfo struct {
	Message     string  `json:"message"`
	BackendTask *string `json:"backend_task"`
}

// Response is the envelope for both history and forecast endpoints.
type Response struct {
	CurrentTime string   `json:"current_time"`
	Metainfo    Metainfo `json:"metainfo"`
	Data        []Row    `json:"data"`
}
