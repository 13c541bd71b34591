package providers

// Payload is the raw WeatherAPI.com response for both the history and
// forecast endpoints. Only the fields the normalization step reads are
// declared.
type Payload struct {
	Location LocationPayload `json:"location"`
	Forecast ForecastPayload `json:"forecast"`
}

type LocationPayload struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Localtime string  `json:"localtime"`
}

type ForecastPayload struct {
	Forecastday []ForecastDay `json:"forecastday"`
}

type ForecastDay struct {
	Date string        `json:"date"`
	Hour []HourPayload `json:"hour"`
}

type HourPayload struct {
	TimeEpoch  int64            `json:"time_epoch"`
	Time       string           `json:"time"`
	TempC      float64          `json:"temp_c"`
	FeelslikeC float64          `json:"feelslike_c"`
	IsDay      int              `json:"is_day"`
	Condition  ConditionPayload `json:"condition"`
	WindKph    float64          `json:"wind_kph"`
	GustKph    float64          `json:"gust_kph"`
	WindDir    string           `json:"wind_dir"`
	PressureMb float64          `json:"pressure_mb"`
	Humidity   int              `json:"humidity"`
	Cloud      int              `json:"cloud"`
	UV         float64          `json:"uv"`
}

type ConditionPayload struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}
