// Weather payload value types.
//
// WeatherRequest stores its payload as a serialized text blob; these types
// give it a structured shape so the fetcher, the API layer, and the export
// formatter all share one definition instead of re-reading raw JSON.
package domain

import "encoding/json"

// DailyEntry is one day of the requested range. Temperature and weather-code
// values are pointers so that nulls coming back from the upstream API are
// preserved rather than defaulted to zero.
type DailyEntry struct {
	Date        string   `json:"date"`
	TminC       *float64 `json:"tmin_c"`
	TmaxC       *float64 `json:"tmax_c"`
	Weathercode *int     `json:"weathercode"`
}

// CurrentWeather is the live snapshot attached when the stored range touches
// the present day and the extra live lookup succeeded.
type CurrentWeather struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	Windspeed     *float64 `json:"windspeed,omitempty"`
	Winddirection *float64 `json:"winddirection,omitempty"`
	Weathercode   *int     `json:"weathercode,omitempty"`
	IsDay         *int     `json:"is_day,omitempty"`
	Time          string   `json:"time,omitempty"`
}

// WeatherPayload is the structured per-day data plus the optional current
// snapshot associated with one stored request. Daily is ordered by date
// ascending and has exactly one entry per day in [DateFrom, DateTo].
type WeatherPayload struct {
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Daily          []DailyEntry    `json:"daily"`
	CurrentWeather *CurrentWeather `json:"current_weather,omitempty"`
}

// Weather decodes the stored payload blob.
func (r *WeatherRequest) Weather() (WeatherPayload, error) {
	var p WeatherPayload
	if r.WeatherJSON == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(r.WeatherJSON), &p)
	return p, err
}

// SetWeather serializes p into the stored payload blob.
func (r *WeatherRequest) SetWeather(p WeatherPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	r.WeatherJSON = string(b)
	return nil
}
