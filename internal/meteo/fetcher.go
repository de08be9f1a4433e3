// Package meteo retrieves daily min/max temperatures and weather-condition
// codes from Open-Meteo for an arbitrary date range. Ranges are partitioned
// against the current UTC calendar date: elapsed days come from the archive
// backend, today-or-future days from the forecast backend, and a straddling
// range is split into one segment of each. Segment results are concatenated
// archive-first so the merged daily sequence stays ordered by date.
package meteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tbourn/go-weather-backend/internal/domain"
)

const (
	defaultForecastBase = "https://api.open-meteo.com"
	defaultArchiveBase  = "https://archive-api.open-meteo.com"

	// dailyFields is the daily variable list requested for every segment.
	dailyFields = "temperature_2m_min,temperature_2m_max,weathercode"
)

// SegmentKind distinguishes the two weather backends.
type SegmentKind string

const (
	// SegmentArchive is a historical-data request for dates already elapsed.
	SegmentArchive SegmentKind = "archive"
	// SegmentForecast is a request for today-or-future dates.
	SegmentForecast SegmentKind = "forecast"
)

// UpstreamError reports a failed segment request, tagged with which backend
// kind failed so callers can surface it.
type UpstreamError struct {
	Segment SegmentKind
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("weather API error (%s): %v", e.Segment, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstreamError reports whether err is (or wraps) an UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// segment is one dated sub-range bound to a backend kind.
type segment struct {
	start, end time.Time
	kind       SegmentKind
}

// Fetcher retrieves and merges weather data for date ranges.
// Construct with NewFetcher.
type Fetcher struct {
	// Client performs all outbound calls. Its timeout bounds each segment call.
	Client *http.Client
	// ForecastBase and ArchiveBase are the backend base URLs (overridable in tests).
	ForecastBase string
	ArchiveBase  string
	// Now supplies the current instant; the UTC calendar date derived from it
	// drives range partitioning. Defaults to time.Now.
	Now func() time.Time

	breaker *gobreaker.CircuitBreaker
	backoff BackoffConfig
}

// NewFetcher returns a Fetcher against the production Open-Meteo endpoints.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:       &http.Client{Timeout: timeout},
		ForecastBase: defaultForecastBase,
		ArchiveBase:  defaultArchiveBase,
		Now:          time.Now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "open-meteo",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// Fetch retrieves the merged daily payload for [from, to] at (lat, lon).
// Both bounds are inclusive calendar dates (time components ignored).
//
// Any segment request that does not succeed aborts the whole fetch with an
// *UpstreamError. The extra live current-weather call is best effort: its
// failure merely omits current_weather from the result.
func (f *Fetcher) Fetch(ctx context.Context, lat, lon float64, from, to time.Time) (domain.WeatherPayload, error) {
	out := domain.WeatherPayload{Latitude: lat, Longitude: lon}

	today := truncateToDay(f.now())
	for _, seg := range splitRange(truncateToDay(from), truncateToDay(to), today) {
		daily, err := f.fetchSegment(ctx, lat, lon, seg)
		if err != nil {
			return domain.WeatherPayload{}, &UpstreamError{Segment: seg.kind, Err: err}
		}
		out.Daily = append(out.Daily, daily...)
	}
	if out.Daily == nil {
		out.Daily = []domain.DailyEntry{}
	}

	// Live snapshot, independent of the segment loop.
	if cw, err := f.fetchCurrent(ctx, lat, lon); err == nil {
		out.CurrentWeather = cw
	}

	return out, nil
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// truncateToDay returns the UTC calendar date of t at midnight.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// splitRange partitions [from, to] against today. The sub-ranges cover the
// original range exactly, with no gap or overlap, and an archive segment
// always precedes a forecast segment.
func splitRange(from, to, today time.Time) []segment {
	switch {
	case to.Before(today):
		return []segment{{from, to, SegmentArchive}}
	case !from.Before(today):
		return []segment{{from, to, SegmentForecast}}
	default:
		return []segment{
			{from, today.AddDate(0, 0, -1), SegmentArchive},
			{today, to, SegmentForecast},
		}
	}
}

// dailyBlock mirrors the "daily" object of an Open-Meteo response. The value
// arrays are pointer slices so upstream nulls survive decoding.
type dailyBlock struct {
	Time        []string   `json:"time"`
	TempMin     []*float64 `json:"temperature_2m_min"`
	TempMax     []*float64 `json:"temperature_2m_max"`
	Weathercode []*int     `json:"weathercode"`
}

// fetchSegment issues one request to the backend matching seg.kind and zips
// the daily arrays into entries.
func (f *Fetcher) fetchSegment(ctx context.Context, lat, lon float64, seg segment) ([]domain.DailyEntry, error) {
	base := f.ForecastBase + "/v1/forecast"
	if seg.kind == SegmentArchive {
		base = f.ArchiveBase + "/v1/archive"
	}

	build := func() (*http.Request, error) {
		q := url.Values{}
		q.Set("latitude", formatCoord(lat))
		q.Set("longitude", formatCoord(lon))
		q.Set("daily", dailyFields)
		q.Set("timezone", "auto")
		q.Set("start_date", seg.start.Format("2006-01-02"))
		q.Set("end_date", seg.end.Format("2006-01-02"))
		if seg.kind == SegmentForecast {
			q.Set("current_weather", "true")
		}
		return http.NewRequest(http.MethodGet, base+"?"+q.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, f.Client, f.breaker, f.backoff, build)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Daily dailyBlock `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	entries := make([]domain.DailyEntry, 0, len(body.Daily.Time))
	for i, d := range body.Daily.Time {
		e := domain.DailyEntry{Date: d}
		if i < len(body.Daily.TempMin) {
			e.TminC = body.Daily.TempMin[i]
		}
		if i < len(body.Daily.TempMax) {
			e.TmaxC = body.Daily.TempMax[i]
		}
		if i < len(body.Daily.Weathercode) {
			e.Weathercode = body.Daily.Weathercode[i]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// fetchCurrent performs the extra live forecast call for the current-weather
// snapshot. Plain request, no retries: the caller drops the snapshot on error.
func (f *Fetcher) fetchCurrent(ctx context.Context, lat, lon float64) (*domain.CurrentWeather, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("current_weather", "true")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ForecastBase+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		CurrentWeather *domain.CurrentWeather `json:"current_weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.CurrentWeather == nil {
		return nil, errors.New("no current_weather in response")
	}
	return body.CurrentWeather, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
