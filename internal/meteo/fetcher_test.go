package meteo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSplitRange_Partitioning(t *testing.T) {
	today := day("2024-06-15")

	cases := []struct {
		name     string
		from, to string
		want     []segment
	}{
		{
			name: "entirely past",
			from: "2024-06-01", to: "2024-06-10",
			want: []segment{{day("2024-06-01"), day("2024-06-10"), SegmentArchive}},
		},
		{
			name: "ends yesterday",
			from: "2024-06-10", to: "2024-06-14",
			want: []segment{{day("2024-06-10"), day("2024-06-14"), SegmentArchive}},
		},
		{
			name: "starts today",
			from: "2024-06-15", to: "2024-06-20",
			want: []segment{{day("2024-06-15"), day("2024-06-20"), SegmentForecast}},
		},
		{
			name: "entirely future",
			from: "2024-06-16", to: "2024-06-18",
			want: []segment{{day("2024-06-16"), day("2024-06-18"), SegmentForecast}},
		},
		{
			name: "straddles today",
			from: "2024-06-13", to: "2024-06-17",
			want: []segment{
				{day("2024-06-13"), day("2024-06-14"), SegmentArchive},
				{day("2024-06-15"), day("2024-06-17"), SegmentForecast},
			},
		},
		{
			name: "single day today",
			from: "2024-06-15", to: "2024-06-15",
			want: []segment{{day("2024-06-15"), day("2024-06-15"), SegmentForecast}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitRange(day(tc.from), day(tc.to), today)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d segments, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range got {
				if !got[i].start.Equal(tc.want[i].start) ||
					!got[i].end.Equal(tc.want[i].end) ||
					got[i].kind != tc.want[i].kind {
					t.Fatalf("segment %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// newTestFetcher builds a Fetcher with a short-fused breaker, no retry
// delays, and a pinned current date.
func newTestFetcher(forecastURL, archiveURL, today string) *Fetcher {
	return &Fetcher{
		Client:       &http.Client{Timeout: 2 * time.Second},
		ForecastBase: forecastURL,
		ArchiveBase:  archiveURL,
		Now:          func() time.Time { return day(today) },
		breaker:      gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		backoff:      BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}
}

func dailyJSON(dates ...string) string {
	body := `{"daily":{"time":[`
	for i, d := range dates {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf("%q", d)
	}
	body += `],"temperature_2m_min":[`
	for i := range dates {
		if i > 0 {
			body += ","
		}
		body += "1.5"
	}
	body += `],"temperature_2m_max":[`
	for i := range dates {
		if i > 0 {
			body += ","
		}
		body += "9.5"
	}
	body += `],"weathercode":[`
	for i := range dates {
		if i > 0 {
			body += ","
		}
		body += "3"
	}
	body += `]}}`
	return body
}

func TestFetch_StraddlingRange_MergesArchiveThenForecast(t *testing.T) {
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "2024-06-13" || q.Get("end_date") != "2024-06-14" {
			t.Errorf("archive got range %s..%s", q.Get("start_date"), q.Get("end_date"))
		}
		fmt.Fprint(w, dailyJSON("2024-06-13", "2024-06-14"))
	}))
	defer archive.Close()

	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("daily") == "" {
			// Live current-weather call.
			fmt.Fprint(w, `{"current_weather":{"temperature":21.5,"windspeed":3.2,"weathercode":1,"is_day":1,"time":"2024-06-15T12:00"}}`)
			return
		}
		if q.Get("start_date") != "2024-06-15" || q.Get("end_date") != "2024-06-16" {
			t.Errorf("forecast got range %s..%s", q.Get("start_date"), q.Get("end_date"))
		}
		if q.Get("current_weather") != "true" {
			t.Error("forecast segment must request current_weather")
		}
		fmt.Fprint(w, dailyJSON("2024-06-15", "2024-06-16"))
	}))
	defer forecast.Close()

	f := newTestFetcher(forecast.URL, archive.URL, "2024-06-15")
	got, err := f.Fetch(context.Background(), 52.52, 13.4, day("2024-06-13"), day("2024-06-16"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got.Daily) != 4 {
		t.Fatalf("expected 4 daily entries, got %d", len(got.Daily))
	}
	wantDates := []string{"2024-06-13", "2024-06-14", "2024-06-15", "2024-06-16"}
	for i, d := range got.Daily {
		if d.Date != wantDates[i] {
			t.Fatalf("entry %d date %q, want %q", i, d.Date, wantDates[i])
		}
		if d.TminC == nil || *d.TminC != 1.5 || d.TmaxC == nil || *d.TmaxC != 9.5 {
			t.Fatalf("entry %d temps wrong: %+v", i, d)
		}
	}
	if got.CurrentWeather == nil || got.CurrentWeather.Temperature == nil || *got.CurrentWeather.Temperature != 21.5 {
		t.Fatalf("expected live snapshot, got %+v", got.CurrentWeather)
	}
	if got.Latitude != 52.52 || got.Longitude != 13.4 {
		t.Fatalf("coords not echoed: %+v", got)
	}
}

func TestFetch_NullValuesSurvive(t *testing.T) {
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily":{"time":["2024-06-01"],"temperature_2m_min":[null],"temperature_2m_max":[8.0],"weathercode":[null]}}`)
	}))
	defer archive.Close()
	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer forecast.Close()

	f := newTestFetcher(forecast.URL, archive.URL, "2024-06-15")
	got, err := f.Fetch(context.Background(), 0, 0, day("2024-06-01"), day("2024-06-01"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	e := got.Daily[0]
	if e.TminC != nil || e.Weathercode != nil {
		t.Fatalf("expected nulls preserved, got %+v", e)
	}
	if e.TmaxC == nil || *e.TmaxC != 8.0 {
		t.Fatalf("expected Tmax 8.0, got %+v", e.TmaxC)
	}
}

func TestFetch_SegmentFailureAbortsWithUpstreamError(t *testing.T) {
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest) // no retries on 4xx
	}))
	defer archive.Close()

	f := newTestFetcher("http://unused.invalid", archive.URL, "2024-06-15")
	_, err := f.Fetch(context.Background(), 0, 0, day("2024-06-01"), day("2024-06-02"))
	if !IsUpstreamError(err) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Segment != SegmentArchive {
		t.Fatalf("expected archive segment tag, got %+v", ue)
	}
}

func TestFetch_CurrentWeatherFailureIsNonFatal(t *testing.T) {
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dailyJSON("2024-06-01"))
	}))
	defer archive.Close()
	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the live call reaches the forecast host for a past range.
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer forecast.Close()

	f := newTestFetcher(forecast.URL, archive.URL, "2024-06-15")
	got, err := f.Fetch(context.Background(), 0, 0, day("2024-06-01"), day("2024-06-01"))
	if err != nil {
		t.Fatalf("live snapshot failure must not fail the fetch: %v", err)
	}
	if got.CurrentWeather != nil {
		t.Fatalf("expected no snapshot, got %+v", got.CurrentWeather)
	}
	if len(got.Daily) != 1 {
		t.Fatalf("daily data must survive: %+v", got.Daily)
	}
}

func TestFetch_RetriesTransientServerError(t *testing.T) {
	var calls int
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, dailyJSON("2024-06-01"))
	}))
	defer archive.Close()
	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer forecast.Close()

	f := newTestFetcher(forecast.URL, archive.URL, "2024-06-15")
	got, err := f.Fetch(context.Background(), 0, 0, day("2024-06-01"), day("2024-06-01"))
	if err != nil {
		t.Fatalf("Fetch after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
	if len(got.Daily) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
