// Package geo turns free-form user input into a canonical place name plus
// coordinates. Resolution walks an ordered strategy chain and stops at the
// first strategy that produces a result:
//
//  1. Coordinate pair ("<lat>,<lon>"): the coordinates are taken verbatim
//     and a best-effort reverse lookup supplies the friendly name. This
//     strategy never fails once the pair parses.
//  2. US postal code (exactly five digits): looked up against Zippopotam.
//     Any failure falls through silently to the next strategy.
//  3. Free-text search against the Open-Meteo geocoding API, best match
//     only. This is the only strategy that surfaces errors.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultZipBase     = "https://api.zippopotam.us"
	defaultGeocodeBase = "https://geocoding-api.open-meteo.com"
)

var (
	// ErrLocationNotFound indicates the geocoding service answered but had
	// zero matches for the input.
	ErrLocationNotFound = errors.New("location not found")

	// ErrGeocodingUnavailable indicates the geocoding service did not return
	// a successful response.
	ErrGeocodingUnavailable = errors.New("geocoding service unavailable")
)

// Location is the canonical result of resolving user input.
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// Resolver resolves user-entered locations against external services.
// The zero value is not usable; construct with NewResolver.
type Resolver struct {
	// Client performs all outbound calls. Its timeout bounds each lookup.
	Client *http.Client
	// ZipBase is the Zippopotam base URL (overridable in tests).
	ZipBase string
	// GeocodeBase is the Open-Meteo geocoding base URL (overridable in tests).
	GeocodeBase string
}

// NewResolver returns a Resolver against the production endpoints.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		Client:      &http.Client{Timeout: timeout},
		ZipBase:     defaultZipBase,
		GeocodeBase: defaultGeocodeBase,
	}
}

// Resolve runs the strategy chain for input. See the package comment for
// ordering. It returns ErrLocationNotFound or ErrGeocodingUnavailable when
// the final free-text strategy fails.
func (r *Resolver) Resolve(ctx context.Context, input string) (Location, error) {
	input = strings.TrimSpace(input)

	if lat, lon, ok := parseLatLon(input); ok {
		name, found := r.reverseGeocode(ctx, lat, lon)
		if !found {
			name = fmt.Sprintf("%.4f,%.4f", lat, lon)
		}
		return Location{Name: name, Lat: lat, Lon: lon}, nil
	}

	if isUSZip(input) {
		if loc, ok := r.lookupZip(ctx, input); ok {
			return loc, nil
		}
		// fall through to free-text search
	}

	return r.searchGeocode(ctx, input)
}

// parseLatLon parses "<float>,<float>" into latitude and longitude.
func parseLatLon(s string) (lat, lon float64, ok bool) {
	a, b, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// isUSZip reports whether s is exactly five ASCII digits.
func isUSZip(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// lookupZip queries Zippopotam for a US postal code. It never surfaces an
// error; any failure (transport, non-200, malformed body) reports ok=false
// so the caller can fall through to free-text geocoding.
func (r *Resolver) lookupZip(ctx context.Context, zip string) (Location, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ZipBase+"/us/"+zip, nil)
	if err != nil {
		return Location{}, false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return Location{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, false
	}

	var body struct {
		Places []struct {
			PlaceName string `json:"place name"`
			State     string `json:"state abbreviation"`
			Latitude  string `json:"latitude"`
			Longitude string `json:"longitude"`
		} `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Places) == 0 {
		return Location{}, false
	}

	p := body.Places[0]
	lat, err1 := strconv.ParseFloat(p.Latitude, 64)
	lon, err2 := strconv.ParseFloat(p.Longitude, 64)
	if err1 != nil || err2 != nil {
		return Location{}, false
	}
	return Location{
		Name: fmt.Sprintf("%s, %s %s", p.PlaceName, p.State, zip),
		Lat:  lat,
		Lon:  lon,
	}, true
}

// geocodeResult is the slice element shape shared by the Open-Meteo search
// and reverse endpoints.
type geocodeResult struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// searchGeocode submits input to the geocoding search endpoint requesting
// the single best match.
func (r *Resolver) searchGeocode(ctx context.Context, input string) (Location, error) {
	q := url.Values{}
	q.Set("name", input)
	q.Set("count", "1")
	q.Set("language", "en")

	u := r.GeocodeBase + "/v1/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: status %d", ErrGeocodingUnavailable, resp.StatusCode)
	}

	var body struct {
		Results []geocodeResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	if len(body.Results) == 0 {
		return Location{}, ErrLocationNotFound
	}

	top := body.Results[0]
	return Location{
		Name: joinNameParts(top.Name, top.Admin1, top.Country),
		Lat:  top.Latitude,
		Lon:  top.Longitude,
	}, nil
}

// reverseGeocode asks the reverse endpoint for the nearest named place.
// It reports found=false on any error or empty result and never fails.
func (r *Resolver) reverseGeocode(ctx context.Context, lat, lon float64) (string, bool) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("count", "1")

	u := r.GeocodeBase + "/v1/reverse?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var body struct {
		Results []geocodeResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Results) == 0 {
		return "", false
	}
	top := body.Results[0]
	return joinNameParts(top.Name, top.Admin1, top.Country), true
}

// joinNameParts comma-joins the non-empty parts of a place name.
func joinNameParts(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
