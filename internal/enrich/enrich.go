// Package enrich provides the optional place lookups: encyclopedia summary,
// video search, and a map link. The three operations are independent and
// stateless. Video and map lookups degrade gracefully and never fail; the
// summary lookup reports absence with ErrNoSummary so the handler can map it
// to 404.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultWikiBase    = "https://en.wikipedia.org"
	defaultYouTubeBase = "https://www.googleapis.com"

	youtubeWatchURL  = "https://www.youtube.com/watch?v="
	youtubeSearchURL = "https://www.youtube.com/results?search_query="

	maxVideoResults = 5
)

// ErrNoSummary indicates the summary service failed or had no page for the
// requested place.
var ErrNoSummary = errors.New("no summary found")

// Summary is an encyclopedia extract for a place.
type Summary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
}

// VideoResult is one entry of an API-backed video lookup.
type VideoResult struct {
	Title   string `json:"title"`
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

// VideoLookup is the result of a video search. Mode is "api" with Results
// populated when the provider credential worked, or "link" with SearchURL
// pointing at a generic search page otherwise.
type VideoLookup struct {
	Mode      string        `json:"mode"`
	Results   []VideoResult `json:"results,omitempty"`
	SearchURL string        `json:"search_url,omitempty"`
}

// MapLink is a static-map URL or an interactive map deep link.
type MapLink struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// Client performs the enrichment lookups. Credentials are optional.
type Client struct {
	HTTP          *http.Client
	WikiBase      string // overridable in tests
	YouTubeBase   string // overridable in tests
	YouTubeKey    string
	StaticMapsKey string
}

// NewClient returns a Client against the production endpoints.
func NewClient(timeout time.Duration, youtubeKey, staticMapsKey string) *Client {
	return &Client{
		HTTP:          &http.Client{Timeout: timeout},
		WikiBase:      defaultWikiBase,
		YouTubeBase:   defaultYouTubeBase,
		YouTubeKey:    youtubeKey,
		StaticMapsKey: staticMapsKey,
	}
}

// Summary fetches the encyclopedia summary for place. Whitespace in the
// place name is collapsed to underscores to form the page title.
func (c *Client) Summary(ctx context.Context, place string) (*Summary, error) {
	page := strings.Join(strings.Fields(place), "_")

	u := c.WikiBase + "/api/rest_v1/page/summary/" + url.PathEscape(page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, ErrNoSummary
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, ErrNoSummary
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrNoSummary
	}

	var body struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrNoSummary
	}
	return &Summary{
		Title:   body.Title,
		Extract: body.Extract,
		URL:     body.ContentURLs.Desktop.Page,
	}, nil
}

// VideoSearch looks up videos for place. With a configured credential it
// queries the provider API for up to five results; on a missing credential
// or any call failure it degrades to a search-page link. Never fails.
func (c *Client) VideoSearch(ctx context.Context, place string) VideoLookup {
	if c.YouTubeKey != "" {
		if results, ok := c.videoAPISearch(ctx, place); ok {
			return VideoLookup{Mode: "api", Results: results}
		}
	}
	return VideoLookup{
		Mode:      "link",
		SearchURL: youtubeSearchURL + url.QueryEscape(place),
	}
}

func (c *Client) videoAPISearch(ctx context.Context, place string) ([]VideoResult, bool) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", place)
	q.Set("type", "video")
	q.Set("maxResults", fmt.Sprintf("%d", maxVideoResults))
	q.Set("key", c.YouTubeKey)

	u := c.YouTubeBase + "/youtube/v3/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var body struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false
	}

	results := make([]VideoResult, 0, len(body.Items))
	for _, it := range body.Items {
		results = append(results, VideoResult{
			Title:   it.Snippet.Title,
			VideoID: it.ID.VideoID,
			URL:     youtubeWatchURL + it.ID.VideoID,
		})
	}
	return results, true
}

// MapImage returns a rendered static-map URL when a credential is configured,
// or an interactive OpenStreetMap deep link otherwise. Never fails and makes
// no network call.
func (c *Client) MapImage(lat, lon float64) MapLink {
	if c.StaticMapsKey != "" {
		u := fmt.Sprintf(
			"https://maps.googleapis.com/maps/api/staticmap?center=%[1]v,%[2]v&zoom=10&size=600x300&markers=color:red|%[1]v,%[2]v&key=%[3]s",
			lat, lon, c.StaticMapsKey,
		)
		return MapLink{Provider: "google_static_maps", URL: u}
	}
	return MapLink{
		Provider: "openstreetmap",
		URL:      fmt.Sprintf("https://www.openstreetmap.org/?mlat=%[1]v&mlon=%[2]v#map=10/%[1]v/%[2]v", lat, lon),
	}
}
