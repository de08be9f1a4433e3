package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-weather-backend/internal/domain"
	"github.com/tbourn/go-weather-backend/internal/enrich"
	"github.com/tbourn/go-weather-backend/internal/geo"
	"github.com/tbourn/go-weather-backend/internal/meteo"
	"github.com/tbourn/go-weather-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// ---------- stub services ----------

// stubReqSvc implements RequestService with canned results per method.
type stubReqSvc struct {
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
	statsErr  error

	records    []domain.WeatherRequest
	statsCount int64
	statsMax   *time.Time
}

func sampleStored(id uint) domain.WeatherRequest {
	name := "Berlin, Germany"
	rec := domain.WeatherRequest{
		ID:            id,
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		LocationInput: "Berlin",
		ResolvedName:  &name,
		Latitude:      52.52,
		Longitude:     13.4,
		DateFrom:      "2024-05-01",
		DateTo:        "2024-05-03",
		Provider:      domain.DefaultProvider,
	}
	tmin, tmax := 5.0, 18.0
	_ = rec.SetWeather(domain.WeatherPayload{
		Latitude: 52.52, Longitude: 13.4,
		Daily: []domain.DailyEntry{{Date: "2024-05-01", TminC: &tmin, TmaxC: &tmax}},
	})
	return rec
}

func (s *stubReqSvc) Create(ctx context.Context, in services.CreateInput) (*domain.WeatherRequest, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	rec := sampleStored(1)
	rec.LocationInput = in.Location
	rec.DateFrom = in.DateFrom
	rec.DateTo = in.DateTo
	return &rec, nil
}

func (s *stubReqSvc) List(ctx context.Context, limit int) ([]domain.WeatherRequest, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func (s *stubReqSvc) Get(ctx context.Context, id uint) (*domain.WeatherRequest, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec := sampleStored(id)
	return &rec, nil
}

func (s *stubReqSvc) Update(ctx context.Context, id uint, in services.UpdateInput) (*domain.WeatherRequest, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	rec := sampleStored(id)
	if in.Notes != nil {
		rec.Notes = in.Notes
	}
	return &rec, nil
}

func (s *stubReqSvc) Delete(ctx context.Context, id uint) error { return s.deleteErr }

func (s *stubReqSvc) ExportRecords(ctx context.Context) ([]domain.WeatherRequest, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *stubReqSvc) Stats(ctx context.Context) (int64, *time.Time, error) {
	if s.statsErr != nil {
		return 0, nil, s.statsErr
	}
	return s.statsCount, s.statsMax, nil
}

// stubEnricher implements Enricher for handler tests.
type stubEnricher struct {
	summaryErr error
}

func (s *stubEnricher) Summary(ctx context.Context, place string) (*enrich.Summary, error) {
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return &enrich.Summary{Title: place, Extract: "about " + place, URL: "https://example.org"}, nil
}

func (s *stubEnricher) VideoSearch(ctx context.Context, place string) enrich.VideoLookup {
	return enrich.VideoLookup{Mode: "link", SearchURL: "https://www.youtube.com/results?search_query=" + place}
}

func (s *stubEnricher) MapImage(lat, lon float64) enrich.MapLink {
	return enrich.MapLink{Provider: "openstreetmap", URL: "https://www.openstreetmap.org/"}
}

// ---------- helpers ----------

func newTestRouter(svc RequestService, enr Enricher) *gin.Engine {
	r := gin.New()
	h := New(svc, enr)

	r.POST("/requests", h.CreateRequest)
	r.GET("/requests", h.ListRequests)
	r.GET("/requests/:id", h.GetRequest)
	r.PUT("/requests/:id", h.UpdateRequest)
	r.DELETE("/requests/:id", h.DeleteRequest)
	r.GET("/info", h.PlaceInfo)
	r.GET("/media/youtube", h.PlaceVideos)
	r.GET("/map", h.PlaceMap)
	r.GET("/export", h.ExportRequests)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return e
}

// ---------- create ----------

func TestCreateRequest_Created(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})

	w := doJSON(t, r, http.MethodPost, "/requests", CreateRequestBody{
		Location: "Berlin", DateFrom: "2024-05-01", DateTo: "2024-05-03",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var out RequestOut
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != 1 || out.LocationInput != "Berlin" || len(out.Weather.Daily) != 1 {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestCreateRequest_InvalidJSON(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte("{oops")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestCreateRequest_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid range", services.ErrInvalidDateRange, http.StatusBadRequest, ErrCodeBadRequest},
		{"location not found", geo.ErrLocationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"geocoding down", geo.ErrGeocodingUnavailable, http.StatusBadGateway, ErrCodeUpstream},
		{"weather backend down", &meteo.UpstreamError{Segment: meteo.SegmentArchive, Err: errors.New("boom")}, http.StatusBadGateway, ErrCodeUpstream},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubReqSvc{createErr: tc.err}, &stubEnricher{})
			w := doJSON(t, r, http.MethodPost, "/requests", CreateRequestBody{
				Location: "x", DateFrom: "2024-05-01", DateTo: "2024-05-03",
			})
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if e := decodeErr(t, w); e.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", e.Code, tc.wantCode)
			}
		})
	}
}

// ---------- read ----------

func TestGetRequest_OK(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})

	w := doJSON(t, r, http.MethodGet, "/requests/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out RequestOut
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != 7 {
		t.Fatalf("id = %d", out.ID)
	}
}

func TestGetRequest_BadID(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})
	w := doJSON(t, r, http.MethodGet, "/requests/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	r := newTestRouter(&stubReqSvc{getErr: services.ErrRequestNotFound}, &stubEnricher{})
	w := doJSON(t, r, http.MethodGet, "/requests/404", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListRequests_OK(t *testing.T) {
	svc := &stubReqSvc{records: []domain.WeatherRequest{sampleStored(2), sampleStored(1)}}
	r := newTestRouter(svc, &stubEnricher{})

	w := doJSON(t, r, http.MethodGet, "/requests?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out []RequestOut
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].ID != 2 {
		t.Fatalf("unexpected rows: %+v", out)
	}
}

func TestListRequests_ETagRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	svc := &stubReqSvc{
		records:    []domain.WeatherRequest{sampleStored(2), sampleStored(1)},
		statsCount: 2,
		statsMax:   &ts,
	}
	r := newTestRouter(svc, &stubEnricher{})

	w := doJSON(t, r, http.MethodGet, "/requests?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	want := `W/"requests:2:` + "1714651200" + `:10"`
	if etag != want {
		t.Fatalf("etag = %q, want %q", etag, want)
	}

	req := httptest.NewRequest(http.MethodGet, "/requests?limit=10", nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("304 must have no body, got %q", w2.Body.String())
	}
}

func TestListRequests_StatsFailureStillLists(t *testing.T) {
	svc := &stubReqSvc{
		records:  []domain.WeatherRequest{sampleStored(1)},
		statsErr: errors.New("stats query failed"),
	}
	r := newTestRouter(svc, &stubEnricher{})

	w := doJSON(t, r, http.MethodGet, "/requests?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != "" {
		t.Fatalf("etag must be absent on stats failure, got %q", etag)
	}
	var out []RequestOut
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
}

// ---------- update / delete ----------

func TestUpdateRequest_NotesApplied(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})

	notes := "city trip"
	w := doJSON(t, r, http.MethodPut, "/requests/3", UpdateRequestBody{Notes: &notes})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out RequestOut
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Notes == nil || *out.Notes != notes {
		t.Fatalf("notes not echoed: %+v", out.Notes)
	}
}

func TestUpdateRequest_NotFound(t *testing.T) {
	r := newTestRouter(&stubReqSvc{updateErr: services.ErrRequestNotFound}, &stubEnricher{})
	w := doJSON(t, r, http.MethodPut, "/requests/9", UpdateRequestBody{})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeleteRequest_OKAndNotFound(t *testing.T) {
	r := newTestRouter(&stubReqSvc{}, &stubEnricher{})
	w := doJSON(t, r, http.MethodDelete, "/requests/5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out DeleteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Deleted != 5 {
		t.Fatalf("deleted = %d", out.Deleted)
	}

	r = newTestRouter(&stubReqSvc{deleteErr: services.ErrRequestNotFound}, &stubEnricher{})
	if w := doJSON(t, r, http.MethodDelete, "/requests/5", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
