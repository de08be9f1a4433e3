// Package export renders the stored request collection into JSON, CSV,
// Markdown, or a paginated PDF. All formats enumerate records in ascending
// id order (oldest first) regardless of the store's default descending list
// order; BuildRecords enforces that ordering defensively.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/tbourn/go-weather-backend/internal/domain"
)

// csvHeader is the flattened CSV header row. The weather payload is omitted
// from CSV output.
var csvHeader = []string{
	"id", "created_at", "location_input", "resolved_name",
	"latitude", "longitude", "date_from", "date_to", "provider", "notes",
}

// Record is one export row with the weather payload decoded.
type Record struct {
	ID            uint                  `json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	LocationInput string                `json:"location_input"`
	ResolvedName  *string               `json:"resolved_name"`
	Latitude      float64               `json:"latitude"`
	Longitude     float64               `json:"longitude"`
	DateFrom      string                `json:"date_from"`
	DateTo        string                `json:"date_to"`
	Provider      string                `json:"provider"`
	Weather       domain.WeatherPayload `json:"weather"`
	Notes         *string               `json:"notes"`
}

// BuildRecords decodes the stored payloads and returns export rows sorted by
// ascending id.
func BuildRecords(reqs []domain.WeatherRequest) ([]Record, error) {
	out := make([]Record, 0, len(reqs))
	for i := range reqs {
		r := &reqs[i]
		w, err := r.Weather()
		if err != nil {
			return nil, fmt.Errorf("decode weather payload for request %d: %w", r.ID, err)
		}
		out = append(out, Record{
			ID:            r.ID,
			CreatedAt:     r.CreatedAt,
			LocationInput: r.LocationInput,
			ResolvedName:  r.ResolvedName,
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			DateFrom:      r.DateFrom,
			DateTo:        r.DateTo,
			Provider:      r.Provider,
			Weather:       w,
			Notes:         r.Notes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WriteJSON writes the full record structure, nested weather included.
func WriteJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// WriteCSV writes the flattened header row and one row per record,
// incrementally. The writer flushes per row so the output can stream.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	cw.Flush()

	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CreatedAt.Format(time.RFC3339),
			r.LocationInput,
			derefOr(r.ResolvedName, ""),
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64),
			r.DateFrom,
			r.DateTo,
			r.Provider,
			derefOr(r.Notes, ""),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		cw.Flush()
	}
	return cw.Error()
}

// WriteMarkdown writes one section per record: header line, entered text,
// date range, and a table of the daily values.
func WriteMarkdown(w io.Writer, records []Record) error {
	if _, err := fmt.Fprintf(w, "# WeatherWise Export\n\n"); err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(w, "## Request #%d: %s (%.4f,%.4f)\n",
			r.ID, derefOr(r.ResolvedName, ""), r.Latitude, r.Longitude)
		fmt.Fprintf(w, "- Entered: **%s**\n", r.LocationInput)
		fmt.Fprintf(w, "- Range: **%s → %s**\n\n", r.DateFrom, r.DateTo)
		fmt.Fprintln(w, "| Date | Tmin (°C) | Tmax (°C) | Code |")
		fmt.Fprintln(w, "|---|---:|---:|---:|")
		for _, d := range r.Weather.Daily {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				d.Date, fmtFloat(d.TminC), fmtFloat(d.TmaxC), fmtInt(d.Weathercode))
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func fmtFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func fmtInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
