// Package services – RequestService
//
// This file implements the RequestService, which owns the lifecycle of
// stored weather requests. Create and Update validate the date range,
// coordinate the location resolver and weather fetcher, and persist the
// result atomically: nothing is written unless both outbound stages succeed.
// List, Get, and Delete are thin pass-throughs to the repository with
// service-level errors for predictable cases so handlers can map them to
// HTTP results consistently.
//
// Observability: the methods that fan out to upstream providers (Create,
// Update) and the list path are OpenTelemetry-instrumented; spans carry the
// user input and record identifiers.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-weather-backend/internal/domain"
	"github.com/tbourn/go-weather-backend/internal/geo"
)

const (
	// dateLayout is the ISO calendar-date format used on the wire and in storage.
	dateLayout = "2006-01-02"

	// DefaultListLimit and MaxListLimit bound the list operation.
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// LocationResolver resolves free-form user input to a named coordinate pair.
// Implementations must honor the provided context.
type LocationResolver interface {
	Resolve(ctx context.Context, input string) (geo.Location, error)
}

// WeatherFetcher retrieves the merged daily weather payload for a range.
// Implementations must honor the provided context.
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64, from, to time.Time) (domain.WeatherPayload, error)
}

// RequestRepo defines the repository contract required by RequestService.
type RequestRepo interface {
	CreateRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error
	ListRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.WeatherRequest, error)
	ListRequestsAsc(ctx context.Context, db *gorm.DB) ([]domain.WeatherRequest, error)
	GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.WeatherRequest, error)
	SaveRequest(ctx context.Context, db *gorm.DB, rec *domain.WeatherRequest) error
	DeleteRequest(ctx context.Context, db *gorm.DB, id uint) error
	RequestsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// RequestService provides create/list/get/update/delete over stored weather
// requests plus the id-ascending enumeration used by exports.
type RequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the request repository used by this service.
	Repo RequestRepo
	// Resolver turns user input into coordinates.
	Resolver LocationResolver
	// Fetcher retrieves weather payloads.
	Fetcher WeatherFetcher

	// MaxRangeDays caps the inclusive day span per request (default 31).
	MaxRangeDays int
}

// NewRequestService constructs a RequestService with the default range cap.
func NewRequestService(db *gorm.DB, repo RequestRepo, resolver LocationResolver, fetcher WeatherFetcher) *RequestService {
	return &RequestService{
		DB:           db,
		Repo:         repo,
		Resolver:     resolver,
		Fetcher:      fetcher,
		MaxRangeDays: 31,
	}
}

// CreateInput is the payload for creating a stored request.
type CreateInput struct {
	Location string
	DateFrom string
	DateTo   string
}

// UpdateInput is a partial patch; nil fields retain the stored value.
type UpdateInput struct {
	Location *string
	DateFrom *string
	DateTo   *string
	Notes    *string
}

// Create validates the date range, resolves the location, fetches weather,
// and inserts the record. Nothing is persisted when any stage fails.
func (s *RequestService) Create(ctx context.Context, in CreateInput) (*domain.WeatherRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("request.location", in.Location),
			attribute.String("request.date_from", in.DateFrom),
			attribute.String("request.date_to", in.DateTo),
		),
	)
	defer span.End()

	from, to, err := s.parseRange(in.DateFrom, in.DateTo)
	if err != nil {
		return nil, err
	}

	loc, err := s.Resolver.Resolve(ctx, in.Location)
	if err != nil {
		return nil, err
	}

	payload, err := s.Fetcher.Fetch(ctx, loc.Lat, loc.Lon, from, to)
	if err != nil {
		return nil, err
	}

	rec := &domain.WeatherRequest{
		LocationInput: in.Location,
		ResolvedName:  optString(loc.Name),
		Latitude:      loc.Lat,
		Longitude:     loc.Lon,
		DateFrom:      in.DateFrom,
		DateTo:        in.DateTo,
		Provider:      domain.DefaultProvider,
	}
	if err := rec.SetWeather(payload); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateRequest(ctx, s.DB, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns up to limit records, newest first. Non-positive limits fall
// back to the default; limits above the maximum are clamped.
func (s *RequestService) List(ctx context.Context, limit int) ([]domain.WeatherRequest, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	return s.Repo.ListRequests(ctx, s.DB, limit)
}

// Get returns one record by id, or ErrRequestNotFound.
func (s *RequestService) Get(ctx context.Context, id uint) (*domain.WeatherRequest, error) {
	rec, err := s.Repo.GetRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Update merges the patch over the stored record and re-validates the
// resulting range. When the patch carries location or date fields the
// resolver and fetcher re-run and the resolved fields are overwritten.
// Field presence decides, even if the supplied value equals the stored one.
// Notes, when supplied, are overwritten independently.
func (s *RequestService) Update(ctx context.Context, id uint, in UpdateInput) (*domain.WeatherRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.Int("request.id", int(id))),
	)
	defer span.End()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newLoc := rec.LocationInput
	if in.Location != nil {
		newLoc = *in.Location
	}
	newFrom := rec.DateFrom
	if in.DateFrom != nil {
		newFrom = *in.DateFrom
	}
	newTo := rec.DateTo
	if in.DateTo != nil {
		newTo = *in.DateTo
	}

	from, to, err := s.parseRange(newFrom, newTo)
	if err != nil {
		return nil, err
	}

	if in.Location != nil || in.DateFrom != nil || in.DateTo != nil {
		loc, err := s.Resolver.Resolve(ctx, newLoc)
		if err != nil {
			return nil, err
		}
		payload, err := s.Fetcher.Fetch(ctx, loc.Lat, loc.Lon, from, to)
		if err != nil {
			return nil, err
		}

		rec.LocationInput = newLoc
		rec.ResolvedName = optString(loc.Name)
		rec.Latitude = loc.Lat
		rec.Longitude = loc.Lon
		rec.DateFrom = newFrom
		rec.DateTo = newTo
		if err := rec.SetWeather(payload); err != nil {
			return nil, err
		}
	}

	if in.Notes != nil {
		rec.Notes = in.Notes
	}

	if err := s.Repo.SaveRequest(ctx, s.DB, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record by id. Deleting an absent id (including a second
// delete of the same id) returns ErrRequestNotFound.
func (s *RequestService) Delete(ctx context.Context, id uint) error {
	err := s.Repo.DeleteRequest(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRequestNotFound
	}
	return err
}

// ExportRecords returns every stored record ordered by ascending id.
func (s *RequestService) ExportRecords(ctx context.Context) ([]domain.WeatherRequest, error) {
	return s.Repo.ListRequestsAsc(ctx, s.DB)
}

// Stats returns the total stored-request count and the latest UpdatedAt
// among them (nil when empty). The HTTP layer derives the list ETag from
// these values.
func (s *RequestService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.RequestsStats(ctx, s.DB)
}

// parseRange parses and validates both bounds: valid ISO dates, from <= to,
// inclusive span within MaxRangeDays.
func (s *RequestService) parseRange(dfrom, dto string) (from, to time.Time, err error) {
	from, err = time.ParseInLocation(dateLayout, dfrom, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	to, err = time.ParseInLocation(dateLayout, dto, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}

	maxDays := s.MaxRangeDays
	if maxDays <= 0 {
		maxDays = 31
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxDays {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to, nil
}

// optString returns nil for the empty string, preserving NULL semantics for
// optional columns.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
