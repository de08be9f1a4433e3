// Weather request HTTP handlers.
//
// This file exposes REST endpoints for the stored request resource:
//   - POST   /api/requests        (create: resolve + fetch + insert)
//   - GET    /api/requests        (list, newest first, ETag support)
//   - GET    /api/requests/{id}   (fetch one)
//   - PUT    /api/requests/{id}   (partial update)
//   - DELETE /api/requests/{id}   (delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-weather-backend/internal/domain"
	"github.com/tbourn/go-weather-backend/internal/geo"
	"github.com/tbourn/go-weather-backend/internal/meteo"
	"github.com/tbourn/go-weather-backend/internal/services"
	"github.com/tbourn/go-weather-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RequestService defines the stored-request lifecycle operations consumed by
// HTTP handlers. Implementations should be safe for concurrent use and must
// honor the provided context for cancellation and timeouts.
type RequestService interface {
	// Create validates, resolves, fetches, and inserts a new record.
	Create(ctx context.Context, in services.CreateInput) (*domain.WeatherRequest, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]domain.WeatherRequest, error)
	// Get returns one record by id.
	Get(ctx context.Context, id uint) (*domain.WeatherRequest, error)
	// Update merges a partial patch over an existing record.
	Update(ctx context.Context, id uint, in services.UpdateInput) (*domain.WeatherRequest, error)
	// Delete removes a record by id.
	Delete(ctx context.Context, id uint) error
	// ExportRecords returns all records ordered by ascending id.
	ExportRecords(ctx context.Context) ([]domain.WeatherRequest, error)
	// Stats returns the stored count and latest update time (ETag input).
	Stats(ctx context.Context) (int64, *time.Time, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for stored requests, enrichment
// lookups, and exports. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	reqSvc   RequestService
	enricher Enricher
}

// New constructs and returns a Handlers instance bound to the given services.
func New(reqSvc RequestService, enricher Enricher) *Handlers {
	return &Handlers{reqSvc: reqSvc, enricher: enricher}
}

//
// DTOs
//

// CreateRequestBody is the JSON payload for creating a stored request.
type CreateRequestBody struct {
	// Location is the user-entered location: name, landmark, "lat,lon", or postal code.
	Location string `json:"location"  binding:"required" example:"10001"`
	// DateFrom is the inclusive range start (YYYY-MM-DD).
	DateFrom string `json:"date_from" binding:"required" example:"2024-01-01"`
	// DateTo is the inclusive range end (YYYY-MM-DD).
	DateTo string `json:"date_to"   binding:"required" example:"2024-01-03"`
}

// UpdateRequestBody is the JSON payload for updating a stored request.
// Absent fields retain their stored values.
type UpdateRequestBody struct {
	Location *string `json:"location"`
	DateFrom *string `json:"date_from"`
	DateTo   *string `json:"date_to"`
	Notes    *string `json:"notes"`
}

// RequestOut is the API representation of a stored request, with the
// weather payload decoded from its storage blob.
type RequestOut struct {
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

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Deleted uint `json:"deleted"`
}

//
// Helpers
//

// toRequestOut decodes the stored weather blob into the API shape.
func toRequestOut(rec *domain.WeatherRequest) (RequestOut, error) {
	w, err := rec.Weather()
	if err != nil {
		return RequestOut{}, err
	}
	return RequestOut{
		ID:            rec.ID,
		CreatedAt:     rec.CreatedAt,
		LocationInput: rec.LocationInput,
		ResolvedName:  rec.ResolvedName,
		Latitude:      rec.Latitude,
		Longitude:     rec.Longitude,
		DateFrom:      rec.DateFrom,
		DateTo:        rec.DateTo,
		Provider:      rec.Provider,
		Weather:       w,
		Notes:         rec.Notes,
	}, nil
}

// idParam parses the :id path segment.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// failFromErr maps service and upstream errors onto the HTTP taxonomy:
// validation → 400, unknown id / unresolvable location → 404, failed
// critical outbound calls → 502, everything else → 500.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidDateRange):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrRequestNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found")
	case errors.Is(err, geo.ErrLocationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "location not found")
	case errors.Is(err, geo.ErrGeocodingUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeUpstream, "geocoding failed")
	case meteo.IsUpstreamError(err):
		fail(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateRequest godoc
// @ID          createRequest
// @Summary     Create a stored weather request
// @Description Resolves the location, fetches weather for the range, persists the record, and returns it.
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateRequestBody  true  "Create payload"
//
// @Success     201  {object}  handlers.RequestOut
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid body or date range"
// @Failure     404  {object}  handlers.ErrorResponse  "Location not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream unavailable"
// @Router      /requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	var req CreateRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.reqSvc.Create(c.Request.Context(), services.CreateInput{
		Location: req.Location,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}

	out, err := toRequestOut(rec)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, out)
}

// ListRequests godoc
// @ID          listRequests
// @Summary     List stored requests (newest first)
// @Description Returns up to limit records. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Requests
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       limit          query   int     false "Max records"  minimum(1) maximum(500) default(50)
//
// @Success     200  {array}   handlers.RequestOut
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	ctx := c.Request.Context()
	limit := utils.AtoiDefault(c.Query("limit"), services.DefaultListLimit)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.reqSvc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"requests:%d:%d:%d"`, count, ts, limit)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	recs, err := h.reqSvc.List(ctx, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	out := make([]RequestOut, 0, len(recs))
	for i := range recs {
		o, err := toRequestOut(&recs[i])
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		out = append(out, o)
	}
	ok(c, http.StatusOK, out)
}

// GetRequest godoc
// @ID          getRequest
// @Summary     Fetch one stored request
// @Tags        Requests
// @Produce     json
//
// @Param       id  path  int  true  "Request ID"
//
// @Success     200  {object}  handlers.RequestOut
// @Failure     400  {object}  handlers.ErrorResponse "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Router      /requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}

	rec, err := h.reqSvc.Get(c.Request.Context(), id)
	if err != nil {
		failFromErr(c, err)
		return
	}

	out, err := toRequestOut(rec)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// UpdateRequest godoc
// @ID          updateRequest
// @Summary     Update a stored request
// @Description Merges the supplied fields over the record. Location/date changes re-resolve and re-fetch weather; notes update independently.
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       id    path  int                          true  "Request ID"
// @Param       body  body  handlers.UpdateRequestBody   true  "Patch payload"
//
// @Success     200  {object}  handlers.RequestOut
// @Failure     400  {object}  handlers.ErrorResponse "Invalid body or resulting date range"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     502  {object}  handlers.ErrorResponse "Upstream unavailable"
// @Router      /requests/{id} [put]
func (h *Handlers) UpdateRequest(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}

	var req UpdateRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.reqSvc.Update(c.Request.Context(), id, services.UpdateInput{
		Location: req.Location,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Notes:    req.Notes,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}

	out, err := toRequestOut(rec)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, out)
}

// DeleteRequest godoc
// @ID          deleteRequest
// @Summary     Delete a stored request
// @Tags        Requests
// @Produce     json
//
// @Param       id  path  int  true  "Request ID"
//
// @Success     200  {object}  handlers.DeleteResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Router      /requests/{id} [delete]
func (h *Handlers) DeleteRequest(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}

	if err := h.reqSvc.Delete(c.Request.Context(), id); err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, DeleteResponse{Deleted: id})
}
