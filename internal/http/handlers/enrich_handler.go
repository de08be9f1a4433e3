// Enrichment HTTP handlers: encyclopedia summary, video lookup, map link.
//
// These endpoints are read-only, stateless, and independent of the stored
// request table. Summary lookups can legitimately miss (404); video and map
// lookups always succeed by degrading to plain links.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-weather-backend/internal/enrich"
)

// Enricher defines the optional place lookups consumed by HTTP handlers.
type Enricher interface {
	// Summary returns an encyclopedia extract, or enrich.ErrNoSummary.
	Summary(ctx context.Context, place string) (*enrich.Summary, error)
	// VideoSearch returns video results or a degraded search link. Never fails.
	VideoSearch(ctx context.Context, place string) enrich.VideoLookup
	// MapImage returns a static-map URL or an interactive map link. Never fails.
	MapImage(lat, lon float64) enrich.MapLink
}

// PlaceInfo godoc
// @ID          placeInfo
// @Summary     Encyclopedia summary for a place
// @Tags        Enrichment
// @Produce     json
//
// @Param       q  query  string  true  "Place name"
//
// @Success     200  {object}  enrich.Summary
// @Failure     400  {object}  handlers.ErrorResponse "Missing place"
// @Failure     404  {object}  handlers.ErrorResponse "No summary found"
// @Router      /info [get]
func (h *Handlers) PlaceInfo(c *gin.Context) {
	place := strings.TrimSpace(c.Query("q"))
	if place == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q query parameter is required")
		return
	}

	s, err := h.enricher.Summary(c.Request.Context(), place)
	if err != nil {
		if errors.Is(err, enrich.ErrNoSummary) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no summary found for place")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, s)
}

// PlaceVideos godoc
// @ID          placeVideos
// @Summary     Video lookup for a place
// @Description Returns API-backed results when a provider credential is configured, or a search-page link otherwise.
// @Tags        Enrichment
// @Produce     json
//
// @Param       q  query  string  true  "Place name"
//
// @Success     200  {object}  enrich.VideoLookup
// @Failure     400  {object}  handlers.ErrorResponse "Missing place"
// @Router      /media/youtube [get]
func (h *Handlers) PlaceVideos(c *gin.Context) {
	place := strings.TrimSpace(c.Query("q"))
	if place == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q query parameter is required")
		return
	}
	ok(c, http.StatusOK, h.enricher.VideoSearch(c.Request.Context(), place))
}

// PlaceMap godoc
// @ID          placeMap
// @Summary     Map link for coordinates
// @Tags        Enrichment
// @Produce     json
//
// @Param       lat  query  number  true  "Latitude"
// @Param       lon  query  number  true  "Longitude"
//
// @Success     200  {object}  enrich.MapLink
// @Failure     400  {object}  handlers.ErrorResponse "Missing or invalid coordinates"
// @Router      /map [get]
func (h *Handlers) PlaceMap(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lon query parameters are required")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "coordinates out of range")
		return
	}
	ok(c, http.StatusOK, h.enricher.MapImage(lat, lon))
}
