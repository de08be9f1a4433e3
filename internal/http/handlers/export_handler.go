// Export HTTP handler: streams the full stored collection in the requested
// format. Rendering errors after the header is written cannot be turned into
// a clean error response anymore, so record building happens up front.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-weather-backend/internal/export"
	"github.com/tbourn/go-weather-backend/internal/http/middleware"
)

// exportFormats maps the format query value to its content type and file
// extension.
var exportFormats = map[string]struct {
	contentType string
	ext         string
}{
	"json": {"application/json; charset=utf-8", "json"},
	"csv":  {"text/csv; charset=utf-8", "csv"},
	"md":   {"text/markdown; charset=utf-8", "md"},
	"pdf":  {"application/pdf", "pdf"},
}

// ExportRequests godoc
// @ID          exportRequests
// @Summary     Export all stored requests
// @Description Streams every record, oldest first, as JSON, CSV, Markdown, or PDF.
// @Tags        Export
// @Produce     json
// @Produce     text/csv
// @Produce     text/markdown
// @Produce     application/pdf
//
// @Param       format  query  string  false  "Export format"  Enums(json, csv, md, pdf)  default(json)
//
// @Success     200  {file}    file "Export document"
// @Failure     400  {object}  handlers.ErrorResponse "Unknown format"
// @Failure     500  {object}  handlers.ErrorResponse "Export failed"
// @Router      /export [get]
func (h *Handlers) ExportRequests(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	meta, known := exportFormats[format]
	if !known {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			"format must be one of: json, csv, md, pdf")
		return
	}

	recs, err := h.reqSvc.ExportRecords(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	rows, err := export.BuildRecords(recs)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}

	filename := fmt.Sprintf("weatherwise-%s.%s", time.Now().UTC().Format("20060102"), meta.ext)
	c.Header("Content-Type", meta.contentType)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	switch format {
	case "json":
		err = export.WriteJSON(c.Writer, rows)
	case "csv":
		err = export.WriteCSV(c.Writer, rows)
	case "md":
		err = export.WriteMarkdown(c.Writer, rows)
	case "pdf":
		err = export.WritePDF(c.Writer, rows)
	}
	if err != nil {
		// Headers are already on the wire; log and cut the stream.
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("format", format).Msg("export stream failed")
	}
}
