// Collection HTTP handlers: vehicle reads and bulk transfer.
//
//   - GET  /collections/{id}/vehicles       (weak ETag)
//   - GET  /vehicles/{id}
//   - GET  /collections/{id}/export         (?format=csv|json|zip)
//   - POST /collections/{id}/import         (multipart "file" or raw body)
//   - POST /collections/{id}/import/match   (filename suggestions, nothing written)
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/http/middleware"
	"github.com/tbourn/go-garage-backend/internal/services"
	"github.com/tbourn/go-garage-backend/internal/transfer"
)

// multipartOverhead is allowed on top of MaxImportBytes for form framing.
const multipartOverhead = 1 << 20

// ListVehiclesResponse wraps a collection's vehicles.
type ListVehiclesResponse struct {
	Vehicles []domain.Vehicle `json:"vehicles"`
}

// ImportResponse reports what an import changed.
type ImportResponse struct {
	Format  transfer.Format     `json:"format"  example:"csv"`
	Created int                 `json:"created" example:"3"`
	Updated int                 `json:"updated" example:"1"`
	Skipped []transfer.RowError `json:"skipped"`
}

// MatchRequest lists uploaded filenames and, optionally, the titles they may
// belong to (maintenance records, documents). Without titles the collection's
// vehicle names are the candidates.
type MatchRequest struct {
	Filenames []string `json:"filenames" binding:"required,min=1,max=500" example:"1967-Ford-Mustang-Oil Change-2.pdf"`
	Titles    []string `json:"titles,omitempty"`
}

// MatchResponse carries one suggestion per filename, in request order.
type MatchResponse struct {
	Matches []transfer.FileMatch `json:"matches"`
}

var unsafeFilenameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportFilename is "<collection>-vehicles-YYYY-MM-DD.<ext>".
func exportFilename(collectionID string, f transfer.Format, now time.Time) string {
	base := strings.Trim(unsafeFilenameRE.ReplaceAllString(collectionID, "-"), "-.")
	if base == "" {
		base = "collection"
	}
	return fmt.Sprintf("%s-vehicles-%s.%s", base, now.Format("2006-01-02"), f)
}

// ListVehicles godoc
// @ID          listVehicles
// @Summary     List vehicles of a collection
// @Tags        Collections
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string  true   "Collection ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ListVehiclesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Collection not found"
// @Router      /collections/{id}/vehicles [get]
func (h *Handlers) ListVehicles(c *gin.Context) {
	ctx := c.Request.Context()
	uid, collectionID := middleware.UserID(c), c.Param("id")

	vehicles, err := h.d.Vehicles.List(ctx, uid, collectionID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if count, latest, err := h.d.Vehicles.Stats(ctx, uid, collectionID); err == nil {
		if notModified(c, weakETag("vehicles", collectionID, count, latest)) {
			return
		}
	}
	ok(c, http.StatusOK, ListVehiclesResponse{Vehicles: vehicles})
}

// GetVehicle godoc
// @ID          getVehicle
// @Summary     Get a vehicle
// @Tags        Collections
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Vehicle ID"  format(uuid)
//
// @Success     200  {object}  domain.Vehicle
// @Failure     404  {object}  handlers.ErrorResponse  "Vehicle not found"
// @Router      /vehicles/{id} [get]
func (h *Handlers) GetVehicle(c *gin.Context) {
	v, err := h.d.Vehicles.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, v)
}

// ExportCollection godoc
// @ID          exportCollection
// @Summary     Export a collection
// @Description Downloads every vehicle as CSV, JSON, or a ZIP holding both. Sale details are folded
// @Description into the CSV notes column ("SOLD 2024-03-15 $45,000 ...") so the file imports back unchanged.
// @Tags        Collections
// @Produce     text/csv
// @Produce     application/json
// @Produce     application/zip
// @Security    BearerAuth
//
// @Param       id      path   string  true   "Collection ID"
// @Param       format  query  string  false  "csv, json or zip"  default(csv)
//
// @Success     200  {file}    file
// @Header      200  {string}  Content-Disposition  "attachment; filename=..."
// @Failure     400  {object}  handlers.ErrorResponse  "Unsupported format"
// @Failure     404  {object}  handlers.ErrorResponse  "Collection not found"
// @Router      /collections/{id}/export [get]
func (h *Handlers) ExportCollection(c *gin.Context) {
	f, err := transfer.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedFormat, "format must be csv, json or zip")
		return
	}
	collectionID := c.Param("id")

	// Buffered so a failure halfway through still gets a proper error status.
	var buf bytes.Buffer
	if err := h.d.Transfer.Export(c.Request.Context(), middleware.UserID(c), collectionID, f, &buf); err != nil {
		failService(c, err, ErrCodeExportFailed)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": exportFilename(collectionID, f, time.Now()),
	}))
	c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
}

// ImportCollection godoc
// @ID          importCollection
// @Summary     Import vehicles into a collection
// @Description Accepts a multipart "file" field or the raw file as the body. The format comes from the
// @Description format parameter, else the file extension, else CSV. Rows matching an existing vehicle by
// @Description VIN, or by year, make and model, update it; the rest are created. The collection is
// @Description created when it does not exist yet.
// @Tags        Collections
// @Accept      multipart/form-data
// @Accept      text/csv
// @Accept      application/json
// @Accept      application/zip
// @Produce     json
// @Security    BearerAuth
//
// @Param       id        path      string  true   "Collection ID"
// @Param       format    query     string  false  "csv, json or zip"
// @Param       filename  query     string  false  "Original filename for raw bodies"
// @Param       file      formData  file    false  "File to import"
//
// @Success     200  {object}  handlers.ImportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid or unsupported file"
// @Failure     404  {object}  handlers.ErrorResponse  "Collection belongs to someone else"
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Router      /collections/{id}/import [post]
func (h *Handlers) ImportCollection(c *gin.Context) {
	format := c.Query("format")
	filename := c.Query("filename")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, transfer.MaxImportBytes+multipartOverhead)
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		data, filename, err = readFormFile(c, filename)
		if format == "" {
			format = c.PostForm("format")
		}
	} else {
		data, err = io.ReadAll(io.LimitReader(c.Request.Body, transfer.MaxImportBytes+1))
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, services.ErrImportTooLarge.Error())
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read upload")
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is empty")
		return
	}

	rep, err := h.d.Transfer.Import(c.Request.Context(), middleware.UserID(c), c.Param("id"), format, filename, data)
	if err != nil {
		failService(c, err, ErrCodeImportFailed)
		return
	}
	ok(c, http.StatusOK, ImportResponse{Format: rep.Format, Created: rep.Created, Updated: rep.Updated, Skipped: rep.Skipped})
}

// readFormFile returns the "file" part and its filename, preferring an
// explicit filename over the uploaded one.
func readFormFile(c *gin.Context, filename string) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, transfer.MaxImportBytes+1))
	if filename == "" {
		filename = fh.Filename
	}
	return data, filename, err
}

// MatchImportFiles godoc
// @ID          matchImportFiles
// @Summary     Suggest targets for uploaded files
// @Description Parses Year-Make-Model-Title filenames and fuzzy-matches them against titles or vehicle
// @Description names. Suggestions are for the client to confirm; nothing is stored.
// @Tags        Collections
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                  true  "Collection ID"
// @Param       body  body  handlers.MatchRequest   true  "Filenames and candidate titles"
//
// @Success     200  {object}  handlers.MatchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Collection not found"
// @Router      /collections/{id}/import/match [post]
func (h *Handlers) MatchImportFiles(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "filenames required (1-500)")
		return
	}
	matches, err := h.d.Transfer.Match(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Filenames, req.Titles)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, MatchResponse{Matches: matches})
}
