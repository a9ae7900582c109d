// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics, domain codes name the failed operation.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "collection not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-garage-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"
	ErrCodeTooLarge     = "payload_too_large"

	// Domain-specific:
	ErrCodeChatFailed        = "chat_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeUpdateFailed      = "update_failed"
	ErrCodeDeleteFailed      = "delete_failed"
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeInvalidImport     = "invalid_import"
	ErrCodeImportFailed      = "import_failed"
	ErrCodeExportFailed      = "export_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)

// serviceErrors maps service sentinels to their HTTP status and code. The
// message is the sentinel text, which is written for end users.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrTooLong, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrMissingCollection, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrChatNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrCollectionNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrVehicleNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUnsupportedFormat, http.StatusBadRequest, ErrCodeUnsupportedFormat},
	{services.ErrInvalidImport, http.StatusBadRequest, ErrCodeInvalidImport},
	{services.ErrImportTooLarge, http.StatusRequestEntityTooLarge, ErrCodeTooLarge},
}

// failService writes the envelope for err. Known sentinels keep their own
// status; anything else is a 500 with fallbackCode and a generic message, the
// detail going to the log only.
func failService(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			msg := m.err.Error()
			if errors.Is(err, services.ErrInvalidImport) {
				msg = err.Error()
			}
			fail(c, m.status, m.code, msg)
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, fallbackCode, "internal error")
}
