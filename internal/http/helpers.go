package http

import (
	"errors"
	"net/http"
	"strings"

	"hoursboard/internal/core"
	"hoursboard/internal/services"
)

// errorStatus maps pipeline errors to a status code and a message safe to show.
func errorStatus(err error) (int, string) {
	var (
		tooBig   *http.MaxBytesError
		schema   *core.SchemaError
		column   *core.ColumnNotFoundError
		paramErr *ParamError
	)
	switch {
	case errors.Is(err, errNoTable):
		return http.StatusNotFound, "Upload a spreadsheet first"
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "File exceeds the upload limit"
	case errors.As(err, &schema):
		return http.StatusUnprocessableEntity, "The spreadsheet is " + schema.Error()
	case errors.Is(err, core.ErrEmptyFile):
		return http.StatusUnprocessableEntity, "The spreadsheet has no data rows"
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "Unsupported file type, upload .xlsx, .xls or .csv"
	case errors.As(err, &column):
		return http.StatusBadRequest, column.Error()
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, paramErr.Error()
	case errors.Is(err, core.ErrUnknownChartMode):
		return http.StatusBadRequest, "Unknown chart type"
	case errors.Is(err, services.ErrTableUnavailable):
		return http.StatusNotFound, "Table no longer available, upload the file again"
	case errors.Is(err, services.ErrHistoryDisabled):
		return http.StatusNotFound, "Upload history requires the sqlite backend"
	case errors.Is(err, services.ErrImportDisabled):
		return http.StatusNotFound, "Google Sheets import is not configured"
	default:
		return http.StatusInternalServerError, "Something went wrong, please try again"
	}
}

// errorResponse builds the HTMX error response for a status from errorStatus.
// Server-side failures also raise a toast since the target swap may be hidden.
func errorResponse(status int, msg string) *HTMXResponseBuilder {
	switch status {
	case http.StatusBadRequest:
		return BadRequestError(msg)
	case http.StatusNotFound:
		return NotFoundError(msg)
	case http.StatusUnprocessableEntity:
		return UnprocessableEntityError(msg)
	case http.StatusInternalServerError:
		return InternalServerError(msg).TriggerErrorNotification(msg)
	default:
		return ErrorResponse(status, msg)
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
