// Package httperr builds the echo errors returned by handlers. Every error
// response has the shape {"message": "...", "fields": [...]}, where fields is
// only present for validation failures.
package httperr

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/randevu/randevu/internal/platform/validation"
)

// MsgTryAgain is the only message clients see for store failures.
const MsgTryAgain = "something went wrong, please try again"

// Body is the JSON error payload. It does not implement error, so echo's
// default error handler serializes it as-is.
type Body struct {
	Message string            `json:"message"`
	Fields  validation.Errors `json:"fields,omitempty"`
}

// Validation reports field failures with 422.
func Validation(errs validation.Errors) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, Body{Message: "validation failed", Fields: errs})
}

// Internal hides err from the client. The Logger middleware still logs it
// through HTTPError.Internal.
func Internal(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, MsgTryAgain).SetInternal(err)
}

func BadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func NotFound(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, msg)
}

func Forbidden(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, msg)
}

func Conflict(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, msg)
}

// PathID parses a positive integer path parameter.
func PathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("invalid " + name)
	}
	return id, nil
}

// Bind wraps c.Bind so malformed bodies come back as 400 with a stable message.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return BadRequest("invalid request body")
	}
	return nil
}
