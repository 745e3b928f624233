package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api/v1/"

// AuditEntry describes one access to a patient, doctor or appointment record.
type AuditEntry struct {
	Resource   string
	ResourceID string
	Action     string // read, search, create, update, delete, cancel, status
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// Succeeded reports whether the request completed with a 2xx or 3xx status.
func (e AuditEntry) Succeeded() bool {
	return e.StatusCode > 0 && e.StatusCode < 400
}

// AuditRecorder persists or counts audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /api/v1/ as a structured audit line with
// type=audit, after the handler has run. Query strings are never logged since
// the booking endpoints carry national IDs there. An optional recorder
// receives each entry; its failures are logged and otherwise ignored.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			resource, id, sub := splitResourcePath(path)
			entry := AuditEntry{
				Resource:   resource,
				ResourceID: id,
				Action:     auditAction(req.Method, id, sub),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       path,
				Method:     req.Method,
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Bool("success", entry.Succeeded()).
				Msg("record_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, apiPrefix)
}

// splitResourcePath breaks an API path into resource, numeric id and the
// trailing sub-resource. Booking routes are reported as "booking/<name>".
//
//	/api/v1/patients                  -> patients, "", ""
//	/api/v1/patients/7/appointments   -> patients, 7, appointments
//	/api/v1/booking/appointments/3/cancel -> booking/appointments, 3, cancel
func splitResourcePath(path string) (resource, id, sub string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", "", ""
	}
	if segments[0] == "booking" && len(segments) > 1 {
		segments = append([]string{"booking/" + segments[1]}, segments[2:]...)
	}
	resource = segments[0]
	if len(segments) > 1 {
		if _, err := strconv.ParseInt(segments[1], 10, 64); err == nil {
			id = segments[1]
			if len(segments) > 2 {
				sub = segments[2]
			}
		} else {
			sub = segments[1]
		}
	}
	return resource, id, sub
}

func auditAction(method, id, sub string) string {
	switch {
	case sub == "cancel":
		return "cancel"
	case sub == "status":
		return "status"
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		if id == "" || sub != "" {
			return "search"
		}
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
