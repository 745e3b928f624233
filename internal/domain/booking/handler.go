package booking

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/internal/domain/scheduling"
	"github.com/randevu/randevu/internal/platform/httperr"
	"github.com/randevu/randevu/internal/platform/validation"
)

// CSRFContextKey is where the CSRF middleware stores the request's token.
const CSRFContextKey = "csrf"

// CSRFHeader is the header mutating booking requests carry the token in.
const CSRFHeader = "X-CSRF-Token"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/csrf", h.CSRFToken)
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
	g.POST("/appointments", h.Book)
	g.GET("/appointments/:id", h.GetConfirmation)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.GET("/lookup", h.Lookup)
	g.POST("/lookup", h.Lookup)
}

// nationalIDInput carries the national ID from a query string, form or JSON body.
type nationalIDInput struct {
	NationalID string `json:"national_id" form:"national_id" query:"national_id"`
}

// CSRFToken hands out the token clients echo back on POST requests. The
// token is empty when forgery protection is disabled.
func (h *Handler) CSRFToken(c echo.Context) error {
	token, _ := c.Get(CSRFContextKey).(string)
	return c.JSON(http.StatusOK, map[string]string{
		"csrf_token": token,
		"header":     CSRFHeader,
	})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Book(c echo.Context) error {
	var req Request
	if err := httperr.Bind(c, &req); err != nil {
		return err
	}
	conf, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, conf)
}

func (h *Handler) GetConfirmation(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	var in nationalIDInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	conf, err := h.svc.Confirmation(c.Request().Context(), id, in.NationalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conf)
}

// Lookup serves both the query-string and the form submission.
func (h *Handler) Lookup(c echo.Context) error {
	var in nationalIDInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Lookup(c.Request().Context(), in.NationalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	var in nationalIDInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id, in.NationalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, confirmationOf(a))
}

func httpError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return httperr.Validation(verrs)
	case errors.Is(err, ErrDoctorUnavailable), errors.Is(err, identity.ErrDoctorNotFound):
		return httperr.NotFound(ErrDoctorUnavailable.Error())
	case errors.Is(err, ErrCancelDenied):
		return httperr.Forbidden(ErrCancelDenied.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		return httperr.Conflict(scheduling.ErrInvalidStatusTransition.Error())
	case errors.Is(err, ErrBookingFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, ErrBookingFailed.Error()).SetInternal(err)
	default:
		return httperr.Internal(err)
	}
}
