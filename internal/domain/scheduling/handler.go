package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/randevu/randevu/internal/platform/httperr"
	"github.com/randevu/randevu/internal/platform/validation"
	"github.com/randevu/randevu/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.PATCH("/appointments/:id/status", h.SetStatus)
	api.DELETE("/appointments/:id", h.DeleteAppointment)

	api.GET("/patients/:id/appointments", h.ListPatientAppointments)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var in AppointmentInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	a, errs := in.ToAppointment()
	if len(errs) > 0 {
		return httperr.Validation(errs.Merge(h.svc.CheckAppointment(a)))
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	sort := pagination.SortFromContext(c, AppointmentSortKeys, DefaultAppointmentSort)
	f := AppointmentFilter{
		Query:  c.QueryParam("q"),
		Sort:   sort,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			return httperr.BadRequest("invalid status")
		}
		f.Status = st
	}
	var err error
	if f.PatientID, err = queryID(c, "patient_id"); err != nil {
		return err
	}
	if f.DoctorID, err = queryID(c, "doctor_id"); err != nil {
		return err
	}

	appts, total, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset).WithSort(sort))
}

// queryID reads an optional positive id from the query string; absent is 0.
func queryID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, httperr.BadRequest("invalid " + name)
	}
	return id, nil
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	var in AppointmentInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	a, errs := in.ToAppointment()
	if len(errs) > 0 {
		return httperr.Validation(errs.Merge(h.svc.CheckAppointment(a)))
	}
	a.ID = id
	if err := h.svc.UpdateAppointment(c.Request().Context(), a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	var in StatusInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.SetStatus(c.Request().Context(), id, in.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	appts, err := h.svc.ListByPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func httpError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return httperr.Validation(verrs)
	case IsNotFound(err):
		return httperr.NotFound(err.Error())
	case errors.Is(err, ErrInvalidStatusTransition):
		return httperr.Conflict(err.Error())
	default:
		return httperr.Internal(err)
	}
}
