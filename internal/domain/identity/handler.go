package identity

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
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)

	api.GET("/doctors", h.ListDoctors)
	api.POST("/doctors", h.CreateDoctor)
	api.GET("/doctors/:id", h.GetDoctor)
	api.PUT("/doctors/:id", h.UpdateDoctor)
	api.DELETE("/doctors/:id", h.DeleteDoctor)
}

// PatientDetail is a patient with the number of appointments referencing it.
type PatientDetail struct {
	*Patient
	AppointmentCount int `json:"appointment_count"`
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	var in PatientInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	p, errs := in.ToPatient()
	if len(errs) > 0 {
		return httperr.Validation(errs.Merge(h.svc.CheckPatient(p)))
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return httpError(err)
	}
	n, err := h.svc.PatientAppointmentCount(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, PatientDetail{Patient: p, AppointmentCount: n})
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	sort := pagination.SortFromContext(c, PatientSortKeys, DefaultPatientSort)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), PatientFilter{
		Query:  c.QueryParam("q"),
		Sort:   sort,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset).WithSort(sort))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	var in PatientInput
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	p, errs := in.ToPatient()
	if len(errs) > 0 {
		return httperr.Validation(errs.Merge(h.svc.CheckPatient(p)))
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctor Handlers --

func (h *Handler) CreateDoctor(c echo.Context) error {
	in := DoctorInput{Active: true}
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	d := in.ToDoctor()
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
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

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	sort := pagination.SortFromContext(c, DoctorSortKeys, DefaultDoctorSort)
	f := DoctorFilter{
		Query:  c.QueryParam("q"),
		Sort:   sort,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v, err := strconv.ParseBool(c.QueryParam("active")); err == nil {
		f.Active = &v
	}
	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset).WithSort(sort))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetDoctor(ctx, id)
	if err != nil {
		return httpError(err)
	}
	in := DoctorInput{Active: existing.Active}
	if err := httperr.Bind(c, &in); err != nil {
		return err
	}
	d := in.ToDoctor()
	d.ID = id
	if err := h.svc.UpdateDoctor(ctx, d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := httperr.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return httperr.Validation(verrs)
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrDoctorNotFound):
		return httperr.NotFound(err.Error())
	case errors.Is(err, ErrHasDependents):
		return httperr.Conflict(err.Error())
	default:
		return httperr.Internal(err)
	}
}
