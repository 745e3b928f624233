package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/randevu/randevu/internal/platform/httperr"
)

func newTestHandler() (*Handler, *mockAppointmentRepo, *echo.Echo) {
	svc, repo, _, _ := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", want, err)
	}
	if he.Code != want {
		t.Errorf("expected status %d, got %d (%v)", want, he.Code, he.Message)
	}
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":1,"doctor_id":1,"scheduled_at":"2025-03-14T12:30:00+03:00","complaint":"Chest pain"}`
	rec := httptest.NewRecorder()

	if err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["scheduled_at"] != "2025-03-14T09:30:00Z" {
		t.Errorf("expected UTC time, got %v", got["scheduled_at"])
	}
	if got["status"] != "pending" || got["doctor_name"] != "Mehmet Kaya" || got["department"] != "Cardiology" {
		t.Errorf("unexpected body: %v", got)
	}
	if _, ok := got["patient_national_id"]; ok {
		t.Error("national id must not be serialized")
	}
}

func TestHandler_CreateAppointment_Errors(t *testing.T) {
	h, _, e := newTestHandler()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad time", `{"patient_id":1,"doctor_id":1,"scheduled_at":"next week","complaint":"x"}`, http.StatusUnprocessableEntity},
		{"missing complaint", `{"patient_id":1,"doctor_id":1,"scheduled_at":"2025-03-14T09:30"}`, http.StatusUnprocessableEntity},
		{"unknown patient", `{"patient_id":9,"doctor_id":1,"scheduled_at":"2025-03-14T09:30","complaint":"x"}`, http.StatusNotFound},
		{"unknown doctor", `{"patient_id":1,"doctor_id":9,"scheduled_at":"2025-03-14T09:30","complaint":"x"}`, http.StatusNotFound},
		{"malformed", `{"patient_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(jsonRequest(http.MethodPost, "/appointments", tt.body), httptest.NewRecorder())
			assertStatus(t, h.CreateAppointment(c), tt.want)
		})
	}
}

func TestHandler_CreateAppointment_ReportsAllFailures(t *testing.T) {
	h, repo, e := newTestHandler()
	body := `{"patient_id":1,"doctor_id":1,"scheduled_at":"next week","status":"archived"}`

	err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/appointments", body), httptest.NewRecorder()))
	assertStatus(t, err, http.StatusUnprocessableEntity)
	b := err.(*echo.HTTPError).Message.(httperr.Body)
	if len(b.Fields) != 3 {
		t.Errorf("expected scheduled_at, status and complaint failures, got %v", b.Fields)
	}
	for _, field := range []string{"scheduled_at", "status", "complaint"} {
		if !b.Fields.Has(field) {
			t.Errorf("expected %s failure, got %v", field, b.Fields)
		}
	}
	if len(repo.appts) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestHandler_UpdateAppointment_ReportsAllFailures(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.Create(context.Background(), validAppointment())

	body := `{"patient_id":1,"doctor_id":1,"scheduled_at":"15/03/2025","complaint":""}`
	c := withID(e.NewContext(jsonRequest(http.MethodPut, "/", body), httptest.NewRecorder()), "1")
	err := h.UpdateAppointment(c)
	assertStatus(t, err, http.StatusUnprocessableEntity)
	b := err.(*echo.HTTPError).Message.(httperr.Body)
	if len(b.Fields) != 2 || !b.Fields.Has("scheduled_at") || !b.Fields.Has("complaint") {
		t.Errorf("unexpected fields: %v", b.Fields)
	}
}

func TestHandler_GetAppointment(t *testing.T) {
	h, repo, e := newTestHandler()
	a := validAppointment()
	a.Status = StatusPending
	repo.Create(context.Background(), a)

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), "1")
	if err := h.GetAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.PatientFirstName != "Ayşe" || got.Complaint != a.Complaint {
		t.Errorf("unexpected appointment: %+v", got)
	}

	c = withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "5")
	assertStatus(t, h.GetAppointment(c), http.StatusNotFound)

	c = withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "-1")
	assertStatus(t, h.GetAppointment(c), http.StatusBadRequest)
}

func TestHandler_ListAppointments(t *testing.T) {
	h, repo, e := newTestHandler()
	for _, pid := range []int64{1, 2, 1} {
		a := validAppointment()
		a.PatientID = pid
		a.Status = StatusPending
		repo.Create(context.Background(), a)
	}
	repo.appts[3].Status = StatusConfirmed

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?patient_id=1&status=confirmed&sort=nope", nil), rec)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Appointment `json:"data"`
		Total int           `json:"total"`
		Sort  string        `json:"sort"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].ID != 3 {
		t.Errorf("unexpected list: %+v", resp)
	}
	if resp.Sort != "date_desc" {
		t.Errorf("expected fallback sort date_desc, got %q", resp.Sort)
	}
}

func TestHandler_ListAppointments_BadFilters(t *testing.T) {
	h, _, e := newTestHandler()
	for _, target := range []string{"/appointments?status=archived", "/appointments?doctor_id=abc", "/appointments?patient_id=0"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		assertStatus(t, h.ListAppointments(c), http.StatusBadRequest)
	}
}

func TestHandler_ListAppointments_StoreFailure(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.err = errStoreDown
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments", nil), httptest.NewRecorder())

	err := h.ListAppointments(c)
	assertStatus(t, err, http.StatusInternalServerError)
	he := err.(*echo.HTTPError)
	if he.Message != httperr.MsgTryAgain || he.Internal != errStoreDown {
		t.Errorf("expected generic message with internal cause, got %v / %v", he.Message, he.Internal)
	}
}

func TestHandler_SetStatus(t *testing.T) {
	h, repo, e := newTestHandler()
	a := validAppointment()
	a.Status = StatusCancelled
	repo.Create(context.Background(), a)

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPatch, "/", `{"status":"confirmed"}`), rec), "1")
	if err := h.SetStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appts[1].Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", repo.appts[1].Status)
	}

	c = withID(e.NewContext(jsonRequest(http.MethodPatch, "/", `{"status":"lost"}`), httptest.NewRecorder()), "1")
	assertStatus(t, h.SetStatus(c), http.StatusUnprocessableEntity)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	h, repo, e := newTestHandler()
	a := validAppointment()
	a.Status = StatusPending
	repo.Create(context.Background(), a)

	body := `{"patient_id":1,"doctor_id":1,"scheduled_at":"2025-03-15 10:00","complaint":"Control visit","status":"completed"}`
	c := withID(e.NewContext(jsonRequest(http.MethodPut, "/", body), httptest.NewRecorder()), "1")
	if err := h.UpdateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appts[1].Status != StatusCompleted || repo.appts[1].Complaint != "Control visit" {
		t.Errorf("unexpected stored appointment: %+v", repo.appts[1])
	}

	rec := httptest.NewRecorder()
	c = withID(e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec), "1")
	if err := h.DeleteAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListPatientAppointments(t *testing.T) {
	h, repo, e := newTestHandler()
	a := validAppointment()
	a.Status = StatusPending
	repo.Create(context.Background(), a)

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), "1")
	if err := h.ListPatientAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 {
		t.Errorf("expected 1 appointment, got %d", len(got))
	}

	c = withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "77")
	assertStatus(t, h.ListPatientAppointments(c), http.StatusNotFound)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/appointments":              false,
		"POST /api/v1/appointments":             false,
		"PATCH /api/v1/appointments/:id/status": false,
		"DELETE /api/v1/appointments/:id":       false,
		"GET /api/v1/patients/:id/appointments": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
