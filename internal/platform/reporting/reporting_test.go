package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type call struct {
	sql  string
	args []interface{}
}

type mockStore struct {
	counts map[string]int64
	rows   []map[string]interface{}
	err    error
	calls  []call
}

func (m *mockStore) Rows(_ context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	m.calls = append(m.calls, call{sql, args})
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

func (m *mockStore) Count(_ context.Context, sql string, args ...interface{}) (int64, error) {
	m.calls = append(m.calls, call{sql, args})
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[sql], nil
}

var fixedNow = time.Date(2025, 3, 14, 16, 45, 0, 0, time.UTC)

func newTestHandler(store *mockStore) *Handler {
	h := NewHandler(store)
	h.now = func() time.Time { return fixedNow }
	return h
}

func get(t *testing.T, h echo.HandlerFunc, target string, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(names) > 0 {
		c.SetParamNames("id")
		c.SetParamValues(names[0])
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"total-patients",
		"total-appointments",
		"appointments-today",
		"pending-appointments",
		"appointments-by-status",
		"appointments-by-department",
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
		if m.Name == "" {
			t.Errorf("measure %s has empty name", m.ID)
		}
		if m.Description == "" {
			t.Errorf("measure %s has empty description", m.ID)
		}
	}
}

func TestFindMeasure(t *testing.T) {
	m := FindMeasure("pending-appointments")
	if m == nil {
		t.Fatal("expected to find pending-appointments measure")
	}
	if m.Name != "Pending Appointments" {
		t.Errorf("expected 'Pending Appointments', got %s", m.Name)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestAppointmentsToday_DefaultsToUTCDay(t *testing.T) {
	m := FindMeasure("appointments-today")
	args, err := m.Args(nil, time.Date(2025, 3, 14, 23, 30, 0, 0, time.FixedZone("TRT", -3*3600)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 23:30 at UTC-3 is 02:30 UTC on the 15th.
	wantStart := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if !args[0].(time.Time).Equal(wantStart) || !args[1].(time.Time).Equal(wantStart.Add(24*time.Hour)) {
		t.Errorf("unexpected bounds: %v", args)
	}
}

func TestAppointmentsToday_DateParameter(t *testing.T) {
	m := FindMeasure("appointments-today")
	args, err := m.Args(map[string]string{"date": "2025-01-02"}, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !args[0].(time.Time).Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start: %v", args[0])
	}
	if _, err := m.Args(map[string]string{"date": "02/01/2025"}, fixedNow); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestListMeasures(t *testing.T) {
	h := newTestHandler(&mockStore{})
	rec := get(t, h.ListMeasures, "/api/v1/reports/measures")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []MeasureDefinition
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(got) != len(PredefinedMeasures) {
		t.Errorf("expected %d measures, got %d", len(PredefinedMeasures), len(got))
	}
	if strings.Contains(rec.Body.String(), "SELECT") || strings.Contains(rec.Body.String(), `"sql"`) {
		t.Errorf("expected query text to stay private, got %s", rec.Body.String())
	}
}

func TestEvaluateMeasure(t *testing.T) {
	store := &mockStore{rows: []map[string]interface{}{
		{"status": "pending", "total": 3},
		{"status": "confirmed", "total": 1},
	}}
	h := newTestHandler(store)

	rec := get(t, h.EvaluateMeasure, "/api/v1/reports/measures/appointments-by-status/evaluate", "appointments-by-status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report MeasureReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if report.MeasureID != "appointments-by-status" || len(report.Results) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if !report.GeneratedAt.Equal(fixedNow) {
		t.Errorf("unexpected generated_at: %v", report.GeneratedAt)
	}
	if len(store.calls) != 1 || !strings.Contains(store.calls[0].sql, "GROUP BY status") {
		t.Errorf("unexpected store calls: %+v", store.calls)
	}
}

func TestEvaluateMeasure_EmptyResultIsArray(t *testing.T) {
	h := newTestHandler(&mockStore{})
	rec := get(t, h.EvaluateMeasure, "/api/v1/reports/measures/appointments-by-department/evaluate", "appointments-by-department")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("expected empty results array, got %s", rec.Body.String())
	}
}

func TestEvaluateMeasure_PassesDateParameter(t *testing.T) {
	store := &mockStore{rows: []map[string]interface{}{{"total": 2}}}
	h := newTestHandler(store)

	rec := get(t, h.EvaluateMeasure, "/api/v1/reports/measures/appointments-today/evaluate?date=2025-03-20", "appointments-today")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.calls) != 1 || len(store.calls[0].args) != 2 {
		t.Fatalf("unexpected store calls: %+v", store.calls)
	}
	if !store.calls[0].args[0].(time.Time).Equal(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start arg: %v", store.calls[0].args[0])
	}
	var report MeasureReport
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.Parameters["date"] != "2025-03-20" {
		t.Errorf("expected date parameter echoed, got %v", report.Parameters)
	}
}

func TestEvaluateMeasure_Errors(t *testing.T) {
	h := newTestHandler(&mockStore{})
	rec := get(t, h.EvaluateMeasure, "/api/v1/reports/measures/nope/evaluate", "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = get(t, h.EvaluateMeasure, "/api/v1/reports/measures/appointments-today/evaluate?date=yesterday", "appointments-today")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	h = newTestHandler(&mockStore{err: errors.New("connection reset")})
	rec = get(t, h.EvaluateMeasure, "/api/v1/reports/measures/total-patients/evaluate", "total-patients")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("store error leaked to client")
	}
}

func TestSummary(t *testing.T) {
	store := &mockStore{counts: map[string]int64{
		FindMeasure("total-patients").SQL:       12,
		FindMeasure("total-appointments").SQL:   30,
		FindMeasure("appointments-today").SQL:   4,
		FindMeasure("pending-appointments").SQL: 7,
	}}
	h := newTestHandler(store)

	rec := get(t, h.GetSummary, "/api/v1/reports/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if s.TotalPatients != 12 || s.TotalAppointments != 30 || s.TodayAppointments != 4 || s.PendingAppointments != 7 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if len(store.calls) != 4 {
		t.Fatalf("expected 4 counts, got %d", len(store.calls))
	}
	today := store.calls[2]
	if len(today.args) != 2 || !today.args[0].(time.Time).Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected today args: %v", today.args)
	}
}

func TestSummary_StoreFailure(t *testing.T) {
	h := newTestHandler(&mockStore{err: errors.New("timeout")})
	rec := get(t, h.GetSummary, "/api/v1/reports/summary")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(&mockStore{}).RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/reports/summary":               false,
		"GET /api/v1/reports/measures":              false,
		"GET /api/v1/reports/measures/:id/evaluate": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}
