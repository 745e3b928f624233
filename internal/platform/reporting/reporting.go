package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/randevu/randevu/internal/platform/httperr"
)

// dayLayout is the format of the "date" measure parameter.
const dayLayout = "2006-01-02"

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`

	// args turns the request parameters into query arguments.
	args func(params map[string]string, now time.Time) ([]interface{}, error)
}

// Args resolves the positional arguments for the measure's SQL.
func (m *MeasureDefinition) Args(params map[string]string, now time.Time) ([]interface{}, error) {
	if m.args == nil {
		return nil, nil
	}
	return m.args(params, now)
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// Summary is the set of counters shown on the admin dashboard.
type Summary struct {
	TotalPatients       int64     `json:"total_patients"`
	TotalAppointments   int64     `json:"total_appointments"`
	TodayAppointments   int64     `json:"today_appointments"`
	PendingAppointments int64     `json:"pending_appointments"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// dayBounds returns the UTC day named by params["date"], or the day of now.
func dayBounds(params map[string]string, now time.Time) ([]interface{}, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	if raw := params["date"]; raw != "" {
		parsed, err := time.Parse(dayLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("date must be formatted as %s", dayLayout)
		}
		day = parsed
	}
	return []interface{}{day, day.Add(24 * time.Hour)}, nil
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "total-patients",
		Name:        "Total Patients",
		Description: "Number of registered patients",
		SQL:         `SELECT COUNT(*) AS total FROM patient`,
		Parameters:  []string{},
	},
	{
		ID:          "total-appointments",
		Name:        "Total Appointments",
		Description: "Number of appointments in any status",
		SQL:         `SELECT COUNT(*) AS total FROM appointment`,
		Parameters:  []string{},
	},
	{
		ID:          "appointments-today",
		Name:        "Appointments Today",
		Description: "Appointments scheduled within one UTC day, today unless date is given",
		SQL:         `SELECT COUNT(*) AS total FROM appointment WHERE scheduled_at >= $1 AND scheduled_at < $2`,
		Parameters:  []string{"date"},
		args:        dayBounds,
	},
	{
		ID:          "pending-appointments",
		Name:        "Pending Appointments",
		Description: "Appointments waiting for confirmation",
		SQL:         `SELECT COUNT(*) AS total FROM appointment WHERE status = 'pending'`,
		Parameters:  []string{},
	},
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Number of appointments grouped by status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointment GROUP BY status ORDER BY total DESC, status`,
		Parameters:  []string{},
	},
	{
		ID:          "appointments-by-department",
		Name:        "Appointments by Department",
		Description: "Number of appointments grouped by the department recorded at booking time",
		SQL: `SELECT COALESCE(department, 'unknown') AS department, COUNT(*) AS total
FROM appointment GROUP BY COALESCE(department, 'unknown') ORDER BY total DESC, department`,
		Parameters: []string{},
	},
}

// summaryMeasures back the Summary counters, in field order.
var summaryMeasures = []string{"total-patients", "total-appointments", "appointments-today", "pending-appointments"}

// Store runs measure SQL against the database.
type Store interface {
	Rows(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
	Count(ctx context.Context, sql string, args ...interface{}) (int64, error)
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	store Store
	now   func() time.Time
}

// NewHandler creates a new reporting handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports")
	reportGroup.GET("/summary", h.GetSummary)
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return httperr.NotFound("measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	now := h.now()
	args, err := measure.Args(params, now)
	if err != nil {
		return httperr.BadRequest(err.Error())
	}

	results, err := h.store.Rows(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return httperr.Internal(fmt.Errorf("evaluate measure %s: %w", measure.ID, err))
	}
	if results == nil {
		results = []map[string]interface{}{}
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: now.UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// GetSummary returns the dashboard counters.
func (h *Handler) GetSummary(c echo.Context) error {
	summary, err := h.Summary(c.Request().Context())
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Summary evaluates the four counter measures for the current UTC day.
func (h *Handler) Summary(ctx context.Context) (*Summary, error) {
	now := h.now()
	counts := make([]int64, len(summaryMeasures))
	for i, id := range summaryMeasures {
		m := FindMeasure(id)
		args, err := m.Args(nil, now)
		if err != nil {
			return nil, err
		}
		n, err := h.store.Count(ctx, m.SQL, args...)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", id, err)
		}
		counts[i] = n
	}
	return &Summary{
		TotalPatients:       counts[0],
		TotalAppointments:   counts[1],
		TodayAppointments:   counts[2],
		PendingAppointments: counts[3],
		GeneratedAt:         now.UTC(),
	}, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
