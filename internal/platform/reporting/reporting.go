package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// MeasureDefinition defines a reporting measure with its SQL query. The SQL
// must run unchanged on SQLite and PostgreSQL.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Screened patients and how many already wore corrective lenses",
		SQL:         `SELECT COUNT(*) AS total, COALESCE(SUM(previous_glasses), 0) AS previous_glasses_count FROM patients`,
	},
	{
		ID:          "gender-split",
		Name:        "Gender Split",
		Description: "Number of patients by gender",
		SQL:         `SELECT gender, COUNT(*) AS total FROM patients GROUP BY gender ORDER BY total DESC, gender`,
	},
	{
		ID:          "occupation-volume",
		Name:        "Occupation Volume",
		Description: "Number of patients by occupation",
		SQL:         `SELECT occupation, COUNT(*) AS total FROM patients GROUP BY occupation ORDER BY total DESC, occupation`,
	},
	{
		ID:          "previous-glasses-by-city",
		Name:        "Previous Glasses by City",
		Description: "Patients with prior corrective-lens use per city",
		SQL:         `SELECT city, COALESCE(SUM(previous_glasses), 0) AS previous_glasses, COUNT(*) AS total FROM patients GROUP BY city ORDER BY city`,
	},
}

// Querier executes a read query and returns rows keyed by column name.
type Querier interface {
	QueryMaps(ctx context.Context, sql string) ([]map[string]interface{}, error)
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	db Querier
}

// NewHandler creates a new reporting handler.
func NewHandler(db Querier) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports")
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
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	if h.db == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "record store unavailable")
	}

	report, err := Evaluate(c.Request().Context(), h.db, measure)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, report)
}

// Evaluate runs one measure against db.
func Evaluate(ctx context.Context, db Querier, m *MeasureDefinition) (*MeasureReport, error) {
	results, err := db.QueryMaps(ctx, m.SQL)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if results == nil {
		results = []map[string]interface{}{}
	}
	return &MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now(),
		Results:     results,
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
