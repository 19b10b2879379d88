package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/visionscreen/presbyopia/internal/domain/insights"
	"github.com/visionscreen/presbyopia/internal/domain/screening"
	"github.com/visionscreen/presbyopia/pkg/pagination"
)

type Handler struct {
	svc       *Service
	screening *screening.Service
}

func NewHandler(svc *Service, screeningSvc *screening.Service) *Handler {
	return &Handler{svc: svc, screening: screeningSvc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/summary/age-groups", h.GetAgeGroups)
	api.GET("/summary/cities", h.GetCities)
	api.GET("/summary/diopters", h.GetDiopterDistribution)
	api.GET("/insights", h.GetInsights)
	api.GET("/comparison", h.GetComparison)
	api.GET("/baseline", h.GetBaseline)
	api.GET("/baseline/:age", h.GetBaselineForAge)
	api.GET("/patients", h.ListPatients)
	api.GET("/export", h.ExportCSV)
}

// ParseFilter reads the shared filter state from the query string:
// age_min, age_max, city, gender, occupation. Empty values mean no
// constraint.
func ParseFilter(c echo.Context) (screening.Filter, error) {
	var f screening.Filter
	var err error
	if f.AgeMin, err = optionalInt(c, "age_min"); err != nil {
		return f, err
	}
	if f.AgeMax, err = optionalInt(c, "age_max"); err != nil {
		return f, err
	}
	f.City = c.QueryParam("city")
	f.Gender = c.QueryParam("gender")
	f.Occupation = c.QueryParam("occupation")
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func optionalInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", screening.ErrInvalidFilter, name)
	}
	return &v, nil
}

// httpError keeps err as the internal cause so middleware can still match
// it with errors.Is.
func httpError(err error) error {
	if errors.Is(err, screening.ErrInvalidFilter) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	v, err := h.svc.Build(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetAgeGroups(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	items, err := h.screening.AgeWiseSummary(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetCities(c echo.Context) error {
	items, err := h.screening.CitySummary(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDiopterDistribution(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	items, err := h.screening.DiopterDistribution(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetInsights(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	v, err := h.svc.Insights(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetComparison(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	points, err := h.svc.Comparison(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, points)
}

func (h *Handler) GetBaseline(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Baseline())
}

// GetBaselineForAge returns the reference band containing the given age.
func (h *Handler) GetBaselineForAge(c echo.Context) error {
	age, err := strconv.Atoi(c.Param("age"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "age must be an integer")
	}
	entry, ok := insights.BaselineForAge(age)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no baseline band for age %d", age))
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) ListPatients(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	pg := pagination.FromContext(c)
	items, err := h.screening.FilteredPatients(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg))
}

// ExportCSV streams the matching records as a CSV attachment. Without filter
// parameters the whole population is exported.
func (h *Handler) ExportCSV(c echo.Context) error {
	f, err := ParseFilter(c)
	if err != nil {
		return httpError(err)
	}
	items, err := h.screening.FilteredPatients(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", screening.ExportFilename))
	resp.WriteHeader(http.StatusOK)
	return screening.WriteCSV(resp, items)
}
