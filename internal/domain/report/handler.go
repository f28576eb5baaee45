package report

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trialstats/trialstats/internal/platform/auth"
)

// Handler exposes the report measures over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("analyst", "admin"))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
	g.GET("/reports/full", h.FullReport)
}

// ListMeasures returns the measure catalog.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, Measures)
}

// EvaluateMeasure evaluates one measure by ID.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	id := c.Param("id")
	if FindMeasure(id) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	result, err := h.svc.Evaluate(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// FullReport evaluates every measure over one snapshot.
func (h *Handler) FullReport(c echo.Context) error {
	report, err := h.svc.Full(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
