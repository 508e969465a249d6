package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/webserver"
	"github.com/MHassaanT/motomind-backend/pkg/metrics"
	"github.com/labstack/echo/v4"
)

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", getMetricSeries)
}

// getMetricSeries returns the stored datapoints of one gauge, last hour by
// default.
func getMetricSeries(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_NAME", "Metric name required", nil)
	}

	end := time.Now()
	start := end.Add(-time.Hour)
	if v, err := strconv.ParseInt(c.QueryParam("start"), 10, 64); err == nil && v > 0 {
		start = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(c.QueryParam("end"), 10, 64); err == nil && v > 0 {
		end = time.Unix(v, 0)
	}

	points, err := metrics.Query(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metric", err.Error())
	}
	return ok(c, map[string]interface{}{"name": name, "points": points})
}
