package adminapi

import (
	"net/http"
	"strconv"

	"github.com/MHassaanT/motomind-backend/internal/app"
	"github.com/MHassaanT/motomind-backend/internal/whatsapp"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

var (
	appCtx   app.AppContext
	registry *whatsapp.Registry
)

// Register wires all admin API routes. The web server must be initialized
// before this is called.
func Register(ctx app.AppContext, reg *whatsapp.Registry) {
	appCtx = ctx
	registry = reg

	registerSessionRoutes()
	registerRecordRoutes()
	registerWorkshopRoutes()
	registerMetricsRoutes()
}

// GetDB returns the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	if v, okv := c.Get("appctx").(app.AppContext); okv {
		return v.DB()
	}
	return appCtx.DB()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code": 0,
		"msg":  "ok",
		"data": data,
	})
}

func fail(c echo.Context, status int, code, msg string, detail interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"code":   1,
		"error":  code,
		"msg":    msg,
		"detail": detail,
	})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"code":      0,
		"msg":       "ok",
		"data":      data,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func parseQueryID(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.QueryParam(name), 10, 64)
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func handleValidationError(c echo.Context, err error) error {
	return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
}
