package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/MHassaanT/motomind-backend/internal/webserver"
	"github.com/MHassaanT/motomind-backend/pkg/common"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type workshopPayload struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	OwnerName string `json:"owner_name" validate:"omitempty,max=200"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	City      string `json:"city" validate:"omitempty,max=100"`
	Remark    string `json:"remark" validate:"omitempty,max=500"`
}

func registerWorkshopRoutes() {
	webserver.ApiGET("/workshops", listWorkshops)
	webserver.ApiGET("/workshops/:id", getWorkshop)
	webserver.ApiPOST("/workshops", createWorkshop)
	webserver.ApiDELETE("/workshops/:id", deleteWorkshop)
}

func listWorkshops(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Workshop{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("LOWER(name) LIKE ? OR LOWER(city) LIKE ?",
			"%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query workshops", err.Error())
	}

	var workshops []domain.Workshop
	if err := db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&workshops).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query workshops", err.Error())
	}

	return paged(c, workshops, total, page, pageSize)
}

func getWorkshop(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop ID", nil)
	}

	var w domain.Workshop
	if err := GetDB(c).Where("id = ?", id).First(&w).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query workshop", err.Error())
	}

	return ok(c, w)
}

func createWorkshop(c echo.Context) error {
	var payload workshopPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse workshop parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	w := domain.Workshop{
		ID:        common.UUIDint64(),
		Name:      strings.TrimSpace(payload.Name),
		OwnerName: strings.TrimSpace(payload.OwnerName),
		Phone:     strings.TrimSpace(payload.Phone),
		City:      strings.TrimSpace(payload.City),
		Status:    common.ENABLED,
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := GetDB(c).Create(&w).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create workshop", err.Error())
	}

	return ok(c, w)
}

// deleteWorkshop removes the workshop row and clears its session state.
func deleteWorkshop(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop ID", nil)
	}

	if err := registry.Clear(c.Request().Context(), id); err != nil {
		return fail(c, http.StatusInternalServerError, "CLEAR_FAILED", "Failed to clear workshop session", err.Error())
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Workshop{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete workshop", err.Error())
	}
	return ok(c, map[string]interface{}{"deleted": true})
}
