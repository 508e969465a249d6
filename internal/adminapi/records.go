package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/MHassaanT/motomind-backend/internal/reminder"
	"github.com/MHassaanT/motomind-backend/internal/webserver"
	"github.com/MHassaanT/motomind-backend/internal/whatsapp"
	"github.com/MHassaanT/motomind-backend/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordPayload struct {
	WorkshopID      int64  `json:"workshop_id,string" validate:"required"`
	CustomerName    string `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerPhone   string `json:"customer_phone" validate:"required,min=7,max=20"`
	Bike            string `json:"bike" validate:"omitempty,max=200"`
	Work            string `json:"work" validate:"omitempty,max=2000"`
	Amount          int64  `json:"amount" validate:"omitempty,min=0"`
	NextServiceDate string `json:"next_service_date" validate:"omitempty"`
}

func registerRecordRoutes() {
	webserver.ApiGET("/records", listRecords)
	webserver.ApiGET("/records/due", listDueRecords)
	webserver.ApiGET("/records/:id", getRecord)
	webserver.ApiPOST("/records", createRecord)
	webserver.ApiPOST("/records/:id/finalize", finalizeRecord)
	webserver.ApiPOST("/records/:id/send-bill", sendRecordBill)
}

func listRecords(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.ServiceRecord{})
	if wid, err := parseQueryID(c, "workshop_id"); err == nil && wid != 0 {
		db = db.Where("workshop_id = ?", wid)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("LOWER(customer_name) LIKE ? OR customer_phone LIKE ?",
			"%"+strings.ToLower(q)+"%", "%"+q+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query records", err.Error())
	}

	var records []domain.ServiceRecord
	if err := db.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query records", err.Error())
	}

	return paged(c, records, total, page, pageSize)
}

// listDueRecords previews the batch the reminder dispatcher would process
// today.
func listDueRecords(c echo.Context) error {
	src := reminder.NewGormRecordSource(GetDB(c))
	records, err := src.DueToday(c.Request().Context(), time.Now())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query due records", err.Error())
	}
	return ok(c, map[string]interface{}{"records": records, "count": len(records)})
}

func getRecord(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid record ID", nil)
	}

	var rec domain.ServiceRecord
	if err := GetDB(c).Where("id = ?", id).First(&rec).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query record", err.Error())
	}

	return ok(c, rec)
}

func createRecord(c echo.Context) error {
	var payload recordPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse record parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	rec := domain.ServiceRecord{
		ID:            common.UUIDint64(),
		WorkshopID:    payload.WorkshopID,
		CustomerName:  strings.TrimSpace(payload.CustomerName),
		CustomerPhone: strings.TrimSpace(payload.CustomerPhone),
		Bike:          strings.TrimSpace(payload.Bike),
		Work:          payload.Work,
		Amount:        payload.Amount,
		Status:        domain.RecordStatusDraft,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if payload.NextServiceDate != "" {
		d, err := time.ParseInLocation("2006-01-02", payload.NextServiceDate, time.Local)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "next_service_date must be YYYY-MM-DD", nil)
		}
		rec.NextServiceDate = d
	}

	if err := GetDB(c).Create(&rec).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create record", err.Error())
	}

	return ok(c, rec)
}

// finalizeRecord moves a draft record into the finalized state, making it
// eligible for reminder dispatch.
func finalizeRecord(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid record ID", nil)
	}

	var rec domain.ServiceRecord
	if err := GetDB(c).Where("id = ?", id).First(&rec).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query record", err.Error())
	}
	if rec.Status == domain.RecordStatusFinalized {
		return ok(c, rec)
	}

	updates := map[string]interface{}{
		"status":     domain.RecordStatusFinalized,
		"updated_at": time.Now(),
	}
	if err := GetDB(c).Model(&domain.ServiceRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to finalize record", err.Error())
	}
	rec.Status = domain.RecordStatusFinalized
	return ok(c, rec)
}

// sendRecordBill sends the bill text for a record through the workshop
// session. A send failure is reported in the response body, not as an HTTP
// error, so a disconnected session does not break record workflows.
func sendRecordBill(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid record ID", nil)
	}

	var rec domain.ServiceRecord
	if err := GetDB(c).Where("id = ?", id).First(&rec).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query record", err.Error())
	}

	prefix := appCtx.GetSettingsStringValue("whatsapp", "CountryPrefix")
	tpl := appCtx.GetSettingsStringValue("whatsapp", "BillTemplate")
	dest := whatsapp.NormalizeDestinationWithPrefix(rec.CustomerPhone, prefix)
	text := reminder.FormatBill(rec, tpl)

	src := reminder.NewGormRecordSource(GetDB(c))
	if err := registry.Send(c.Request().Context(), rec.WorkshopID, dest, text); err != nil {
		zap.L().Warn("adminapi: bill send failed",
			zap.Int64("record_id", rec.ID),
			zap.Int64("workshop_id", rec.WorkshopID),
			zap.Error(err))
		markBillOutcome(c, src, rec.ID, false, err.Error())
		return ok(c, map[string]interface{}{"sent": false, "reason": err.Error()})
	}
	markBillOutcome(c, src, rec.ID, true, "")
	return ok(c, map[string]interface{}{"sent": true})
}

// markBillOutcome records the bill attempt on the record; an annotation
// failure must not turn a delivered bill into an API error.
func markBillOutcome(c echo.Context, src *reminder.GormRecordSource, recordID int64, sent bool, note string) {
	if err := src.MarkBillOutcome(c.Request().Context(), recordID, sent, note); err != nil {
		zap.L().Error("adminapi: bill outcome annotation failed",
			zap.Int64("record_id", recordID), zap.Error(err))
	}
}
