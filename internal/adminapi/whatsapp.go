package adminapi

import (
	"errors"
	"net/http"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/MHassaanT/motomind-backend/internal/webserver"
	"github.com/MHassaanT/motomind-backend/internal/whatsapp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerSessionRoutes() {
	webserver.ApiGET("/whatsapp/sessions/:id/status", getSessionStatus)
	webserver.ApiGET("/whatsapp/sessions/:id/qr", getSessionQR)
	webserver.ApiPOST("/whatsapp/sessions/:id/connect", postSessionConnect)
	webserver.ApiPOST("/whatsapp/sessions/:id/send", postSessionSend)
	webserver.ApiPOST("/whatsapp/sessions/:id/clear", postSessionClear)
}

// getSessionStatus returns the persisted session projection for a workshop.
// A workshop that never connected reads as disconnected.
func getSessionStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop id", nil)
	}

	var sess domain.WaSession
	if err := GetDB(c).Where("workshop_id = ?", id).First(&sess).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return ok(c, map[string]interface{}{
			"workshop_id": id,
			"status":      domain.SessionDisconnected,
		})
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query session", err.Error())
	}

	return ok(c, map[string]interface{}{
		"workshop_id":     sess.WorkshopID,
		"status":          sess.Status,
		"paired_identity": sess.PairedIdentity,
		"updated_at":      sess.UpdatedAt,
	})
}

// getSessionQR returns the pairing image data URL, present only while the
// session is awaiting pairing.
func getSessionQR(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop id", nil)
	}

	var sess domain.WaSession
	if err := GetDB(c).Where("workshop_id = ?", id).First(&sess).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return ok(c, map[string]interface{}{"has_qr": false})
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query session", err.Error())
	}

	return ok(c, map[string]interface{}{
		"has_qr": sess.PairingImage != "",
		"image":  sess.PairingImage,
		"status": sess.Status,
	})
}

// postSessionConnect resolves a live session for the workshop, creating and
// pairing one when none exists. Blocks up to the configured init timeout.
func postSessionConnect(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop id", nil)
	}

	var count int64
	GetDB(c).Model(&domain.Workshop{}).Where("id = ?", id).Count(&count)
	if count == 0 {
		return fail(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found", nil)
	}

	h, err := registry.GetOrCreate(c.Request().Context(), id)
	if err != nil {
		var cerr *whatsapp.ConnectError
		if errors.As(err, &cerr) {
			return fail(c, http.StatusBadGateway, "CONNECT_FAILED", "Failed to connect session", cerr.Reason)
		}
		return fail(c, http.StatusInternalServerError, "CONNECT_FAILED", "Failed to connect session", err.Error())
	}
	return ok(c, map[string]interface{}{"workshop_id": id, "state": h.State()})
}

// postSessionSend sends an ad-hoc text through the workshop session.
// Body JSON: { "phone": "0300-1234567", "text": "..." }
func postSessionSend(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop id", nil)
	}

	var payload struct {
		Phone string `json:"phone" validate:"required,min=7,max=20"`
		Text  string `json:"text" validate:"required,min=1,max=4000"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	prefix := appCtx.GetSettingsStringValue("whatsapp", "CountryPrefix")
	dest := whatsapp.NormalizeDestinationWithPrefix(payload.Phone, prefix)
	if err := registry.Send(c.Request().Context(), id, dest, payload.Text); err != nil {
		zap.L().Warn("adminapi: session send failed",
			zap.Int64("workshop_id", id), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "SEND_FAILED", "Failed to send message", err.Error())
	}
	return ok(c, map[string]interface{}{"sent": true})
}

// postSessionClear destroys the live session and removes all persisted
// session state for the workshop.
func postSessionClear(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid workshop id", nil)
	}

	if err := registry.Clear(c.Request().Context(), id); err != nil {
		zap.L().Warn("adminapi: session clear failed",
			zap.Int64("workshop_id", id), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "CLEAR_FAILED", "Failed to clear session", err.Error())
	}
	return ok(c, map[string]interface{}{"cleared": true})
}
