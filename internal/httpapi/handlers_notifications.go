package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleNotifications(ctx *gin.Context) {
	notifications, err := handler.service.Notifications(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]notificationPayload, 0, len(notifications))
	for _, notification := range notifications {
		payloads = append(payloads, newNotificationPayload(notification))
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleDeleteNotification(ctx *gin.Context) {
	rawID, err := parseInt64(ctx.Param("id"))
	if err != nil || rawID <= 0 {
		handler.respondError(ctx, fmt.Errorf("%w: %q", tontine.ErrNotificationNotFound, ctx.Param("id")))
		return
	}
	if err := handler.service.DeleteNotification(ctx.Request.Context(), mustIdentity(ctx).UserID, tontine.NotificationID(rawID)); err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, nil, "notification deleted")
}

func (handler *httpHandler) handleClearNotifications(ctx *gin.Context) {
	deleted, err := handler.service.ClearNotifications(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: deleted}, "notifications cleared")
}
