package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/tontine/internal/auth"
	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidPayload = "invalid_payload"
	codeMissingToken   = "missing_token"
	codeInvalidToken   = "invalid_token"
	codeForbiddenRole  = "forbidden_role"
	codeNotFound       = "not_found"
	codeInternal       = "internal_error"

	messageInternal = "internal server error"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses is checked in order; the first errors.Is match wins.
var errorClasses = []errorClass{
	{target: auth.ErrInvalidToken, status: http.StatusUnauthorized, code: codeInvalidToken},
	{target: tontine.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},

	{target: tontine.ErrInsufficientFunds, status: http.StatusBadRequest, code: "insufficient_funds"},
	{target: tontine.ErrPaymentsIncomplete, status: http.StatusBadRequest, code: "payments_incomplete"},
	{target: tontine.ErrInvalidUserID, status: http.StatusBadRequest, code: "invalid_user_id"},
	{target: tontine.ErrInvalidGroupID, status: http.StatusBadRequest, code: "invalid_group_id"},
	{target: tontine.ErrInvalidGroupKind, status: http.StatusBadRequest, code: "invalid_group_kind"},
	{target: tontine.ErrInvalidGroup, status: http.StatusBadRequest, code: "invalid_group"},
	{target: tontine.ErrInvalidAmount, status: http.StatusBadRequest, code: "invalid_amount"},
	{target: tontine.ErrInvalidRole, status: http.StatusBadRequest, code: "invalid_role"},
	{target: tontine.ErrInvalidEmail, status: http.StatusBadRequest, code: "invalid_email"},
	{target: tontine.ErrInvalidPassword, status: http.StatusBadRequest, code: "invalid_password"},
	{target: tontine.ErrInvalidName, status: http.StatusBadRequest, code: "invalid_name"},
	{target: tontine.ErrInvalidPaymentStatus, status: http.StatusBadRequest, code: "invalid_payment_status"},
	{target: tontine.ErrInvalidRequestID, status: http.StatusBadRequest, code: "invalid_request_id"},
	{target: tontine.ErrInvalidRequestAction, status: http.StatusBadRequest, code: "invalid_request_action"},
	{target: tontine.ErrInvalidMessage, status: http.StatusBadRequest, code: "invalid_message"},
	{target: tontine.ErrInvalidMetadataJSON, status: http.StatusBadRequest, code: "invalid_metadata"},
	{target: tontine.ErrInvalidActivity, status: http.StatusBadRequest, code: "invalid_activity"},
	{target: tontine.ErrInvalidCommissionRate, status: http.StatusBadRequest, code: "invalid_commission_rate"},

	{target: tontine.ErrNotOwner, status: http.StatusForbidden, code: "not_owner"},
	{target: tontine.ErrNotParticipant, status: http.StatusForbidden, code: "not_participant"},
	{target: tontine.ErrForbidden, status: http.StatusForbidden, code: "forbidden"},
	{target: tontine.ErrCreationLimitReached, status: http.StatusForbidden, code: "creation_limit_reached"},
	{target: tontine.ErrIntegrationLimitReached, status: http.StatusForbidden, code: "integration_limit_reached"},

	{target: tontine.ErrUserNotFound, status: http.StatusNotFound, code: "user_not_found"},
	{target: tontine.ErrGroupNotFound, status: http.StatusNotFound, code: "group_not_found"},
	{target: tontine.ErrParticipantNotFound, status: http.StatusNotFound, code: "participant_not_found"},
	{target: tontine.ErrRequestNotFound, status: http.StatusNotFound, code: "request_not_found"},
	{target: tontine.ErrMessageNotFound, status: http.StatusNotFound, code: "message_not_found"},
	{target: tontine.ErrNotificationNotFound, status: http.StatusNotFound, code: "notification_not_found"},

	{target: tontine.ErrEmailTaken, status: http.StatusConflict, code: "email_taken"},
	{target: tontine.ErrAlreadyParticipant, status: http.StatusConflict, code: "already_participant"},
	{target: tontine.ErrRequestPending, status: http.StatusConflict, code: "request_pending"},
	{target: tontine.ErrRequestResolved, status: http.StatusConflict, code: "request_resolved"},
	{target: tontine.ErrAlreadyPaid, status: http.StatusConflict, code: "already_paid"},
	{target: tontine.ErrGroupHasFunds, status: http.StatusConflict, code: "group_has_funds"},
}

func classifyError(err error) (int, string) {
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			return class.status, class.code
		}
	}
	return http.StatusInternalServerError, codeInternal
}

func respondOK(ctx *gin.Context, status int, data any, message string) {
	ctx.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondFailure(ctx *gin.Context, status int, code string, message string) {
	ctx.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Code: code})
}

// respondError maps a service error to its status and writes the error envelope.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("route", ctx.FullPath()),
			zap.Error(err),
		)
		message := messageInternal
		if handler.cfg.Debug {
			message = err.Error()
		}
		respondFailure(ctx, status, code, message)
		return
	}
	respondFailure(ctx, status, code, err.Error())
}
