package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/internal/auth"
	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contextKeyIdentity = "tontine_identity"
	bearerPrefix       = "bearer "
)

// activityTypes maps the first route segment to the activity type recorded for it.
var activityTypes = map[string]string{
	"tontines":      "tontine",
	"corridors":     "corridor",
	"participant":   "participation",
	"payments":      "payment",
	"organizer":     "organizer",
	"messages":      "message",
	"notifications": "notification",
	"profile":       "profile",
}

// requireIdentity verifies the bearer credential and stores the identity on the context.
func (handler *httpHandler) requireIdentity() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := strings.TrimSpace(ctx.GetHeader("Authorization"))
		if header == "" {
			respondFailure(ctx, http.StatusUnauthorized, codeMissingToken, "missing bearer token")
			return
		}
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			respondFailure(ctx, http.StatusUnauthorized, codeInvalidToken, "invalid authorization header")
			return
		}
		identity, err := handler.tokens.Verify(header[len(bearerPrefix):])
		if err != nil {
			respondFailure(ctx, http.StatusUnauthorized, codeInvalidToken, "invalid or expired token")
			return
		}
		ctx.Set(contextKeyIdentity, identity)
		ctx.Next()
	}
}

// requireRole admits only callers whose role matches exactly.
func requireRole(role tontine.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, ok := identityFrom(ctx)
		if !ok || identity.Role != role {
			respondFailure(ctx, http.StatusForbidden, codeForbiddenRole, "access restricted to "+role.String()+"s")
			return
		}
		ctx.Next()
	}
}

// trackActivity records one activity per successful authenticated mutation.
func (handler *httpHandler) trackActivity() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		if ctx.Request.Method == http.MethodGet || ctx.Writer.Status() >= http.StatusBadRequest {
			return
		}
		identity, ok := identityFrom(ctx)
		if !ok {
			return
		}
		handler.recordActivity(ctx, identity.UserID, activityTypeFor(ctx.FullPath()), ctx.Request.Method+" "+ctx.FullPath())
	}
}

func (handler *httpHandler) recordActivity(ctx *gin.Context, userID tontine.UserID, activityType string, description string) {
	err := handler.service.RecordActivity(ctx.Request.Context(), tontine.Activity{
		UserID:      userID,
		Type:        activityType,
		Description: description,
		IPAddress:   ctx.ClientIP(),
		UserAgent:   ctx.Request.UserAgent(),
	})
	if err != nil {
		handler.logger.Warn("activity not recorded",
			zap.Int64("user_id", userID.Int64()),
			zap.String("activity_type", activityType),
			zap.Error(err),
		)
	}
}

func activityTypeFor(route string) string {
	segment := strings.Split(strings.TrimPrefix(route, "/"), "/")[0]
	if activityType, ok := activityTypes[segment]; ok {
		return activityType
	}
	return "other"
}

// accessLog writes one zap entry per request.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", ctx.ClientIP()),
		)
	}
}

func identityFrom(ctx *gin.Context) (auth.Identity, bool) {
	value, ok := ctx.Get(contextKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

// mustIdentity returns the caller set by requireIdentity.
func mustIdentity(ctx *gin.Context) auth.Identity {
	identity, _ := identityFrom(ctx)
	return identity
}
