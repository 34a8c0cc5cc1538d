package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

// handleTrend scopes participants to their own activity; organizers may filter by ?userId=.
func (handler *httpHandler) handleTrend(ctx *gin.Context) {
	identity := mustIdentity(ctx)
	query := tontine.TrendQuery{Type: ctx.Query("type")}
	if rawDays := strings.TrimSpace(ctx.Query("days")); rawDays != "" {
		days, err := parseInt64(rawDays)
		if err != nil {
			respondFailure(ctx, http.StatusBadRequest, codeInvalidPayload, fmt.Sprintf("days %q is not an integer", rawDays))
			return
		}
		query.Days = int(days)
	}
	if identity.Role != tontine.RoleOrganizer {
		userID := identity.UserID
		query.UserID = &userID
	} else if rawUser := strings.TrimSpace(ctx.Query("userId")); rawUser != "" {
		parsed, err := parseInt64(rawUser)
		if err != nil {
			handler.respondError(ctx, fmt.Errorf("%w: %q", tontine.ErrInvalidUserID, rawUser))
			return
		}
		userID, err := tontine.NewUserID(parsed)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		query.UserID = &userID
	}
	points, err := handler.service.ActivityTrend(ctx.Request.Context(), query)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]trendPayload, 0, len(points))
	for _, point := range points {
		payloads = append(payloads, trendPayload{
			Day:          point.Day,
			ActivityType: point.ActivityType,
			Interactions: point.Interactions,
			UniqueUsers:  point.UniqueUsers,
		})
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleEngagement(ctx *gin.Context) {
	userID, err := userIDParam(ctx, "userId")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	engagement, err := handler.service.UserEngagement(ctx.Request.Context(), mustIdentity(ctx).UserID, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, engagementPayload{
		UserID:           engagement.UserID.Int64(),
		TotalActivities:  engagement.TotalActivities,
		ActivitiesByType: engagement.ActivitiesByType,
		RecentActiveDays: engagement.RecentActiveDays,
		MessagesSent:     engagement.MessagesSent,
		PaymentsMade:     engagement.PaymentsMade,
		GroupsJoined:     engagement.GroupsJoined,
		EngagementRate:   engagement.EngagementRate,
	}, "")
}

func (handler *httpHandler) handlePlatform(ctx *gin.Context) {
	analytics, err := handler.service.PlatformAnalytics(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	groupsByKind := make(map[string]int, len(analytics.GroupsByKind))
	for kind, count := range analytics.GroupsByKind {
		groupsByKind[kind.String()] = count
	}
	respondOK(ctx, http.StatusOK, platformPayload{
		TotalGroups:         analytics.TotalGroups,
		ActiveGroups:        analytics.ActiveGroups,
		ClosedGroups:        analytics.ClosedGroups,
		GroupsByKind:        groupsByKind,
		TotalParticipants:   analytics.TotalParticipants,
		UniqueParticipants:  analytics.UniqueParticipants,
		CompletedPayments:   analytics.CompletedPayments,
		PendingPayments:     analytics.PendingPayments,
		PendingRequests:     analytics.PendingRequests,
		Collected:           analytics.Collected.Int64(),
		Distributed:         analytics.Distributed.Int64(),
		SuccessRate:         analytics.SuccessRate,
		AverageContribution: analytics.AverageContribution,
	}, "")
}
