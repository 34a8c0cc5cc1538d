package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type groupRequest struct {
	Name           string           `json:"name"`
	LegacyName     string           `json:"nom"`
	Description    string           `json:"description"`
	Bareme         int64            `json:"bareme"`
	CommissionRate *decimal.Decimal `json:"commission"`
	DurationDays   int              `json:"duration_days"`
	StartDate      string           `json:"date"`
	Phone          string           `json:"phone"`
}

type groupPatchRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Bareme         *int64           `json:"bareme"`
	CommissionRate *decimal.Decimal `json:"commission"`
	DurationDays   *int             `json:"duration_days"`
	StartDate      *string          `json:"date"`
	Phone          *string          `json:"phone"`
	Status         *string          `json:"status"`
}

type joinRequest struct {
	Token string `json:"token"`
}

func parseStartDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC 3339", tontine.ErrInvalidGroup, raw)
}

func (request groupRequest) draft() (tontine.GroupDraft, error) {
	startDate, err := parseStartDate(request.StartDate)
	if err != nil {
		return tontine.GroupDraft{}, err
	}
	bareme, err := tontine.NewAmount(request.Bareme)
	if err != nil {
		return tontine.GroupDraft{}, err
	}
	name := request.Name
	if strings.TrimSpace(name) == "" {
		name = request.LegacyName
	}
	draft := tontine.GroupDraft{
		Name:         name,
		Description:  request.Description,
		Bareme:       bareme,
		DurationDays: request.DurationDays,
		StartDate:    startDate,
		Phone:        request.Phone,
	}
	if request.CommissionRate != nil {
		draft.CommissionRate = *request.CommissionRate
	}
	return draft, nil
}

func (request groupPatchRequest) patch() (tontine.GroupPatch, error) {
	patch := tontine.GroupPatch{
		Name:           request.Name,
		Description:    request.Description,
		CommissionRate: request.CommissionRate,
		DurationDays:   request.DurationDays,
		Phone:          request.Phone,
	}
	if request.Bareme != nil {
		bareme, err := tontine.NewAmount(*request.Bareme)
		if err != nil {
			return tontine.GroupPatch{}, err
		}
		patch.Bareme = &bareme
	}
	if request.StartDate != nil {
		startDate, err := parseStartDate(*request.StartDate)
		if err != nil {
			return tontine.GroupPatch{}, err
		}
		patch.StartDate = startDate
	}
	if request.Status != nil {
		status := tontine.GroupStatus(strings.ToLower(strings.TrimSpace(*request.Status)))
		patch.Status = &status
	}
	return patch, nil
}

func (handler *httpHandler) handleCreateGroup(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var request groupRequest
		if !bindJSON(ctx, &request, false) {
			return
		}
		draft, err := request.draft()
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		group, err := handler.service.CreateGroup(ctx.Request.Context(), mustIdentity(ctx).UserID, kind, draft)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		respondOK(ctx, http.StatusCreated, newGroupPayload(group), kind.String()+" created")
	}
}

// handleListGroups lists owned groups for organizers and joined groups for participants.
func (handler *httpHandler) handleListGroups(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity := mustIdentity(ctx)
		if identity.Role == tontine.RoleOrganizer {
			groups, err := handler.service.ListOwnedGroups(ctx.Request.Context(), identity.UserID, kind)
			if err != nil {
				handler.respondError(ctx, err)
				return
			}
			respondOK(ctx, http.StatusOK, newGroupPayloads(groups), "")
			return
		}
		memberships, err := handler.service.Memberships(ctx.Request.Context(), identity.UserID)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		payloads := make([]membershipPayload, 0, len(memberships))
		for _, membership := range memberships {
			if membership.Group.Kind != kind {
				continue
			}
			payloads = append(payloads, membershipPayload{
				Group:       newGroupPayload(membership.Group),
				Participant: newParticipantPayload(membership.Participant),
			})
		}
		respondOK(ctx, http.StatusOK, payloads, "")
	}
}

func (handler *httpHandler) handleGetGroup(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ref, err := groupRefParam(ctx, "id", kind)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		view, err := handler.service.GetGroup(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		respondOK(ctx, http.StatusOK, groupViewPayload{
			Group:        newGroupPayload(view.Group),
			IsOwner:      view.IsOwner,
			Participants: newParticipantPayloads(view.Participants),
		}, "")
	}
}

func (handler *httpHandler) handleDeleteGroup(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ref, err := groupRefParam(ctx, "id", kind)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		if err := handler.service.DeleteGroup(ctx.Request.Context(), mustIdentity(ctx).UserID, ref); err != nil {
			handler.respondError(ctx, err)
			return
		}
		respondOK(ctx, http.StatusOK, nil, kind.String()+" deleted")
	}
}

func (handler *httpHandler) handleJoinByToken(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var request joinRequest
		if !bindJSON(ctx, &request, false) {
			return
		}
		if strings.TrimSpace(request.Token) == "" {
			respondFailure(ctx, http.StatusBadRequest, codeInvalidPayload, "token is required")
			return
		}
		group, err := handler.service.JoinByToken(ctx.Request.Context(), mustIdentity(ctx).UserID, kind, request.Token)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		respondOK(ctx, http.StatusOK, newGroupPayload(group), "joined "+kind.String())
	}
}

func (handler *httpHandler) handleRequestJoin(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var request groupRefBody
		if !bindJSON(ctx, &request, false) {
			return
		}
		ref, err := request.ref()
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		if ref.Kind == "" {
			ref.Kind = kind
		}
		if ref.Kind != kind {
			handler.respondError(ctx, fmt.Errorf("%w: expected a %s", tontine.ErrInvalidGroupKind, kind))
			return
		}
		participationRequest, err := handler.service.RequestJoin(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		respondOK(ctx, http.StatusCreated, newRequestPayload(participationRequest), "participation request sent")
	}
}

func (handler *httpHandler) handleAvailableGroups(ctx *gin.Context) {
	kind, err := optionalKindQuery(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	groups, err := handler.service.ListAvailableGroups(ctx.Request.Context(), mustIdentity(ctx).UserID, kind)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newGroupPayloads(groups), "")
}

func (handler *httpHandler) handleMemberships(ctx *gin.Context) {
	memberships, err := handler.service.Memberships(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]membershipPayload, 0, len(memberships))
	for _, membership := range memberships {
		payloads = append(payloads, membershipPayload{
			Group:       newGroupPayload(membership.Group),
			Participant: newParticipantPayload(membership.Participant),
		})
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleMembers(ctx *gin.Context) {
	ref, err := groupRefParam(ctx, "groupId", "")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participants, err := handler.service.Members(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newParticipantPayloads(participants), "")
}
