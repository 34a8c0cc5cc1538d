package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

type requestDecision struct {
	RequestID flexibleID `json:"requestId"`
	Action    string     `json:"action"`
}

type addParticipantRequest struct {
	groupRefBody
	Email string `json:"email"`
}

type removeParticipantRequest struct {
	groupRefBody
	UserID flexibleID `json:"userId"`
}

type replaceParticipantRequest struct {
	groupRefBody
	OldUserID    flexibleID `json:"oldUserId"`
	NewUserEmail string     `json:"newUserEmail"`
}

type broadcastRequest struct {
	groupRefBody
	Message string `json:"message"`
}

func (handler *httpHandler) handlePendingRequests(ctx *gin.Context) {
	requests, err := handler.service.PendingRequests(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]requestPayload, 0, len(requests))
	for _, request := range requests {
		payloads = append(payloads, newRequestPayload(request))
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleRequestDecision(ctx *gin.Context) {
	var decision requestDecision
	if !bindJSON(ctx, &decision, false) {
		return
	}
	requestID, err := tontine.NewRequestID(int64(decision.RequestID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	action, err := tontine.ParseRequestAction(decision.Action)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	resolved, err := handler.service.HandleRequest(ctx.Request.Context(), mustIdentity(ctx).UserID, requestID, action)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newRequestPayload(resolved), "request "+string(resolved.Status))
}

func (handler *httpHandler) handleParticipants(ctx *gin.Context) {
	ref, err := groupRefParam(ctx, "groupId", "")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participants, err := handler.service.Participants(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newParticipantPayloads(participants), "")
}

func (handler *httpHandler) handleAllParticipants(ctx *gin.Context) {
	groups, err := handler.service.AllParticipants(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]groupParticipantsPayload, 0, len(groups))
	for _, entry := range groups {
		payloads = append(payloads, groupParticipantsPayload{
			Group:        newGroupPayload(entry.Group),
			Participants: newParticipantPayloads(entry.Participants),
		})
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleUpdateGroup(ctx *gin.Context) {
	ref, err := groupRefParam(ctx, "groupId", "")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request groupPatchRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	patch, err := request.patch()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	group, err := handler.service.UpdateGroup(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, patch)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newGroupPayload(group), "group updated")
}

func (handler *httpHandler) handleAddParticipant(ctx *gin.Context) {
	var request addParticipantRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participant, err := handler.service.AddParticipant(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, request.Email)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusCreated, newParticipantPayload(participant), "participant added")
}

func (handler *httpHandler) handleRemoveParticipant(ctx *gin.Context) {
	var request removeParticipantRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	userID, err := tontine.NewUserID(int64(request.UserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.service.RemoveParticipant(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, userID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, nil, "participant removed")
}

func (handler *httpHandler) handleReplaceParticipant(ctx *gin.Context) {
	var request replaceParticipantRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	oldUserID, err := tontine.NewUserID(int64(request.OldUserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participant, err := handler.service.ReplaceParticipant(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, oldUserID, request.NewUserEmail)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newParticipantPayload(participant), "participant replaced")
}

func (handler *httpHandler) handleBroadcast(ctx *gin.Context) {
	var request broadcastRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	sent, err := handler.service.BroadcastToParticipants(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, request.Message)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: int64(sent)}, "message sent to participants")
}

func (handler *httpHandler) handleActiveGroups(kind tontine.GroupKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		stats, err := handler.service.ActiveGroupStats(ctx.Request.Context(), mustIdentity(ctx).UserID, kind)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		payloads := make([]groupStatsPayload, 0, len(stats))
		for _, entry := range stats {
			payloads = append(payloads, newGroupStatsPayload(entry))
		}
		respondOK(ctx, http.StatusOK, payloads, "")
	}
}
