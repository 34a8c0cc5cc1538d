package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID flexibleID `json:"receiver_id"`
	TontineID  flexibleID `json:"tontine_id"`
	CorridorID flexibleID `json:"corridor_id"`
	GroupID    flexibleID `json:"group_id"`
	Content    string     `json:"content"`
	Message    string     `json:"message"`
}

type markReadRequest struct {
	MessageIDs []flexibleID `json:"messageIds"`
	SenderID   flexibleID   `json:"senderId"`
}

func (request markReadRequest) filter() (tontine.ReadFilter, error) {
	filter := tontine.ReadFilter{}
	for _, rawID := range request.MessageIDs {
		if rawID <= 0 {
			return tontine.ReadFilter{}, fmt.Errorf("%w: message id %d", tontine.ErrInvalidMessage, rawID)
		}
		filter.MessageIDs = append(filter.MessageIDs, tontine.MessageID(rawID))
	}
	if request.SenderID != 0 {
		senderID, err := tontine.NewUserID(int64(request.SenderID))
		if err != nil {
			return tontine.ReadFilter{}, err
		}
		filter.SenderID = &senderID
	}
	return filter, nil
}

func (handler *httpHandler) handleSendMessage(ctx *gin.Context) {
	var request sendMessageRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	receiverID, err := tontine.NewUserID(int64(request.ReceiverID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	groupID, err := optionalGroupID(request.GroupID, request.TontineID, request.CorridorID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	content := request.Content
	if strings.TrimSpace(content) == "" {
		content = request.Message
	}
	message, err := handler.service.SendMessage(ctx.Request.Context(), mustIdentity(ctx).UserID, receiverID, groupID, content)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusCreated, newMessagePayload(message), "message sent")
}

func (handler *httpHandler) handleMarkRead(ctx *gin.Context) {
	var request markReadRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	filter, err := request.filter()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	updated, err := handler.service.MarkRead(ctx.Request.Context(), mustIdentity(ctx).UserID, filter)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: updated}, "messages marked as read")
}

func (handler *httpHandler) handleConversations(ctx *gin.Context) {
	conversations, err := handler.service.Conversations(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]conversationPayload, 0, len(conversations))
	for _, conversation := range conversations {
		payloads = append(payloads, conversationPayload{
			Counterpart: newUserSummaryPayload(conversation.Counterpart),
			LastMessage: newMessagePayload(conversation.LastMessage),
			UnreadCount: conversation.UnreadCount,
		})
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleUnread(ctx *gin.Context) {
	messages, err := handler.service.UnreadMessages(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newMessagePayloads(messages), "")
}

func (handler *httpHandler) handleConversation(ctx *gin.Context) {
	otherID, err := userIDParam(ctx, "userId")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	groupID, err := optionalGroupQuery(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	messages, err := handler.service.Conversation(ctx.Request.Context(), mustIdentity(ctx).UserID, otherID, groupID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newMessagePayloads(messages), "")
}

func (handler *httpHandler) handleDeleteMessage(ctx *gin.Context) {
	rawID, err := parseInt64(ctx.Param("id"))
	if err != nil || rawID <= 0 {
		handler.respondError(ctx, fmt.Errorf("%w: message id %q", tontine.ErrInvalidMessage, ctx.Param("id")))
		return
	}
	if err := handler.service.DeleteMessage(ctx.Request.Context(), mustIdentity(ctx).UserID, tontine.MessageID(rawID)); err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, nil, "message deleted")
}

func (handler *httpHandler) handleDeleteConversation(ctx *gin.Context) {
	otherID, err := userIDParam(ctx, "userId")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	deleted, err := handler.service.DeleteConversation(ctx.Request.Context(), mustIdentity(ctx).UserID, otherID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: deleted}, "conversation deleted")
}

func (handler *httpHandler) handleClearMessages(ctx *gin.Context) {
	deleted, err := handler.service.ClearMessages(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: deleted}, "messages cleared")
}
