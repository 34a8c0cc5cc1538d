package httpapi

import (
	"context"
	"net/http"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

type simulatePaymentRequest struct {
	groupRefBody
	Amount int64 `json:"amount"`
}

type paymentStatusRequest struct {
	groupRefBody
	UserID flexibleID `json:"userId"`
	Status string     `json:"status"`
	Amount int64      `json:"amount"`
}

type distributeRequest struct {
	groupRefBody
	UserID        flexibleID `json:"userId"`
	ParticipantID flexibleID `json:"participantId"`
	Amount        int64      `json:"amount"`
}

type reminderRequest struct {
	groupRefBody
	Message string `json:"message"`
}

func (request distributeRequest) recipient() (tontine.UserID, error) {
	if request.UserID != 0 {
		return tontine.NewUserID(int64(request.UserID))
	}
	return tontine.NewUserID(int64(request.ParticipantID))
}

func (handler *httpHandler) handleSimulatePayment(ctx *gin.Context) {
	var request simulatePaymentRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := parseAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payment, err := handler.service.RecordPayment(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newPaymentPayload(payment), "payment recorded")
}

func (handler *httpHandler) handleUpdatePaymentStatus(ctx *gin.Context) {
	var request paymentStatusRequest
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
	status, err := tontine.ParsePaymentStatus(request.Status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := parseAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participant, err := handler.service.UpdatePaymentStatus(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, userID, status, amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newParticipantPayload(participant), "payment status updated")
}

func (handler *httpHandler) handleDistribute(ctx *gin.Context) {
	handler.distribute(ctx, handler.service.DistributeFunds, "funds distributed")
}

func (handler *httpHandler) handlePaymentRound(ctx *gin.Context) {
	handler.distribute(ctx, handler.service.PayoutRound, "payment round completed")
}

type distributeFunc func(ctx context.Context, organizerID tontine.UserID, ref tontine.GroupRef, recipientID tontine.UserID, amount tontine.PositiveAmount) (tontine.Distribution, error)

func (handler *httpHandler) distribute(ctx *gin.Context, operation distributeFunc, message string) {
	var request distributeRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	recipientID, err := request.recipient()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := tontine.NewPositiveAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	distribution, err := operation(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, recipientID, amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newDistributionPayload(distribution), message)
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	kind, err := optionalKindQuery(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if kind == "" {
		kind = tontine.GroupKindTontine
	}
	ref, err := groupRefParam(ctx, "tontineId", kind)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.service.Balance(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newBalancePayload(balance), "")
}

func (handler *httpHandler) handlePaymentOverview(ctx *gin.Context) {
	ref, err := groupRefParam(ctx, "groupId", "")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	overview, err := handler.service.PaymentOverview(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	participants := make([]participantPaymentPayload, 0, len(overview.Participants))
	for _, entry := range overview.Participants {
		participants = append(participants, participantPaymentPayload{
			Participant:   newParticipantPayload(entry.Participant),
			TotalPaid:     entry.TotalPaid.Int64(),
			TotalReceived: entry.TotalReceived.Int64(),
		})
	}
	respondOK(ctx, http.StatusOK, paymentOverviewPayload{
		Group:             newGroupPayload(overview.Group),
		Participants:      participants,
		ParticipantCount:  overview.ParticipantCount,
		CompletedPayments: overview.CompletedPayments,
		PendingPayments:   overview.PendingPayments,
		FundsDistributed:  overview.FundsDistributed,
		Balance:           newBalancePayload(overview.Balance),
	}, "")
}

func (handler *httpHandler) handleGroupPayments(ctx *gin.Context) {
	ref, err := groupRefParam(ctx, "groupId", "")
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payments, err := handler.service.GroupPayments(ctx.Request.Context(), mustIdentity(ctx).UserID, ref)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]paymentPayload, 0, len(payments))
	for _, payment := range payments {
		payloads = append(payloads, newPaymentPayload(payment))
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleReminder(ctx *gin.Context) {
	var request reminderRequest
	if !bindJSON(ctx, &request, false) {
		return
	}
	ref, err := request.ref()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	reminded, err := handler.service.SendPaymentReminder(ctx.Request.Context(), mustIdentity(ctx).UserID, ref, request.Message)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, countPayload{Count: int64(reminded)}, "reminders sent")
}

func (handler *httpHandler) handlePaymentHistory(ctx *gin.Context) {
	history, err := handler.service.PaymentHistory(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]historyPayload, 0, len(history))
	for _, entry := range history {
		payloads = append(payloads, historyPayload{
			Kind:          entry.Kind,
			Group:         newGroupSummaryPayload(entry.Group),
			Amount:        entry.Amount.Int64(),
			TransactionID: entry.TransactionID,
			Method:        string(entry.Method),
			OccurredAt:    entry.OccurredAt,
		})
	}
	respondOK(ctx, http.StatusOK, payloads, "")
}

func (handler *httpHandler) handleOrganizerBalance(ctx *gin.Context) {
	stats, err := handler.service.OrganizerBalance(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, gin.H{
		"tontines":  newBalancePayload(stats.Tontines),
		"corridors": newBalancePayload(stats.Corridors),
		"total":     newBalancePayload(stats.Total),
	}, "")
}

func (handler *httpHandler) handleOrganizerStats(ctx *gin.Context) {
	stats, err := handler.service.OrganizerStats(ctx.Request.Context(), mustIdentity(ctx).UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	respondOK(ctx, http.StatusOK, newOrganizerStatsPayload(stats), "")
}
