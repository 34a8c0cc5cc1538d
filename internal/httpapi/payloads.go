package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/shopspring/decimal"
)

type userPayload struct {
	ID        int64     `json:"id"`
	LastName  string    `json:"nom"`
	FirstName string    `json:"prenom"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsPremium bool      `json:"is_premium"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type userSummaryPayload struct {
	ID        int64  `json:"id"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type groupPayload struct {
	ID             int64           `json:"id"`
	Kind           string          `json:"kind"`
	OwnerID        int64           `json:"owner_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Bareme         int64           `json:"bareme"`
	CommissionRate decimal.Decimal `json:"commission"`
	DurationDays   int             `json:"duration_days,omitempty"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	AccessToken    string          `json:"access_token,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type groupSummaryPayload struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
}

type participantPayload struct {
	GroupID         int64              `json:"group_id"`
	UserID          int64              `json:"user_id"`
	PaymentStatus   string             `json:"payment_status"`
	PaymentDate     *time.Time         `json:"payment_date,omitempty"`
	FundsReceived   bool               `json:"funds_received"`
	FundReceiptDate *time.Time         `json:"fund_receipt_date,omitempty"`
	JoinedAt        time.Time          `json:"joined_at"`
	User            userSummaryPayload `json:"user"`
}

type groupViewPayload struct {
	Group        groupPayload         `json:"group"`
	IsOwner      bool                 `json:"is_owner"`
	Participants []participantPayload `json:"participants"`
}

type membershipPayload struct {
	Group       groupPayload       `json:"group"`
	Participant participantPayload `json:"participant"`
}

type groupParticipantsPayload struct {
	Group        groupPayload         `json:"group"`
	Participants []participantPayload `json:"participants"`
}

type balancePayload struct {
	TotalCollected   int64 `json:"total_collected"`
	TotalDistributed int64 `json:"total_distributed"`
	CurrentBalance   int64 `json:"current_balance"`
}

type paymentPayload struct {
	ID            int64     `json:"id"`
	GroupID       int64     `json:"group_id"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Method        string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	PaidTo        int64     `json:"paid_to"`
	PaidAt        time.Time `json:"payment_date"`
}

type distributionPayload struct {
	ID            int64     `json:"id"`
	GroupID       int64     `json:"group_id"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	DistributedBy int64     `json:"distributed_by"`
	DistributedAt time.Time `json:"distribution_date"`
}

type historyPayload struct {
	Kind          string              `json:"kind"`
	Group         groupSummaryPayload `json:"group"`
	Amount        int64               `json:"amount"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Method        string              `json:"payment_method,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

type groupStatsPayload struct {
	Group             groupPayload   `json:"group"`
	ParticipantCount  int            `json:"participant_count"`
	CompletedPayments int            `json:"completed_payments"`
	PendingPayments   int            `json:"pending_payments"`
	FundsDistributed  int            `json:"funds_distributed"`
	Balance           balancePayload `json:"balance"`
}

type organizerStatsPayload struct {
	TotalTontines     int            `json:"total_tontines"`
	TotalCorridors    int            `json:"total_corridors"`
	TotalParticipants int            `json:"total_participants"`
	PendingRequests   int64          `json:"pending_requests"`
	Tontines          balancePayload `json:"tontines"`
	Corridors         balancePayload `json:"corridors"`
	Total             balancePayload `json:"total"`
}

type participantPaymentPayload struct {
	Participant   participantPayload `json:"participant"`
	TotalPaid     int64              `json:"total_paid"`
	TotalReceived int64              `json:"total_received"`
}

type paymentOverviewPayload struct {
	Group             groupPayload                `json:"group"`
	Participants      []participantPaymentPayload `json:"participants"`
	ParticipantCount  int                         `json:"participant_count"`
	CompletedPayments int                         `json:"completed_payments"`
	PendingPayments   int                         `json:"pending_payments"`
	FundsDistributed  int                         `json:"funds_distributed"`
	Balance           balancePayload              `json:"balance"`
}

type requestPayload struct {
	ID        int64               `json:"id"`
	GroupID   int64               `json:"group_id"`
	UserID    int64               `json:"user_id"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Group     groupSummaryPayload `json:"group"`
	Requester userSummaryPayload  `json:"requester"`
}

type messagePayload struct {
	ID         int64      `json:"id"`
	SenderID   int64      `json:"sender_id"`
	ReceiverID int64      `json:"receiver_id"`
	GroupID    *int64     `json:"group_id,omitempty"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type conversationPayload struct {
	Counterpart userSummaryPayload `json:"counterpart"`
	LastMessage messagePayload     `json:"last_message"`
	UnreadCount int                `json:"unread_count"`
}

type notificationPayload struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

type trendPayload struct {
	Day          string `json:"day"`
	ActivityType string `json:"activity_type"`
	Interactions int    `json:"interactions"`
	UniqueUsers  int    `json:"unique_users"`
}

type engagementPayload struct {
	UserID           int64           `json:"user_id"`
	TotalActivities  int64           `json:"total_activities"`
	ActivitiesByType map[string]int  `json:"activities_by_type"`
	RecentActiveDays int             `json:"recent_active_days"`
	MessagesSent     int64           `json:"messages_sent"`
	PaymentsMade     int64           `json:"payments_made"`
	GroupsJoined     int64           `json:"groups_joined"`
	EngagementRate   decimal.Decimal `json:"engagement_rate"`
}

type platformPayload struct {
	TotalGroups         int             `json:"total_groups"`
	ActiveGroups        int             `json:"active_groups"`
	ClosedGroups        int             `json:"closed_groups"`
	GroupsByKind        map[string]int  `json:"groups_by_kind"`
	TotalParticipants   int             `json:"total_participants"`
	UniqueParticipants  int             `json:"unique_participants"`
	CompletedPayments   int             `json:"completed_payments"`
	PendingPayments     int             `json:"pending_payments"`
	PendingRequests     int64           `json:"pending_requests"`
	Collected           int64           `json:"total_collected"`
	Distributed         int64           `json:"total_distributed"`
	SuccessRate         decimal.Decimal `json:"success_rate"`
	AverageContribution decimal.Decimal `json:"average_contribution"`
}

type countPayload struct {
	Count int64 `json:"count"`
}

func newUserPayload(user tontine.User) userPayload {
	return userPayload{
		ID:        user.ID.Int64(),
		LastName:  user.LastName,
		FirstName: user.FirstName,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role.String(),
		IsPremium: user.IsPremium,
		Balance:   user.Balance.Int64(),
		CreatedAt: user.CreatedAt,
	}
}

func newUserSummaryPayload(summary tontine.UserSummary) userSummaryPayload {
	return userSummaryPayload{
		ID:        summary.ID.Int64(),
		LastName:  summary.LastName,
		FirstName: summary.FirstName,
		Email:     summary.Email,
		Phone:     summary.Phone,
	}
}

// newGroupPayload copies the access token as is; the service redacts it for non-owners.
func newGroupPayload(group tontine.Group) groupPayload {
	return groupPayload{
		ID:             group.ID.Int64(),
		Kind:           group.Kind.String(),
		OwnerID:        group.OwnerID.Int64(),
		Name:           group.Name,
		Description:    group.Description,
		Bareme:         group.Bareme.Int64(),
		CommissionRate: group.CommissionRate,
		DurationDays:   group.DurationDays,
		StartDate:      group.StartDate,
		Phone:          group.Phone,
		AccessToken:    group.AccessToken,
		Status:         string(group.Status),
		CreatedAt:      group.CreatedAt,
		UpdatedAt:      group.UpdatedAt,
	}
}

func newGroupPayloads(groups []tontine.Group) []groupPayload {
	payloads := make([]groupPayload, 0, len(groups))
	for _, group := range groups {
		payloads = append(payloads, newGroupPayload(group))
	}
	return payloads
}

func newGroupSummaryPayload(summary tontine.GroupSummary) groupSummaryPayload {
	return groupSummaryPayload{
		ID:      summary.ID.Int64(),
		Kind:    summary.Kind.String(),
		Name:    summary.Name,
		OwnerID: summary.OwnerID.Int64(),
	}
}

func newParticipantPayload(participant tontine.Participant) participantPayload {
	return participantPayload{
		GroupID:         participant.GroupID.Int64(),
		UserID:          participant.UserID.Int64(),
		PaymentStatus:   string(participant.PaymentStatus),
		PaymentDate:     participant.PaymentDate,
		FundsReceived:   participant.FundsReceived,
		FundReceiptDate: participant.FundReceiptDate,
		JoinedAt:        participant.JoinedAt,
		User:            newUserSummaryPayload(participant.User),
	}
}

func newParticipantPayloads(participants []tontine.Participant) []participantPayload {
	payloads := make([]participantPayload, 0, len(participants))
	for _, participant := range participants {
		payloads = append(payloads, newParticipantPayload(participant))
	}
	return payloads
}

func newBalancePayload(balance tontine.Balance) balancePayload {
	return balancePayload{
		TotalCollected:   balance.TotalCollected.Int64(),
		TotalDistributed: balance.TotalDistributed.Int64(),
		CurrentBalance:   balance.CurrentBalance.Int64(),
	}
}

func newPaymentPayload(payment tontine.Payment) paymentPayload {
	return paymentPayload{
		ID:            payment.ID,
		GroupID:       payment.GroupID.Int64(),
		UserID:        payment.UserID.Int64(),
		Amount:        payment.Amount.Int64(),
		Status:        string(payment.Status),
		Method:        string(payment.Method),
		TransactionID: payment.TransactionID,
		PaidTo:        payment.PaidTo.Int64(),
		PaidAt:        payment.PaidAt,
	}
}

func newDistributionPayload(distribution tontine.Distribution) distributionPayload {
	return distributionPayload{
		ID:            distribution.ID,
		GroupID:       distribution.GroupID.Int64(),
		UserID:        distribution.UserID.Int64(),
		Amount:        distribution.Amount.Int64(),
		DistributedBy: distribution.DistributedBy.Int64(),
		DistributedAt: distribution.DistributedAt,
	}
}

func newGroupStatsPayload(stats tontine.GroupStats) groupStatsPayload {
	return groupStatsPayload{
		Group:             newGroupPayload(stats.Group),
		ParticipantCount:  stats.ParticipantCount,
		CompletedPayments: stats.CompletedPayments,
		PendingPayments:   stats.PendingPayments,
		FundsDistributed:  stats.FundsDistributed,
		Balance:           newBalancePayload(stats.Balance),
	}
}

func newOrganizerStatsPayload(stats tontine.OrganizerStats) organizerStatsPayload {
	return organizerStatsPayload{
		TotalTontines:     stats.TotalTontines,
		TotalCorridors:    stats.TotalCorridors,
		TotalParticipants: stats.TotalParticipants,
		PendingRequests:   stats.PendingRequests,
		Tontines:          newBalancePayload(stats.Tontines),
		Corridors:         newBalancePayload(stats.Corridors),
		Total:             newBalancePayload(stats.Total),
	}
}

func newRequestPayload(request tontine.ParticipationRequest) requestPayload {
	return requestPayload{
		ID:        request.ID.Int64(),
		GroupID:   request.GroupID.Int64(),
		UserID:    request.UserID.Int64(),
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
		Group:     newGroupSummaryPayload(request.Group),
		Requester: newUserSummaryPayload(request.Requester),
	}
}

func newMessagePayload(message tontine.Message) messagePayload {
	payload := messagePayload{
		ID:         message.ID.Int64(),
		SenderID:   message.SenderID.Int64(),
		ReceiverID: message.ReceiverID.Int64(),
		Content:    message.Content,
		IsRead:     message.IsRead,
		ReadAt:     message.ReadAt,
		CreatedAt:  message.CreatedAt,
	}
	if message.GroupID != nil {
		groupID := message.GroupID.Int64()
		payload.GroupID = &groupID
	}
	return payload
}

func newMessagePayloads(messages []tontine.Message) []messagePayload {
	payloads := make([]messagePayload, 0, len(messages))
	for _, message := range messages {
		payloads = append(payloads, newMessagePayload(message))
	}
	return payloads
}

func newNotificationPayload(notification tontine.Notification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID.Int64(),
		Title:     notification.Title,
		Body:      notification.Body,
		Metadata:  json.RawMessage(notification.Metadata.String()),
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
}
