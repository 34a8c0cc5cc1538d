package tontine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultTrendDays   = 30
	maxTrendDays       = 365
	engagementWindow   = 7
	dayLayout          = "2006-01-02"
	ratioDecimalPlaces = 2
	maxActivityType    = 64
)

var hundred = decimal.NewFromInt(100)

// TrendQuery narrows ActivityTrend.
type TrendQuery struct {
	Days   int
	Type   string
	UserID *UserID
}

// TrendPoint counts interactions of one type on one day.
type TrendPoint struct {
	Day          string
	ActivityType string
	Interactions int
	UniqueUsers  int
}

// Engagement summarizes how active a single user is.
type Engagement struct {
	UserID           UserID
	TotalActivities  int64
	ActivitiesByType map[string]int
	RecentActiveDays int
	MessagesSent     int64
	PaymentsMade     int64
	GroupsJoined     int64
	// EngagementRate is the share of the last seven days with at least one activity, in percent.
	EngagementRate decimal.Decimal
}

// PlatformAnalytics summarizes an organizer's groups.
type PlatformAnalytics struct {
	TotalGroups         int
	ActiveGroups        int
	ClosedGroups        int
	GroupsByKind        map[GroupKind]int
	TotalParticipants   int
	UniqueParticipants  int
	CompletedPayments   int
	PendingPayments     int
	PendingRequests     int64
	Collected           Amount
	Distributed         Amount
	SuccessRate         decimal.Decimal
	AverageContribution decimal.Decimal
}

// RecordActivity appends one entry to the activity log.
func (service *Service) RecordActivity(ctx context.Context, activity Activity) error {
	activityType := strings.TrimSpace(activity.Type)
	if activityType == "" || len(activityType) > maxActivityType {
		return fmt.Errorf("%w: type must be 1 to %d characters", ErrInvalidActivity, maxActivityType)
	}
	activity.Type = activityType
	if activity.Description == "" {
		activity.Description = activityType + " activity"
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = service.now()
	}
	err := service.store.InsertActivity(ctx, activity)
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation: operationRecordActivity,
			UserID:    activity.UserID,
			Error:     err,
		})
	}
	return err
}

// ActivityTrend groups recent activity per day and type, newest day first.
func (service *Service) ActivityTrend(ctx context.Context, query TrendQuery) ([]TrendPoint, error) {
	days := query.Days
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	since := service.now().Add(-time.Duration(days) * 24 * time.Hour)
	activities, err := service.store.ListActivities(ctx, ActivityFilter{
		UserID: query.UserID,
		Type:   strings.TrimSpace(query.Type),
		Since:  since,
	})
	if err != nil {
		return nil, err
	}
	type bucketKey struct {
		day          string
		activityType string
	}
	type bucket struct {
		interactions int
		users        map[UserID]struct{}
	}
	buckets := make(map[bucketKey]*bucket)
	for _, activity := range activities {
		key := bucketKey{day: activity.CreatedAt.UTC().Format(dayLayout), activityType: activity.Type}
		current, ok := buckets[key]
		if !ok {
			current = &bucket{users: make(map[UserID]struct{})}
			buckets[key] = current
		}
		current.interactions++
		current.users[activity.UserID] = struct{}{}
	}
	points := make([]TrendPoint, 0, len(buckets))
	for key, value := range buckets {
		points = append(points, TrendPoint{
			Day:          key.day,
			ActivityType: key.activityType,
			Interactions: value.interactions,
			UniqueUsers:  len(value.users),
		})
	}
	sort.Slice(points, func(left, right int) bool {
		if points[left].Day != points[right].Day {
			return points[left].Day > points[right].Day
		}
		if points[left].Interactions != points[right].Interactions {
			return points[left].Interactions > points[right].Interactions
		}
		return points[left].ActivityType < points[right].ActivityType
	})
	return points, nil
}

// UserEngagement returns the caller's own engagement figures.
func (service *Service) UserEngagement(ctx context.Context, callerID UserID, userID UserID) (Engagement, error) {
	if callerID != userID {
		return Engagement{}, fmt.Errorf("%w: engagement of another user", ErrForbidden)
	}
	if _, err := service.store.GetUser(ctx, userID); err != nil {
		return Engagement{}, err
	}
	total, err := service.store.CountActivities(ctx, ActivityFilter{UserID: &userID})
	if err != nil {
		return Engagement{}, err
	}
	recentSince := service.now().Add(-engagementWindow * 24 * time.Hour)
	recent, err := service.store.ListActivities(ctx, ActivityFilter{UserID: &userID, Since: recentSince})
	if err != nil {
		return Engagement{}, err
	}
	activeDays := make(map[string]struct{})
	byType := make(map[string]int)
	for _, activity := range recent {
		activeDays[activity.CreatedAt.UTC().Format(dayLayout)] = struct{}{}
		byType[activity.Type]++
	}
	messagesSent, err := service.store.CountMessagesSent(ctx, userID)
	if err != nil {
		return Engagement{}, err
	}
	paymentsMade, err := service.store.CountPayments(ctx, LedgerFilter{UserID: &userID})
	if err != nil {
		return Engagement{}, err
	}
	groupsJoined, err := service.store.CountMemberships(ctx, userID)
	if err != nil {
		return Engagement{}, err
	}
	return Engagement{
		UserID:           userID,
		TotalActivities:  total,
		ActivitiesByType: byType,
		RecentActiveDays: len(activeDays),
		MessagesSent:     messagesSent,
		PaymentsMade:     paymentsMade,
		GroupsJoined:     groupsJoined,
		EngagementRate:   percentage(int64(len(activeDays)), engagementWindow),
	}, nil
}

// PlatformAnalytics aggregates participation and money flows over the organizer's groups.
func (service *Service) PlatformAnalytics(ctx context.Context, organizerID UserID) (PlatformAnalytics, error) {
	groups, err := service.store.ListGroups(ctx, GroupFilter{OwnerID: &organizerID})
	if err != nil {
		return PlatformAnalytics{}, err
	}
	analytics := PlatformAnalytics{
		TotalGroups:  len(groups),
		GroupsByKind: map[GroupKind]int{GroupKindTontine: 0, GroupKindCorridor: 0},
	}
	uniqueParticipants := make(map[UserID]struct{})
	paymentCount := int64(0)
	for _, group := range groups {
		analytics.GroupsByKind[group.Kind]++
		if group.Status == GroupStatusActive {
			analytics.ActiveGroups++
		} else {
			analytics.ClosedGroups++
		}
		participants, err := service.store.ListParticipants(ctx, group.ID)
		if err != nil {
			return PlatformAnalytics{}, err
		}
		for _, participant := range participants {
			analytics.TotalParticipants++
			uniqueParticipants[participant.UserID] = struct{}{}
			if participant.PaymentStatus == PaymentStatusCompleted {
				analytics.CompletedPayments++
			} else {
				analytics.PendingPayments++
			}
		}
		balance, err := computeBalance(ctx, service.store, group.ID)
		if err != nil {
			return PlatformAnalytics{}, err
		}
		if analytics.Collected, err = addAmounts(analytics.Collected, balance.TotalCollected); err != nil {
			return PlatformAnalytics{}, err
		}
		if analytics.Distributed, err = addAmounts(analytics.Distributed, balance.TotalDistributed); err != nil {
			return PlatformAnalytics{}, err
		}
		groupID := group.ID
		count, err := service.store.CountPayments(ctx, LedgerFilter{GroupID: &groupID})
		if err != nil {
			return PlatformAnalytics{}, err
		}
		paymentCount += count
	}
	analytics.UniqueParticipants = len(uniqueParticipants)
	analytics.PendingRequests, err = service.store.CountPendingRequests(ctx, organizerID)
	if err != nil {
		return PlatformAnalytics{}, err
	}
	analytics.SuccessRate = percentage(int64(analytics.CompletedPayments), int64(analytics.TotalParticipants))
	analytics.AverageContribution = decimal.Zero
	if paymentCount > 0 {
		analytics.AverageContribution = decimal.NewFromInt(analytics.Collected.Int64()).
			DivRound(decimal.NewFromInt(paymentCount), ratioDecimalPlaces)
	}
	return analytics, nil
}

func percentage(part int64, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).DivRound(decimal.NewFromInt(whole), ratioDecimalPlaces)
}
