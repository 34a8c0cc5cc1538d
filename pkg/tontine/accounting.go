package tontine

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// OrganizerStats aggregates everything an organizer owns.
type OrganizerStats struct {
	TotalTontines     int
	TotalCorridors    int
	TotalParticipants int
	PendingRequests   int64
	Tontines          Balance
	Corridors         Balance
	Total             Balance
}

// ParticipantPayment is one member's standing inside a payment overview.
type ParticipantPayment struct {
	Participant   Participant
	TotalPaid     Amount
	TotalReceived Amount
}

// PaymentOverview is the organizer's view of a group's current round.
type PaymentOverview struct {
	Group             Group
	Participants      []ParticipantPayment
	ParticipantCount  int
	CompletedPayments int
	PendingPayments   int
	FundsDistributed  int
	Balance           Balance
}

// HistoryEntry is either a payment made or a distribution received by a user.
type HistoryEntry struct {
	Kind          string
	Group         GroupSummary
	Amount        PositiveAmount
	TransactionID string
	Method        PaymentMethod
	OccurredAt    time.Time
}

const (
	HistoryKindPayment      = "payment"
	HistoryKindDistribution = "distribution"
)

// Balance returns collected, distributed, and current amounts for a group the caller owns.
func (service *Service) Balance(ctx context.Context, callerID UserID, ref GroupRef) (Balance, error) {
	group, err := service.loadOwnedGroup(ctx, service.store, callerID, ref)
	if err != nil {
		return Balance{}, err
	}
	return computeBalance(ctx, service.store, group.ID)
}

// RecordPayment books the caller's contribution for the current round.
// A zero amount contributes the group's bareme.
func (service *Service) RecordPayment(ctx context.Context, payerID UserID, ref GroupRef, amount Amount) (Payment, error) {
	unlock := service.groupLocks.lock(ref.ID)
	defer unlock()

	var payment Payment
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = lockGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		participant, err := transactionStore.GetParticipant(ctx, group.ID, payerID)
		if err != nil {
			if isMissingParticipant(err) {
				return fmt.Errorf("%w: group %d", ErrNotParticipant, group.ID)
			}
			return err
		}
		if participant.PaymentStatus == PaymentStatusCompleted {
			return fmt.Errorf("%w: group %d", ErrAlreadyPaid, group.ID)
		}
		paid, err := resolveContribution(amount, group.Bareme)
		if err != nil {
			return err
		}
		payment, err = service.bookPayment(ctx, transactionStore, group, payerID, paid, PaymentMethodSimulation)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRecordPayment,
		UserID:    payerID,
		GroupID:   ref.ID,
		Amount:    payment.Amount.ToAmount(),
		Error:     operationError,
	})
	if operationError != nil {
		return Payment{}, operationError
	}
	service.notify(ctx, group.OwnerID, "Payment received",
		fmt.Sprintf("A participant paid %d XOF into %q.", payment.Amount, group.Name),
		map[string]any{"type": "payment_received", "groupId": group.ID, "userId": payerID, "amount": payment.Amount, "transactionId": payment.TransactionID})
	return payment, nil
}

// UpdatePaymentStatus lets the owner mark a member as paid or reset them to pending.
// Marking completed books a manual payment with the same double-payment guard as RecordPayment.
func (service *Service) UpdatePaymentStatus(ctx context.Context, organizerID UserID, ref GroupRef, userID UserID, status PaymentStatus, amount Amount) (Participant, error) {
	if _, err := ParsePaymentStatus(string(status)); err != nil {
		return Participant{}, err
	}
	unlock := service.groupLocks.lock(ref.ID)
	defer unlock()

	var updated Participant
	var group Group
	var booked Payment
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = lockGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		if err := requireOwner(group, organizerID); err != nil {
			return err
		}
		participant, err := transactionStore.GetParticipant(ctx, group.ID, userID)
		if err != nil {
			return err
		}
		switch status {
		case PaymentStatusCompleted:
			if participant.PaymentStatus == PaymentStatusCompleted {
				return fmt.Errorf("%w: group %d", ErrAlreadyPaid, group.ID)
			}
			paid, err := resolveContribution(amount, group.Bareme)
			if err != nil {
				return err
			}
			booked, err = service.bookPayment(ctx, transactionStore, group, userID, paid, PaymentMethodManual)
			if err != nil {
				return err
			}
		case PaymentStatusPending:
			if participant.PaymentStatus == PaymentStatusPending {
				break
			}
			if err := transactionStore.ResetPayment(ctx, group.ID, userID); err != nil {
				return err
			}
		}
		updated, err = transactionStore.GetParticipant(ctx, group.ID, userID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdatePaymentStatus,
		UserID:    organizerID,
		GroupID:   ref.ID,
		TargetID:  userID,
		Amount:    booked.Amount.ToAmount(),
		Error:     operationError,
	})
	if operationError != nil {
		return Participant{}, operationError
	}
	service.notify(ctx, userID, "Payment status updated",
		fmt.Sprintf("Your payment status in %q is now %s.", group.Name, updated.PaymentStatus),
		map[string]any{"type": "payment_status", "groupId": group.ID, "status": updated.PaymentStatus})
	return updated, nil
}

// DistributeFunds pays amount out of an owned group to one of its participants.
// Distributions are serialized per group and never exceed the current balance.
func (service *Service) DistributeFunds(ctx context.Context, organizerID UserID, ref GroupRef, recipientID UserID, amount PositiveAmount) (Distribution, error) {
	return service.distribute(ctx, operationDistributeFunds, organizerID, ref, recipientID, amount, false)
}

// PayoutRound distributes to a participant once every member has paid the current round.
func (service *Service) PayoutRound(ctx context.Context, organizerID UserID, ref GroupRef, recipientID UserID, amount PositiveAmount) (Distribution, error) {
	return service.distribute(ctx, operationPayoutRound, organizerID, ref, recipientID, amount, true)
}

func (service *Service) distribute(ctx context.Context, operation string, organizerID UserID, ref GroupRef, recipientID UserID, amount PositiveAmount, requireAllPaid bool) (Distribution, error) {
	if _, err := NewPositiveAmount(amount.Int64()); err != nil {
		return Distribution{}, err
	}
	unlock := service.groupLocks.lock(ref.ID)
	defer unlock()

	var distribution Distribution
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = lockGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		if err := requireOwner(group, organizerID); err != nil {
			return err
		}
		if _, err := transactionStore.GetUser(ctx, recipientID); err != nil {
			return err
		}
		if _, err := transactionStore.GetParticipant(ctx, group.ID, recipientID); err != nil {
			return err
		}
		if requireAllPaid {
			if err := requireRoundComplete(ctx, transactionStore, group.ID); err != nil {
				return err
			}
		}
		balance, err := computeBalance(ctx, transactionStore, group.ID)
		if err != nil {
			return err
		}
		if balance.CurrentBalance < amount.ToAmount() {
			return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientFunds, balance.CurrentBalance, amount)
		}
		now := service.now()
		distribution, err = transactionStore.InsertDistribution(ctx, Distribution{
			GroupID:       group.ID,
			UserID:        recipientID,
			Amount:        amount,
			DistributedBy: organizerID,
			DistributedAt: now,
		})
		if err != nil {
			return err
		}
		if err := transactionStore.MarkFundsReceived(ctx, group.ID, recipientID, now); err != nil {
			return err
		}
		return transactionStore.AdjustUserBalance(ctx, group.OwnerID, -amount.Int64())
	})
	service.logOperation(ctx, OperationLog{
		Operation: operation,
		UserID:    organizerID,
		GroupID:   ref.ID,
		TargetID:  recipientID,
		Amount:    amount.ToAmount(),
		Error:     operationError,
	})
	if operationError != nil {
		return Distribution{}, operationError
	}
	service.notify(ctx, recipientID, "Funds received",
		fmt.Sprintf("You received %d XOF from %q.", amount, group.Name),
		map[string]any{"type": operation, "groupId": group.ID, "amount": amount})
	return distribution, nil
}

// OrganizerStats aggregates balances, participants, and pending requests across owned groups.
func (service *Service) OrganizerStats(ctx context.Context, organizerID UserID) (OrganizerStats, error) {
	groups, err := service.store.ListGroups(ctx, GroupFilter{OwnerID: &organizerID})
	if err != nil {
		return OrganizerStats{}, err
	}
	stats := OrganizerStats{}
	for _, group := range groups {
		balance, err := computeBalance(ctx, service.store, group.ID)
		if err != nil {
			return OrganizerStats{}, err
		}
		participants, err := service.store.ListParticipants(ctx, group.ID)
		if err != nil {
			return OrganizerStats{}, err
		}
		stats.TotalParticipants += len(participants)
		switch group.Kind {
		case GroupKindTontine:
			stats.TotalTontines++
			stats.Tontines, err = stats.Tontines.Add(balance)
		case GroupKindCorridor:
			stats.TotalCorridors++
			stats.Corridors, err = stats.Corridors.Add(balance)
		}
		if err != nil {
			return OrganizerStats{}, err
		}
	}
	stats.Total, err = stats.Tontines.Add(stats.Corridors)
	if err != nil {
		return OrganizerStats{}, err
	}
	stats.PendingRequests, err = service.store.CountPendingRequests(ctx, organizerID)
	if err != nil {
		return OrganizerStats{}, err
	}
	return stats, nil
}

// OrganizerBalance returns the balance totals part of OrganizerStats.
func (service *Service) OrganizerBalance(ctx context.Context, organizerID UserID) (OrganizerStats, error) {
	stats, err := service.OrganizerStats(ctx, organizerID)
	if err != nil {
		return OrganizerStats{}, err
	}
	return OrganizerStats{
		TotalTontines:  stats.TotalTontines,
		TotalCorridors: stats.TotalCorridors,
		Tontines:       stats.Tontines,
		Corridors:      stats.Corridors,
		Total:          stats.Total,
	}, nil
}

// PaymentOverview returns each member's payment standing in an owned group.
func (service *Service) PaymentOverview(ctx context.Context, organizerID UserID, ref GroupRef) (PaymentOverview, error) {
	group, err := service.loadOwnedGroup(ctx, service.store, organizerID, ref)
	if err != nil {
		return PaymentOverview{}, err
	}
	stats, err := service.groupStats(ctx, service.store, group)
	if err != nil {
		return PaymentOverview{}, err
	}
	participants, err := service.store.ListParticipants(ctx, group.ID)
	if err != nil {
		return PaymentOverview{}, err
	}
	overview := PaymentOverview{
		Group:             group,
		Participants:      make([]ParticipantPayment, 0, len(participants)),
		ParticipantCount:  stats.ParticipantCount,
		CompletedPayments: stats.CompletedPayments,
		PendingPayments:   stats.PendingPayments,
		FundsDistributed:  stats.FundsDistributed,
		Balance:           stats.Balance,
	}
	for _, participant := range participants {
		userID := participant.UserID
		filter := LedgerFilter{GroupID: &group.ID, UserID: &userID}
		paid, err := service.store.SumPayments(ctx, filter)
		if err != nil {
			return PaymentOverview{}, err
		}
		received, err := service.store.SumDistributions(ctx, filter)
		if err != nil {
			return PaymentOverview{}, err
		}
		overview.Participants = append(overview.Participants, ParticipantPayment{
			Participant:   participant,
			TotalPaid:     paid,
			TotalReceived: received,
		})
	}
	return overview, nil
}

// GroupPayments lists the payment rows of an owned group, newest first.
func (service *Service) GroupPayments(ctx context.Context, organizerID UserID, ref GroupRef) ([]Payment, error) {
	group, err := service.loadOwnedGroup(ctx, service.store, organizerID, ref)
	if err != nil {
		return nil, err
	}
	return service.store.ListPayments(ctx, LedgerFilter{GroupID: &group.ID})
}

// PaymentHistory lists the caller's payments and received distributions, newest first.
func (service *Service) PaymentHistory(ctx context.Context, userID UserID) ([]HistoryEntry, error) {
	filter := LedgerFilter{UserID: &userID}
	payments, err := service.store.ListPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	distributions, err := service.store.ListDistributions(ctx, filter)
	if err != nil {
		return nil, err
	}
	groups := make(map[GroupID]GroupSummary)
	summaryFor := func(groupID GroupID) GroupSummary {
		if summary, ok := groups[groupID]; ok {
			return summary
		}
		summary := GroupSummary{ID: groupID}
		if group, err := service.store.GetGroup(ctx, groupID); err == nil {
			summary = group.Summary()
		}
		groups[groupID] = summary
		return summary
	}
	history := make([]HistoryEntry, 0, len(payments)+len(distributions))
	for _, payment := range payments {
		history = append(history, HistoryEntry{
			Kind:          HistoryKindPayment,
			Group:         summaryFor(payment.GroupID),
			Amount:        payment.Amount,
			TransactionID: payment.TransactionID,
			Method:        payment.Method,
			OccurredAt:    payment.PaidAt,
		})
	}
	for _, distribution := range distributions {
		history = append(history, HistoryEntry{
			Kind:       HistoryKindDistribution,
			Group:      summaryFor(distribution.GroupID),
			Amount:     distribution.Amount,
			OccurredAt: distribution.DistributedAt,
		})
	}
	sort.SliceStable(history, func(left, right int) bool {
		return history[left].OccurredAt.After(history[right].OccurredAt)
	})
	return history, nil
}

// SendPaymentReminder notifies every member of an owned group whose payment is pending.
func (service *Service) SendPaymentReminder(ctx context.Context, organizerID UserID, ref GroupRef, message string) (int, error) {
	group, err := service.loadOwnedGroup(ctx, service.store, organizerID, ref)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationPaymentReminder, UserID: organizerID, GroupID: ref.ID, Error: err})
		return 0, err
	}
	participants, err := service.store.ListParticipants(ctx, group.ID)
	if err != nil {
		return 0, err
	}
	body := message
	if body == "" {
		body = fmt.Sprintf("Your contribution of %d XOF to %q is still pending.", group.Bareme, group.Name)
	}
	reminded := 0
	for _, participant := range participants {
		if participant.PaymentStatus != PaymentStatusPending {
			continue
		}
		service.notify(ctx, participant.UserID, "Payment reminder", body,
			map[string]any{"type": "payment_reminder", "groupId": group.ID, "amount": group.Bareme})
		reminded++
	}
	service.logOperation(ctx, OperationLog{Operation: operationPaymentReminder, UserID: organizerID, GroupID: group.ID})
	return reminded, nil
}

// bookPayment writes the payment row, flips the participant, and credits the owner in the caller's transaction.
func (service *Service) bookPayment(ctx context.Context, store Store, group Group, payerID UserID, amount PositiveAmount, method PaymentMethod) (Payment, error) {
	if _, err := NewPositiveAmount(amount.Int64()); err != nil {
		return Payment{}, err
	}
	balance, err := computeBalance(ctx, store, group.ID)
	if err != nil {
		return Payment{}, err
	}
	if _, err := addAmounts(balance.TotalCollected, amount.ToAmount()); err != nil {
		return Payment{}, err
	}
	owner, err := store.GetUser(ctx, group.OwnerID)
	if err != nil {
		return Payment{}, err
	}
	if _, err := addAmounts(owner.Balance, amount.ToAmount()); err != nil {
		return Payment{}, err
	}
	now := service.now()
	if err := store.CompletePayment(ctx, group.ID, payerID, now); err != nil {
		return Payment{}, err
	}
	prefix := transactionPrefixSimulation
	if method == PaymentMethodManual {
		prefix = transactionPrefixManual
	}
	payment, err := store.InsertPayment(ctx, Payment{
		GroupID:       group.ID,
		UserID:        payerID,
		Amount:        amount,
		Status:        PaymentStatusCompleted,
		Method:        method,
		TransactionID: prefix + service.newToken(),
		PaidTo:        group.OwnerID,
		PaidAt:        now,
	})
	if err != nil {
		return Payment{}, err
	}
	if err := store.AdjustUserBalance(ctx, group.OwnerID, amount.Int64()); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func computeBalance(ctx context.Context, store LedgerStore, groupID GroupID) (Balance, error) {
	filter := LedgerFilter{GroupID: &groupID}
	collected, err := store.SumPayments(ctx, filter)
	if err != nil {
		return Balance{}, err
	}
	distributed, err := store.SumDistributions(ctx, filter)
	if err != nil {
		return Balance{}, err
	}
	if collected > maxLedgerTotal || distributed > maxLedgerTotal {
		return Balance{}, WrapError(errorOperationService, errorSubjectBalance, errorCodeOverflow, ErrInvalidBalance)
	}
	current := collected - distributed
	if current < 0 {
		return Balance{}, WrapError(errorOperationService, errorSubjectBalance, errorCodeNegative, ErrInvalidBalance)
	}
	return Balance{
		TotalCollected:   collected,
		TotalDistributed: distributed,
		CurrentBalance:   current,
	}, nil
}

func requireRoundComplete(ctx context.Context, store ParticipantStore, groupID GroupID) error {
	participants, err := store.ListParticipants(ctx, groupID)
	if err != nil {
		return err
	}
	completed := 0
	for _, participant := range participants {
		if participant.PaymentStatus == PaymentStatusCompleted {
			completed++
		}
	}
	if completed != len(participants) {
		return fmt.Errorf("%w: %d/%d payments completed", ErrPaymentsIncomplete, completed, len(participants))
	}
	return nil
}

func resolveContribution(amount Amount, bareme Amount) (PositiveAmount, error) {
	if amount == 0 {
		amount = bareme
	}
	return NewPositiveAmount(amount.Int64())
}
