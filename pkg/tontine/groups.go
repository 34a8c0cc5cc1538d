package tontine

import (
	"context"
	"fmt"
)

// GroupView is a group as seen by a caller. Participants are only filled for the owner.
type GroupView struct {
	Group        Group
	IsOwner      bool
	Participants []Participant
}

// GroupStats summarizes an owned group for organizer dashboards.
type GroupStats struct {
	Group             Group
	ParticipantCount  int
	CompletedPayments int
	PendingPayments   int
	FundsDistributed  int
	Balance           Balance
}

// CreateGroup creates a tontine or corridor owned by the caller, subject to the creation quota.
func (service *Service) CreateGroup(ctx context.Context, ownerID UserID, kind GroupKind, draft GroupDraft) (Group, error) {
	if _, err := ParseGroupKind(string(kind)); err != nil {
		return Group{}, err
	}
	if err := draft.Validate(); err != nil {
		return Group{}, err
	}
	var created Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		owner, err := transactionStore.GetUser(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.Role != RoleOrganizer {
			return fmt.Errorf("%w: only organizers create groups", ErrForbidden)
		}
		owned, err := transactionStore.CountGroupsByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if owned >= service.limits.creationLimit(owner.IsPremium) {
			return fmt.Errorf("%w: %d groups owned", ErrCreationLimitReached, owned)
		}
		now := service.now()
		startDate := draft.StartDate
		if startDate != nil {
			normalized := startDate.UTC()
			startDate = &normalized
		}
		created, err = transactionStore.CreateGroup(ctx, Group{
			Kind:           kind,
			OwnerID:        ownerID,
			Name:           draft.Name,
			Description:    draft.Description,
			Bareme:         draft.Bareme,
			CommissionRate: draft.CommissionRate,
			DurationDays:   draft.DurationDays,
			StartDate:      startDate,
			Phone:          draft.Phone,
			AccessToken:    service.newToken(),
			Status:         GroupStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateGroup,
		UserID:    ownerID,
		GroupID:   created.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Group{}, operationError
	}
	return created, nil
}

// GetGroup returns a group to its owner or one of its participants.
// Participants do not see the access token.
func (service *Service) GetGroup(ctx context.Context, callerID UserID, ref GroupRef) (GroupView, error) {
	group, err := loadGroup(ctx, service.store, ref)
	if err != nil {
		return GroupView{}, err
	}
	if group.OwnerID == callerID {
		participants, err := service.store.ListParticipants(ctx, group.ID)
		if err != nil {
			return GroupView{}, err
		}
		return GroupView{Group: group, IsOwner: true, Participants: participants}, nil
	}
	if _, err := service.store.GetParticipant(ctx, group.ID, callerID); err != nil {
		if isMissingParticipant(err) {
			return GroupView{}, fmt.Errorf("%w: group %d", ErrNotParticipant, group.ID)
		}
		return GroupView{}, err
	}
	return GroupView{Group: redactToken(group)}, nil
}

// ListOwnedGroups returns the caller's groups of one kind, newest first.
func (service *Service) ListOwnedGroups(ctx context.Context, ownerID UserID, kind GroupKind) ([]Group, error) {
	return service.store.ListGroups(ctx, GroupFilter{OwnerID: &ownerID, Kind: kind})
}

// ListAvailableGroups returns active groups the caller neither owns nor belongs to, without tokens.
func (service *Service) ListAvailableGroups(ctx context.Context, userID UserID, kind GroupKind) ([]Group, error) {
	groups, err := service.store.ListGroups(ctx, GroupFilter{Kind: kind, Status: GroupStatusActive})
	if err != nil {
		return nil, err
	}
	memberships, err := service.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	joined := make(map[GroupID]struct{}, len(memberships))
	for _, membership := range memberships {
		joined[membership.Group.ID] = struct{}{}
	}
	available := make([]Group, 0, len(groups))
	for _, group := range groups {
		if group.OwnerID == userID {
			continue
		}
		if _, ok := joined[group.ID]; ok {
			continue
		}
		available = append(available, redactToken(group))
	}
	return available, nil
}

// UpdateGroup applies an owner's changes to a group.
func (service *Service) UpdateGroup(ctx context.Context, ownerID UserID, ref GroupRef, patch GroupPatch) (Group, error) {
	var updated Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		group, err := lockGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		if err := requireOwner(group, ownerID); err != nil {
			return err
		}
		patched, err := patch.Apply(group)
		if err != nil {
			return err
		}
		patched.UpdatedAt = service.now()
		updated, err = transactionStore.UpdateGroup(ctx, patched)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateGroup,
		UserID:    ownerID,
		GroupID:   ref.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Group{}, operationError
	}
	return updated, nil
}

// DeleteGroup removes an owned group together with its memberships and requests.
// A group with a non-zero current balance cannot be deleted.
func (service *Service) DeleteGroup(ctx context.Context, ownerID UserID, ref GroupRef) error {
	var participants []Participant
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = lockGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		if err := requireOwner(group, ownerID); err != nil {
			return err
		}
		balance, err := computeBalance(ctx, transactionStore, group.ID)
		if err != nil {
			return err
		}
		if balance.CurrentBalance > 0 {
			return fmt.Errorf("%w: %d XOF in group %d", ErrGroupHasFunds, balance.CurrentBalance, group.ID)
		}
		participants, err = transactionStore.ListParticipants(ctx, group.ID)
		if err != nil {
			return err
		}
		return transactionStore.DeleteGroup(ctx, group.ID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteGroup,
		UserID:    ownerID,
		GroupID:   ref.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return operationError
	}
	for _, participant := range participants {
		service.notify(ctx, participant.UserID, "Group deleted",
			fmt.Sprintf("The %s %q has been deleted by its organizer.", group.Kind, group.Name),
			map[string]any{"type": "group_deleted", "groupId": group.ID, "kind": group.Kind})
	}
	return nil
}

// ActiveGroupStats returns each active owned group of a kind with its payment progress.
func (service *Service) ActiveGroupStats(ctx context.Context, ownerID UserID, kind GroupKind) ([]GroupStats, error) {
	groups, err := service.store.ListGroups(ctx, GroupFilter{OwnerID: &ownerID, Kind: kind, Status: GroupStatusActive})
	if err != nil {
		return nil, err
	}
	stats := make([]GroupStats, 0, len(groups))
	for _, group := range groups {
		groupStats, err := service.groupStats(ctx, service.store, group)
		if err != nil {
			return nil, err
		}
		stats = append(stats, groupStats)
	}
	return stats, nil
}

func (service *Service) groupStats(ctx context.Context, store Store, group Group) (GroupStats, error) {
	participants, err := store.ListParticipants(ctx, group.ID)
	if err != nil {
		return GroupStats{}, err
	}
	balance, err := computeBalance(ctx, store, group.ID)
	if err != nil {
		return GroupStats{}, err
	}
	stats := GroupStats{Group: group, ParticipantCount: len(participants), Balance: balance}
	for _, participant := range participants {
		if participant.PaymentStatus == PaymentStatusCompleted {
			stats.CompletedPayments++
		} else {
			stats.PendingPayments++
		}
		if participant.FundsReceived {
			stats.FundsDistributed++
		}
	}
	return stats, nil
}

func redactToken(group Group) Group {
	group.AccessToken = ""
	return group
}
