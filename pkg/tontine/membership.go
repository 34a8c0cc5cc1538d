package tontine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GroupParticipants lists the members of one owned group.
type GroupParticipants struct {
	Group        Group
	Participants []Participant
}

// JoinByToken adds the caller to the group holding the access token.
func (service *Service) JoinByToken(ctx context.Context, userID UserID, kind GroupKind, token string) (Group, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Group{}, fmt.Errorf("%w: access token is required", ErrInvalidGroup)
	}
	var joined Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		group, err := transactionStore.GetGroupByToken(ctx, trimmed)
		if err != nil {
			return err
		}
		if group.Kind != kind {
			return fmt.Errorf("%w: no %s for token", ErrGroupNotFound, kind)
		}
		user, err := transactionStore.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := ensureNotParticipant(ctx, transactionStore, group.ID, userID); err != nil {
			return err
		}
		if err := service.checkMembershipLimit(ctx, transactionStore, user); err != nil {
			return err
		}
		if _, err := transactionStore.AddParticipant(ctx, service.newParticipant(group.ID, userID)); err != nil {
			return err
		}
		joined = group
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationJoinGroup,
		UserID:    userID,
		GroupID:   joined.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Group{}, operationError
	}
	service.notify(ctx, joined.OwnerID, "New participant",
		fmt.Sprintf("A participant joined %q with its access token.", joined.Name),
		map[string]any{"type": "participant_joined", "groupId": joined.ID, "userId": userID})
	return redactToken(joined), nil
}

// RequestJoin files a pending participation request for the group.
func (service *Service) RequestJoin(ctx context.Context, userID UserID, ref GroupRef) (ParticipationRequest, error) {
	var created ParticipationRequest
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = loadGroup(ctx, transactionStore, ref)
		if err != nil {
			return err
		}
		user, err := transactionStore.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := ensureNotParticipant(ctx, transactionStore, group.ID, userID); err != nil {
			return err
		}
		pending, err := transactionStore.HasPendingRequest(ctx, group.ID, userID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: group %d", ErrRequestPending, group.ID)
		}
		if err := service.checkMembershipLimit(ctx, transactionStore, user); err != nil {
			return err
		}
		now := service.now()
		created, err = transactionStore.CreateRequest(ctx, ParticipationRequest{
			UserID:    userID,
			GroupID:   group.ID,
			Status:    RequestStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
			Group:     group.Summary(),
			Requester: user.Summary(),
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRequestJoin,
		UserID:    userID,
		GroupID:   ref.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return ParticipationRequest{}, operationError
	}
	service.notify(ctx, group.OwnerID, "New participation request",
		fmt.Sprintf("%s %s asked to join %q.", created.Requester.FirstName, created.Requester.LastName, group.Name),
		map[string]any{"type": "participation_request", "requestId": created.ID, "groupId": group.ID})
	return created, nil
}

// HandleRequest accepts or rejects a pending request on a group the organizer owns.
// A request can be resolved once; accepting inserts exactly one participant row.
func (service *Service) HandleRequest(ctx context.Context, organizerID UserID, requestID RequestID, action RequestAction) (ParticipationRequest, error) {
	if _, err := ParseRequestAction(string(action)); err != nil {
		return ParticipationRequest{}, err
	}
	var resolved ParticipationRequest
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		group, err = transactionStore.LockGroup(ctx, request.GroupID)
		if err != nil {
			return err
		}
		if group.OwnerID != organizerID {
			return fmt.Errorf("%w: request %d", ErrRequestNotFound, requestID)
		}
		if request.Status != RequestStatusPending {
			return fmt.Errorf("%w: request %d is %s", ErrRequestResolved, requestID, request.Status)
		}
		if action == RequestActionAccept {
			requester, err := transactionStore.GetUser(ctx, request.UserID)
			if err != nil {
				return err
			}
			_, err = transactionStore.GetParticipant(ctx, group.ID, request.UserID)
			switch {
			case err == nil:
			case isMissingParticipant(err):
				if err := service.checkMembershipLimit(ctx, transactionStore, requester); err != nil {
					return err
				}
				if _, err := transactionStore.AddParticipant(ctx, service.newParticipant(group.ID, request.UserID)); err != nil {
					return err
				}
			default:
				return err
			}
		}
		now := service.now()
		if err := transactionStore.ResolveRequest(ctx, requestID, action.ResultingStatus(), now); err != nil {
			return err
		}
		request.Status = action.ResultingStatus()
		request.UpdatedAt = now
		resolved = request
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationHandleRequest,
		UserID:    organizerID,
		GroupID:   resolved.GroupID,
		TargetID:  resolved.UserID,
		Error:     operationError,
	})
	if operationError != nil {
		return ParticipationRequest{}, operationError
	}
	title := "Request rejected"
	body := fmt.Sprintf("Your request to join %q was rejected.", group.Name)
	if resolved.Status == RequestStatusAccepted {
		title = "Request accepted"
		body = fmt.Sprintf("Your request to join %q was accepted.", group.Name)
	}
	service.notify(ctx, resolved.UserID, title, body,
		map[string]any{"type": "participation_response", "requestId": resolved.ID, "groupId": group.ID, "status": resolved.Status})
	return resolved, nil
}

// PendingRequests lists the pending requests on every group the organizer owns.
func (service *Service) PendingRequests(ctx context.Context, organizerID UserID) ([]ParticipationRequest, error) {
	return service.store.ListPendingRequests(ctx, organizerID)
}

// AddParticipant enrolls an existing user, found by email, into an owned group.
func (service *Service) AddParticipant(ctx context.Context, organizerID UserID, ref GroupRef, email string) (Participant, error) {
	normalizedEmail, err := NormalizeEmail(email)
	if err != nil {
		return Participant{}, err
	}
	var added Participant
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = service.loadOwnedGroup(ctx, transactionStore, organizerID, ref)
		if err != nil {
			return err
		}
		user, err := transactionStore.GetUserByEmail(ctx, normalizedEmail)
		if err != nil {
			return err
		}
		if err := ensureNotParticipant(ctx, transactionStore, group.ID, user.ID); err != nil {
			return err
		}
		added, err = transactionStore.AddParticipant(ctx, service.newParticipant(group.ID, user.ID))
		if err != nil {
			return err
		}
		added.User = user.Summary()
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddParticipant,
		UserID:    organizerID,
		GroupID:   ref.ID,
		TargetID:  added.UserID,
		Error:     operationError,
	})
	if operationError != nil {
		return Participant{}, operationError
	}
	service.notify(ctx, added.UserID, "Added to a group",
		fmt.Sprintf("You were added to %q by its organizer.", group.Name),
		map[string]any{"type": "participant_added", "groupId": group.ID})
	return added, nil
}

// RemoveParticipant removes a member from an owned group.
func (service *Service) RemoveParticipant(ctx context.Context, organizerID UserID, ref GroupRef, userID UserID) error {
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = service.loadOwnedGroup(ctx, transactionStore, organizerID, ref)
		if err != nil {
			return err
		}
		return transactionStore.RemoveParticipant(ctx, group.ID, userID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRemoveParticipant,
		UserID:    organizerID,
		GroupID:   ref.ID,
		TargetID:  userID,
		Error:     operationError,
	})
	if operationError != nil {
		return operationError
	}
	service.notify(ctx, userID, "Removed from a group",
		fmt.Sprintf("You were removed from %q.", group.Name),
		map[string]any{"type": "participant_removed", "groupId": group.ID})
	return nil
}

// ReplaceParticipant swaps a member for another user found by email, in one transaction.
// The newcomer starts with a pending payment.
func (service *Service) ReplaceParticipant(ctx context.Context, organizerID UserID, ref GroupRef, oldUserID UserID, newEmail string) (Participant, error) {
	normalizedEmail, err := NormalizeEmail(newEmail)
	if err != nil {
		return Participant{}, err
	}
	var replacement Participant
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = service.loadOwnedGroup(ctx, transactionStore, organizerID, ref)
		if err != nil {
			return err
		}
		newUser, err := transactionStore.GetUserByEmail(ctx, normalizedEmail)
		if err != nil {
			return err
		}
		if newUser.ID == oldUserID {
			return fmt.Errorf("%w: replacement is the same user", ErrAlreadyParticipant)
		}
		if err := ensureNotParticipant(ctx, transactionStore, group.ID, newUser.ID); err != nil {
			return err
		}
		if err := transactionStore.RemoveParticipant(ctx, group.ID, oldUserID); err != nil {
			return err
		}
		replacement, err = transactionStore.AddParticipant(ctx, service.newParticipant(group.ID, newUser.ID))
		if err != nil {
			return err
		}
		replacement.User = newUser.Summary()
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReplaceParticipant,
		UserID:    organizerID,
		GroupID:   ref.ID,
		TargetID:  replacement.UserID,
		Error:     operationError,
	})
	if operationError != nil {
		return Participant{}, operationError
	}
	service.notify(ctx, oldUserID, "Replaced in a group",
		fmt.Sprintf("You were replaced in %q.", group.Name),
		map[string]any{"type": "participant_replaced", "groupId": group.ID})
	service.notify(ctx, replacement.UserID, "Added to a group",
		fmt.Sprintf("You replaced a participant in %q.", group.Name),
		map[string]any{"type": "participant_added", "groupId": group.ID})
	return replacement, nil
}

// Participants lists the members of an owned group.
func (service *Service) Participants(ctx context.Context, organizerID UserID, ref GroupRef) ([]Participant, error) {
	group, err := service.loadOwnedGroup(ctx, service.store, organizerID, ref)
	if err != nil {
		return nil, err
	}
	return service.store.ListParticipants(ctx, group.ID)
}

// AllParticipants lists the members of every group the organizer owns.
func (service *Service) AllParticipants(ctx context.Context, organizerID UserID) ([]GroupParticipants, error) {
	groups, err := service.store.ListGroups(ctx, GroupFilter{OwnerID: &organizerID})
	if err != nil {
		return nil, err
	}
	result := make([]GroupParticipants, 0, len(groups))
	for _, group := range groups {
		participants, err := service.store.ListParticipants(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, GroupParticipants{Group: group, Participants: participants})
	}
	return result, nil
}

// Members lists the co-members of a group the caller belongs to or owns.
func (service *Service) Members(ctx context.Context, userID UserID, ref GroupRef) ([]Participant, error) {
	group, err := loadGroup(ctx, service.store, ref)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != userID {
		if _, err := service.store.GetParticipant(ctx, group.ID, userID); err != nil {
			if isMissingParticipant(err) {
				return nil, fmt.Errorf("%w: group %d", ErrNotParticipant, group.ID)
			}
			return nil, err
		}
	}
	return service.store.ListParticipants(ctx, group.ID)
}

// Memberships lists the groups the caller has joined.
func (service *Service) Memberships(ctx context.Context, userID UserID) ([]Membership, error) {
	memberships, err := service.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	for index := range memberships {
		memberships[index].Group = redactToken(memberships[index].Group)
	}
	return memberships, nil
}

func (service *Service) newParticipant(groupID GroupID, userID UserID) Participant {
	return Participant{
		GroupID:       groupID,
		UserID:        userID,
		PaymentStatus: PaymentStatusPending,
		JoinedAt:      service.now(),
	}
}

func ensureNotParticipant(ctx context.Context, store ParticipantStore, groupID GroupID, userID UserID) error {
	_, err := store.GetParticipant(ctx, groupID, userID)
	if err == nil {
		return fmt.Errorf("%w: group %d", ErrAlreadyParticipant, groupID)
	}
	if errors.Is(err, ErrParticipantNotFound) {
		return nil
	}
	return err
}
