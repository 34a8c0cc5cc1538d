package tontine

import (
	"context"
	"fmt"
)

// Conversation is one entry of the inbox: the latest exchange with a counterpart.
// Messages collapse by counterpart regardless of the group they were sent about.
type Conversation struct {
	Counterpart UserSummary
	LastMessage Message
	UnreadCount int
}

// SendMessage delivers a direct message. The receiver must exist.
func (service *Service) SendMessage(ctx context.Context, senderID UserID, receiverID UserID, groupID *GroupID, content string) (Message, error) {
	normalized, err := normalizeContent(content)
	if err != nil {
		return Message{}, err
	}
	if receiverID == senderID {
		return Message{}, fmt.Errorf("%w: cannot message yourself", ErrInvalidMessage)
	}
	var sent Message
	var sender User
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		sender, err = transactionStore.GetUser(ctx, senderID)
		if err != nil {
			return err
		}
		if _, err := transactionStore.GetUser(ctx, receiverID); err != nil {
			return err
		}
		if groupID != nil {
			if _, err := transactionStore.GetGroup(ctx, *groupID); err != nil {
				return err
			}
		}
		sent, err = transactionStore.InsertMessage(ctx, Message{
			SenderID:   senderID,
			ReceiverID: receiverID,
			GroupID:    groupID,
			Content:    normalized,
			CreatedAt:  service.now(),
		})
		return err
	})
	logEntry := OperationLog{Operation: operationSendMessage, UserID: senderID, TargetID: receiverID, Error: operationError}
	if groupID != nil {
		logEntry.GroupID = *groupID
	}
	service.logOperation(ctx, logEntry)
	if operationError != nil {
		return Message{}, operationError
	}
	service.notify(ctx, receiverID, "New message",
		fmt.Sprintf("%s %s sent you a message.", sender.FirstName, sender.LastName),
		map[string]any{"type": "message", "messageId": sent.ID, "senderId": senderID})
	return sent, nil
}

// BroadcastToParticipants sends the same message to every member of an owned group.
func (service *Service) BroadcastToParticipants(ctx context.Context, organizerID UserID, ref GroupRef, content string) (int, error) {
	normalized, err := normalizeContent(content)
	if err != nil {
		return 0, err
	}
	var recipients []Participant
	var group Group
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		group, err = service.loadOwnedGroup(ctx, transactionStore, organizerID, ref)
		if err != nil {
			return err
		}
		recipients, err = transactionStore.ListParticipants(ctx, group.ID)
		if err != nil {
			return err
		}
		now := service.now()
		groupID := group.ID
		for _, participant := range recipients {
			if _, err := transactionStore.InsertMessage(ctx, Message{
				SenderID:   organizerID,
				ReceiverID: participant.UserID,
				GroupID:    &groupID,
				Content:    normalized,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationBroadcast,
		UserID:    organizerID,
		GroupID:   ref.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	for _, participant := range recipients {
		service.notify(ctx, participant.UserID, fmt.Sprintf("Message from %q", group.Name), normalized,
			map[string]any{"type": "broadcast", "groupId": group.ID})
	}
	return len(recipients), nil
}

// Conversation returns the thread between the caller and another user, oldest first.
// A non-nil groupID restricts the thread to messages about that group.
func (service *Service) Conversation(ctx context.Context, userID UserID, otherID UserID, groupID *GroupID) ([]Message, error) {
	if _, err := service.store.GetUser(ctx, otherID); err != nil {
		return nil, err
	}
	return service.store.ListConversation(ctx, userID, otherID, groupID)
}

// Conversations returns one entry per counterpart, most recent first.
func (service *Service) Conversations(ctx context.Context, userID UserID) ([]Conversation, error) {
	latest, err := service.store.ListLatestMessages(ctx, userID, conversationListLimit)
	if err != nil {
		return nil, err
	}
	unread, err := service.store.CountUnreadBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	counterparts := make([]UserID, 0, len(latest))
	for _, message := range latest {
		counterparts = append(counterparts, message.Counterpart(userID))
	}
	users, err := service.store.ListUsers(ctx, counterparts)
	if err != nil {
		return nil, err
	}
	conversations := make([]Conversation, 0, len(latest))
	for index, message := range latest {
		counterpart := counterparts[index]
		conversation := Conversation{LastMessage: message, UnreadCount: unread[counterpart]}
		if user, ok := users[counterpart]; ok {
			conversation.Counterpart = user.Summary()
		} else {
			conversation.Counterpart = UserSummary{ID: counterpart}
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// MarkRead marks received messages as read, either by id or by sender.
func (service *Service) MarkRead(ctx context.Context, userID UserID, filter ReadFilter) (int64, error) {
	if len(filter.MessageIDs) == 0 && filter.SenderID == nil {
		return 0, fmt.Errorf("%w: message ids or sender required", ErrInvalidMessage)
	}
	return service.store.MarkMessagesRead(ctx, userID, filter, service.now())
}

// UnreadMessages lists messages the caller has not read yet.
func (service *Service) UnreadMessages(ctx context.Context, userID UserID) ([]Message, error) {
	return service.store.ListUnreadMessages(ctx, userID)
}

// DeleteMessage removes a message the caller sent or received.
func (service *Service) DeleteMessage(ctx context.Context, userID UserID, messageID MessageID) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		message, err := transactionStore.GetMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if message.SenderID != userID && message.ReceiverID != userID {
			return fmt.Errorf("%w: message %d", ErrForbidden, messageID)
		}
		return transactionStore.DeleteMessage(ctx, messageID)
	})
}

// DeleteConversation removes every message between the caller and another user.
func (service *Service) DeleteConversation(ctx context.Context, userID UserID, otherID UserID) (int64, error) {
	return service.store.DeleteConversation(ctx, userID, otherID)
}

// ClearMessages removes every message the caller sent or received.
func (service *Service) ClearMessages(ctx context.Context, userID UserID) (int64, error) {
	return service.store.DeleteMessagesForUser(ctx, userID)
}
