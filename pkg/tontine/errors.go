package tontine

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the tontine service.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrAlreadyPaid             = errors.New("payment already completed")
	ErrPaymentsIncomplete      = errors.New("not every participant has paid")
	ErrNotOwner                = errors.New("caller does not own the group")
	ErrNotParticipant          = errors.New("caller is not a participant")
	ErrForbidden               = errors.New("forbidden")
	ErrCreationLimitReached    = errors.New("group creation limit reached")
	ErrIntegrationLimitReached = errors.New("group membership limit reached")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUserNotFound            = errors.New("user not found")
	ErrGroupNotFound           = errors.New("group not found")
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrRequestNotFound         = errors.New("participation request not found")
	ErrMessageNotFound         = errors.New("message not found")
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrEmailTaken              = errors.New("email already registered")
	ErrAlreadyParticipant      = errors.New("already a participant")
	ErrRequestPending          = errors.New("participation request already pending")
	ErrRequestResolved         = errors.New("participation request already resolved")
	ErrGroupHasFunds           = errors.New("group still holds undistributed funds")
	ErrInvalidUserID           = errors.New("invalid user id")
	ErrInvalidGroupID          = errors.New("invalid group id")
	ErrInvalidGroupKind        = errors.New("invalid group kind")
	ErrInvalidGroup            = errors.New("invalid group")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidEmail            = errors.New("invalid email")
	ErrInvalidPassword         = errors.New("invalid password")
	ErrInvalidName             = errors.New("invalid name")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")
	ErrInvalidRequestID        = errors.New("invalid request id")
	ErrInvalidRequestAction    = errors.New("invalid request action")
	ErrInvalidRequestStatus    = errors.New("invalid request status")
	ErrInvalidMessage          = errors.New("invalid message")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidActivity         = errors.New("invalid activity")
	ErrInvalidCommissionRate   = errors.New("invalid commission rate")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidBalance          = errors.New("invalid balance")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
