package tontine

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

// Amount is a non-negative whole-unit XOF amount.
type Amount int64

// PositiveAmount is an Amount strictly greater than zero.
type PositiveAmount int64

// UserID identifies a registered user.
type UserID int64

// GroupID identifies a tontine or corridor. Ids are unique across both kinds.
type GroupID int64

// RequestID identifies a participation request.
type RequestID int64

// MessageID identifies a direct message.
type MessageID int64

// NotificationID identifies a notification.
type NotificationID int64

// MetadataJSON stores arbitrary structured details attached to notifications and activities.
type MetadataJSON struct {
	value string
}

// Role gates access to organizer and participant endpoints.
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
)

// legacyRoleOrganizer is accepted on input and normalized to RoleOrganizer.
const legacyRoleOrganizer = "organisateur"

// GroupKind distinguishes tontines from corridors.
type GroupKind string

const (
	GroupKindTontine  GroupKind = "tontine"
	GroupKindCorridor GroupKind = "corridor"
)

// GroupStatus tracks whether a group accepts activity.
type GroupStatus string

const (
	GroupStatusActive GroupStatus = "active"
	GroupStatusClosed GroupStatus = "closed"
)

// PaymentStatus is the per-participant contribution state for the current round.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// RequestStatus is the participation request lifecycle.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// RequestAction is an organizer decision on a pending request.
type RequestAction string

const (
	RequestActionAccept RequestAction = "accept"
	RequestActionReject RequestAction = "reject"
)

// PaymentMethod records how a payment entered the ledger.
type PaymentMethod string

const (
	PaymentMethodSimulation PaymentMethod = "simulation"
	PaymentMethodManual     PaymentMethod = "manual"
)

// GroupRef addresses a group together with the kind the caller expects it to be.
type GroupRef struct {
	Kind GroupKind
	ID   GroupID
}

// NewAmount validates a non-negative amount.
func NewAmount(raw int64) (Amount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	if raw > maxAmount {
		return 0, fmt.Errorf("%w: must not exceed %d", ErrInvalidAmount, int64(maxAmount))
	}
	return Amount(raw), nil
}

// Int64 exposes the raw value.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// NewPositiveAmount validates an amount strictly greater than zero.
func NewPositiveAmount(raw int64) (PositiveAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if raw > maxAmount {
		return 0, fmt.Errorf("%w: must not exceed %d", ErrInvalidAmount, int64(maxAmount))
	}
	return PositiveAmount(raw), nil
}

// Int64 exposes the raw value.
func (amount PositiveAmount) Int64() int64 {
	return int64(amount)
}

// addAmounts sums two non-negative amounts, refusing totals above maxLedgerTotal.
func addAmounts(left Amount, right Amount) (Amount, error) {
	if left < 0 || right < 0 || left > maxLedgerTotal-right {
		return 0, WrapError(errorOperationService, errorSubjectBalance, errorCodeOverflow,
			fmt.Errorf("%w: total of %d and %d exceeds %d", ErrInvalidAmount, left, right, int64(maxLedgerTotal)))
	}
	return left + right, nil
}

// ToAmount widens the value to an Amount.
func (amount PositiveAmount) ToAmount() Amount {
	return Amount(amount)
}

// NewUserID validates a user id.
func NewUserID(raw int64) (UserID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidUserID)
	}
	return UserID(raw), nil
}

// Int64 exposes the raw value.
func (id UserID) Int64() int64 {
	return int64(id)
}

// NewGroupID validates a group id.
func NewGroupID(raw int64) (GroupID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidGroupID)
	}
	return GroupID(raw), nil
}

// Int64 exposes the raw value.
func (id GroupID) Int64() int64 {
	return int64(id)
}

// NewRequestID validates a participation request id.
func NewRequestID(raw int64) (RequestID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidRequestID)
	}
	return RequestID(raw), nil
}

// Int64 exposes the raw value.
func (id RequestID) Int64() int64 {
	return int64(id)
}

// Int64 exposes the raw value.
func (id MessageID) Int64() int64 {
	return int64(id)
}

// Int64 exposes the raw value.
func (id NotificationID) Int64() int64 {
	return int64(id)
}

// NewMetadataJSON validates a JSON document, defaulting to "{}" for empty input.
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// MarshalMetadata encodes a value as MetadataJSON.
func MarshalMetadata(value any) (MetadataJSON, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return MetadataJSON{}, fmt.Errorf("%w: %v", ErrInvalidMetadataJSON, err)
	}
	return NewMetadataJSON(string(raw))
}

// String returns the normalized JSON document.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// MarshalJSON embeds the document as raw JSON.
func (metadata MetadataJSON) MarshalJSON() ([]byte, error) {
	return []byte(metadata.String()), nil
}

// ParseRole accepts the canonical role names and the legacy organizer spelling.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleOrganizer), legacyRoleOrganizer:
		return RoleOrganizer, nil
	case string(RoleParticipant):
		return RoleParticipant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// ParseGroupKind validates a group kind.
func ParseGroupKind(raw string) (GroupKind, error) {
	switch GroupKind(strings.ToLower(strings.TrimSpace(raw))) {
	case GroupKindTontine:
		return GroupKindTontine, nil
	case GroupKindCorridor:
		return GroupKindCorridor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGroupKind, raw)
	}
}

// String returns the kind name.
func (kind GroupKind) String() string {
	return string(kind)
}

// NewGroupRef validates a kind and id pair.
func NewGroupRef(kind GroupKind, rawID int64) (GroupRef, error) {
	if _, err := ParseGroupKind(string(kind)); err != nil {
		return GroupRef{}, err
	}
	groupID, err := NewGroupID(rawID)
	if err != nil {
		return GroupRef{}, err
	}
	return GroupRef{Kind: kind, ID: groupID}, nil
}

// ParsePaymentStatus validates a participant payment status.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentStatusPending:
		return PaymentStatusPending, nil
	case PaymentStatusCompleted:
		return PaymentStatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}
}

// ParseRequestAction validates an organizer decision.
func ParseRequestAction(raw string) (RequestAction, error) {
	switch RequestAction(strings.ToLower(strings.TrimSpace(raw))) {
	case RequestActionAccept:
		return RequestActionAccept, nil
	case RequestActionReject:
		return RequestActionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestAction, raw)
	}
}

// ParseRequestStatus validates a stored request status.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch RequestStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case RequestStatusPending:
		return RequestStatusPending, nil
	case RequestStatusAccepted:
		return RequestStatusAccepted, nil
	case RequestStatusRejected:
		return RequestStatusRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestStatus, raw)
	}
}

// ResultingStatus maps the decision to the request status it produces.
func (action RequestAction) ResultingStatus() RequestStatus {
	if action == RequestActionAccept {
		return RequestStatusAccepted
	}
	return RequestStatusRejected
}

// NormalizeEmail lower-cases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidEmail)
	}
	address, err := mail.ParseAddress(trimmed)
	if err != nil || address.Address != trimmed {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return trimmed, nil
}
