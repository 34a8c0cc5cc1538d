package tontine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minPasswordLength = 6
	maxNameLength     = 100
	maxContentLength  = 4000
)

var maxCommissionRate = decimal.NewFromInt(100)

// User is a registered account.
type User struct {
	ID           UserID
	LastName     string
	FirstName    string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	IsPremium    bool
	// Balance caches the sum of current balances over the groups the user owns.
	Balance   Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary strips credentials and counters.
func (user User) Summary() UserSummary {
	return UserSummary{
		ID:        user.ID,
		LastName:  user.LastName,
		FirstName: user.FirstName,
		Email:     user.Email,
		Phone:     user.Phone,
	}
}

// UserSummary is the public identity of another user.
type UserSummary struct {
	ID        UserID
	LastName  string
	FirstName string
	Email     string
	Phone     string
}

// Registration carries validated sign-up input.
type Registration struct {
	LastName  string
	FirstName string
	Email     string
	Password  string
	Phone     string
	Role      Role
}

// NewRegistration validates and normalizes sign-up input.
func NewRegistration(lastName, firstName, email, password, phone, role string) (Registration, error) {
	normalizedLast, err := normalizeName(lastName)
	if err != nil {
		return Registration{}, err
	}
	normalizedFirst, err := normalizeName(firstName)
	if err != nil {
		return Registration{}, err
	}
	normalizedEmail, err := NormalizeEmail(email)
	if err != nil {
		return Registration{}, err
	}
	if len(password) < minPasswordLength {
		return Registration{}, fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, minPasswordLength)
	}
	parsedRole, err := ParseRole(role)
	if err != nil {
		return Registration{}, err
	}
	return Registration{
		LastName:  normalizedLast,
		FirstName: normalizedFirst,
		Email:     normalizedEmail,
		Password:  password,
		Phone:     strings.TrimSpace(phone),
		Role:      parsedRole,
	}, nil
}

// ProfileUpdate lists the profile fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	LastName  *string
	FirstName *string
	Email     *string
	Phone     *string
}

func (update ProfileUpdate) normalized() (ProfileUpdate, error) {
	result := ProfileUpdate{}
	if update.LastName != nil {
		value, err := normalizeName(*update.LastName)
		if err != nil {
			return ProfileUpdate{}, err
		}
		result.LastName = &value
	}
	if update.FirstName != nil {
		value, err := normalizeName(*update.FirstName)
		if err != nil {
			return ProfileUpdate{}, err
		}
		result.FirstName = &value
	}
	if update.Email != nil {
		value, err := NormalizeEmail(*update.Email)
		if err != nil {
			return ProfileUpdate{}, err
		}
		result.Email = &value
	}
	if update.Phone != nil {
		value := strings.TrimSpace(*update.Phone)
		result.Phone = &value
	}
	return result, nil
}

// Group is a tontine or a corridor.
type Group struct {
	ID             GroupID
	Kind           GroupKind
	OwnerID        UserID
	Name           string
	Description    string
	Bareme         Amount
	CommissionRate decimal.Decimal
	DurationDays   int
	StartDate      *time.Time
	Phone          string
	AccessToken    string
	Status         GroupStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ref returns the address of the group.
func (group Group) Ref() GroupRef {
	return GroupRef{Kind: group.Kind, ID: group.ID}
}

// Summary is the compact form used inside listings.
func (group Group) Summary() GroupSummary {
	return GroupSummary{ID: group.ID, Kind: group.Kind, Name: group.Name, OwnerID: group.OwnerID}
}

// GroupSummary identifies a group inside other records.
type GroupSummary struct {
	ID      GroupID
	Kind    GroupKind
	Name    string
	OwnerID UserID
}

// GroupDraft is the organizer-supplied definition of a new group.
type GroupDraft struct {
	Name           string
	Description    string
	Bareme         Amount
	CommissionRate decimal.Decimal
	DurationDays   int
	StartDate      *time.Time
	Phone          string
}

// Validate normalizes the draft in place.
func (draft *GroupDraft) Validate() error {
	name, err := normalizeName(draft.Name)
	if err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidGroup, err)
	}
	draft.Name = name
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Phone = strings.TrimSpace(draft.Phone)
	if _, err := NewPositiveAmount(draft.Bareme.Int64()); err != nil {
		return fmt.Errorf("bareme: %w", err)
	}
	if err := validateCommissionRate(draft.CommissionRate); err != nil {
		return err
	}
	if draft.DurationDays < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidGroup)
	}
	return nil
}

// GroupPatch lists group fields an owner may change. Nil fields are left untouched.
type GroupPatch struct {
	Name           *string
	Description    *string
	Bareme         *Amount
	CommissionRate *decimal.Decimal
	DurationDays   *int
	StartDate      *time.Time
	Phone          *string
	Status         *GroupStatus
}

// Apply returns a copy of group with the patch applied and validated.
func (patch GroupPatch) Apply(group Group) (Group, error) {
	if patch.Name != nil {
		name, err := normalizeName(*patch.Name)
		if err != nil {
			return Group{}, fmt.Errorf("%w: name: %v", ErrInvalidGroup, err)
		}
		group.Name = name
	}
	if patch.Description != nil {
		group.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Bareme != nil {
		if _, err := NewPositiveAmount(patch.Bareme.Int64()); err != nil {
			return Group{}, fmt.Errorf("bareme: %w", err)
		}
		group.Bareme = *patch.Bareme
	}
	if patch.CommissionRate != nil {
		if err := validateCommissionRate(*patch.CommissionRate); err != nil {
			return Group{}, err
		}
		group.CommissionRate = *patch.CommissionRate
	}
	if patch.DurationDays != nil {
		if *patch.DurationDays < 0 {
			return Group{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidGroup)
		}
		group.DurationDays = *patch.DurationDays
	}
	if patch.StartDate != nil {
		startDate := patch.StartDate.UTC()
		group.StartDate = &startDate
	}
	if patch.Phone != nil {
		group.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Status != nil {
		switch *patch.Status {
		case GroupStatusActive, GroupStatusClosed:
			group.Status = *patch.Status
		default:
			return Group{}, fmt.Errorf("%w: unknown status %q", ErrInvalidGroup, *patch.Status)
		}
	}
	return group, nil
}

// Participant is the membership of a user in a group.
type Participant struct {
	GroupID         GroupID
	UserID          UserID
	PaymentStatus   PaymentStatus
	PaymentDate     *time.Time
	FundsReceived   bool
	FundReceiptDate *time.Time
	JoinedAt        time.Time
	User            UserSummary
}

// Membership pairs a joined group with the caller's participant row.
type Membership struct {
	Group       Group
	Participant Participant
}

// Payment is an append-only contribution record.
type Payment struct {
	ID            int64
	GroupID       GroupID
	UserID        UserID
	Amount        PositiveAmount
	Status        PaymentStatus
	Method        PaymentMethod
	TransactionID string
	PaidTo        UserID
	PaidAt        time.Time
}

// Distribution is an append-only payout record.
type Distribution struct {
	ID            int64
	GroupID       GroupID
	UserID        UserID
	Amount        PositiveAmount
	DistributedBy UserID
	DistributedAt time.Time
}

// Balance is the derived position of a single group.
type Balance struct {
	TotalCollected   Amount
	TotalDistributed Amount
	CurrentBalance   Amount
}

// Add accumulates another balance into this one.
func (balance Balance) Add(other Balance) (Balance, error) {
	collected, err := addAmounts(balance.TotalCollected, other.TotalCollected)
	if err != nil {
		return Balance{}, err
	}
	distributed, err := addAmounts(balance.TotalDistributed, other.TotalDistributed)
	if err != nil {
		return Balance{}, err
	}
	current, err := addAmounts(balance.CurrentBalance, other.CurrentBalance)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		TotalCollected:   collected,
		TotalDistributed: distributed,
		CurrentBalance:   current,
	}, nil
}

// ParticipationRequest is a user's request to join a group.
type ParticipationRequest struct {
	ID        RequestID
	UserID    UserID
	GroupID   GroupID
	Status    RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Group     GroupSummary
	Requester UserSummary
}

// Message is a direct message between two users, optionally about a group.
type Message struct {
	ID         MessageID
	SenderID   UserID
	ReceiverID UserID
	GroupID    *GroupID
	Content    string
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// Counterpart returns the other party of the message as seen by userID.
func (message Message) Counterpart(userID UserID) UserID {
	if message.SenderID == userID {
		return message.ReceiverID
	}
	return message.SenderID
}

// Notification is a record addressed to a single user.
type Notification struct {
	ID        NotificationID
	UserID    UserID
	Title     string
	Body      string
	Metadata  MetadataJSON
	IsRead    bool
	CreatedAt time.Time
}

// Activity is one tracked user interaction.
type Activity struct {
	ID          int64
	UserID      UserID
	Type        string
	Description string
	Details     MetadataJSON
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	return trimmed, nil
}

func validateCommissionRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxCommissionRate) {
		return fmt.Errorf("%w: must be between 0 and 100", ErrInvalidCommissionRate)
	}
	return nil
}

func normalizeContent(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	if len(trimmed) > maxContentLength {
		return "", fmt.Errorf("%w: content longer than %d characters", ErrInvalidMessage, maxContentLength)
	}
	return trimmed, nil
}
