package gormstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User mirrors the users table.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	LastName     string    `gorm:"size:100;not null"`
	FirstName    string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uniq_users_email"`
	Phone        string    `gorm:"size:32;not null;default:''"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null;index"`
	IsPremium    bool      `gorm:"not null;default:false"`
	Balance      int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Group mirrors the savings_groups table holding both tontines and corridors.
type Group struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	Kind           string          `gorm:"size:16;not null;index:idx_groups_owner_kind,priority:2"`
	OwnerID        int64           `gorm:"not null;index:idx_groups_owner_kind,priority:1"`
	Name           string          `gorm:"size:100;not null"`
	Description    string          `gorm:"type:text;not null;default:''"`
	Bareme         int64           `gorm:"not null"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	DurationDays   int             `gorm:"not null;default:0"`
	StartDate      *time.Time      `gorm:""`
	Phone          string          `gorm:"size:32;not null;default:''"`
	AccessToken    string          `gorm:"size:64;not null;uniqueIndex:uniq_groups_access_token"`
	Status         string          `gorm:"size:16;not null;index"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

func (Group) TableName() string { return "savings_groups" }

// Participant mirrors the group_participants table.
type Participant struct {
	GroupID         int64      `gorm:"primaryKey;autoIncrement:false"`
	UserID          int64      `gorm:"primaryKey;autoIncrement:false;index"`
	PaymentStatus   string     `gorm:"size:16;not null"`
	PaymentDate     *time.Time `gorm:""`
	FundsReceived   bool       `gorm:"not null;default:false"`
	FundReceiptDate *time.Time `gorm:""`
	JoinedAt        time.Time  `gorm:"not null"`
}

func (Participant) TableName() string { return "group_participants" }

// Payment mirrors the append-only payment_history table.
type Payment struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	GroupID       int64     `gorm:"not null;index:idx_payments_group_user,priority:1"`
	UserID        int64     `gorm:"not null;index:idx_payments_group_user,priority:2"`
	Amount        int64     `gorm:"not null"`
	Status        string    `gorm:"size:16;not null"`
	Method        string    `gorm:"size:16;not null"`
	TransactionID string    `gorm:"size:80;not null;uniqueIndex:uniq_payments_transaction"`
	PaidTo        int64     `gorm:"not null"`
	PaidAt        time.Time `gorm:"not null"`
}

func (Payment) TableName() string { return "payment_history" }

// Distribution mirrors the append-only fund_distributions table.
type Distribution struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	GroupID       int64     `gorm:"not null;index:idx_distributions_group_user,priority:1"`
	UserID        int64     `gorm:"not null;index:idx_distributions_group_user,priority:2"`
	Amount        int64     `gorm:"not null"`
	DistributedBy int64     `gorm:"not null"`
	DistributedAt time.Time `gorm:"not null"`
}

func (Distribution) TableName() string { return "fund_distributions" }

// ParticipationRequest mirrors the participation_requests table.
// At most one pending request exists per group and user.
type ParticipationRequest struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	GroupID   int64     `gorm:"not null;index:uniq_requests_pending,unique,priority:1,where:status = 'pending'"`
	UserID    int64     `gorm:"not null;index:uniq_requests_pending,unique,priority:2,where:status = 'pending'"`
	Status    string    `gorm:"size:16;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ParticipationRequest) TableName() string { return "participation_requests" }

// Message mirrors the messages table.
type Message struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	SenderID   int64      `gorm:"not null;index"`
	ReceiverID int64      `gorm:"not null;index:idx_messages_receiver_read,priority:1"`
	GroupID    *int64     `gorm:"index"`
	Content    string     `gorm:"type:text;not null"`
	IsRead     bool       `gorm:"not null;default:false;index:idx_messages_receiver_read,priority:2"`
	ReadAt     *time.Time `gorm:""`
	CreatedAt  time.Time  `gorm:"not null"`
}

func (Message) TableName() string { return "messages" }

// Notification mirrors the notifications table.
type Notification struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	UserID    int64          `gorm:"not null;index"`
	Title     string         `gorm:"size:200;not null"`
	Body      string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON `gorm:"not null"`
	IsRead    bool           `gorm:"not null;default:false"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

func (notification *Notification) BeforeCreate(tx *gorm.DB) error {
	if len(notification.Metadata) == 0 {
		notification.Metadata = datatypesJSON("")
	}
	return nil
}

// Activity mirrors the user_activity table.
type Activity struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	UserID      int64          `gorm:"not null;index:idx_activity_user_created,priority:1"`
	Type        string         `gorm:"size:64;not null;index"`
	Description string         `gorm:"type:text;not null"`
	Details     datatypes.JSON `gorm:"not null"`
	IPAddress   string         `gorm:"size:64;not null;default:''"`
	UserAgent   string         `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_activity_user_created,priority:2"`
}

func (Activity) TableName() string { return "user_activity" }

func (activity *Activity) BeforeCreate(tx *gorm.DB) error {
	if len(activity.Details) == 0 {
		activity.Details = datatypesJSON("")
	}
	return nil
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&Group{},
		&Participant{},
		&Payment{},
		&Distribution{},
		&ParticipationRequest{},
		&Message{},
		&Notification{},
		&Activity{},
	}
}
