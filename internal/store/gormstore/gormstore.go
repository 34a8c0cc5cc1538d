package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMetadataJSON      = "{}"
	dialectPostgres          = "postgres"
	pgUniqueViolationCode    = "23505"
	sqliteConstraintCode     = 19
	errorOperationStore      = "store"
	errorSubjectUser         = "user"
	errorSubjectGroup        = "group"
	errorSubjectParticipant  = "participant"
	errorSubjectPayment      = "payment"
	errorSubjectDistribution = "distribution"
	errorSubjectBalance      = "balance"
	errorSubjectRequest      = "request"
	errorSubjectMessage      = "message"
	errorSubjectNotification = "notification"
	errorSubjectActivity     = "activity"
	errorCodeCount           = "count"
	errorCodeCreate          = "create"
	errorCodeDelete          = "delete"
	errorCodeDuplicate       = "duplicate"
	errorCodeGet             = "get"
	errorCodeInsert          = "insert"
	errorCodeInvalid         = "invalid"
	errorCodeList            = "list"
	errorCodeLock            = "lock"
	errorCodeLookup          = "lookup"
	errorCodeSum             = "sum"
	errorCodeUpdate          = "update"
	errorCodeUpdateStatus    = "update_status"
)

// Store implements tontine.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table the store uses.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore tontine.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// locking adds a row lock on dialects that support one. SQLite serializes writers instead.
func (store *Store) locking(db *gorm.DB) *gorm.DB {
	if store.db.Dialector.Name() != dialectPostgres {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func wrapStoreError(subject string, code string, err error) error {
	return tontine.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func userIDs(values []int64) []tontine.UserID {
	ids := make([]tontine.UserID, 0, len(values))
	for _, value := range values {
		ids = append(ids, tontine.UserID(value))
	}
	return ids
}

func optionalGroupID(value *int64) *tontine.GroupID {
	if value == nil {
		return nil
	}
	groupID := tontine.GroupID(*value)
	return &groupID
}
