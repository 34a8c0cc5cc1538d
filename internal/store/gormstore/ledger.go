package gormstore

import (
	"context"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"gorm.io/gorm"
)

func (store *Store) InsertPayment(ctx context.Context, payment tontine.Payment) (tontine.Payment, error) {
	model := Payment{
		GroupID:       payment.GroupID.Int64(),
		UserID:        payment.UserID.Int64(),
		Amount:        payment.Amount.Int64(),
		Status:        string(payment.Status),
		Method:        string(payment.Method),
		TransactionID: payment.TransactionID,
		PaidTo:        payment.PaidTo.Int64(),
		PaidAt:        payment.PaidAt,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return tontine.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeDuplicate, err)
	}
	if err != nil {
		return tontine.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	return mapPayment(model)
}

func (store *Store) InsertDistribution(ctx context.Context, distribution tontine.Distribution) (tontine.Distribution, error) {
	model := Distribution{
		GroupID:       distribution.GroupID.Int64(),
		UserID:        distribution.UserID.Int64(),
		Amount:        distribution.Amount.Int64(),
		DistributedBy: distribution.DistributedBy.Int64(),
		DistributedAt: distribution.DistributedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return tontine.Distribution{}, wrapStoreError(errorSubjectDistribution, errorCodeInsert, err)
	}
	return mapDistribution(model)
}

func (store *Store) SumPayments(ctx context.Context, filter tontine.LedgerFilter) (tontine.Amount, error) {
	query := applyLedgerFilter(store.db.WithContext(ctx).Model(&Payment{}), filter).
		Where("status = ?", string(tontine.PaymentStatusCompleted))
	return sumAmount(query, errorSubjectPayment)
}

func (store *Store) SumDistributions(ctx context.Context, filter tontine.LedgerFilter) (tontine.Amount, error) {
	query := applyLedgerFilter(store.db.WithContext(ctx).Model(&Distribution{}), filter)
	return sumAmount(query, errorSubjectDistribution)
}

func (store *Store) CountPayments(ctx context.Context, filter tontine.LedgerFilter) (int64, error) {
	var count int64
	err := applyLedgerFilter(store.db.WithContext(ctx).Model(&Payment{}), filter).Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectPayment, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) ListPayments(ctx context.Context, filter tontine.LedgerFilter) ([]tontine.Payment, error) {
	var rows []Payment
	err := applyLedgerFilter(store.db.WithContext(ctx), filter).
		Order("paid_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	payments := make([]tontine.Payment, 0, len(rows))
	for _, row := range rows {
		payment, err := mapPayment(row)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (store *Store) ListDistributions(ctx context.Context, filter tontine.LedgerFilter) ([]tontine.Distribution, error) {
	var rows []Distribution
	err := applyLedgerFilter(store.db.WithContext(ctx), filter).
		Order("distributed_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectDistribution, errorCodeList, err)
	}
	distributions := make([]tontine.Distribution, 0, len(rows))
	for _, row := range rows {
		distribution, err := mapDistribution(row)
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, distribution)
	}
	return distributions, nil
}

func applyLedgerFilter(query *gorm.DB, filter tontine.LedgerFilter) *gorm.DB {
	if filter.GroupID != nil {
		query = query.Where("group_id = ?", filter.GroupID.Int64())
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", filter.UserID.Int64())
	}
	return query
}

func sumAmount(query *gorm.DB, subject string) (tontine.Amount, error) {
	var sum sqlSum
	if err := query.Select("coalesce(sum(amount),0) as total").Scan(&sum).Error; err != nil {
		return 0, wrapStoreError(subject, errorCodeSum, err)
	}
	total, err := tontine.NewAmount(sum.Total)
	if err != nil {
		return 0, wrapStoreError(subject, errorCodeInvalid, err)
	}
	return total, nil
}

func mapPayment(row Payment) (tontine.Payment, error) {
	amount, err := tontine.NewPositiveAmount(row.Amount)
	if err != nil {
		return tontine.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	status, err := tontine.ParsePaymentStatus(row.Status)
	if err != nil {
		return tontine.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return tontine.Payment{
		ID:            row.ID,
		GroupID:       tontine.GroupID(row.GroupID),
		UserID:        tontine.UserID(row.UserID),
		Amount:        amount,
		Status:        status,
		Method:        tontine.PaymentMethod(row.Method),
		TransactionID: row.TransactionID,
		PaidTo:        tontine.UserID(row.PaidTo),
		PaidAt:        row.PaidAt.UTC(),
	}, nil
}

func mapDistribution(row Distribution) (tontine.Distribution, error) {
	amount, err := tontine.NewPositiveAmount(row.Amount)
	if err != nil {
		return tontine.Distribution{}, wrapStoreError(errorSubjectDistribution, errorCodeInvalid, err)
	}
	return tontine.Distribution{
		ID:            row.ID,
		GroupID:       tontine.GroupID(row.GroupID),
		UserID:        tontine.UserID(row.UserID),
		Amount:        amount,
		DistributedBy: tontine.UserID(row.DistributedBy),
		DistributedAt: row.DistributedAt.UTC(),
	}, nil
}
