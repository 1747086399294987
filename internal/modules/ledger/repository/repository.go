package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/choretide/gamification/internal/model"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository is the append-only transaction store. Entries are never
// updated or deleted; corrections happen with offsetting entries.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Append(ctx context.Context, tx *model.PointTransaction) error
	SumFor(ctx context.Context, userID uuid.UUID) (int, error)
	HasCorrelation(ctx context.Context, correlationID string) (bool, error)
	CountEarned(ctx context.Context, userID uuid.UUID, actionType, category string) (int, error)
	ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PointTransaction, int64, error)
	UserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// WithTx returns a view of the repository bound to an open transaction so
// appends join the caller's atomic unit.
func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *model.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.ErrDuplicateEvent
		}
		return fmt.Errorf("%w: append ledger entry: %v", apperror.ErrStorage, err)
	}
	return nil
}

// SumFor recomputes the balance straight from the ledger. Used by the
// reconciliation sweep, never on the hot path.
func (r *ledgerRepository) SumFor(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("%w: sum ledger for user %s: %v", apperror.ErrStorage, userID, err)
	}
	return sum, nil
}

func (r *ledgerRepository) HasCorrelation(ctx context.Context, correlationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Where("correlation_id = ?", correlationID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: correlation lookup: %v", apperror.ErrStorage, err)
	}
	return count > 0, nil
}

// CountEarned counts positive entries for criteria evaluation, optionally
// filtered by action type or category.
func (r *ledgerRepository) CountEarned(ctx context.Context, userID uuid.UUID, actionType, category string) (int, error) {
	q := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Where("user_id = ? AND amount > 0", userID)
	if actionType != "" {
		q = q.Where("action_type = ?", actionType)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count earned entries: %v", apperror.ErrStorage, err)
	}
	return int(count), nil
}

// ActiveDays counts distinct calendar days with at least one earn entry
// since the given time. Feeds the consistency bonus.
func (r *ledgerRepository) ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var days int
	err := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Select("COUNT(DISTINCT DATE(created_at))").
		Where("user_id = ? AND amount > 0 AND created_at >= ?", userID, since).
		Scan(&days).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count active days: %v", apperror.ErrStorage, err)
	}
	return days, nil
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PointTransaction, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&model.PointTransaction{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count ledger entries: %v", apperror.ErrStorage, err)
	}

	var entries []model.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list ledger entries: %v", apperror.ErrStorage, err)
	}
	return entries, total, nil
}

// UserIDs lists every user present in the ledger, for the reconciliation
// sweep.
func (r *ledgerRepository) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.PointTransaction{}).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger users: %v", apperror.ErrStorage, err)
	}
	return ids, nil
}
