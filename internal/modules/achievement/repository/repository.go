package repository

import (
	"context"
	"fmt"

	"github.com/choretide/gamification/internal/model"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnlockRepository stores the (user, definition) join rows. Inserts go
// through ON CONFLICT DO NOTHING: the unique index is the idempotency
// backstop, so a racing duplicate simply reports "not inserted".
type UnlockRepository interface {
	WithTx(tx *gorm.DB) UnlockRepository
	InsertAchievement(ctx context.Context, ua *model.UserAchievement) (bool, error)
	InsertBadge(ctx context.Context, ub *model.UserBadge) (bool, error)
	UnlockedAchievementIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error)
	UnlockedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error)
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]model.UserAchievement, error)
	ListBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error)
	CountAchievements(ctx context.Context, userID uuid.UUID) (int, error)
}

type unlockRepository struct {
	db *gorm.DB
}

func NewUnlockRepository(db *gorm.DB) UnlockRepository {
	return &unlockRepository{db: db}
}

func (r *unlockRepository) WithTx(tx *gorm.DB) UnlockRepository {
	return &unlockRepository{db: tx}
}

func (r *unlockRepository) InsertAchievement(ctx context.Context, ua *model.UserAchievement) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ua)
	if res.Error != nil {
		return false, fmt.Errorf("%w: insert achievement unlock: %v", apperror.ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *unlockRepository) InsertBadge(ctx context.Context, ub *model.UserBadge) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ub)
	if res.Error != nil {
		return false, fmt.Errorf("%w: insert badge unlock: %v", apperror.ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *unlockRepository) UnlockedAchievementIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("definition_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list unlocked achievements: %v", apperror.ErrStorage, err)
	}
	return toSet(ids), nil
}

func (r *unlockRepository) UnlockedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.UserBadge{}).
		Where("user_id = ?", userID).
		Pluck("definition_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list unlocked badges: %v", apperror.ErrStorage, err)
	}
	return toSet(ids), nil
}

func (r *unlockRepository) ListAchievements(ctx context.Context, userID uuid.UUID) ([]model.UserAchievement, error) {
	var rows []model.UserAchievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list achievements: %v", apperror.ErrStorage, err)
	}
	return rows, nil
}

func (r *unlockRepository) ListBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	var rows []model.UserBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list badges: %v", apperror.ErrStorage, err)
	}
	return rows, nil
}

func (r *unlockRepository) CountAchievements(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserAchievement{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count achievements: %v", apperror.ErrStorage, err)
	}
	return int(count), nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
