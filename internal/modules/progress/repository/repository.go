package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/choretide/gamification/internal/model"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgressRepository stores the per-user derived aggregate. Writes go
// through an optimistic version check so a stale snapshot surfaces as a
// typed conflict instead of silently losing an update.
type ProgressRepository interface {
	WithTx(tx *gorm.DB) ProgressRepository
	Get(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error)
	Insert(ctx context.Context, p *model.UserProgress) error
	Update(ctx context.Context, p *model.UserProgress) error
	All(ctx context.Context) ([]model.UserProgress, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) WithTx(tx *gorm.DB) ProgressRepository {
	return &progressRepository{db: tx}
}

// Get returns the stored aggregate, or ErrNotFound when the user has no row
// yet. Callers initialize a fresh aggregate in that case.
func (r *progressRepository) Get(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	var p model.UserProgress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get progress for user %s: %v", apperror.ErrStorage, userID, err)
	}
	return &p, nil
}

// Insert creates the first aggregate row for a user. A duplicate key means a
// competing writer created it in between; that is reported as a conflict so
// the caller re-reads and retries.
func (r *progressRepository) Insert(ctx context.Context, p *model.UserProgress) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			competing, _ := r.Get(ctx, p.UserID)
			return &apperror.ConflictError{UserID: p.UserID.String(), Competing: competing}
		}
		return fmt.Errorf("%w: insert progress for user %s: %v", apperror.ErrStorage, p.UserID, err)
	}
	return nil
}

// Update persists the aggregate guarded by its version: the UPDATE matches
// only while nobody else has written since our read. Zero affected rows
// yields a ConflictError carrying the competing row.
func (r *progressRepository) Update(ctx context.Context, p *model.UserProgress) error {
	res := r.db.WithContext(ctx).Model(&model.UserProgress{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(map[string]interface{}{
			"current_points":       p.CurrentPoints,
			"total_points_earned":  p.TotalPointsEarned,
			"total_points_spent":   p.TotalPointsSpent,
			"level":                p.Level,
			"next_level_threshold": p.NextLevelThreshold,
			"current_streak":       p.CurrentStreak,
			"longest_streak":       p.LongestStreak,
			"last_activity_date":   p.LastActivityDate,
			"family_id":            p.FamilyID,
			"tier":                 p.Tier,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: update progress for user %s: %v", apperror.ErrStorage, p.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		competing, err := r.Get(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("%w: progress row for user %s vanished", apperror.ErrStorage, p.UserID)
		}
		return &apperror.ConflictError{UserID: p.UserID.String(), Competing: competing}
	}
	p.Version++
	return nil
}

func (r *progressRepository) All(ctx context.Context) ([]model.UserProgress, error) {
	var rows []model.UserProgress
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list progress rows: %v", apperror.ErrStorage, err)
	}
	return rows, nil
}
