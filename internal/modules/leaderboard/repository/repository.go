package repository

import (
	"context"
	"fmt"

	"github.com/choretide/gamification/internal/model"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Metrics a leaderboard can rank by. They map directly onto user_progress
// columns.
const (
	MetricCurrentPoints     = "current_points"
	MetricTotalPointsEarned = "total_points_earned"
)

type LeaderboardRepository interface {
	TopByMetric(ctx context.Context, metric string, familyID *uuid.UUID, limit, offset int) ([]model.UserProgress, int64, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

// TopByMetric ranks progress rows by the chosen metric, descending, with
// ascending user_id as the deterministic tie-break. Reads run outside every
// per-user critical section; a slightly stale board is acceptable.
func (r *leaderboardRepository) TopByMetric(ctx context.Context, metric string, familyID *uuid.UUID, limit, offset int) ([]model.UserProgress, int64, error) {
	if metric != MetricCurrentPoints && metric != MetricTotalPointsEarned {
		return nil, 0, fmt.Errorf("%w: unknown leaderboard metric %q", apperror.ErrBadRequest, metric)
	}

	var total int64
	count := r.db.WithContext(ctx).Model(&model.UserProgress{})
	if familyID != nil {
		count = count.Where("family_id = ?", *familyID)
	}
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count leaderboard rows: %v", apperror.ErrStorage, err)
	}

	query := r.db.WithContext(ctx).Model(&model.UserProgress{})
	if familyID != nil {
		query = query.Where("family_id = ?", *familyID)
	}

	var rows []model.UserProgress
	err := query.
		Order(fmt.Sprintf("%s DESC, user_id ASC", metric)).
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query leaderboard: %v", apperror.ErrStorage, err)
	}
	return rows, total, nil
}
