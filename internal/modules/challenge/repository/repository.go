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
	"gorm.io/gorm/clause"
)

// ChallengeRepository stores per-user challenge progress rows.
type ChallengeRepository interface {
	WithTx(tx *gorm.DB) ChallengeRepository
	Get(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error)
	SetProgress(ctx context.Context, uc *model.UserChallenge) error
	Complete(ctx context.Context, userID uuid.UUID, challengeID string, at time.Time) (bool, error)
	ClaimReward(ctx context.Context, userID uuid.UUID, challengeID string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error)
}

type challengeRepository struct {
	db *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) WithTx(tx *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: tx}
}

func (r *challengeRepository) Get(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	var uc model.UserChallenge
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user challenge: %v", apperror.ErrStorage, err)
	}
	return &uc, nil
}

func (r *challengeRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	row := &model.UserChallenge{
		UserID:      userID,
		ChallengeID: challengeID,
		CreatedAt:   time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("%w: create user challenge: %v", apperror.ErrStorage, err)
	}
	return r.Get(ctx, userID, challengeID)
}

// SetProgress persists an increased progress counter. Progress is monotonic
// until completion, which the WHERE clause enforces at the storage level too.
func (r *challengeRepository) SetProgress(ctx context.Context, uc *model.UserChallenge) error {
	res := r.db.WithContext(ctx).Model(&model.UserChallenge{}).
		Where("user_id = ? AND challenge_id = ? AND is_completed = false AND current_progress < ?",
			uc.UserID, uc.ChallengeID, uc.CurrentProgress).
		Update("current_progress", uc.CurrentProgress)
	if res.Error != nil {
		return fmt.Errorf("%w: update challenge progress: %v", apperror.ErrStorage, res.Error)
	}
	return nil
}

// Complete flips is_completed exactly once: the guarded UPDATE matches only
// while the row is still incomplete, so a concurrent duplicate reports false.
func (r *challengeRepository) Complete(ctx context.Context, userID uuid.UUID, challengeID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.UserChallenge{}).
		Where("user_id = ? AND challenge_id = ? AND is_completed = false", userID, challengeID).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: complete challenge: %v", apperror.ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimReward is the explicit claim step; it succeeds at most once and only
// after completion.
func (r *challengeRepository) ClaimReward(ctx context.Context, userID uuid.UUID, challengeID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.UserChallenge{}).
		Where("user_id = ? AND challenge_id = ? AND is_completed = true AND is_reward_claimed = false",
			userID, challengeID).
		Update("is_reward_claimed", true)
	if res.Error != nil {
		return false, fmt.Errorf("%w: claim challenge reward: %v", apperror.ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *challengeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error) {
	var rows []model.UserChallenge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list user challenges: %v", apperror.ErrStorage, err)
	}
	return rows, nil
}
