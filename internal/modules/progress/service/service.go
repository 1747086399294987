package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/choretide/gamification/internal/model"
	progressRepo "github.com/choretide/gamification/internal/modules/progress/repository"
	"github.com/choretide/gamification/internal/scoring"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/choretide/gamification/pkg/dto"
	"github.com/google/uuid"
)

// ApplyResult reports what one ledger entry changed on the aggregate.
type ApplyResult struct {
	PreviousTier   string
	NewTier        string
	TierChanged    bool
	LevelsGained   int
	StreakExtended bool
}

type ProgressService interface {
	GetOrInit(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error)
	StatusFor(p *model.UserProgress) dto.GamificationStatus
}

type progressService struct {
	repo progressRepo.ProgressRepository
}

func NewProgressService(repo progressRepo.ProgressRepository) ProgressService {
	return &progressService{repo: repo}
}

// NewProgress initializes the aggregate for a user that has no row yet.
func NewProgress(userID uuid.UUID) *model.UserProgress {
	return &model.UserProgress{
		UserID:             userID,
		Level:              1,
		NextLevelThreshold: scoring.LevelThreshold(1),
		Tier:               model.TierBronze,
	}
}

// Apply folds one ledger entry into the aggregate. It is pure over its
// arguments: the caller owns persistence and serialization.
//
// Streak rules: only positive earn entries count as qualifying activity.
// An entry dated exactly one calendar day after the last activity extends
// the streak; the same day is a no-op; any gap resets to 1 (the entry
// itself is a day of activity). Tier and level only move forward.
func Apply(p *model.UserProgress, entry *model.PointTransaction) ApplyResult {
	res := ApplyResult{PreviousTier: p.Tier, NewTier: p.Tier}

	p.CurrentPoints += entry.Amount
	if entry.Amount > 0 {
		p.TotalPointsEarned += entry.Amount
	} else {
		p.TotalPointsSpent += -entry.Amount
	}

	if entry.Amount > 0 && entry.Type == model.TxEarn {
		res.StreakExtended = applyStreak(p, entry.CreatedAt)
	}

	if tier := scoring.TierForPoints(p.TotalPointsEarned); scoring.TierRank(tier) > scoring.TierRank(p.Tier) {
		p.Tier = tier
		res.NewTier = tier
		res.TierChanged = true
	}

	for p.TotalPointsEarned >= scoring.LevelThreshold(p.Level) {
		p.Level++
		res.LevelsGained++
	}
	p.NextLevelThreshold = scoring.LevelThreshold(p.Level)

	return res
}

func applyStreak(p *model.UserProgress, at time.Time) bool {
	day := truncateToDay(at)
	extended := false

	switch {
	case p.LastActivityDate == nil:
		p.CurrentStreak = 1
		extended = true
	case sameDay(*p.LastActivityDate, day):
		// second action on the same day, streak unchanged
	case sameDay(p.LastActivityDate.AddDate(0, 0, 1), day):
		p.CurrentStreak++
		extended = true
	default:
		p.CurrentStreak = 1
	}

	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	if p.LastActivityDate == nil || day.After(*p.LastActivityDate) {
		p.LastActivityDate = &day
	}
	return extended
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *progressService) GetOrInit(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return NewProgress(userID), nil
		}
		return nil, err
	}
	return p, nil
}

// StatusFor builds the read-API summary for an aggregate.
func (s *progressService) StatusFor(p *model.UserProgress) dto.GamificationStatus {
	next, target := scoring.NextTier(p.Tier)

	var progress float64
	if p.Tier == model.TierOnyx {
		progress = 100
	} else if target > 0 {
		progress = float64(p.TotalPointsEarned) / float64(target) * 100
		if progress > 100 {
			progress = 100
		}
	}

	return dto.GamificationStatus{
		Tier:               p.Tier,
		NextTier:           next,
		Level:              p.Level,
		CurrentPoints:      p.CurrentPoints,
		TotalPointsEarned:  p.TotalPointsEarned,
		NextLevelThreshold: p.NextLevelThreshold,
		Progress:           math.Round(progress*100) / 100,
		CurrentStreak:      p.CurrentStreak,
		LongestStreak:      p.LongestStreak,
	}
}
