package scoring

import (
	"time"

	"github.com/choretide/gamification/internal/model"
)

// Multiplier tables. Every function here is total over its domain: inputs
// outside the defined buckets clamp to the nearest bucket instead of failing.

// Difficulty levels accepted on action descriptors.
const (
	DifficultyLow      = "low"
	DifficultyMedium   = "medium"
	DifficultyHigh     = "high"
	DifficultyCritical = "critical"
	DifficultyExpert   = "expert"
)

// Priority levels accepted on action descriptors.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Tier thresholds over total points earned. Tiers only ever move forward.
const (
	PointsOnyx     = 100000
	PointsDiamond  = 30000
	PointsPlatinum = 10000
	PointsGold     = 3000
	PointsSilver   = 750
	PointsBronze   = 0
)

func DifficultyMultiplier(difficulty string) float64 {
	switch difficulty {
	case DifficultyLow:
		return 0.8
	case DifficultyHigh:
		return 1.5
	case DifficultyCritical:
		return 2.0
	case DifficultyExpert:
		return 2.5
	default:
		// medium, empty and unknown values all land on the neutral bucket
		return 1.0
	}
}

func PriorityMultiplier(priority string) float64 {
	switch priority {
	case PriorityLow:
		return 0.9
	case PriorityHigh:
		return 1.4
	case PriorityCritical:
		return 2.0
	default:
		return 1.0
	}
}

// StreakMultiplier rewards consecutive calendar days of activity.
func StreakMultiplier(days int) float64 {
	switch {
	case days >= 365:
		return 4.0
	case days >= 180:
		return 2.5
	case days >= 90:
		return 2.0
	case days >= 60:
		return 1.8
	case days >= 30:
		return 1.6
	case days >= 14:
		return 1.4
	case days >= 7:
		return 1.25
	case days >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// DueDateMultiplier compares completion against the due date: a full day
// early earns +20%, late completion drops to x0.7, anything else is on time.
// No due date means on time.
func DueDateMultiplier(completedAt time.Time, dueDate *time.Time) float64 {
	if dueDate == nil || completedAt.IsZero() {
		return 1.0
	}
	if completedAt.After(*dueDate) {
		return 0.7
	}
	if dueDate.Sub(completedAt) >= 24*time.Hour {
		return 1.2
	}
	return 1.0
}

// TimeOfDayMultiplier grants the early-bird (+15% before 9am) and night-owl
// (+10% from 10pm) bonuses.
func TimeOfDayMultiplier(completedAt time.Time) float64 {
	if completedAt.IsZero() {
		return 1.0
	}
	hour := completedAt.Hour()
	switch {
	case hour < 9:
		return 1.15
	case hour >= 22:
		return 1.10
	default:
		return 1.0
	}
}

// FocusMultiplier scales focus sessions by their duration.
func FocusMultiplier(minutes int) float64 {
	switch {
	case minutes >= 120:
		return 2.0
	case minutes >= 90:
		return 1.6
	case minutes >= 60:
		return 1.3
	case minutes >= 30:
		return 1.0
	case minutes >= 15:
		return 0.8
	default:
		return 0.5
	}
}

// CollaborationMultiplier rewards actions done together with family members:
// +30% base, +10% per additional collaborator, capped at +60%.
func CollaborationMultiplier(collaborators int) float64 {
	if collaborators < 1 {
		collaborators = 1
	}
	m := 1.3 + 0.1*float64(collaborators-1)
	if m > 1.6 {
		m = 1.6
	}
	return m
}

// TierMultiplier scales achievement unlock bonuses by the definition's tier.
func TierMultiplier(tier string) float64 {
	switch tier {
	case model.TierSilver:
		return 2.0
	case model.TierGold:
		return 4.0
	case model.TierPlatinum:
		return 8.0
	case model.TierDiamond:
		return 15.0
	case model.TierOnyx:
		return 25.0
	default:
		return 1.0
	}
}

// ConsistencyMultiplier rewards the ratio of active days inside a weekly or
// monthly window.
func ConsistencyMultiplier(activeDays, periodDays int) float64 {
	if periodDays <= 0 {
		return 1.0
	}
	if activeDays > periodDays {
		activeDays = periodDays
	}
	ratio := float64(activeDays) / float64(periodDays)
	switch {
	case ratio >= 0.9:
		return 1.3
	case ratio >= 0.7:
		return 1.2
	case ratio >= 0.5:
		return 1.1
	default:
		return 1.0
	}
}

// TierForPoints maps total points earned onto the lifetime tier ladder.
func TierForPoints(totalEarned int) string {
	switch {
	case totalEarned >= PointsOnyx:
		return model.TierOnyx
	case totalEarned >= PointsDiamond:
		return model.TierDiamond
	case totalEarned >= PointsPlatinum:
		return model.TierPlatinum
	case totalEarned >= PointsGold:
		return model.TierGold
	case totalEarned >= PointsSilver:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}

// TierRank orders tiers so the aggregator can enforce forward-only moves.
func TierRank(tier string) int {
	switch tier {
	case model.TierOnyx:
		return 5
	case model.TierDiamond:
		return 4
	case model.TierPlatinum:
		return 3
	case model.TierGold:
		return 2
	case model.TierSilver:
		return 1
	default:
		return 0
	}
}

// NextTier returns the tier after the given one and the points needed to
// reach it. The top tier returns itself with its own threshold.
func NextTier(tier string) (string, int) {
	switch tier {
	case model.TierBronze:
		return model.TierSilver, PointsSilver
	case model.TierSilver:
		return model.TierGold, PointsGold
	case model.TierGold:
		return model.TierPlatinum, PointsPlatinum
	case model.TierPlatinum:
		return model.TierDiamond, PointsDiamond
	case model.TierDiamond:
		return model.TierOnyx, PointsOnyx
	default:
		return model.TierOnyx, PointsOnyx
	}
}

// LevelThreshold is the cumulative earned-points requirement to move past
// the given level: 100 x level^2.
func LevelThreshold(level int) int {
	if level < 1 {
		level = 1
	}
	return 100 * level * level
}
