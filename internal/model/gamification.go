package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types recorded in the ledger.
const (
	TxEarn            = "earn"
	TxSpend           = "spend"
	TxBonus           = "bonus"
	TxChallengeReward = "challenge_reward"
)

// Lifetime tiers, driven by total points earned. Forward-only.
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
	TierDiamond  = "diamond"
	TierOnyx     = "onyx"
)

// PointTransaction is one immutable ledger row. Rows are only ever appended;
// corrections are made with offsetting entries.
type PointTransaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;index:idx_tx_user_date,priority:1;not null" json:"user_id"`
	Amount         int       `gorm:"not null" json:"amount"` // signed; spend entries are negative
	Type           string    `gorm:"size:30;not null" json:"type"`
	Reason         string    `gorm:"size:255" json:"reason"`
	ActionType     string    `gorm:"size:50;index" json:"action_type"`
	Category       string    `gorm:"size:50" json:"category"`
	ReferenceID    string    `gorm:"size:36" json:"reference_id"`    // triggering task/challenge/definition id
	ReferenceTable string    `gorm:"size:50" json:"reference_table"` // 'tasks', 'challenges', 'achievements', 'rewards'
	CorrelationID  *string   `gorm:"size:64;uniqueIndex:idx_tx_correlation" json:"correlation_id,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_tx_user_date,priority:2" json:"created_at"`
}

// UniqueIndex idx_tx_correlation backs replay detection: a retried event with
// the same correlation id can never double-append even if the fast-path
// dedup misses it.

// UserProgress is the derived per-user aggregate. It is owned exclusively by
// the aggregator; every other component only reads it. Version backs the
// optimistic write: an UPDATE that matches zero rows means a competing writer
// got there first.
type UserProgress struct {
	UserID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	CurrentPoints      int        `gorm:"default:0" json:"current_points"`
	TotalPointsEarned  int        `gorm:"default:0" json:"total_points_earned"`
	TotalPointsSpent   int        `gorm:"default:0" json:"total_points_spent"`
	Level              int        `gorm:"default:1" json:"level"`
	NextLevelThreshold int        `gorm:"default:100" json:"next_level_threshold"`
	CurrentStreak      int        `gorm:"default:0" json:"current_streak"`
	LongestStreak      int        `gorm:"default:0" json:"longest_streak"`
	LastActivityDate   *time.Time `json:"last_activity_date"`
	FamilyID           *uuid.UUID `gorm:"type:uuid;index" json:"family_id,omitempty"`
	Tier               string     `gorm:"size:20;default:bronze" json:"tier"`
	Version            int64      `gorm:"default:0" json:"-"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserAchievement links a user to an unlocked achievement definition.
// The unique index is the idempotency backstop: a racing duplicate unlock
// fails the insert instead of granting twice.
type UserAchievement struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_achievement,priority:1;not null" json:"user_id"`
	DefinitionID string    `gorm:"size:64;uniqueIndex:idx_user_achievement,priority:2;not null" json:"definition_id"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}

type UserBadge struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_badge,priority:1;not null" json:"user_id"`
	DefinitionID string    `gorm:"size:64;uniqueIndex:idx_user_badge,priority:2;not null" json:"definition_id"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}

// UserChallenge tracks one user's progress inside a time-boxed challenge.
// CurrentProgress never decreases before completion and IsCompleted flips
// false -> true exactly once.
type UserChallenge struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_user_challenge,priority:1;not null" json:"user_id"`
	ChallengeID     string     `gorm:"size:64;uniqueIndex:idx_user_challenge,priority:2;not null" json:"challenge_id"`
	CurrentProgress int        `gorm:"default:0" json:"current_progress"`
	IsCompleted     bool       `gorm:"default:false" json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	IsRewardClaimed bool       `gorm:"default:false" json:"is_reward_claimed"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
