package dto

import (
	"time"

	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"
	challengeService "github.com/choretide/gamification/internal/modules/challenge/service"
	"github.com/google/uuid"
)

// ActionCompleted is the inbound event emitted by the task/board
// collaborators whenever a user finishes something worth points.
type ActionCompleted struct {
	UserID          string     `json:"user_id" binding:"required,uuid"`
	ActionType      string     `json:"action_type" binding:"required,max=50"`
	TaskTitle       string     `json:"task_title" binding:"omitempty,max=200"`
	Category        string     `json:"category" binding:"omitempty,max=50"`
	Difficulty      string     `json:"difficulty" binding:"omitempty,oneof=low medium high critical expert"`
	Priority        string     `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueDate         *time.Time `json:"due_date"`
	CompletedAt     time.Time  `json:"completed_at" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=0"`
	IsCollaborative bool       `json:"is_collaborative"`
	Collaborators   int        `json:"collaborators" binding:"omitempty,min=0"`
	FamilyID        string     `json:"family_id" binding:"omitempty,uuid"`
	ReferenceID     string     `json:"reference_id" binding:"omitempty,max=36"`
	CorrelationID   string     `json:"correlation_id" binding:"required,max=64"`
}

// RewardRedemption is the inbound event for spending points on a reward.
type RewardRedemption struct {
	UserID        string `json:"user_id" binding:"required,uuid"`
	RewardID      string `json:"reward_id" binding:"required,max=36"`
	RewardName    string `json:"reward_name" binding:"omitempty,max=200"`
	PointCost     int    `json:"point_cost" binding:"required,gt=0"`
	CorrelationID string `json:"correlation_id" binding:"required,max=64"`
}

// AwardResult is what the engine hands back to the calling collaborator.
type AwardResult struct {
	UserID      uuid.UUID                     `json:"user_id"`
	Amount      int                           `json:"amount"`
	Reason      string                        `json:"reason"`
	NewBalance  int                           `json:"new_balance"`
	Tier        string                        `json:"tier"`
	Level       int                           `json:"level"`
	Streak      int                           `json:"streak"`
	Duplicate   bool                          `json:"duplicate,omitempty"`
	Unlocks     []achievementService.Unlock   `json:"unlocks,omitempty"`
	Completions []challengeService.Completion `json:"completions,omitempty"`
}
