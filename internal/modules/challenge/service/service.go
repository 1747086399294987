package service

import (
	"context"
	"fmt"
	"time"

	"github.com/choretide/gamification/internal/catalog"
	"github.com/choretide/gamification/internal/model"
	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"
	challengeRepo "github.com/choretide/gamification/internal/modules/challenge/repository"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
)

// Completion reports a challenge finished by the current action.
type Completion struct {
	ChallengeID string
	Name        string
	Reward      int
	BadgeID     string
}

// Deps are the transaction-scoped repositories the tracker writes through.
type Deps struct {
	Challenges challengeRepo.ChallengeRepository
	Ledger     ledgerRepo.LedgerRepository
	Unlocks    achievementService.Deps
}

// Tracker advances active challenges when a matching action arrives and
// rewards each one exactly once on completion. Reward claiming stays a
// separate explicit step.
type Tracker struct {
	catalog   *catalog.Catalog
	evaluator *achievementService.Evaluator
	repo      challengeRepo.ChallengeRepository
}

func NewTracker(cat *catalog.Catalog, evaluator *achievementService.Evaluator, repo challengeRepo.ChallengeRepository) *Tracker {
	return &Tracker{catalog: cat, evaluator: evaluator, repo: repo}
}

// Track increments every active, incomplete challenge matching the action
// type. When a counter reaches its target the completion flag flips once,
// the reward entry is appended and any reward badge goes through the
// evaluator's badge path.
func (t *Tracker) Track(ctx context.Context, deps Deps, p *model.UserProgress, actionType string, now time.Time) ([]Completion, error) {
	var completions []Completion

	for _, def := range t.catalog.ActiveChallenges(now, actionType) {
		uc, err := deps.Challenges.GetOrCreate(ctx, p.UserID, def.ID)
		if err != nil {
			return nil, err
		}
		if uc.IsCompleted {
			continue
		}

		uc.CurrentProgress++
		if err := deps.Challenges.SetProgress(ctx, uc); err != nil {
			return nil, err
		}

		if uc.CurrentProgress < def.TargetCount {
			continue
		}

		completedNow, err := deps.Challenges.Complete(ctx, p.UserID, def.ID, now)
		if err != nil {
			return nil, err
		}
		if !completedNow {
			continue
		}

		entry := &model.PointTransaction{
			UserID:         p.UserID,
			Amount:         def.PointReward,
			Type:           model.TxChallengeReward,
			Reason:         fmt.Sprintf("Completed challenge %q", def.Name),
			ReferenceID:    def.ID,
			ReferenceTable: "challenges",
			CreatedAt:      now,
		}
		if err := deps.Ledger.Append(ctx, entry); err != nil {
			return nil, err
		}
		progressService.Apply(p, entry)

		if def.RewardBadgeID != "" {
			if _, err := t.evaluator.GrantBadge(ctx, deps.Unlocks, p, def.RewardBadgeID, now); err != nil {
				return nil, err
			}
		}

		completions = append(completions, Completion{
			ChallengeID: def.ID,
			Name:        def.Name,
			Reward:      def.PointReward,
			BadgeID:     def.RewardBadgeID,
		})
	}

	return completions, nil
}

// Claim flips the reward-claimed flag for a completed challenge. Claiming
// twice, or before completion, is rejected.
func (t *Tracker) Claim(ctx context.Context, userID uuid.UUID, challengeID string) error {
	if _, ok := t.catalog.Challenge(challengeID); !ok {
		return apperror.ErrNotFound
	}

	uc, err := t.repo.Get(ctx, userID, challengeID)
	if err != nil {
		return err
	}
	if !uc.IsCompleted {
		return fmt.Errorf("%w: challenge %s is not completed yet", apperror.ErrBadRequest, challengeID)
	}

	claimed, err := t.repo.ClaimReward(ctx, userID, challengeID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w: reward for challenge %s already claimed", apperror.ErrBadRequest, challengeID)
	}
	return nil
}

// ChallengeView joins a progress row with its definition for the read API.
type ChallengeView struct {
	ChallengeID     string     `json:"challenge_id"`
	Name            string     `json:"name"`
	ActivityType    string     `json:"activity_type"`
	TargetCount     int        `json:"target_count"`
	PointReward     int        `json:"point_reward"`
	CurrentProgress int        `json:"current_progress"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	IsRewardClaimed bool       `json:"is_reward_claimed"`
	EndsAt          time.Time  `json:"ends_at"`
}

// ListForUser returns the user's tracked challenges enriched with their
// definitions. Definitions that have left the catalog are skipped.
func (t *Tracker) ListForUser(ctx context.Context, userID uuid.UUID) ([]ChallengeView, error) {
	rows, err := t.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ChallengeView, 0, len(rows))
	for _, row := range rows {
		def, ok := t.catalog.Challenge(row.ChallengeID)
		if !ok {
			continue
		}
		views = append(views, ChallengeView{
			ChallengeID:     row.ChallengeID,
			Name:            def.Name,
			ActivityType:    def.ActivityType,
			TargetCount:     def.TargetCount,
			PointReward:     def.PointReward,
			CurrentProgress: row.CurrentProgress,
			IsCompleted:     row.IsCompleted,
			CompletedAt:     row.CompletedAt,
			IsRewardClaimed: row.IsRewardClaimed,
			EndsAt:          def.EndDate,
		})
	}
	return views, nil
}
