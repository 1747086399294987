package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/choretide/gamification/internal/catalog"
	"github.com/choretide/gamification/internal/model"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/internal/scoring"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
)

// Stat names resolvable by criteria predicates.
const (
	StatCurrentPoints      = "current_points"
	StatTotalPointsEarned  = "total_points_earned"
	StatTotalPointsSpent   = "total_points_spent"
	StatLevel              = "level"
	StatCurrentStreak      = "current_streak"
	StatLongestStreak      = "longest_streak"
	StatActionsCompleted   = "actions_completed"
	StatTasksCompleted     = "tasks_completed"
	StatFocusSessions      = "focus_sessions"
	StatRoutinesCompleted  = "routines_completed"
	StatAchievementsUnlock = "achievements_unlocked"
)

// Unlock describes one newly granted definition and its bonus entry.
type Unlock struct {
	DefinitionID string
	Name         string
	Tier         string
	IsBadge      bool
	Bonus        int
}

// Deps are the transaction-scoped repositories the evaluator writes
// through. The engine hands them in so unlock rows and bonus entries join
// the action's atomic unit.
type Deps struct {
	Unlocks unlockRepo.UnlockRepository
	Ledger  ledgerRepo.LedgerRepository
}

// Evaluator decides which catalog definitions newly qualify for a user.
// It is idempotent by construction: already-unlocked ids are skipped, the
// unique index swallows racing duplicates, and bonus entries never
// re-trigger evaluation.
type Evaluator struct {
	catalog *catalog.Catalog
}

func NewEvaluator(cat *catalog.Catalog) *Evaluator {
	return &Evaluator{catalog: cat}
}

// Evaluate runs one pass over the catalog against the post-update snapshot.
// Bonus ledger entries are folded into p through the aggregator but the
// pass never recurses into itself, which bounds the work per action.
// A definition with unparsable criteria logs and is skipped; it never
// aborts the remaining catalog.
func (e *Evaluator) Evaluate(ctx context.Context, deps Deps, p *model.UserProgress, now time.Time) ([]Unlock, error) {
	stats := e.statFunc(ctx, deps, p)

	var unlocks []Unlock

	unlockedAchievements, err := deps.Unlocks.UnlockedAchievementIDs(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	for _, def := range e.catalog.Achievements() {
		if unlockedAchievements[def.ID] {
			continue
		}
		ok, err := def.Criteria.Evaluate(stats)
		if err != nil {
			log.Printf("⚠️ skipping achievement: %v", &apperror.CriteriaError{DefinitionID: def.ID, Err: err})
			continue
		}
		if !ok {
			continue
		}

		inserted, err := deps.Unlocks.InsertAchievement(ctx, &model.UserAchievement{
			UserID:       p.UserID,
			DefinitionID: def.ID,
			UnlockedAt:   now,
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			// lost a race with a concurrent unlock; nothing more to do
			continue
		}

		bonus, err := e.appendBonus(ctx, deps, p, def.ID, def.Name, def.Tier, def.PointValue, "achievements", now)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, Unlock{DefinitionID: def.ID, Name: def.Name, Tier: def.Tier, Bonus: bonus})
	}

	unlockedBadges, err := deps.Unlocks.UnlockedBadgeIDs(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	for _, def := range e.catalog.Badges() {
		if unlockedBadges[def.ID] {
			continue
		}
		if def.Criteria.Type == "" {
			// reward badge, granted only through the challenge path
			continue
		}
		ok, err := def.Criteria.Evaluate(stats)
		if err != nil {
			log.Printf("⚠️ skipping badge: %v", &apperror.CriteriaError{DefinitionID: def.ID, Err: err})
			continue
		}
		if !ok {
			continue
		}

		u, err := e.grantBadge(ctx, deps, p, def, now)
		if err != nil {
			return nil, err
		}
		if u != nil {
			unlocks = append(unlocks, *u)
		}
	}

	return unlocks, nil
}

// GrantBadge awards a specific badge outside criteria evaluation (the
// challenge reward path). Safe to call repeatedly for the same pair.
func (e *Evaluator) GrantBadge(ctx context.Context, deps Deps, p *model.UserProgress, badgeID string, now time.Time) (*Unlock, error) {
	def, ok := e.catalog.Badge(badgeID)
	if !ok {
		log.Printf("⚠️ challenge references unknown reward badge %s, skipping award", badgeID)
		return nil, nil
	}
	return e.grantBadge(ctx, deps, p, def, now)
}

func (e *Evaluator) grantBadge(ctx context.Context, deps Deps, p *model.UserProgress, def catalog.BadgeDefinition, now time.Time) (*Unlock, error) {
	inserted, err := deps.Unlocks.InsertBadge(ctx, &model.UserBadge{
		UserID:       p.UserID,
		DefinitionID: def.ID,
		UnlockedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}

	bonus := 0
	if def.PointValue > 0 {
		bonus, err = e.appendBonus(ctx, deps, p, def.ID, def.Name, def.Tier, def.PointValue, "badges", now)
		if err != nil {
			return nil, err
		}
	}
	return &Unlock{DefinitionID: def.ID, Name: def.Name, Tier: def.Tier, IsBadge: true, Bonus: bonus}, nil
}

// appendBonus scores the unlock with the tier multiplier, appends the bonus
// ledger entry and folds it into the aggregate.
func (e *Evaluator) appendBonus(ctx context.Context, deps Deps, p *model.UserProgress, defID, name, tier string, pointValue int, refTable string, now time.Time) (int, error) {
	bonus := scoring.Score(scoring.ActionDescriptor{
		BasePoints:      pointValue,
		AchievementTier: tier,
	})

	entry := &model.PointTransaction{
		UserID:         p.UserID,
		Amount:         bonus,
		Type:           model.TxBonus,
		Reason:         fmt.Sprintf("Unlocked %q", name),
		ReferenceID:    defID,
		ReferenceTable: refTable,
		CreatedAt:      now,
	}
	if err := deps.Ledger.Append(ctx, entry); err != nil {
		return 0, err
	}

	progressService.Apply(p, entry)
	return bonus, nil
}

// statFunc resolves criteria stats from the snapshot, falling back to
// ledger counts for the action counters.
func (e *Evaluator) statFunc(ctx context.Context, deps Deps, p *model.UserProgress) catalog.StatFunc {
	return func(stat, category string) (int, error) {
		switch stat {
		case StatCurrentPoints:
			return p.CurrentPoints, nil
		case StatTotalPointsEarned:
			return p.TotalPointsEarned, nil
		case StatTotalPointsSpent:
			return p.TotalPointsSpent, nil
		case StatLevel:
			return p.Level, nil
		case StatCurrentStreak:
			return p.CurrentStreak, nil
		case StatLongestStreak:
			return p.LongestStreak, nil
		case StatActionsCompleted:
			return deps.Ledger.CountEarned(ctx, p.UserID, "", category)
		case StatTasksCompleted:
			return deps.Ledger.CountEarned(ctx, p.UserID, scoring.ActionTaskCompleted, category)
		case StatFocusSessions:
			return deps.Ledger.CountEarned(ctx, p.UserID, scoring.ActionFocusSession, category)
		case StatRoutinesCompleted:
			return deps.Ledger.CountEarned(ctx, p.UserID, scoring.ActionRoutineCompleted, category)
		case StatAchievementsUnlock:
			return deps.Unlocks.CountAchievements(ctx, p.UserID)
		default:
			return 0, fmt.Errorf("%w: %q", catalog.ErrUnknownStat, stat)
		}
	}
}

// AchievementView joins an unlock row with its catalog definition for the
// read API.
type AchievementView struct {
	DefinitionID string    `json:"definition_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Tier         string    `json:"tier"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}

// ListUnlocked returns the user's achievements enriched with definitions.
func (e *Evaluator) ListUnlocked(ctx context.Context, unlocks unlockRepo.UnlockRepository, userID uuid.UUID) ([]AchievementView, error) {
	rows, err := unlocks.ListAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]AchievementView, 0, len(rows))
	for _, row := range rows {
		view := AchievementView{DefinitionID: row.DefinitionID, UnlockedAt: row.UnlockedAt}
		if def, ok := e.catalog.Achievement(row.DefinitionID); ok {
			view.Name = def.Name
			view.Description = def.Description
			view.Category = def.Category
			view.Tier = def.Tier
		}
		views = append(views, view)
	}
	return views, nil
}
