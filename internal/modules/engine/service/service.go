package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/choretide/gamification/internal/events"
	"github.com/choretide/gamification/internal/model"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"
	challengeRepo "github.com/choretide/gamification/internal/modules/challenge/repository"
	challengeService "github.com/choretide/gamification/internal/modules/challenge/service"
	engineDto "github.com/choretide/gamification/internal/modules/engine/dto"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressRepo "github.com/choretide/gamification/internal/modules/progress/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/internal/scoring"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// conflictRetries bounds how often a racing per-user update is retried
// before the conflict is surfaced to the caller.
const conflictRetries = 3

const dedupTTL = 24 * time.Hour

// TxRunner wraps the atomic unit. The production runner opens a database
// transaction; tests substitute an in-memory one.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// EngineService is the single entry point for mutating gamification state.
// Per user, ledger append + aggregate update + unlock evaluation + challenge
// tracking form one atomic unit; users that don't share a lock stripe
// proceed fully in parallel.
type EngineService interface {
	HandleAction(ctx context.Context, event engineDto.ActionCompleted) (*engineDto.AwardResult, error)
	HandleRedemption(ctx context.Context, event engineDto.RewardRedemption) (*engineDto.AwardResult, error)
	ReEvaluate(ctx context.Context, userID uuid.UUID) error
}

type engineService struct {
	runner      TxRunner
	ledger      ledgerRepo.LedgerRepository
	progress    progressRepo.ProgressRepository
	unlocks     unlockRepo.UnlockRepository
	challenges  challengeRepo.ChallengeRepository
	evaluator   *achievementService.Evaluator
	tracker     *challengeService.Tracker
	hub         *events.Hub
	redisClient *redis.Client
	sanitizer   *bluemonday.Policy
	locks       *userLocks
}

func NewEngineService(
	runner TxRunner,
	ledger ledgerRepo.LedgerRepository,
	progress progressRepo.ProgressRepository,
	unlocks unlockRepo.UnlockRepository,
	challenges challengeRepo.ChallengeRepository,
	evaluator *achievementService.Evaluator,
	tracker *challengeService.Tracker,
	hub *events.Hub,
	redisClient *redis.Client,
) EngineService {
	return &engineService{
		runner:      runner,
		ledger:      ledger,
		progress:    progress,
		unlocks:     unlocks,
		challenges:  challenges,
		evaluator:   evaluator,
		tracker:     tracker,
		hub:         hub,
		redisClient: redisClient,
		sanitizer:   bluemonday.StrictPolicy(),
		locks:       newUserLocks(),
	}
}

// HandleAction scores an inbound action and folds it into the user's state.
// Replayed correlation ids are acknowledged without re-scoring.
func (s *engineService) HandleAction(ctx context.Context, event engineDto.ActionCompleted) (*engineDto.AwardResult, error) {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", apperror.ErrValidation, err)
	}
	if event.CompletedAt.IsZero() {
		return nil, fmt.Errorf("%w: completed_at is required", apperror.ErrValidation)
	}

	if dup, err := s.seenBefore(ctx, event.CorrelationID); err == nil && dup {
		return s.duplicateResult(ctx, userID), nil
	}

	reason := s.buildReason(event)

	var familyID *uuid.UUID
	if event.FamilyID != "" {
		if id, err := uuid.Parse(event.FamilyID); err == nil {
			familyID = &id
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		p           *model.UserProgress
		amount      int
		unlocksOut  []achievementService.Unlock
		completions []challengeService.Completion
		tierBefore  string
	)

	run := func() error {
		return s.runner.RunInTx(ctx, func(tx *gorm.DB) error {
			ledger := s.ledger.WithTx(tx)
			progress := s.progress.WithTx(tx)
			unlockDeps := achievementService.Deps{
				Unlocks: s.unlocks.WithTx(tx),
				Ledger:  ledger,
			}
			challengeDeps := challengeService.Deps{
				Challenges: s.challenges.WithTx(tx),
				Ledger:     ledger,
				Unlocks:    unlockDeps,
			}

			var (
				err   error
				isNew bool
			)
			p, isNew, err = s.loadProgress(ctx, progress, userID)
			if err != nil {
				return err
			}
			tierBefore = p.Tier

			if familyID != nil {
				p.FamilyID = familyID
			}

			// Scoring is pure; the streak multiplier uses the streak as it
			// stood before this action.
			amount = scoring.Score(scoring.ActionDescriptor{
				ActionType:      event.ActionType,
				Difficulty:      event.Difficulty,
				Priority:        event.Priority,
				StreakDays:      p.CurrentStreak,
				DueDate:         event.DueDate,
				CompletedAt:     event.CompletedAt,
				DurationMinutes: event.DurationMinutes,
				IsCollaborative: event.IsCollaborative,
				Collaborators:   event.Collaborators,
			})

			correlationID := event.CorrelationID
			entry := &model.PointTransaction{
				UserID:         userID,
				Amount:         amount,
				Type:           model.TxEarn,
				Reason:         reason,
				ActionType:     event.ActionType,
				Category:       event.Category,
				ReferenceID:    event.ReferenceID,
				ReferenceTable: referenceTable(event.ActionType),
				CorrelationID:  &correlationID,
				CreatedAt:      event.CompletedAt,
			}
			if err := ledger.Append(ctx, entry); err != nil {
				return err
			}

			progressService.Apply(p, entry)

			unlocksOut, err = s.evaluator.Evaluate(ctx, unlockDeps, p, event.CompletedAt)
			if err != nil {
				return err
			}

			completions, err = s.tracker.Track(ctx, challengeDeps, p, event.ActionType, event.CompletedAt)
			if err != nil {
				return err
			}

			if isNew {
				return progress.Insert(ctx, p)
			}
			return progress.Update(ctx, p)
		})
	}

	if err := s.retryOnConflict(run); err != nil {
		if errors.Is(err, apperror.ErrDuplicateEvent) {
			s.markSeen(ctx, event.CorrelationID)
			return s.duplicateResult(ctx, userID), nil
		}
		return nil, err
	}
	s.markSeen(ctx, event.CorrelationID)

	s.publishAction(p, amount, reason, tierBefore, unlocksOut, completions)

	return &engineDto.AwardResult{
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		NewBalance:  p.CurrentPoints,
		Tier:        p.Tier,
		Level:       p.Level,
		Streak:      p.CurrentStreak,
		Unlocks:     unlocksOut,
		Completions: completions,
	}, nil
}

// HandleRedemption appends a negative spend entry. Redemptions never touch
// streaks and never trigger unlock evaluation.
func (s *engineService) HandleRedemption(ctx context.Context, event engineDto.RewardRedemption) (*engineDto.AwardResult, error) {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", apperror.ErrValidation, err)
	}

	if dup, err := s.seenBefore(ctx, event.CorrelationID); err == nil && dup {
		return s.duplicateResult(ctx, userID), nil
	}

	reason := "Redeemed reward"
	if event.RewardName != "" {
		reason = fmt.Sprintf("Redeemed %q", s.sanitizer.Sanitize(event.RewardName))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var p *model.UserProgress

	run := func() error {
		return s.runner.RunInTx(ctx, func(tx *gorm.DB) error {
			ledger := s.ledger.WithTx(tx)
			progress := s.progress.WithTx(tx)

			// the replay check must precede the balance check: a replayed
			// spend already changed the balance, so re-validating it against
			// the new balance would misreport a duplicate as insufficient
			seen, err := ledger.HasCorrelation(ctx, event.CorrelationID)
			if err != nil {
				return err
			}
			if seen {
				return apperror.ErrDuplicateEvent
			}

			p, _, err = s.loadProgress(ctx, progress, userID)
			if err != nil {
				return err
			}
			if p.CurrentPoints < event.PointCost {
				return fmt.Errorf("%w: insufficient points (%d < %d)",
					apperror.ErrBadRequest, p.CurrentPoints, event.PointCost)
			}

			correlationID := event.CorrelationID
			entry := &model.PointTransaction{
				UserID:         userID,
				Amount:         -event.PointCost,
				Type:           model.TxSpend,
				Reason:         reason,
				ReferenceID:    event.RewardID,
				ReferenceTable: "rewards",
				CorrelationID:  &correlationID,
				CreatedAt:      time.Now(),
			}
			if err := ledger.Append(ctx, entry); err != nil {
				return err
			}

			progressService.Apply(p, entry)
			return progress.Update(ctx, p)
		})
	}

	if err := s.retryOnConflict(run); err != nil {
		if errors.Is(err, apperror.ErrDuplicateEvent) {
			s.markSeen(ctx, event.CorrelationID)
			return s.duplicateResult(ctx, userID), nil
		}
		return nil, err
	}
	s.markSeen(ctx, event.CorrelationID)

	s.hub.Publish(events.TypePointsAwarded, events.PointsAwarded{
		UserID:     p.UserID,
		Amount:     -event.PointCost,
		Reason:     reason,
		NewBalance: p.CurrentPoints,
	})

	return &engineDto.AwardResult{
		UserID:     userID,
		Amount:     -event.PointCost,
		Reason:     reason,
		NewBalance: p.CurrentPoints,
		Tier:       p.Tier,
		Level:      p.Level,
		Streak:     p.CurrentStreak,
	}, nil
}

// ReEvaluate re-runs unlock evaluation for a user without re-appending any
// action. Safe to run any number of times; the reconciliation sweep uses it
// to repair evaluations that died mid-way.
func (s *engineService) ReEvaluate(ctx context.Context, userID uuid.UUID) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	run := func() error {
		return s.runner.RunInTx(ctx, func(tx *gorm.DB) error {
			ledger := s.ledger.WithTx(tx)
			progress := s.progress.WithTx(tx)
			deps := achievementService.Deps{
				Unlocks: s.unlocks.WithTx(tx),
				Ledger:  ledger,
			}

			p, err := progress.Get(ctx, userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					return nil // no activity yet, nothing to evaluate
				}
				return err
			}

			unlocked, err := s.evaluator.Evaluate(ctx, deps, p, time.Now())
			if err != nil {
				return err
			}
			if len(unlocked) == 0 {
				return nil
			}

			for _, u := range unlocked {
				s.hub.Publish(events.TypeAchievementUnlocked, events.AchievementUnlocked{
					UserID:        userID,
					AchievementID: u.DefinitionID,
					IsBadge:       u.IsBadge,
					BonusAwarded:  u.Bonus,
				})
			}
			return progress.Update(ctx, p)
		})
	}

	return s.retryOnConflict(run)
}

// loadProgress fetches the aggregate, reporting isNew when the user has no
// row yet so the caller knows to insert instead of update.
func (s *engineService) loadProgress(ctx context.Context, repo progressRepo.ProgressRepository, userID uuid.UUID) (*model.UserProgress, bool, error) {
	p, err := repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return progressService.NewProgress(userID), true, nil
		}
		return nil, false, err
	}
	return p, false, nil
}

func (s *engineService) retryOnConflict(run func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = run()
		var conflict *apperror.ConflictError
		if err == nil || !errors.As(err, &conflict) {
			return err
		}
		log.Printf("retrying after aggregate conflict (attempt %d): %v", attempt+1, err)
	}
	return err
}

func dedupKey(correlationID string) string {
	return fmt.Sprintf("gamification:event:%s", correlationID)
}

// seenBefore is the read-only Redis fast path for replay detection. Only
// committed events are recorded (markSeen), so a run that failed never
// blocks its own retry. When Redis is down we fall through: the unique
// index on correlation_id still catches the replay inside the transaction.
func (s *engineService) seenBefore(ctx context.Context, correlationID string) (bool, error) {
	if s.redisClient == nil || correlationID == "" {
		return false, nil
	}
	if err := s.redisClient.Get(ctx, dedupKey(correlationID)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// markSeen records a committed correlation id for the fast path. Best
// effort: if the write fails, the next replay falls through to the
// database backstop.
func (s *engineService) markSeen(ctx context.Context, correlationID string) {
	if s.redisClient == nil || correlationID == "" {
		return
	}
	if err := s.redisClient.Set(ctx, dedupKey(correlationID), "seen", dedupTTL).Err(); err != nil {
		log.Printf("marking event %s as processed: %v", correlationID, err)
	}
}

// referenceTable names the collaborator table a ledger entry's reference id
// points into.
func referenceTable(actionType string) string {
	switch actionType {
	case scoring.ActionFocusSession:
		return "focus_sessions"
	case scoring.ActionRoutineCompleted:
		return "routines"
	default:
		return "tasks"
	}
}

func (s *engineService) buildReason(event engineDto.ActionCompleted) string {
	title := s.sanitizer.Sanitize(event.TaskTitle)
	switch {
	case title != "":
		return fmt.Sprintf("Completed %q", title)
	case event.ActionType == scoring.ActionFocusSession:
		return fmt.Sprintf("Focus session (%d min)", event.DurationMinutes)
	default:
		return fmt.Sprintf("Completed %s", event.ActionType)
	}
}

func (s *engineService) duplicateResult(ctx context.Context, userID uuid.UUID) *engineDto.AwardResult {
	result := &engineDto.AwardResult{UserID: userID, Duplicate: true}
	if p, err := s.progress.Get(ctx, userID); err == nil {
		result.NewBalance = p.CurrentPoints
		result.Tier = p.Tier
		result.Level = p.Level
		result.Streak = p.CurrentStreak
	}
	return result
}

func (s *engineService) publishAction(p *model.UserProgress, amount int, reason, tierBefore string, unlocks []achievementService.Unlock, completions []challengeService.Completion) {
	s.hub.Publish(events.TypePointsAwarded, events.PointsAwarded{
		UserID:     p.UserID,
		Amount:     amount,
		Reason:     reason,
		NewBalance: p.CurrentPoints,
	})
	for _, u := range unlocks {
		s.hub.Publish(events.TypeAchievementUnlocked, events.AchievementUnlocked{
			UserID:        p.UserID,
			AchievementID: u.DefinitionID,
			IsBadge:       u.IsBadge,
			BonusAwarded:  u.Bonus,
		})
	}
	for _, c := range completions {
		s.hub.Publish(events.TypeChallengeCompleted, events.ChallengeCompleted{
			UserID:      p.UserID,
			ChallengeID: c.ChallengeID,
			Reward:      c.Reward,
		})
	}
	if p.Tier != tierBefore {
		s.hub.Publish(events.TypeTierChanged, events.TierChanged{
			UserID:       p.UserID,
			PreviousTier: tierBefore,
			NewTier:      p.Tier,
		})
	}
}
