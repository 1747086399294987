package service

import (
	"context"
	"sync"
	"time"

	"github.com/choretide/gamification/internal/model"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	challengeRepo "github.com/choretide/gamification/internal/modules/challenge/repository"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type challengeKey struct {
	userID      uuid.UUID
	challengeID string
}

// fakeChallengeRepo reproduces the guarded-update semantics of the real
// repository: progress stops at completion, completion flips once, claims
// happen at most once.
type fakeChallengeRepo struct {
	mu   sync.Mutex
	rows map[challengeKey]*model.UserChallenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{rows: make(map[challengeKey]*model.UserChallenge)}
}

func (f *fakeChallengeRepo) WithTx(tx *gorm.DB) challengeRepo.ChallengeRepository { return f }

func (f *fakeChallengeRepo) Get(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{userID, challengeID}]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeChallengeRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	f.mu.Lock()
	key := challengeKey{userID, challengeID}
	if _, ok := f.rows[key]; !ok {
		f.rows[key] = &model.UserChallenge{UserID: userID, ChallengeID: challengeID, CreatedAt: time.Now()}
	}
	f.mu.Unlock()
	return f.Get(ctx, userID, challengeID)
}

func (f *fakeChallengeRepo) SetProgress(ctx context.Context, uc *model.UserChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{uc.UserID, uc.ChallengeID}]
	if ok && !row.IsCompleted && row.CurrentProgress < uc.CurrentProgress {
		row.CurrentProgress = uc.CurrentProgress
	}
	return nil
}

func (f *fakeChallengeRepo) Complete(ctx context.Context, userID uuid.UUID, challengeID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{userID, challengeID}]
	if !ok || row.IsCompleted {
		return false, nil
	}
	row.IsCompleted = true
	row.CompletedAt = &at
	return true, nil
}

func (f *fakeChallengeRepo) ClaimReward(ctx context.Context, userID uuid.UUID, challengeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{userID, challengeID}]
	if !ok || !row.IsCompleted || row.IsRewardClaimed {
		return false, nil
	}
	row.IsRewardClaimed = true
	return true, nil
}

func (f *fakeChallengeRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.UserChallenge
	for key, row := range f.rows {
		if key.userID == userID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

// fakeUnlocks covers only what the reward badge path touches.
type fakeUnlocks struct {
	mu     sync.Mutex
	badges map[challengeKey]bool
}

func newFakeUnlocks() *fakeUnlocks {
	return &fakeUnlocks{badges: make(map[challengeKey]bool)}
}

func (f *fakeUnlocks) WithTx(tx *gorm.DB) unlockRepo.UnlockRepository { return f }

func (f *fakeUnlocks) InsertAchievement(ctx context.Context, ua *model.UserAchievement) (bool, error) {
	return false, nil
}

func (f *fakeUnlocks) InsertBadge(ctx context.Context, ub *model.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeKey{ub.UserID, ub.DefinitionID}
	if f.badges[key] {
		return false, nil
	}
	f.badges[key] = true
	return true, nil
}

func (f *fakeUnlocks) UnlockedAchievementIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeUnlocks) UnlockedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for key := range f.badges {
		if key.userID == userID {
			out[key.challengeID] = true
		}
	}
	return out, nil
}

func (f *fakeUnlocks) ListAchievements(ctx context.Context, userID uuid.UUID) ([]model.UserAchievement, error) {
	return nil, nil
}

func (f *fakeUnlocks) ListBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	return nil, nil
}

func (f *fakeUnlocks) CountAchievements(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

// fakeLedger only records appends; the tracker never reads it back.
type fakeLedger struct {
	mu      sync.Mutex
	entries []model.PointTransaction
}

func (f *fakeLedger) WithTx(tx *gorm.DB) ledgerRepo.LedgerRepository { return f }

func (f *fakeLedger) Append(ctx context.Context, entry *model.PointTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) SumFor(ctx context.Context, userID uuid.UUID) (int, error) { return 0, nil }

func (f *fakeLedger) HasCorrelation(ctx context.Context, correlationID string) (bool, error) {
	return false, nil
}

func (f *fakeLedger) CountEarned(ctx context.Context, userID uuid.UUID, actionType, category string) (int, error) {
	return 0, nil
}

func (f *fakeLedger) ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return 0, nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PointTransaction, int64, error) {
	return nil, 0, nil
}

func (f *fakeLedger) UserIDs(ctx context.Context) ([]uuid.UUID, error) { return nil, nil }
