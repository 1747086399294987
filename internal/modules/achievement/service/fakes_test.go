package service

import (
	"context"
	"sync"
	"time"

	"github.com/choretide/gamification/internal/model"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeUnlockRepo mimics the ON CONFLICT DO NOTHING semantics of the real
// repository with plain maps.
type fakeUnlockRepo struct {
	mu           sync.Mutex
	achievements map[uuid.UUID]map[string]time.Time
	badges       map[uuid.UUID]map[string]time.Time
}

func newFakeUnlockRepo() *fakeUnlockRepo {
	return &fakeUnlockRepo{
		achievements: make(map[uuid.UUID]map[string]time.Time),
		badges:       make(map[uuid.UUID]map[string]time.Time),
	}
}

func (f *fakeUnlockRepo) WithTx(tx *gorm.DB) unlockRepo.UnlockRepository { return f }

func (f *fakeUnlockRepo) InsertAchievement(ctx context.Context, ua *model.UserAchievement) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.achievements[ua.UserID]
	if !ok {
		set = make(map[string]time.Time)
		f.achievements[ua.UserID] = set
	}
	if _, dup := set[ua.DefinitionID]; dup {
		return false, nil
	}
	set[ua.DefinitionID] = ua.UnlockedAt
	return true, nil
}

func (f *fakeUnlockRepo) InsertBadge(ctx context.Context, ub *model.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.badges[ub.UserID]
	if !ok {
		set = make(map[string]time.Time)
		f.badges[ub.UserID] = set
	}
	if _, dup := set[ub.DefinitionID]; dup {
		return false, nil
	}
	set[ub.DefinitionID] = ub.UnlockedAt
	return true, nil
}

func (f *fakeUnlockRepo) UnlockedAchievementIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for id := range f.achievements[userID] {
		out[id] = true
	}
	return out, nil
}

func (f *fakeUnlockRepo) UnlockedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for id := range f.badges[userID] {
		out[id] = true
	}
	return out, nil
}

func (f *fakeUnlockRepo) ListAchievements(ctx context.Context, userID uuid.UUID) ([]model.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.UserAchievement
	for id, at := range f.achievements[userID] {
		rows = append(rows, model.UserAchievement{UserID: userID, DefinitionID: id, UnlockedAt: at})
	}
	return rows, nil
}

func (f *fakeUnlockRepo) ListBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.UserBadge
	for id, at := range f.badges[userID] {
		rows = append(rows, model.UserBadge{UserID: userID, DefinitionID: id, UnlockedAt: at})
	}
	return rows, nil
}

func (f *fakeUnlockRepo) CountAchievements(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.achievements[userID]), nil
}

// fakeLedger is an append-only in-memory ledger enforcing correlation-id
// uniqueness like the real unique index does.
type fakeLedger struct {
	mu      sync.Mutex
	entries []model.PointTransaction
}

func newFakeLedger() *fakeLedger { return &fakeLedger{} }

func (f *fakeLedger) WithTx(tx *gorm.DB) ledgerRepo.LedgerRepository { return f }

func (f *fakeLedger) Append(ctx context.Context, entry *model.PointTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.CorrelationID != nil {
		for _, e := range f.entries {
			if e.CorrelationID != nil && *e.CorrelationID == *entry.CorrelationID {
				return apperror.ErrDuplicateEvent
			}
		}
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) SumFor(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, e := range f.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (f *fakeLedger) HasCorrelation(ctx context.Context, correlationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.CorrelationID != nil && *e.CorrelationID == correlationID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) CountEarned(ctx context.Context, userID uuid.UUID, actionType, category string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.entries {
		if e.UserID != userID || e.Amount <= 0 {
			continue
		}
		if actionType != "" && e.ActionType != actionType {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeLedger) ActiveDays(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	days := make(map[string]bool)
	for _, e := range f.entries {
		if e.UserID == userID && e.Amount > 0 && !e.CreatedAt.Before(since) {
			days[e.CreatedAt.Format("2006-01-02")] = true
		}
	}
	return len(days), nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PointTransaction, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.PointTransaction
	for _, e := range f.entries {
		if e.UserID == userID {
			rows = append(rows, e)
		}
	}
	return rows, int64(len(rows)), nil
}

func (f *fakeLedger) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, e := range f.entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}
	return ids, nil
}
