package service

import (
	"context"
	"sync"
	"time"

	"github.com/choretide/gamification/internal/model"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	challengeRepo "github.com/choretide/gamification/internal/modules/challenge/repository"
	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressRepo "github.com/choretide/gamification/internal/modules/progress/repository"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeRunner executes the unit directly; the fakes below provide the
// uniqueness and version guards a real transaction would lean on.
type fakeRunner struct{}

func (fakeRunner) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []model.PointTransaction
}

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

// flakyLedger fails its first appends, simulating a storage outage.
type flakyLedger struct {
	*fakeLedger
	failMu   sync.Mutex
	failures int
}

func (f *flakyLedger) WithTx(tx *gorm.DB) ledgerRepo.LedgerRepository { return f }

func (f *flakyLedger) Append(ctx context.Context, entry *model.PointTransaction) error {
	f.failMu.Lock()
	if f.failures > 0 {
		f.failures--
		f.failMu.Unlock()
		return apperror.ErrStorage
	}
	f.failMu.Unlock()
	return f.fakeLedger.Append(ctx, entry)
}

// fakeProgress keeps the optimistic version semantics of the real
// repository.
type fakeProgress struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.UserProgress
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{rows: make(map[uuid.UUID]model.UserProgress)}
}

func (f *fakeProgress) WithTx(tx *gorm.DB) progressRepo.ProgressRepository { return f }

func (f *fakeProgress) Get(ctx context.Context, userID uuid.UUID) (*model.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	clone := row
	return &clone, nil
}

func (f *fakeProgress) Insert(ctx context.Context, p *model.UserProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rows[p.UserID]; ok {
		clone := existing
		return &apperror.ConflictError{UserID: p.UserID.String(), Competing: &clone}
	}
	f.rows[p.UserID] = *p
	return nil
}

func (f *fakeProgress) Update(ctx context.Context, p *model.UserProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rows[p.UserID]
	if !ok || existing.Version != p.Version {
		clone := existing
		return &apperror.ConflictError{UserID: p.UserID.String(), Competing: &clone}
	}
	p.Version++
	f.rows[p.UserID] = *p
	return nil
}

func (f *fakeProgress) All(ctx context.Context) ([]model.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserProgress
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

type fakeUnlocks struct {
	mu           sync.Mutex
	achievements map[uuid.UUID]map[string]bool
	badges       map[uuid.UUID]map[string]bool
}

func newFakeUnlocks() *fakeUnlocks {
	return &fakeUnlocks{
		achievements: make(map[uuid.UUID]map[string]bool),
		badges:       make(map[uuid.UUID]map[string]bool),
	}
}

func (f *fakeUnlocks) WithTx(tx *gorm.DB) unlockRepo.UnlockRepository { return f }

func insertOnce(m map[uuid.UUID]map[string]bool, userID uuid.UUID, defID string) bool {
	set, ok := m[userID]
	if !ok {
		set = make(map[string]bool)
		m[userID] = set
	}
	if set[defID] {
		return false
	}
	set[defID] = true
	return true
}

func (f *fakeUnlocks) InsertAchievement(ctx context.Context, ua *model.UserAchievement) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return insertOnce(f.achievements, ua.UserID, ua.DefinitionID), nil
}

func (f *fakeUnlocks) InsertBadge(ctx context.Context, ub *model.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return insertOnce(f.badges, ub.UserID, ub.DefinitionID), nil
}

func copySet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	return out
}

func (f *fakeUnlocks) UnlockedAchievementIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copySet(f.achievements[userID]), nil
}

func (f *fakeUnlocks) UnlockedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copySet(f.badges[userID]), nil
}

func (f *fakeUnlocks) ListAchievements(ctx context.Context, userID uuid.UUID) ([]model.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.UserAchievement
	for id := range f.achievements[userID] {
		rows = append(rows, model.UserAchievement{UserID: userID, DefinitionID: id})
	}
	return rows, nil
}

func (f *fakeUnlocks) ListBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	return nil, nil
}

func (f *fakeUnlocks) CountAchievements(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.achievements[userID]), nil
}

type challengeKey struct {
	userID      uuid.UUID
	challengeID string
}

type fakeChallenges struct {
	mu   sync.Mutex
	rows map[challengeKey]*model.UserChallenge
}

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{rows: make(map[challengeKey]*model.UserChallenge)}
}

func (f *fakeChallenges) WithTx(tx *gorm.DB) challengeRepo.ChallengeRepository { return f }

func (f *fakeChallenges) Get(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{userID, challengeID}]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeChallenges) GetOrCreate(ctx context.Context, userID uuid.UUID, challengeID string) (*model.UserChallenge, error) {
	f.mu.Lock()
	key := challengeKey{userID, challengeID}
	if _, ok := f.rows[key]; !ok {
		f.rows[key] = &model.UserChallenge{UserID: userID, ChallengeID: challengeID, CreatedAt: time.Now()}
	}
	f.mu.Unlock()
	return f.Get(ctx, userID, challengeID)
}

func (f *fakeChallenges) SetProgress(ctx context.Context, uc *model.UserChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{uc.UserID, uc.ChallengeID}]
	if ok && !row.IsCompleted && row.CurrentProgress < uc.CurrentProgress {
		row.CurrentProgress = uc.CurrentProgress
	}
	return nil
}

func (f *fakeChallenges) Complete(ctx context.Context, userID uuid.UUID, challengeID string, at time.Time) (bool, error) {
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

func (f *fakeChallenges) ClaimReward(ctx context.Context, userID uuid.UUID, challengeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[challengeKey{userID, challengeID}]
	if !ok || !row.IsCompleted || row.IsRewardClaimed {
		return false, nil
	}
	row.IsRewardClaimed = true
	return true, nil
}

func (f *fakeChallenges) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error) {
	return nil, nil
}
