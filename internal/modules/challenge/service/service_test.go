package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/choretide/gamification/internal/catalog"
	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inWindow = time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

func setupTracker(t *testing.T) (*Tracker, Deps, *fakeChallengeRepo, *fakeLedger, *fakeUnlocks) {
	t.Helper()
	cat, err := catalog.Load(filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)

	challenges := newFakeChallengeRepo()
	ledger := &fakeLedger{}
	unlocks := newFakeUnlocks()

	evaluator := achievementService.NewEvaluator(cat)
	tracker := NewTracker(cat, evaluator, challenges)
	deps := Deps{
		Challenges: challenges,
		Ledger:     ledger,
		Unlocks:    achievementService.Deps{Unlocks: unlocks, Ledger: ledger},
	}
	return tracker, deps, challenges, ledger, unlocks
}

func TestTrackProgressesAndCompletes(t *testing.T) {
	tracker, deps, challenges, ledger, unlocks := setupTracker(t)
	p := progressService.NewProgress(uuid.New())

	// first two actions advance but do not complete
	for i := 0; i < 2; i++ {
		completions, err := tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
		require.NoError(t, err)
		assert.Empty(t, completions)
	}

	row, err := challenges.Get(context.Background(), p.UserID, "task-sprint")
	require.NoError(t, err)
	assert.Equal(t, 2, row.CurrentProgress)
	assert.False(t, row.IsCompleted)

	// third action reaches the target
	completions, err := tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "task-sprint", completions[0].ChallengeID)
	assert.Equal(t, 100, completions[0].Reward)
	assert.Equal(t, "sprint-badge", completions[0].BadgeID)

	assert.Equal(t, 100, p.CurrentPoints, "reward folded into the aggregate")

	ledger.mu.Lock()
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, "challenge_reward", ledger.entries[0].Type)
	assert.Equal(t, 100, ledger.entries[0].Amount)
	ledger.mu.Unlock()

	granted, err := unlocks.UnlockedBadgeIDs(context.Background(), p.UserID)
	require.NoError(t, err)
	assert.True(t, granted["sprint-badge"])

	// a fourth action is a no-op for the completed challenge
	completions, err = tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
	require.NoError(t, err)
	assert.Empty(t, completions)
	assert.Equal(t, 100, p.CurrentPoints, "reward granted exactly once")
}

func TestTrackIgnoresOtherActivityTypes(t *testing.T) {
	tracker, deps, challenges, _, _ := setupTracker(t)
	p := progressService.NewProgress(uuid.New())

	completions, err := tracker.Track(context.Background(), deps, p, "focus_session", inWindow)
	require.NoError(t, err)
	assert.Empty(t, completions)

	_, err = challenges.Get(context.Background(), p.UserID, "task-sprint")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "task challenge untouched by a focus action")

	row, err := challenges.Get(context.Background(), p.UserID, "focus-sprint")
	require.NoError(t, err)
	assert.Equal(t, 1, row.CurrentProgress)
}

func TestTrackIgnoresActionsOutsideWindow(t *testing.T) {
	tracker, deps, challenges, _, _ := setupTracker(t)
	p := progressService.NewProgress(uuid.New())

	after := time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)
	completions, err := tracker.Track(context.Background(), deps, p, "task_completed", after)
	require.NoError(t, err)
	assert.Empty(t, completions)

	_, err = challenges.Get(context.Background(), p.UserID, "task-sprint")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestClaim(t *testing.T) {
	tracker, deps, _, _, _ := setupTracker(t)
	p := progressService.NewProgress(uuid.New())

	// claiming before any progress exists
	err := tracker.Claim(context.Background(), p.UserID, "task-sprint")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// claiming an unknown challenge
	err = tracker.Claim(context.Background(), p.UserID, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// claiming before completion
	_, err = tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
	require.NoError(t, err)
	err = tracker.Claim(context.Background(), p.UserID, "task-sprint")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	// complete, then claim succeeds exactly once
	for i := 0; i < 2; i++ {
		_, err = tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
		require.NoError(t, err)
	}
	assert.NoError(t, tracker.Claim(context.Background(), p.UserID, "task-sprint"))
	assert.ErrorIs(t, tracker.Claim(context.Background(), p.UserID, "task-sprint"), apperror.ErrBadRequest)
}

func TestListForUser(t *testing.T) {
	tracker, deps, _, _, _ := setupTracker(t)
	p := progressService.NewProgress(uuid.New())

	_, err := tracker.Track(context.Background(), deps, p, "task_completed", inWindow)
	require.NoError(t, err)

	views, err := tracker.ListForUser(context.Background(), p.UserID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "task-sprint", views[0].ChallengeID)
	assert.Equal(t, "Task Sprint", views[0].Name)
	assert.Equal(t, 3, views[0].TargetCount)
	assert.Equal(t, 1, views[0].CurrentProgress)
	assert.False(t, views[0].IsCompleted)
}
