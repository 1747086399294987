package scoring

import (
	"math"
	"time"
)

// Action types with defined base points. Unknown action types fall back to
// DefaultBasePoints so a new collaborator event never breaks scoring.
const (
	ActionTaskCompleted    = "task_completed"
	ActionFocusSession     = "focus_session"
	ActionRoutineCompleted = "routine_completed"
)

const (
	BaseTaskCompleted    = 15
	BaseFocusSession     = 10
	BaseRoutineCompleted = 8
	DefaultBasePoints    = 10
)

// ActionDescriptor is the full input to Score. It is assembled by the
// orchestrator from the inbound event plus the user's pre-action snapshot;
// Score itself never touches storage.
type ActionDescriptor struct {
	ActionType      string
	BasePoints      int // overrides the action-type base when > 0
	Difficulty      string
	Priority        string
	StreakDays      int
	DueDate         *time.Time
	CompletedAt     time.Time
	DurationMinutes int
	IsCollaborative bool
	Collaborators   int
	AchievementTier string // set only when scoring an achievement unlock
}

// BasePointsFor returns the base point value for an action type.
func BasePointsFor(actionType string) int {
	switch actionType {
	case ActionTaskCompleted:
		return BaseTaskCompleted
	case ActionFocusSession:
		return BaseFocusSession
	case ActionRoutineCompleted:
		return BaseRoutineCompleted
	default:
		return DefaultBasePoints
	}
}

// Score computes the point amount for a descriptor. The multiplication order
// is fixed: base x difficulty x priority x streak x due-date x time-of-day
// x focus duration (focus sessions only) x collaboration (when flagged)
// x achievement tier (unlock bonuses only). The result rounds to the
// nearest integer and never drops below 1.
func Score(d ActionDescriptor) int {
	base := d.BasePoints
	if base <= 0 {
		base = BasePointsFor(d.ActionType)
	}

	points := float64(base)
	points *= DifficultyMultiplier(d.Difficulty)
	points *= PriorityMultiplier(d.Priority)
	points *= StreakMultiplier(d.StreakDays)
	points *= DueDateMultiplier(d.CompletedAt, d.DueDate)
	points *= TimeOfDayMultiplier(d.CompletedAt)

	if d.ActionType == ActionFocusSession {
		points *= FocusMultiplier(d.DurationMinutes)
	}
	if d.IsCollaborative {
		points *= CollaborationMultiplier(d.Collaborators)
	}
	if d.AchievementTier != "" {
		points *= TierMultiplier(d.AchievementTier)
	}

	rounded := int(math.Round(points))
	if rounded < 1 {
		return 1
	}
	return rounded
}
