package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outbound event types consumed by collaborators (notification service,
// activity feed, mobile clients).
const (
	TypePointsAwarded       = "points_awarded"
	TypeAchievementUnlocked = "achievement_unlocked"
	TypeChallengeCompleted  = "challenge_completed"
	TypeTierChanged         = "tier_changed"
)

type PointsAwarded struct {
	UserID     uuid.UUID `json:"user_id"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
	NewBalance int       `json:"new_balance"`
}

type AchievementUnlocked struct {
	UserID        uuid.UUID `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	IsBadge       bool      `json:"is_badge"`
	BonusAwarded  int       `json:"bonus_awarded"`
}

type ChallengeCompleted struct {
	UserID      uuid.UUID `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	Reward      int       `json:"reward"`
}

type TierChanged struct {
	UserID       uuid.UUID `json:"user_id"`
	PreviousTier string    `json:"previous_tier"`
	NewTier      string    `json:"new_tier"`
}

type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Hub fans engine events out to in-process subscribers. Publishing never
// blocks the engine: a subscriber that cannot keep up loses events, which
// is fine for a notification feed that can re-read state over the API.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(eventType string, payload any) {
	event := Event{Type: eventType, Payload: payload, EmittedAt: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a buffered listener. The returned cancel func must be
// called when the consumer goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}
