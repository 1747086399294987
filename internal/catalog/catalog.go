package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// AchievementDefinition is one immutable catalog entry. Definitions are
// loaded once at startup and only read afterwards.
type AchievementDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tier        string   `json:"tier"`
	PointValue  int      `json:"point_value"`
	Difficulty  string   `json:"difficulty"`
	Criteria    Criteria `json:"criteria"`
}

// BadgeDefinition mirrors AchievementDefinition; badges are granted either
// by criteria or as a challenge reward.
type BadgeDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tier        string   `json:"tier"`
	PointValue  int      `json:"point_value"`
	Criteria    Criteria `json:"criteria"`
}

// ChallengeDefinition is a time-boxed activity target.
type ChallengeDefinition struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ActivityType  string    `json:"activity_type"`
	TargetCount   int       `json:"target_count"`
	PointReward   int       `json:"point_reward"`
	RewardBadgeID string    `json:"reward_badge_id,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// Active reports whether the challenge window contains t.
func (d ChallengeDefinition) Active(t time.Time) bool {
	return !t.Before(d.StartDate) && !t.After(d.EndDate)
}

// Catalog holds every definition keyed by id. It is built once by Load and
// is safe for concurrent reads.
type Catalog struct {
	achievements map[string]AchievementDefinition
	badges       map[string]BadgeDefinition
	challenges   map[string]ChallengeDefinition
}

type catalogFile struct {
	Achievements []AchievementDefinition `json:"achievements"`
	Badges       []BadgeDefinition       `json:"badges"`
	Challenges   []ChallengeDefinition   `json:"challenges"`
}

// Load reads the definition file and builds the in-memory catalog. A
// definition with malformed criteria is kept (the evaluator logs and skips
// it per-run), but we warn here so the broken entry is visible at startup.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	c := &Catalog{
		achievements: make(map[string]AchievementDefinition, len(file.Achievements)),
		badges:       make(map[string]BadgeDefinition, len(file.Badges)),
		challenges:   make(map[string]ChallengeDefinition, len(file.Challenges)),
	}

	for _, a := range file.Achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement with empty id in catalog")
		}
		if err := a.Criteria.Validate(); err != nil {
			log.Printf("⚠️ achievement %s has invalid criteria, it will never unlock: %v", a.ID, err)
		}
		c.achievements[a.ID] = a
	}
	for _, b := range file.Badges {
		if b.ID == "" {
			return nil, fmt.Errorf("badge with empty id in catalog")
		}
		if b.Criteria.Type != "" {
			if err := b.Criteria.Validate(); err != nil {
				log.Printf("⚠️ badge %s has invalid criteria, it will never unlock: %v", b.ID, err)
			}
		}
		c.badges[b.ID] = b
	}
	for _, ch := range file.Challenges {
		if ch.ID == "" {
			return nil, fmt.Errorf("challenge with empty id in catalog")
		}
		if ch.TargetCount <= 0 {
			return nil, fmt.Errorf("challenge %s has non-positive target count", ch.ID)
		}
		c.challenges[ch.ID] = ch
	}

	log.Printf("📚 catalog loaded: %d achievements, %d badges, %d challenges",
		len(c.achievements), len(c.badges), len(c.challenges))
	return c, nil
}

func (c *Catalog) Achievement(id string) (AchievementDefinition, bool) {
	a, ok := c.achievements[id]
	return a, ok
}

func (c *Catalog) Badge(id string) (BadgeDefinition, bool) {
	b, ok := c.badges[id]
	return b, ok
}

func (c *Catalog) Challenge(id string) (ChallengeDefinition, bool) {
	ch, ok := c.challenges[id]
	return ch, ok
}

// Achievements returns the definitions in a stable id order so evaluation
// and bonus entries happen in a deterministic sequence.
func (c *Catalog) Achievements() []AchievementDefinition {
	out := make([]AchievementDefinition, 0, len(c.achievements))
	for _, a := range c.achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Badges() []BadgeDefinition {
	out := make([]BadgeDefinition, 0, len(c.badges))
	for _, b := range c.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Challenges() []ChallengeDefinition {
	out := make([]ChallengeDefinition, 0, len(c.challenges))
	for _, ch := range c.challenges {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveChallenges returns the challenges whose window contains t, filtered
// to the given activity type when it is non-empty.
func (c *Catalog) ActiveChallenges(t time.Time, activityType string) []ChallengeDefinition {
	var out []ChallengeDefinition
	for _, ch := range c.challenges {
		if !ch.Active(t) {
			continue
		}
		if activityType != "" && ch.ActivityType != activityType {
			continue
		}
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
