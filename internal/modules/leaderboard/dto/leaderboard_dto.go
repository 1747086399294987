package dto

import (
	commonDto "github.com/choretide/gamification/pkg/dto"
	"github.com/google/uuid"
)

// LeaderboardEntry is one ranked row. Rank is 1-based across the whole
// board, not just the current page. Usernames belong to the external user
// service; collaborators join them on user_id.
type LeaderboardEntry struct {
	UserID uuid.UUID `json:"user_id"`
	Value  int       `json:"value"`
	Rank   int       `json:"rank"`
	Tier   string    `json:"tier"`
	Level  int       `json:"level"`
}

// LeaderboardSnapshot is the paged read-API envelope.
type LeaderboardSnapshot struct {
	Scope   string                   `json:"scope"`
	Metric  string                   `json:"metric"`
	Entries []LeaderboardEntry       `json:"entries"`
	Meta    commonDto.PaginationMeta `json:"meta"`
}
