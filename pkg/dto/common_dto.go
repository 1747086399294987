package dto

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

// GamificationStatus summarizes a user's standing for read endpoints.
// Tier is permanent and never demotes; level follows the earned-points curve.
type GamificationStatus struct {
	Tier               string  `json:"tier"`
	NextTier           string  `json:"next_tier"`
	Level              int     `json:"level"`
	CurrentPoints      int     `json:"current_points"`
	TotalPointsEarned  int     `json:"total_points_earned"`
	NextLevelThreshold int     `json:"next_level_threshold"`
	Progress           float64 `json:"progress"` // percentage toward next tier (0-100)
	CurrentStreak      int     `json:"current_streak"`
	LongestStreak      int     `json:"longest_streak"`
}
