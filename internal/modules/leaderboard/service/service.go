package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	leaderboardDto "github.com/choretide/gamification/internal/modules/leaderboard/dto"
	leaderboardRepo "github.com/choretide/gamification/internal/modules/leaderboard/repository"
	"github.com/choretide/gamification/pkg/apperror"
	commonDto "github.com/choretide/gamification/pkg/dto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Leaderboard scopes.
const (
	ScopeGlobal = "global"
	ScopeFamily = "family"
)

type LeaderboardService interface {
	Rank(ctx context.Context, metric, scope string, familyID *uuid.UUID, page, limit int) (*leaderboardDto.LeaderboardSnapshot, error)
}

type leaderboardService struct {
	repo        leaderboardRepo.LeaderboardRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewLeaderboardService(repo leaderboardRepo.LeaderboardRepository, redisClient *redis.Client, cacheTTL time.Duration) LeaderboardService {
	return &leaderboardService{
		repo:        repo,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// Rank builds one page of the board. Results are cached in Redis for the
// configured TTL; the board only reads, so serving a snapshot that trails
// the ledger by a few seconds is acceptable.
func (s *leaderboardService) Rank(ctx context.Context, metric, scope string, familyID *uuid.UUID, page, limit int) (*leaderboardDto.LeaderboardSnapshot, error) {
	if scope != ScopeGlobal && scope != ScopeFamily {
		return nil, fmt.Errorf("%w: unknown leaderboard scope %q", apperror.ErrBadRequest, scope)
	}
	if scope == ScopeFamily && familyID == nil {
		return nil, fmt.Errorf("%w: family scope requires family_id", apperror.ErrBadRequest)
	}
	if scope == ScopeGlobal {
		familyID = nil
	}

	cacheKey := s.cacheKey(metric, scope, familyID, page, limit)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	offset := (page - 1) * limit
	rows, total, err := s.repo.TopByMetric(ctx, metric, familyID, limit, offset)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		value := row.CurrentPoints
		if metric == leaderboardRepo.MetricTotalPointsEarned {
			value = row.TotalPointsEarned
		}
		entries = append(entries, leaderboardDto.LeaderboardEntry{
			UserID: row.UserID,
			Value:  value,
			Rank:   offset + i + 1,
			Tier:   row.Tier,
			Level:  row.Level,
		})
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	snapshot := &leaderboardDto.LeaderboardSnapshot{
		Scope:   scope,
		Metric:  metric,
		Entries: entries,
		Meta: commonDto.PaginationMeta{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  total,
			Limit:       limit,
		},
	}

	s.toCache(ctx, cacheKey, snapshot)
	return snapshot, nil
}

func (s *leaderboardService) cacheKey(metric, scope string, familyID *uuid.UUID, page, limit int) string {
	family := "all"
	if familyID != nil {
		family = familyID.String()
	}
	return fmt.Sprintf("leaderboard:%s:%s:%s:%d:%d", scope, metric, family, page, limit)
}

func (s *leaderboardService) fromCache(ctx context.Context, key string) *leaderboardDto.LeaderboardSnapshot {
	if s.redisClient == nil {
		return nil
	}
	raw, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var snapshot leaderboardDto.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

func (s *leaderboardService) toCache(ctx context.Context, key string, snapshot *leaderboardDto.LeaderboardSnapshot) {
	if s.redisClient == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		// cache miss on the next read, data already consistent in DB
		log.Printf("leaderboard cache write failed: %v", err)
	}
}
