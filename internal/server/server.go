package server

import (
	"log"
	"strings"
	"time"

	"github.com/choretide/gamification/internal/catalog"
	"github.com/choretide/gamification/internal/config"
	"github.com/choretide/gamification/internal/events"

	achievementHttp "github.com/choretide/gamification/internal/modules/achievement/delivery/http"
	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"

	challengeHttp "github.com/choretide/gamification/internal/modules/challenge/delivery/http"
	challengeRepo "github.com/choretide/gamification/internal/modules/challenge/repository"
	challengeService "github.com/choretide/gamification/internal/modules/challenge/service"

	engineHttp "github.com/choretide/gamification/internal/modules/engine/delivery/http"
	engineService "github.com/choretide/gamification/internal/modules/engine/service"

	leaderboardHttp "github.com/choretide/gamification/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "github.com/choretide/gamification/internal/modules/leaderboard/repository"
	leaderboardService "github.com/choretide/gamification/internal/modules/leaderboard/service"

	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"

	progressHttp "github.com/choretide/gamification/internal/modules/progress/delivery/http"
	progressRepo "github.com/choretide/gamification/internal/modules/progress/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"

	reconcileService "github.com/choretide/gamification/internal/modules/reconcile/service"

	searchHttp "github.com/choretide/gamification/internal/modules/search/delivery/http"
	searchService "github.com/choretide/gamification/internal/modules/search/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	reconciler  reconcileService.ReconcileService
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, cat *catalog.Catalog) *Server {
	// Repositories
	ledgerRepository := ledgerRepo.NewLedgerRepository(db)
	progressRepository := progressRepo.NewProgressRepository(db)
	unlockRepository := unlockRepo.NewUnlockRepository(db)
	challengeRepository := challengeRepo.NewChallengeRepository(db)
	leaderboardRepository := leaderboardRepo.NewLeaderboardRepository(db)

	// Meilisearch
	meiliHost := cfg.MeiliSearchHost
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}
	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	searchSvc := searchService.NewSearchService(meiliClient)
	if err := searchSvc.IndexCatalog(cat); err != nil {
		log.Printf("❌ catalog indexing failed, search degraded: %v", err)
	}
	searchHandler := searchHttp.NewSearchHandler(searchSvc)

	// Event fan-out
	hub := events.NewHub()
	wsHandler := events.NewWSHandler(hub)

	// Services
	evaluator := achievementService.NewEvaluator(cat)
	tracker := challengeService.NewTracker(cat, evaluator, challengeRepository)

	runner := engineService.NewGormTxRunner(db)
	engineSvc := engineService.NewEngineService(
		runner,
		ledgerRepository,
		progressRepository,
		unlockRepository,
		challengeRepository,
		evaluator,
		tracker,
		hub,
		redisClient,
	)
	engineHandler := engineHttp.NewEngineHandler(engineSvc)

	progressSvc := progressService.NewProgressService(progressRepository)
	progressHandler := progressHttp.NewProgressHandler(progressSvc, ledgerRepository)

	achievementHandler := achievementHttp.NewAchievementHandler(evaluator, unlockRepository)
	challengeHandler := challengeHttp.NewChallengeHandler(tracker)

	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardRepository, redisClient, cfg.LeaderboardCacheTTL)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc)

	reconciler := reconcileService.NewReconcileService(
		runner,
		ledgerRepository,
		progressRepository,
		engineSvc,
		cfg.ReconcileSchedule,
		cfg.ConsistencySchedule,
	)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	api := router.Group("/api")
	{
		eventsGroup := api.Group("/events")
		{
			eventsGroup.POST("/action", engineHandler.ActionCompleted)
			eventsGroup.POST("/redemption", engineHandler.RewardRedemption)
			eventsGroup.GET("/ws", wsHandler.HandleWebSocket)
		}

		users := api.Group("/users/:user_id")
		{
			users.GET("/progress", progressHandler.GetProgress)
			users.GET("/history", progressHandler.GetHistory)
			users.GET("/achievements", achievementHandler.GetUserAchievements)
			users.GET("/challenges", challengeHandler.GetUserChallenges)
			users.POST("/challenges/:challenge_id/claim", challengeHandler.ClaimReward)
		}

		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		api.GET("/catalog/search", searchHandler.SearchCatalog)
		api.POST("/reconcile/:user_id", engineHandler.Reconcile)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		reconciler:  reconciler,
	}
}

func (s *Server) Run(addr string) error {
	s.reconciler.Start()
	defer s.reconciler.Stop()
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
