package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"unichat/backend/internal/api/handler"
	"unichat/backend/internal/config"
	"unichat/backend/internal/localization"
	"unichat/backend/internal/matchhub"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.MatchProposal{},
		&models.CoinTransaction{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting UniChat Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	loc, err := localization.NewLocalizer(cfg.LocalesPath)
	if err != nil {
		log.Fatalf("Failed to load localization files: %v", err)
	}

	clock := matchhub.SystemClock{}
	gate := matchhub.NewProposalGate(s, clock)

	var committer matchhub.Committer = matchhub.NewDirectCommitter(s, clock)
	if cfg.ConfirmationGate {
		committer = gate
		log.Println("Match confirmation gate enabled.")
	}

	hub := matchhub.NewManagerService(s, committer, clock, loc)
	if cfg.ConfirmationGate {
		hub.Gate = gate
	}

	ctx := context.Background()
	go hub.Run()
	hub.StartPubSubListener(ctx)
	if cfg.ConfirmationGate {
		go gate.RunSweeper(ctx)
	}
	go runReconciler(ctx, s)

	r := gin.Default()
	h := handler.NewHandler(hub, s, cfg.JWTSecret)

	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)
	r.POST("/match/start", h.StartMatch)
	r.POST("/match/cancel", h.CancelMatch)
	r.GET("/match/status", h.MatchStatus)
	r.POST("/match/confirm", h.ConfirmProposal)
	r.POST("/match/decline", h.DeclineProposal)
	r.POST("/chat/leave", h.LeaveChat)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}

// runReconciler periodically sweeps pending-commit markers left by
// interrupted materializations.
func runReconciler(ctx context.Context, s *storage.Service) {
	ticker := time.NewTicker(config.ReconcileSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReconcilePending(ctx); err != nil {
				log.Printf("[RECONCILER] Sweep failed: %v", err)
			}
		}
	}
}
