package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"pulsechat/backend/internal/api/handler"
	"pulsechat/backend/internal/call"
	"pulsechat/backend/internal/chat"
	"pulsechat/backend/internal/chathub"
	"pulsechat/backend/internal/config"
	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/ratelimit"
	"pulsechat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Call{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting PulseChat realtime core...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	store := storage.NewStorageService(db, rdb)

	// Explicit singleton wiring: all shared state (presence, call indices,
	// rate windows) lives in these structs, constructed exactly once.
	registry := presence.NewRegistry()
	limiter := ratelimit.NewLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)

	hub := chathub.NewHub(store, registry)
	pipeline := chat.NewService(store, registry, limiter, hub, cfg.MessageRetention)
	engine := call.NewEngine(store, registry, hub, cfg.RingTimeout)
	hub.SetServices(pipeline, engine)

	go hub.RunPubSubListener(store.Subscribe())
	go registry.RunSweeper(cfg.PresenceSweepEvery, cfg.PresenceStaleAfter)

	r := gin.Default()
	h := handler.NewHandler(hub, pipeline, store, []byte(cfg.JWTSecret))

	r.POST("/auth/token", h.IssueToken)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/api/conversations/:id/messages", h.SendMessage) // REST fallback

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
