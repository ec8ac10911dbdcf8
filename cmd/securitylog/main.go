package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/orghub/security-log/internal/config"
	"github.com/orghub/security-log/internal/server"
	"github.com/orghub/security-log/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Detail store is optional: summary logging keeps working without it
	var mongo *storage.Mongo
	if cfg.Mongo.Enabled() {
		mongo, err = storage.NewMongo(cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.WithError(err).Warn("mongo unavailable, detail logging disabled")
			mongo = nil
		} else {
			defer mongo.Close(context.Background())

			if err := mongo.EnsureIndexes(context.Background(), "security_log_details"); err != nil {
				log.WithError(err).Warn("failed to ensure mongo indexes")
			}
		}
	}

	var redis *storage.RedisClient
	if cfg.Redis.Enabled() {
		redis, err = storage.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, caching and rate limiting disabled")
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	srv, err := server.New(cfg, postgres, mongo, redis, log)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
