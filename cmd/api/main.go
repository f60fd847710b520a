package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-token-nosql/internal/config"
	"github.com/go-token-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-token-nosql/internal/infrastructure/jwt"
	"github.com/go-token-nosql/internal/infrastructure/memory"
	"github.com/go-token-nosql/internal/infrastructure/metrics"
	"github.com/go-token-nosql/internal/infrastructure/notify"
	s3infra "github.com/go-token-nosql/internal/infrastructure/s3"
	"github.com/go-token-nosql/internal/infrastructure/smtp"
	"github.com/go-token-nosql/internal/infrastructure/sns"
	transporthttp "github.com/go-token-nosql/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	// SNS SMS sender (optional; SMS dispatch fails cleanly without it).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		Blobs:       s3infra.NewStore(s3infra.NewClient(cfg), cfg),
		Notifier:    notify.New(smtp.NewMailer(cfg), smsSender),
		JWTProvider: jwtProvider,
		Metrics:     metrics.NewTokens(prometheus.DefaultRegisterer),
	}

	switch cfg.StoreBackend {
	case "memory":
		tokens := memory.NewTokenStore(nil)
		go tokens.RunReaper(ctx, cfg.ReaperInterval)
		deps.UserRepo = memory.NewUserStore()
		deps.TokenStore = tokens
	case "dynamo":
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamoClient, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			log.Fatalf("dynamodb: %v", err)
		}
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
		deps.UserRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
		deps.TokenStore = dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.Tokens)
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
