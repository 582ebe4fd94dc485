// @title           AnonyChat API
// @version         1.0
// @description     Anonymous messaging: verified users receive anonymous messages through a public inbox.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anonychat/anonychat-api/internal/api"
	"github.com/anonychat/anonychat-api/internal/api/handler"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/internal/core/service"
	"github.com/anonychat/anonychat-api/internal/infrastructure/ai"
	"github.com/anonychat/anonychat-api/internal/infrastructure/config"
	mongodb "github.com/anonychat/anonychat-api/internal/infrastructure/db/mongo"
	redisdb "github.com/anonychat/anonychat-api/internal/infrastructure/db/redis"
	"github.com/anonychat/anonychat-api/internal/infrastructure/mail"
	"github.com/anonychat/anonychat-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: "anonychat-api",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		Timeout:     cfg.Mongo.Timeout,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongodb.Disconnect(mongoClient, 5*time.Second); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	accounts := mongodb.NewAccountRepository(db)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	throttle, redisClient := connectThrottle(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	trusted, err := cfg.TrustedNetworks()
	if err != nil {
		return err
	}

	// --- Outbound collaborators ---
	mailer, err := mail.New(mail.Config{
		Host:       cfg.SMTP.Host,
		User:       cfg.SMTP.User,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		SkipVerify: cfg.SMTP.SkipVerify,
	}, logger.Component("mail"))
	if err != nil {
		return err
	}

	var generator ports.TextGenerator
	if cfg.Gemini.APIKey != "" {
		g, err := ai.NewGemini(ctx, ai.Config{
			APIKey:   cfg.Gemini.APIKey,
			Model:    cfg.Gemini.Model,
			Endpoint: cfg.Gemini.Endpoint,
		})
		if err != nil {
			return err
		}
		generator = g
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, AI endpoints are disabled")
	}

	// --- Services ---
	verification := service.NewVerificationService(accounts, mailer, throttle, service.VerificationOptions{
		CodeTTL:     cfg.Codes.TTL,
		IssueLimit:  cfg.Codes.IssueLimit,
		IssueWindow: cfg.Codes.IssueWindow,
	}, logger.Component("verification"))

	svc := api.Services{
		Accounts:     service.NewAccountService(accounts, verification, logger.Component("accounts")),
		Verification: verification,
		Messages: service.NewMessageService(accounts, throttle, service.DeliveryOptions{
			Limit:  cfg.Delivery.Limit,
			Window: cfg.Delivery.Window,
		}, logger.Component("messages")),
		Sessions: service.NewSessionService(accounts, cfg.JWTSecret, cfg.SessionTTL, logger.Component("sessions")),
		Insights: service.NewInsightService(accounts, generator, logger.Component("insights")),
	}

	readiness := []handler.Dependency{
		{Name: "mongo", Ping: func(ctx context.Context) error { return mongodb.Ping(ctx, mongoClient) }},
	}
	if redisClient != nil {
		readiness = append(readiness, handler.Dependency{
			Name:     "redis",
			Ping:     func(ctx context.Context) error { return redisdb.Ping(ctx, redisClient) },
			Optional: true,
		})
	}

	e := api.NewRouter(svc, api.Options{
		Logger:    logger.Component("http"),
		Readiness: readiness,
		Features: map[string]bool{
			"smtp":     mailer.Enabled(),
			"ai":       generator != nil,
			"throttle": throttle != nil,
		},
		TrustedProxies: trusted,
	})

	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 60 * time.Second // AI calls can take a while
	e.Server.IdleTimeout = 120 * time.Second

	// --- Serve until the signal context is cancelled ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	return g.Wait()
}

// connectThrottle dials Redis for rate limiting. When Redis is unreachable
// the service starts without throttling and both return values are nil.
func connectThrottle(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (ports.Throttle, *redis.Client) {
	client, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, throttling is disabled")
		return nil, nil
	}
	return redisdb.NewThrottle(client), client
}
