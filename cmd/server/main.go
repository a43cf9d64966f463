package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/party-quiz-backend/internal/auth"
	"github.com/DoyleJ11/party-quiz-backend/internal/config"
	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/httpapi"
	"github.com/DoyleJ11/party-quiz-backend/internal/hub"
	"github.com/DoyleJ11/party-quiz-backend/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	if code := finish(log, run(cfg, log)); code != 0 {
		os.Exit(code)
	}
}

// finish flushes the logger and returns the process exit code.
func finish(log *zap.Logger, err error) int {
	if err != nil {
		log.Error("server stopped", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return store.NewPostgres(cfg.DatabaseURL, log)
	case "redis":
		return store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	default:
		return store.NewMemory(), nil
	}
}

func run(cfg *config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	pool, err := content.NewPool(uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	limiter := content.NewLimiter(cfg.GeneratorConcurrency)

	var gen content.Generator = pool
	if ai := content.NewOpenAI(cfg.AIAPIKey, cfg.AIAPIURL, cfg.AIModel, pool, log); ai.IsAvailable() {
		gen = ai
		log.Info("using AI content generator", zap.String("model", cfg.AIModel))
	} else {
		log.Info("using built-in content pool")
	}

	var speaker content.Speaker
	if cfg.TTSAPIURL != "" {
		speaker = limiter.Speaker(content.NewHTTPSpeaker(cfg.TTSAPIURL, cfg.AIAPIKey))
	}

	verifier, err := auth.New(cfg.AdminPassword, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	h := hub.NewHub(context.Background(), hub.Deps{
		Store:     st,
		Generator: limiter.Generator(gen),
		Speaker:   speaker,
		Rules:     cfg.Rules,
		Log:       log,
	})

	var origins []string
	if u, perr := url.Parse(cfg.PublicURL); perr == nil && u.Host != "" {
		origins = []string{u.Host}
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:            h,
			Auth:           verifier,
			Catalog:        pool,
			PublicURL:      cfg.PublicURL,
			OriginPatterns: origins,
			Log:            log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Lobbies flush their last state before the store closes.
		return multierr.Combine(srv.Shutdown(sctx), h.Shutdown(sctx))
	})
	return g.Wait()
}
