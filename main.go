package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell/api"
	"inkwell/cache"
	"inkwell/cli"
	"inkwell/common"
	"inkwell/config"
	"inkwell/content"
	"inkwell/database"
	"inkwell/identity"
)

const usage = `usage: inkwell [serve]

With no command the interactive shell starts. "serve" runs the JSON HTTP API.`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	db, err := common.ConnectDb(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(db, log); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if err := database.SeedCategories(db, cfg.Categories(), log); err != nil {
		log.Error("failed to seed categories", "error", err)
		os.Exit(1)
	}

	ids := identity.NewStore(db, cfg.PasswordHash)
	repo := content.NewRepository(db, content.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "":
		shell := cli.NewShell(ids, repo, os.Stdin, os.Stdout)
		err = shell.Run(ctx)
	case "serve":
		err = serve(ctx, cfg, log, ids, repo)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, ids *identity.Store, repo *content.Repository) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	views := cache.New(cfg.CacheDir, cfg.CacheMaxAge)
	if views.Enabled() {
		go sweepCache(ctx, views, cfg.CacheMaxAge, log)
	}

	router := api.NewRouter(api.NewModule(ids, repo, views, log), cfg.SessionSecret)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// sweepCache drops expired post views once per maxAge.
func sweepCache(ctx context.Context, views *cache.ViewCache, maxAge time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := views.ClearOld(); err != nil {
				log.Warn("cache sweep failed", "error", err)
			}
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
