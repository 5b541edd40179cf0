package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	"github.com/voxlog-ai/voxlog/pkg/config"
	pkgdb "github.com/voxlog-ai/voxlog/pkg/db"
	"github.com/voxlog-ai/voxlog/pkg/httpapi"
	"github.com/voxlog-ai/voxlog/pkg/ingest"
	"github.com/voxlog-ai/voxlog/pkg/query"
	"github.com/voxlog-ai/voxlog/pkg/structure"
	"github.com/voxlog-ai/voxlog/pkg/transcribe"
	"github.com/voxlog-ai/voxlog/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Voxlog HTTP server",
	Long: `Starts the HTTP server exposing the voice diary API: audio upload and
ingestion, entry listing, full-text search, retrieval, and deletion.

Configuration comes from the environment (VOXLOG_ADDR, VOXLOG_DB,
VOXLOG_UPLOAD_DIR, VOXLOG_MAX_AUDIO_MB, VOXLOG_LANGUAGE, VOXLOG_STATIC_DIR)
plus the provider credentials GROQ_API_KEY and DEEPSEEK_API_KEY. The --dbpath
flag, when set, overrides VOXLOG_DB.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	resolvedPath, err := utils.ResolveAndEnsureDBPath(cfg.DBPath)
	if err != nil {
		return err
	}

	dbConn, err := pkgdb.OpenDBConnection(resolvedPath, true, "NORMAL")
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := pkgdb.UpgradeDB(dbConn, resolvedPath, pkgdb.TargetSchemaVersion); err != nil {
		return err
	}

	blobs := blob.NewStore(cfg.UploadDir)
	if err := os.MkdirAll(blobs.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create upload directory '%s': %w", blobs.Dir(), err)
	}

	pipeline := ingest.NewPipeline(
		dbConn,
		blobs,
		transcribe.NewClient(cfg.GroqAPIKey, cfg.Language),
		structure.NewClient(cfg.DeepSeekAPIKey),
		ingest.Options{MaxUploadBytes: cfg.MaxUploadBytes(), Logger: logger},
	)
	queries := query.NewService(dbConn, blobs, logger)

	api := httpapi.New(pipeline, queries, cfg.MaxUploadBytes(), logger)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Routes(cfg.StaticDir),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.Addr, "db", resolvedPath, "uploads", blobs.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
