package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/wilberttgr/folio/internal/auth"
	"github.com/wilberttgr/folio/internal/logging"
	"github.com/wilberttgr/folio/internal/realtime"
	"github.com/wilberttgr/folio/internal/storage"
	"github.com/wilberttgr/folio/internal/web"
)

const cleanupInterval = time.Hour

func newServeCmd() *cobra.Command {
	var (
		port    int
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portfolio site",
		Long: `Start the HTTP server for the portfolio site, the comment API and the
realtime feed.

Configuration is read from the environment, after loading --env-file if it
exists:

  FOLIO_OWNER_EMAIL        owner allowed to sign in and moderate
  FOLIO_BASE_URL           public URL of the site (passkeys and enroll links)
  FOLIO_DEV_MODE           text logs at debug level
  FOLIO_REDIS_URL          fan changes out through Redis (optional)
  FOLIO_STORAGE_PROVIDER   filesystem, aws-s3 or minio`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, envFile)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	return cmd
}

func runServe(ctx context.Context, port int, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg := auth.ConfigFromEnv()
	logging.Setup(cfg.DevMode)
	if cfg.OwnerEmail == "" {
		slog.Warn("FOLIO_OWNER_EMAIL is not set; owner sign-in is disabled")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, closeBroker, err := newBroker(ctx, os.Getenv("FOLIO_REDIS_URL"))
	if err != nil {
		return err
	}
	defer closeBroker()

	uploader, uploadDir, err := newUploader()
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Options{
		DB:        database,
		Auth:      cfg,
		Broker:    broker,
		Uploader:  uploader,
		UploadDir: uploadDir,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	sessions := auth.NewSessionStore(database, cfg.SecureCookies())
	tokens := auth.NewTokenStore(database)

	var wg conc.WaitGroup
	wg.Go(func() {
		cleanupLoop(ctx, cleanupInterval, sessions.Cleanup, tokens.Cleanup)
	})

	err = srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
	stop()
	wg.Wait()
	return err
}

// loadEnvFile loads path into the environment. A missing file is ignored;
// variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// newBroker returns a Redis-backed broker when redisURL is set, otherwise an
// in-process hub. The returned func releases it.
func newBroker(ctx context.Context, redisURL string) (realtime.Broker, func(), error) {
	hub := realtime.NewHub()
	if redisURL == "" {
		return hub, func() {}, nil
	}

	rdb, err := realtime.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, err
	}
	broker, err := realtime.NewRedisBroker(ctx, rdb, os.Getenv("FOLIO_REDIS_CHANNEL"), hub)
	if err != nil {
		if cerr := rdb.Close(); cerr != nil {
			slog.Warn("closing redis client", "err", cerr)
		}
		return nil, nil, err
	}
	slog.Info("realtime changes relayed through redis")

	return broker, func() {
		if err := broker.Close(); err != nil {
			slog.Warn("closing redis broker", "err", err)
		}
		if err := rdb.Close(); err != nil {
			slog.Warn("closing redis client", "err", err)
		}
	}, nil
}

// newUploader builds the comment image uploader from FOLIO_STORAGE_*. For the
// filesystem provider it also returns the folder to serve at /uploads/. Remote
// providers without FOLIO_STORAGE_PUBLIC_URL link to the object store itself.
func newUploader() (*storage.Uploader, string, error) {
	sc := storage.ConfigFromEnv()

	var uploadDir string
	if sc.Provider == "" || sc.Provider == "filesystem" {
		if sc.Folder == "" {
			folder, err := storage.DefaultFolder()
			if err != nil {
				return nil, "", err
			}
			sc.Folder = folder
		}
		uploadDir = sc.Folder
	} else if os.Getenv("FOLIO_STORAGE_PUBLIC_URL") == "" {
		sc.PublicURL = ""
	}

	backend, err := storage.NewStorage(&sc)
	if err != nil {
		return nil, "", fmt.Errorf("creating storage: %w", err)
	}
	return storage.NewUploader(backend, sc.Bucket, sc.PublicURL), uploadDir, nil
}

// cleanupLoop runs each task every interval until ctx is done.
func cleanupLoop(ctx context.Context, interval time.Duration, tasks ...func() error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, task := range tasks {
				if err := task(); err != nil {
					slog.Warn("cleanup", "err", err)
				}
			}
		}
	}
}
